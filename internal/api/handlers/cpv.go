package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/LogiStackDev/access-onboard-flow/internal/api"
	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/LogiStackDev/access-onboard-flow/internal/pagination"
	"github.com/LogiStackDev/access-onboard-flow/internal/service"
	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"
)

type CPVService interface {
	Search(ctx context.Context, userID, query, locale string) *service.SearchOutput
	Suggest(ctx context.Context, userID, query, locale string) (*service.SearchOutput, error)
	Resolve(ctx context.Context, codes []string) ([]domain.ClassificationRecord, error)
	Selection(ctx context.Context, userID string) ([]domain.ClassificationRecord, domain.Selection, error)
	AddCode(ctx context.Context, userID, code, searchID string) (*service.SelectionChange, error)
	RemoveCode(ctx context.Context, userID, code string) (*service.SelectionChange, error)
	History(ctx context.Context, userID, cursor string, limit int) (pagination.Page[service.SearchHistoryItem], error)
}

type CPVHandler struct {
	svc      CPVService
	maxCodes int
}

func NewCPVHandler(svc CPVService, maxCodes int) *CPVHandler {
	if maxCodes <= 0 {
		maxCodes = domain.DefaultMaxCodes
	}
	return &CPVHandler{svc: svc, maxCodes: maxCodes}
}

type CPVRecordResponse struct {
	Code   string            `json:"code"`
	Label  string            `json:"label"`
	Labels map[string]string `json:"labels"`
}

type CPVSearchResponse struct {
	Query    string               `json:"query"`
	Variant  string               `json:"variant"`
	Locale   string               `json:"locale"`
	Results  []*CPVRecordResponse `json:"results"`
	SearchID string               `json:"search_id,omitempty"`
	Skipped  bool                 `json:"skipped"`
	Failed   bool                 `json:"failed"`
}

type CPVSelectionResponse struct {
	Codes     []string             `json:"codes"`
	Records   []*CPVRecordResponse `json:"records,omitempty"`
	Remaining int                  `json:"remaining"`
	Changed   *bool                `json:"changed,omitempty"`
}

type SearchHistoryItemResponse struct {
	ID          string `json:"id"`
	Query       string `json:"query"`
	Variant     string `json:"variant"`
	Locale      string `json:"locale,omitempty"`
	ResultCount int    `json:"result_count"`
	ChosenCode  string `json:"chosen_code,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type SearchHistoryResponse struct {
	Items   []*SearchHistoryItemResponse `json:"items"`
	Cursor  string                       `json:"cursor,omitempty"`
	HasMore bool                         `json:"has_more"`
}

type AddCPVCodeRequest struct {
	Code     string `json:"code"`
	SearchID string `json:"search_id"`
}

func recordToResponse(rec domain.ClassificationRecord, locale language.Tag) *CPVRecordResponse {
	labels := make(map[string]string, len(rec.Labels))
	for tag, label := range rec.Labels {
		labels[tag.String()] = label
	}
	return &CPVRecordResponse{
		Code:   rec.Code,
		Label:  rec.Label(locale),
		Labels: labels,
	}
}

func recordsToResponse(records []domain.ClassificationRecord, locale language.Tag) []*CPVRecordResponse {
	out := make([]*CPVRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, recordToResponse(rec, locale))
	}
	return out
}

func searchToResponse(out *service.SearchOutput, locale language.Tag) *CPVSearchResponse {
	return &CPVSearchResponse{
		Query:    out.Query,
		Variant:  out.Variant,
		Locale:   locale.String(),
		Results:  recordsToResponse(out.Results, locale),
		SearchID: out.SearchID,
		Skipped:  out.Skipped,
		Failed:   out.Failed,
	}
}

// Search handles GET /cpv/search?q=&locale=
func (h *CPVHandler) Search(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	locale := requestLocale(r)
	out := h.svc.Search(r.Context(), user.ID, r.URL.Query().Get("q"), locale.String())
	api.Success(w, http.StatusOK, searchToResponse(out, locale))
}

// Resolve handles GET /cpv?codes=a,b
func (h *CPVHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	locale := requestLocale(r)
	codes := strings.Split(r.URL.Query().Get("codes"), ",")
	records, err := h.svc.Resolve(r.Context(), codes)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, recordsToResponse(records, locale))
}

// History handles GET /cpv/searches?cursor=&limit=
func (h *CPVHandler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	page, err := h.svc.History(r.Context(), user.ID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*SearchHistoryItemResponse, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, &SearchHistoryItemResponse{
			ID:          item.ID,
			Query:       item.Query,
			Variant:     item.Variant,
			Locale:      item.Locale,
			ResultCount: item.ResultCount,
			ChosenCode:  item.ChosenCode,
			CreatedAt:   formatTime(item.CreatedAt),
		})
	}
	api.Success(w, http.StatusOK, &SearchHistoryResponse{
		Items:   items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

// Suggestions handles GET /profile/cpv-codes/suggestions?q=
func (h *CPVHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	locale := requestLocale(r)
	out, err := h.svc.Suggest(r.Context(), user.ID, r.URL.Query().Get("q"), locale.String())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, searchToResponse(out, locale))
}

// ListSelection handles GET /profile/cpv-codes
func (h *CPVHandler) ListSelection(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	records, sel, err := h.svc.Selection(r.Context(), user.ID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, &CPVSelectionResponse{
		Codes:     selectionCodes(sel),
		Records:   recordsToResponse(records, requestLocale(r)),
		Remaining: sel.Remaining(h.maxCodes),
	})
}

// AddCode handles POST /profile/cpv-codes
func (h *CPVHandler) AddCode(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req AddCPVCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		api.Error(w, http.StatusBadRequest, "code is required")
		return
	}

	change, err := h.svc.AddCode(r.Context(), user.ID, req.Code, req.SearchID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, changeToResponse(change))
}

// RemoveCode handles DELETE /profile/cpv-codes/{code}
func (h *CPVHandler) RemoveCode(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	code := chi.URLParam(r, "code")
	if code == "" {
		api.Error(w, http.StatusBadRequest, "code is required")
		return
	}

	change, err := h.svc.RemoveCode(r.Context(), user.ID, code)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, changeToResponse(change))
}

func changeToResponse(change *service.SelectionChange) *CPVSelectionResponse {
	changed := change.Changed
	return &CPVSelectionResponse{
		Codes:     selectionCodes(change.Selection),
		Remaining: change.Remaining,
		Changed:   &changed,
	}
}

func selectionCodes(sel domain.Selection) []string {
	if sel == nil {
		return []string{}
	}
	return []string(sel)
}
