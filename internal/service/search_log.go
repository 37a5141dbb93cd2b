package service

import (
	"context"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/pagination"
)

// SearchLogResult captures one returned code for later relevance review.
type SearchLogResult struct {
	Code     string `json:"code"`
	Position int    `json:"position"`
}

// SearchLogEntry captures a CPV search and what it returned.
type SearchLogEntry struct {
	UserID     string
	Query      string
	Variant    string
	Locale     string
	DurationMs int
	Results    []SearchLogResult
}

// SearchHistoryItem is one past search as shown to the user who ran it.
type SearchHistoryItem struct {
	ID          string
	Query       string
	Variant     string
	Locale      string
	ResultCount int
	ChosenCode  string
	CreatedAt   time.Time
}

// SearchLogRepository persists search logs and the code eventually picked from them.
type SearchLogRepository interface {
	CreateSearchLog(ctx context.Context, entry SearchLogEntry) (string, error)
	RecordSearchSelection(ctx context.Context, userID, searchID, code string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ListByUser(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (pagination.Page[SearchHistoryItem], error)
}
