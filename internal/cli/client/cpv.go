package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type cpvRecord struct {
	Code   string            `json:"code"`
	Label  string            `json:"label"`
	Labels map[string]string `json:"labels"`
}

type cpvSearchResult struct {
	Query    string      `json:"query"`
	Variant  string      `json:"variant"`
	Locale   string      `json:"locale"`
	Results  []cpvRecord `json:"results"`
	SearchID string      `json:"search_id,omitempty"`
	Skipped  bool        `json:"skipped"`
	Failed   bool        `json:"failed"`
}

type cpvSelection struct {
	Codes     []string    `json:"codes"`
	Records   []cpvRecord `json:"records,omitempty"`
	Remaining int         `json:"remaining"`
	Changed   *bool       `json:"changed,omitempty"`
}

type searchHistoryItem struct {
	ID          string `json:"id"`
	Query       string `json:"query"`
	Variant     string `json:"variant"`
	Locale      string `json:"locale,omitempty"`
	ResultCount int    `json:"result_count"`
	ChosenCode  string `json:"chosen_code,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type searchHistoryPage struct {
	Items   []searchHistoryItem `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

// CPVCmd creates the cpv parent command
func CPVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cpv",
		Short: "Look up CPV codes and manage your selection",
	}

	cmd.PersistentFlags().String("token", "", "Access token (overrides stored session)")
	cmd.PersistentFlags().String("api-url", "", "tendersync API URL")

	cmd.AddCommand(CPVSearchCmd())
	cmd.AddCommand(CPVShowCmd())
	cmd.AddCommand(CPVCodesCmd())
	cmd.AddCommand(CPVHistoryCmd())

	return cmd
}

// CPVSearchCmd searches the CPV catalogue. With --suggest it uses the
// profile variant which hides codes already selected.
func CPVSearchCmd() *cobra.Command {
	var locale, output string
	var suggest bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search CPV codes by label or code",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			query := url.Values{}
			query.Set("q", strings.Join(args, " "))
			if locale != "" {
				query.Set("locale", locale)
			}

			path := "/cpv/search"
			if suggest {
				path = "/profile/cpv-codes/suggestions"
			}

			resp, err := client.Get(path, query)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			var result cpvSearchResult
			if err := resp.Decode(&result); err != nil {
				return err
			}

			if output == "json" {
				return printJSON(result)
			}
			printSearchText(&result)
			return nil
		},
	}

	cmd.Flags().StringVar(&locale, "locale", "", "Label language (en, fr, de, nl)")
	cmd.Flags().BoolVar(&suggest, "suggest", false, "Exclude codes already in your selection")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")

	return cmd
}

// CPVShowCmd resolves codes to their labels.
func CPVShowCmd() *cobra.Command {
	var locale, output string

	cmd := &cobra.Command{
		Use:   "show <code>...",
		Short: "Show labels for CPV codes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			query := url.Values{}
			query.Set("codes", strings.Join(args, ","))
			if locale != "" {
				query.Set("locale", locale)
			}

			resp, err := client.Get("/cpv", query)
			if err != nil {
				return fmt.Errorf("failed to resolve codes: %w", err)
			}

			var records []cpvRecord
			if err := resp.Decode(&records); err != nil {
				return err
			}

			if output == "json" {
				return printJSON(records)
			}
			for _, rec := range records {
				fmt.Printf("%s  %s\n", rec.Code, rec.Label)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&locale, "locale", "", "Label language (en, fr, de, nl)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")

	return cmd
}

// CPVCodesCmd manages the CPV codes stored on the profile.
func CPVCodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Manage the CPV codes on your profile",
	}

	cmd.AddCommand(cpvCodesListCmd())
	cmd.AddCommand(cpvCodesAddCmd())
	cmd.AddCommand(cpvCodesRemoveCmd())

	return cmd
}

func cpvCodesListCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List selected CPV codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := client.Get("/profile/cpv-codes", nil)
			if err != nil {
				return fmt.Errorf("failed to list codes: %w", err)
			}
			return printSelection(resp, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")

	return cmd
}

func cpvCodesAddCmd() *cobra.Command {
	var searchID, output string

	cmd := &cobra.Command{
		Use:   "add <code>",
		Short: "Add a CPV code to your selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			body := map[string]string{"code": args[0]}
			if searchID != "" {
				body["search_id"] = searchID
			}

			resp, err := client.Post("/profile/cpv-codes", body)
			if err != nil {
				return fmt.Errorf("failed to add code: %w", err)
			}
			return printSelection(resp, output)
		},
	}

	cmd.Flags().StringVar(&searchID, "search-id", "", "Search the code was picked from")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")

	return cmd
}

func cpvCodesRemoveCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "remove <code>",
		Aliases: []string{"rm"},
		Short:   "Remove a CPV code from your selection",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := client.Delete("/profile/cpv-codes/" + url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("failed to remove code: %w", err)
			}
			return printSelection(resp, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")

	return cmd
}

// CPVHistoryCmd lists past searches, newest first.
func CPVHistoryCmd() *cobra.Command {
	var cursor, output string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List your recent CPV searches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			query := url.Values{}
			if cursor != "" {
				query.Set("cursor", cursor)
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}

			resp, err := client.Get("/cpv/searches", query)
			if err != nil {
				return fmt.Errorf("failed to list searches: %w", err)
			}

			var page searchHistoryPage
			if err := resp.Decode(&page); err != nil {
				return err
			}

			if output == "json" {
				return printJSON(page)
			}

			if len(page.Items) == 0 {
				fmt.Println("No searches yet")
				return nil
			}
			for _, item := range page.Items {
				picked := "-"
				if item.ChosenCode != "" {
					picked = item.ChosenCode
				}
				fmt.Printf("%s  %-10s  %3d result(s)  picked %-10s  %q\n", item.CreatedAt, item.Variant, item.ResultCount, picked, item.Query)
			}
			if page.HasMore {
				fmt.Printf("\nMore results: tendersync cpv history --cursor %s\n", page.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor from a previous page")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (default 20, max 100)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")

	return cmd
}

func printSelection(resp *APIResponse, output string) error {
	var sel cpvSelection
	if err := resp.Decode(&sel); err != nil {
		return err
	}

	if output == "json" {
		return printJSON(sel)
	}

	if sel.Changed != nil && !*sel.Changed {
		fmt.Println("Selection unchanged")
	}
	if len(sel.Codes) == 0 {
		fmt.Println("No CPV codes selected")
	}
	labels := make(map[string]string, len(sel.Records))
	for _, rec := range sel.Records {
		labels[rec.Code] = rec.Label
	}
	for _, code := range sel.Codes {
		if label, ok := labels[code]; ok && label != "" {
			fmt.Printf("%s  %s\n", code, label)
		} else {
			fmt.Println(code)
		}
	}
	fmt.Printf("\n%d more code(s) can be added\n", sel.Remaining)
	return nil
}

func printSearchText(result *cpvSearchResult) {
	switch {
	case result.Failed:
		fmt.Println("Search failed, please try again")
		return
	case result.Skipped:
		fmt.Println("Query too short, type at least a few characters")
		return
	case len(result.Results) == 0:
		fmt.Printf("No CPV codes match %q\n", result.Query)
		return
	}

	fmt.Printf("%d result(s) for %q (%s)\n\n", len(result.Results), result.Query, result.Locale)
	for _, rec := range result.Results {
		fmt.Printf("%s  %s\n", rec.Code, rec.Label)
	}
	if result.SearchID != "" {
		fmt.Printf("\nSearch ID: %s\n", result.SearchID)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
