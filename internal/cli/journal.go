package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/remoteq/internal/queryir"
	"github.com/roach88/remoteq/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
	ID       string // show one record
	Hash     string // records of one request hash
	Kind     string // "query" or "count"
	Outcome  string // "ok" or "error"
	AfterSeq int64
	Limit    int
}

// JournalEntry is one journaled request as printed.
type JournalEntry struct {
	Seq          int64           `json:"seq"`
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	RequestHash  string          `json:"request_hash"`
	Request      json.RawMessage `json:"request"`
	Outcome      string          `json:"outcome"`
	ResultCount  int             `json:"result_count"`
	ResultHash   string          `json:"result_hash,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

// JournalSummary holds journal-wide counts.
type JournalSummary struct {
	Total    int   `json:"total"`
	OK       int   `json:"ok"`
	Errors   int   `json:"errors"`
	Distinct int   `json:"distinct"`
	LastSeq  int64 `json:"last_seq"`
}

// JournalResult holds the journal command output.
type JournalResult struct {
	Requests []JournalEntry `json:"requests"`
	Summary  JournalSummary `json:"summary"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List journaled requests",
		Long: `List the requests recorded in a journal.

Each record carries the request ID, its kind, the content hash of the
canonical request, the outcome and either the result count and hash or
the error code. Records are listed in journal order; the summary counts
the whole journal regardless of filters.

Examples:
  remoteq journal --db ./remoteq.db
  remoteq journal --db ./remoteq.db --outcome error --verbose
  remoteq journal --db ./remoteq.db --hash 3f9a... --format json
  remoteq journal --db ./remoteq.db --id 0192b7c4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.ID, "id", "", "show a single request")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "requests with this request hash")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter by kind (query|count)")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "filter by outcome (ok|error)")
	cmd.Flags().Int64Var(&opts.AfterSeq, "after", 0, "only requests after this sequence number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum requests to list (0 = all)")
	cmd.MarkFlagsMutuallyExclusive("id", "hash")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	if err := validateJournalFilters(opts); err != nil {
		return err
	}

	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := selectRecords(ctx, st, opts)
	if err != nil {
		return err
	}
	sum, err := st.Summarize(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize journal", err)
	}

	result := JournalResult{
		Requests: make([]JournalEntry, len(records)),
		Summary: JournalSummary{
			Total:    sum.Total,
			OK:       sum.OK,
			Errors:   sum.Errors,
			Distinct: sum.Distinct,
			LastSeq:  sum.LastSeq,
		},
	}
	for i, rec := range records {
		result.Requests[i] = journalEntry(rec)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(result)
	}
	return outputJournalText(cmd.OutOrStdout(), result, opts.Verbose)
}

func validateJournalFilters(opts *JournalOptions) error {
	switch opts.Kind {
	case "", queryir.RequestKindQuery, queryir.RequestKindCount:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --kind %q: must be query or count", opts.Kind))
	}
	switch opts.Outcome {
	case "", store.OutcomeOK, store.OutcomeError:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --outcome %q: must be ok or error", opts.Outcome))
	}
	return nil
}

// openJournal opens an existing journal. store.Open would create a
// missing file, which is never what a reader wants.
func openJournal(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "journal not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return st, nil
}

func selectRecords(ctx context.Context, st *store.Store, opts *JournalOptions) ([]store.Record, error) {
	switch {
	case opts.ID != "":
		rec, err := st.ReadRequest(ctx, opts.ID)
		if errors.Is(err, store.ErrNotFound) {
			return []store.Record{}, nil
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read request", err)
		}
		return []store.Record{rec}, nil

	case opts.Hash != "":
		records, err := st.RequestsByHash(ctx, opts.Hash)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to list requests", err)
		}
		return records, nil
	}

	records, err := st.ListRequests(ctx, store.Filter{
		Kind:     opts.Kind,
		Outcome:  opts.Outcome,
		AfterSeq: opts.AfterSeq,
		Limit:    opts.Limit,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to list requests", err)
	}
	return records, nil
}

func journalEntry(rec store.Record) JournalEntry {
	return JournalEntry{
		Seq:          rec.Seq,
		ID:           rec.ID,
		Kind:         rec.Kind,
		RequestHash:  rec.RequestHash,
		Request:      json.RawMessage(rec.Request),
		Outcome:      rec.Outcome,
		ResultCount:  rec.ResultCount,
		ResultHash:   rec.ResultHash,
		ErrorCode:    rec.ErrorCode,
		ErrorMessage: rec.ErrorMessage,
		CreatedAt:    rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// outputJournalText outputs the journal as text.
func outputJournalText(w io.Writer, result JournalResult, verbose bool) error {
	if len(result.Requests) == 0 {
		fmt.Fprintln(w, "No requests found.")
	}
	for _, e := range result.Requests {
		switch e.Outcome {
		case store.OutcomeOK:
			fmt.Fprintf(w, "[%d] %-5s ok     %d result(s)  %s\n", e.Seq, e.Kind, e.ResultCount, truncateID(e.RequestHash))
		default:
			fmt.Fprintf(w, "[%d] %-5s error  %s  %s\n", e.Seq, e.Kind, e.ErrorCode, truncateID(e.RequestHash))
		}
		if verbose {
			fmt.Fprintf(w, "       ID: %s\n", e.ID)
			fmt.Fprintf(w, "       At: %s\n", e.CreatedAt)
			if text, err := describeRequest(e.Kind, e.Request); err == nil {
				fmt.Fprintf(w, "       Request: %s\n", text)
			}
			if e.ErrorMessage != "" {
				fmt.Fprintf(w, "       Error: %s\n", e.ErrorMessage)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Summary ===")
	fmt.Fprintf(w, "  Requests: %d (%d ok, %d error)\n", result.Summary.Total, result.Summary.OK, result.Summary.Errors)
	fmt.Fprintf(w, "  Distinct: %d\n", result.Summary.Distinct)
	fmt.Fprintf(w, "  Last seq: %d\n", result.Summary.LastSeq)
	return nil
}

// describeRequest renders a journaled request envelope on one line.
func describeRequest(kind string, raw json.RawMessage) (string, error) {
	rec := store.Record{Kind: kind, Request: string(raw)}
	if kind == queryir.RequestKindCount {
		req, err := rec.Count()
		if err != nil {
			return "", err
		}
		return queryir.FormatCount(req), nil
	}
	req, err := rec.FilterSortPage()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(queryir.FormatFilterSortPage(req), "\n", "; "), nil
}

// truncateID truncates a long ID or hash for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
