package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/remoteq/internal/endpoint"
	"github.com/roach88/remoteq/internal/ir"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/queryir"
	"github.com/roach88/remoteq/internal/store"
	"github.com/roach88/remoteq/internal/types"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string // journal to replay; defaults to the configured journal
	Kind     string // optional - one request kind only
	Workers  int
}

// ReplayOutcome is what one execution of a request produced.
type ReplayOutcome struct {
	Outcome     string `json:"outcome"`
	ResultCount int    `json:"result_count"`
	ResultHash  string `json:"result_hash,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
}

// ReplayRequestResult compares a journaled request with its re-execution.
type ReplayRequestResult struct {
	ID          string        `json:"id"`
	Kind        string        `json:"kind"`
	RequestHash string        `json:"request_hash"`
	Journaled   ReplayOutcome `json:"journaled"`
	Replayed    ReplayOutcome `json:"replayed"`
	Match       bool          `json:"match"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Requests   []ReplayRequestResult `json:"requests"`
	Total      int                   `json:"total"`
	Mismatches int                   `json:"mismatches"`
	AllMatch   bool                  `json:"all_match"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute journaled requests and compare results",
		Long: `Re-execute journaled requests against the configured dataset.

Takes the first journaled record of every distinct request, executes the
request again with the current configuration, and compares outcome,
result count, result hash and error code with what was journaled. A
mismatch means the dataset, the record type or the operation catalog
changed the meaning of a request that was served before.

Exit codes:
  0 - Every request reproduced its journaled result
  1 - One or more mismatches
  2 - Command error (config or journal not found, etc.)

Examples:
  remoteq replay --config ./remoteq.cue
  remoteq replay --db ./old-journal.db --kind count
  remoteq replay --format json --workers 8`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (defaults to the configured journal)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "replay one request kind only (query|count)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "concurrent re-executions")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := opts.formatter(cmd)

	switch opts.Kind {
	case "", queryir.RequestKindQuery, queryir.RequestKindCount:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --kind %q: must be query or count", opts.Kind))
	}

	cfg, err := loadConfig(opts.configPath())
	if err != nil {
		return err
	}
	journalPath := opts.Database
	if journalPath == "" {
		journalPath = cfg.Path(cfg.Journal)
	}
	if journalPath == "" {
		return NewExitError(ExitCommandError, "no journal: pass --db or set journal in the config")
	}

	st, err := openJournal(journalPath)
	if err != nil {
		return err
	}
	defer st.Close()

	// Re-executions are not journaled; the journal under replay stays as is.
	b, err := newBackend(cfg, "", opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer b.Close()

	records, err := st.ReplaySet(ctx, opts.Kind)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	formatter.VerboseLog("Replaying %d distinct request(s) from %s", len(records), journalPath)

	results, err := replayAll(ctx, b, records, opts.Workers)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay aborted", err)
	}

	result := ReplayResult{
		Requests: results,
		Total:    len(results),
		AllMatch: true,
	}
	for _, r := range results {
		if !r.Match {
			result.Mismatches++
			result.AllMatch = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replayAll re-executes records concurrently. Results keep journal order.
func replayAll(ctx context.Context, b *backend, records []store.Record, workers int) ([]ReplayRequestResult, error) {
	results := make([]ReplayRequestResult, len(records))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, rec := range records {
		g.Go(func() error {
			replayed, err := replayRecord(ctx, b, rec)
			if err != nil {
				return fmt.Errorf("request %s: %w", rec.ID, err)
			}
			journaled := ReplayOutcome{
				Outcome:     rec.Outcome,
				ResultCount: rec.ResultCount,
				ResultHash:  rec.ResultHash,
				ErrorCode:   rec.ErrorCode,
			}
			results[i] = ReplayRequestResult{
				ID:          rec.ID,
				Kind:        rec.Kind,
				RequestHash: rec.RequestHash,
				Journaled:   journaled,
				Replayed:    replayed,
				Match:       journaled == replayed,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// replayRecord executes one journaled request. Query errors are outcomes;
// anything else (an undecodable record, a cancelled context) aborts.
func replayRecord(ctx context.Context, b *backend, rec store.Record) (ReplayOutcome, error) {
	var (
		n      int
		result ir.IRValue
		err    error
	)
	switch rec.Kind {
	case queryir.RequestKindQuery:
		req, derr := rec.FilterSortPage()
		if derr != nil {
			return ReplayOutcome{}, derr
		}
		var out []types.Record
		if out, err = b.exec.ExecuteSortFilterPage(ctx, req); err == nil {
			n = len(out)
			result, err = endpoint.RecordsToIR(b.elem, out)
		}
	case queryir.RequestKindCount:
		req, derr := rec.Count()
		if derr != nil {
			return ReplayOutcome{}, derr
		}
		if n, err = b.exec.ExecuteCount(ctx, req); err == nil {
			result = ir.IRInt(n)
		}
	default:
		return ReplayOutcome{}, fmt.Errorf("unknown request kind %q", rec.Kind)
	}

	if err != nil {
		code := qerr.CodeOf(err)
		if code == "" || errors.Is(err, context.Canceled) {
			return ReplayOutcome{}, err
		}
		return ReplayOutcome{Outcome: store.OutcomeError, ErrorCode: string(code)}, nil
	}

	hash, err := ir.ResultHash(result)
	if err != nil {
		return ReplayOutcome{}, err
	}
	return ReplayOutcome{Outcome: store.OutcomeOK, ResultCount: n, ResultHash: hash}, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllMatch {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_REPLAY_MISMATCH",
			Message: fmt.Sprintf("%d of %d request(s) changed result", result.Mismatches, result.Total),
		}
	}

	if err := formatter.Respond(response); err != nil {
		return err
	}

	if !result.AllMatch {
		// Mismatch = exit code 1
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.Total == 0 {
		fmt.Fprintln(w, "No requests found in journal.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d request(s)\n", result.Total)
	fmt.Fprintln(w)

	for _, r := range result.Requests {
		if r.Match && !verbose {
			continue
		}
		status := "✓"
		if !r.Match {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s %s (%s)\n", status, r.Kind, truncateID(r.RequestHash), r.ID)
		if !r.Match {
			fmt.Fprintf(w, "  Journaled: %s\n", describeOutcome(r.Journaled))
			fmt.Fprintf(w, "  Replayed:  %s\n", describeOutcome(r.Replayed))
		}
	}
	if verbose || !result.AllMatch {
		fmt.Fprintln(w)
	}

	if result.AllMatch {
		fmt.Fprintln(w, "✓ All requests reproduced their journaled results")
		return nil
	}

	fmt.Fprintf(w, "✗ %d request(s) changed result\n", result.Mismatches)
	// Mismatch = exit code 1
	return NewExitError(ExitFailure, "replay verification failed")
}

func describeOutcome(o ReplayOutcome) string {
	if o.Outcome == store.OutcomeError {
		return "error " + o.ErrorCode
	}
	return fmt.Sprintf("ok, %d result(s), hash %s", o.ResultCount, truncateID(o.ResultHash))
}
