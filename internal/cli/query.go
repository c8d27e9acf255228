package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/remoteq/internal/endpoint"
	"github.com/roach88/remoteq/internal/queryir"
	"github.com/roach88/remoteq/internal/transport"
	"github.com/roach88/remoteq/internal/types"
)

// RequestOptions holds flags shared by the query and count commands.
type RequestOptions struct {
	*RootOptions
	URL      string        // remote server; empty executes against the local config
	Database string        // journal for local execution
	Timeout  time.Duration // per-request deadline
}

// QueryResult is the data of a successful query.
type QueryResult struct {
	Records []types.Record `json:"records"`
	Count   int            `json:"count"`
}

// CountResult is the data of a successful count.
type CountResult struct {
	Count int `json:"count"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RequestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <request-file>",
		Short: "Execute a filter/sort/page request",
		Long: `Execute a filter/sort/page request and print the matching records.

The request file holds the wire envelope in YAML or JSON ("-" reads
stdin). Without --url the request runs in process against the dataset
of the configuration file; with --url it is posted to a running server.

Exit codes:
  0 - Request executed
  1 - Request rejected (the error code names the reason)
  2 - Command error (unreadable file, bad config, server unreachable)

Examples:
  remoteq query ./requests/contains.yaml
  remoteq query --url http://localhost:8080 ./requests/contains.yaml
  echo '{"take": 2}' | remoteq query --format json -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}
	addRequestFlags(cmd, opts)

	return cmd
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RequestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "count <request-file>",
		Short: "Execute a count request",
		Long: `Execute a count request and print the number of matching records.

The request file holds the count envelope (an optional filter) in YAML
or JSON ("-" reads stdin). Flags and exit codes match the query command.

Examples:
  remoteq count ./requests/contains.yaml
  remoteq count --url http://localhost:8080 -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(opts, args[0], cmd)
		},
	}
	addRequestFlags(cmd, opts)

	return cmd
}

func addRequestFlags(cmd *cobra.Command, opts *RequestOptions) {
	cmd.Flags().StringVar(&opts.URL, "url", "", "base URL of a running server")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal local executions to this SQLite database")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "request timeout")
	cmd.MarkFlagsMutuallyExclusive("url", "db")
}

func runQuery(opts *RequestOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var req queryir.FilterSortPageRequest
	if err := readRequest(cmd.InOrStdin(), path, &req); err != nil {
		return WrapExitError(ExitCommandError, "failed to read request", err)
	}
	formatter.VerboseLog("Request:\n%s", queryir.FormatFilterSortPage(&req))

	ep, closeFn, err := opts.endpoint(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(commandContext(cmd), opts.Timeout)
	defer cancel()

	records, err := ep.ExecuteSortFilterPage(ctx, &req)
	if err != nil {
		return formatter.QueryError(err)
	}

	result := QueryResult{Records: records, Count: len(records)}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return outputRecordsText(cmd.OutOrStdout(), result)
}

func runCount(opts *RequestOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var req queryir.CountRequest
	if err := readRequest(cmd.InOrStdin(), path, &req); err != nil {
		return WrapExitError(ExitCommandError, "failed to read request", err)
	}
	formatter.VerboseLog("Request: %s", queryir.FormatCount(&req))

	ep, closeFn, err := opts.endpoint(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(commandContext(cmd), opts.Timeout)
	defer cancel()

	n, err := ep.ExecuteCount(ctx, &req)
	if err != nil {
		return formatter.QueryError(err)
	}

	if opts.Format == "json" {
		return formatter.Success(CountResult{Count: n})
	}
	return formatter.Success(n)
}

// endpoint returns the endpoint requests go to and a function releasing
// it: an HTTP client for --url, a local executor otherwise.
func (o *RequestOptions) endpoint(cmd *cobra.Command) (endpoint.QueryEndpoint[types.Record], func(), error) {
	if o.URL != "" {
		if !strings.HasPrefix(o.URL, "http://") && !strings.HasPrefix(o.URL, "https://") {
			return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --url %q: want http:// or https://", o.URL))
		}
		return transport.NewClient[types.Record](o.URL, &http.Client{Timeout: o.Timeout}), func() {}, nil
	}

	cfg, err := loadConfig(o.configPath())
	if err != nil {
		return nil, nil, err
	}
	b, err := newBackend(cfg, o.Database, o.logger(cmd.ErrOrStderr()))
	if err != nil {
		return nil, nil, err
	}
	return b.exec, func() { b.Close() }, nil
}

func outputRecordsText(w io.Writer, result QueryResult) error {
	for _, rec := range result.Records {
		fmt.Fprintln(w, formatRecord(rec))
	}
	fmt.Fprintf(w, "%d record(s)\n", result.Count)
	return nil
}

// commandContext returns the command's context, or a background context
// for commands executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
