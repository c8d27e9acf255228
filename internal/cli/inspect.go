package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/remoteq/internal/queryir"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Count    bool
	MaxDepth int
	MaxNodes int
}

// InspectResult describes a structurally valid request.
type InspectResult struct {
	Kind        string `json:"kind"`
	RequestHash string `json:"request_hash"`
	Text        string `json:"text"`
	Nodes       int    `json:"nodes"`
	Depth       int    `json:"depth"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <request-file>",
		Short: "Validate a request and print it as text",
		Long: `Validate a request envelope without executing it.

Checks every node against the tree grammar and the size limits, then
prints the request one stage per line, e.g.

  where x => Contains(x.Xs, 19)
  take 10

along with its request hash, the key the journal groups requests by.
Types and operations are not resolved; that needs a server.

Examples:
  remoteq inspect ./requests/contains.yaml
  remoteq inspect --count --format json ./requests/contains.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Count, "count", false, "treat the file as a count request")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 64, "maximum tree depth (0 = unlimited)")
	cmd.Flags().IntVar(&opts.MaxNodes, "max-nodes", 4096, "maximum nodes per tree (0 = unlimited)")

	return cmd
}

func runInspect(opts *InspectOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	limits := queryir.Limits{MaxDepth: opts.MaxDepth, MaxNodes: opts.MaxNodes}

	var (
		result InspectResult
		err    error
	)
	if opts.Count {
		result, err = inspectCount(cmd, formatter, path, limits)
	} else {
		result, err = inspectQuery(cmd, formatter, path, limits)
	}
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, result.Text)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Kind:  %s\n", result.Kind)
	fmt.Fprintf(w, "Hash:  %s\n", result.RequestHash)
	fmt.Fprintf(w, "Nodes: %d (depth %d)\n", result.Nodes, result.Depth)
	return nil
}

func inspectQuery(cmd *cobra.Command, formatter *OutputFormatter, path string, limits queryir.Limits) (InspectResult, error) {
	var req queryir.FilterSortPageRequest
	if err := readRequest(cmd.InOrStdin(), path, &req); err != nil {
		return InspectResult{}, WrapExitError(ExitCommandError, "failed to read request", err)
	}
	if err := queryir.ValidateFilterSortPage(&req, limits); err != nil {
		return InspectResult{}, formatter.QueryError(err)
	}
	hash, err := req.Hash()
	if err != nil {
		return InspectResult{}, WrapExitError(ExitCommandError, "failed to hash request", err)
	}

	result := InspectResult{
		Kind:        queryir.RequestKindQuery,
		RequestHash: hash,
		Text:        queryir.FormatFilterSortPage(&req),
	}
	result.measure(req.Filter)
	if req.Sort != nil {
		result.measure(req.Sort.KeySelector)
	}
	return result, nil
}

func inspectCount(cmd *cobra.Command, formatter *OutputFormatter, path string, limits queryir.Limits) (InspectResult, error) {
	var req queryir.CountRequest
	if err := readRequest(cmd.InOrStdin(), path, &req); err != nil {
		return InspectResult{}, WrapExitError(ExitCommandError, "failed to read request", err)
	}
	if err := queryir.ValidateCount(&req, limits); err != nil {
		return InspectResult{}, formatter.QueryError(err)
	}
	hash, err := req.Hash()
	if err != nil {
		return InspectResult{}, WrapExitError(ExitCommandError, "failed to hash request", err)
	}

	result := InspectResult{
		Kind:        queryir.RequestKindCount,
		RequestHash: hash,
		Text:        queryir.FormatCount(&req),
	}
	result.measure(req.Filter)
	return result, nil
}

// measure adds the size of tree n to the result.
func (r *InspectResult) measure(n *queryir.Node) {
	if n == nil {
		return
	}
	n.Walk(func(*queryir.Node) bool {
		r.Nodes++
		return true
	})
	r.Depth = max(r.Depth, n.Depth())
}
