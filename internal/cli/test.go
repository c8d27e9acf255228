package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/remoteq/internal/harness"
)

// TestOptions are the flags of `remoteq test`.
type TestOptions struct {
	*RootOptions
	Update bool
	Filter string
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Note   string   `json:"note,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult aggregates a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r *TestResult) add(s ScenarioResult) {
	r.Scenarios = append(r.Scenarios, s)
	r.Total++
	if s.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run the YAML conformance scenarios found under a directory.

A scenario names a record type, a dataset and a sequence of query or
count requests, each with the records, count or error code it expects.
Every scenario gets its own in-memory journal, sequential request IDs and
a fixed clock, so its journal trace is reproducible and is compared with
golden/<name>.golden when that file exists. --update rewrites the golden
files of passing scenarios.

Exit status is 0 when every scenario passes, 1 when any fails and 2 when
the directory or filter is unusable.

Examples:
  remoteq test ./testdata/scenarios
  remoteq test ./testdata/scenarios --filter "sort_*"
  remoteq test ./testdata/scenarios --update
  remoteq test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files for passing scenarios")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name matches this glob")
	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, dir string) error {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, "scenarios directory not found: "+dir)
	}

	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	var live io.Writer
	if opts.Format != "json" {
		if len(files) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
			return nil
		}
		live = cmd.OutOrStdout()
	}

	result := TestResult{Scenarios: []ScenarioResult{}}
	ctx := commandContext(cmd)
	for _, file := range files {
		sr := checkScenario(ctx, file, opts.Update)
		if live != nil {
			printScenario(live, sr)
		}
		result.add(sr)
	}

	if opts.Format == "json" {
		return respondTests(opts.formatter(cmd), result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return testFailure(result)
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}

// findScenarioFiles lists .yaml and .yml files under dir in lexical order,
// skipping golden directories. filter is matched against the file name
// without its extension.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir():
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			ok, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// checkScenario loads and runs one scenario, then compares (or with update,
// rewrites) its golden trace.
func checkScenario(ctx context.Context, file string, update bool) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file)}
	failed := func(msgs ...string) ScenarioResult {
		sr.Errors = msgs
		return sr
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return failed("failed to load scenario: " + err.Error())
	}
	sr.Name = scenario.Name

	run, err := harness.Run(ctx, scenario)
	if err != nil {
		return failed("execution failed: " + err.Error())
	}
	if !run.Pass {
		return failed(run.Errors...)
	}

	trace, err := harness.Snapshot(scenario.Name, run)
	if err != nil {
		return failed("snapshot failed: " + err.Error())
	}

	golden := goldenFilePath(file)
	if update {
		if err := writeGolden(golden, trace); err != nil {
			return failed("failed to update golden file: " + err.Error())
		}
		sr.Pass, sr.Note = true, "golden updated"
		return sr
	}

	want, err := os.ReadFile(golden)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return failed("golden comparison failed: " + err.Error())
	case !bytes.Equal(bytes.TrimSpace(want), trace):
		return failed("trace does not match golden file (run with --update to regenerate)")
	}
	sr.Pass = true
	return sr
}

func printScenario(w io.Writer, sr ScenarioResult) {
	if !sr.Pass {
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}
	if sr.Note != "" {
		fmt.Fprintf(w, "✓ %s (%s)\n", sr.Name, sr.Note)
		return
	}
	fmt.Fprintf(w, "✓ %s\n", sr.Name)
}

// goldenFilePath maps dir/name.yaml to dir/golden/name.golden.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	return filepath.Join(filepath.Dir(scenarioFile), "golden", strings.TrimSuffix(base, filepath.Ext(base))+".golden")
}

func writeGolden(path string, trace []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	return os.WriteFile(path, trace, 0644)
}

func respondTests(formatter *OutputFormatter, result TestResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{Code: "E_TEST_FAILED", Message: testFailure(result).Message}
	}
	if err := formatter.Respond(resp); err != nil {
		return err
	}
	if result.Failed > 0 {
		return testFailure(result)
	}
	return nil
}

func testFailure(result TestResult) *ExitError {
	return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
}
