// Package config loads the query server configuration.
//
// Configuration is written in CUE and unified with an embedded schema
// before decoding, so defaults, bounds and required fields are enforced by
// CUE rather than by hand:
//
//	listen:  ":8080"
//	journal: "remoteq.db"
//	limits: max_take: 100
//	record: {
//		name: "TestData"
//		fields: [
//			{name: "Name", type: "string"},
//			{name: "Tag", type: "int"},
//			{name: "Xs", type: "Seq[int]"},
//		]
//	}
//	dataset: "testdata.yaml"
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/remoteq/internal/endpoint"
	"github.com/roach88/remoteq/internal/types"
)

//go:embed schema.cue
var schemaCUE string

// DefaultFile is the configuration file name looked up by the CLI.
const DefaultFile = "remoteq.cue"

// Config is the decoded server configuration.
type Config struct {
	Listen  string `json:"listen"`
	Journal string `json:"journal"`
	Strict  bool   `json:"strict"`
	Limits  Limits `json:"limits"`
	Record  Record `json:"record"`
	Dataset string `json:"dataset"`

	// Dir is the directory of the configuration file; relative paths
	// resolve against it.
	Dir string `json:"-"`
}

// Limits mirrors endpoint.Limits.
type Limits struct {
	MaxDepth int `json:"max_depth" yaml:"max_depth"`
	MaxNodes int `json:"max_nodes" yaml:"max_nodes"`
	MaxTake  int `json:"max_take" yaml:"max_take"`
}

// Record declares the served record type.
type Record struct {
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Field is one record field; Type is a type registry name.
type Field struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// Error reports an invalid configuration, with a source position when CUE
// provides one.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Parse validates CUE source against the schema and decodes it.
func Parse(src []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, formatCUEError(err)
	}
	return &cfg, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "config"
	if path := first.Path(); len(path) > 0 {
		field = joinPath(path)
	}
	msg := first.Error()
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{Field: field, Message: msg, Pos: positions[0]}
	}
	return &Error{Field: field, Message: msg}
}

func joinPath(path []string) string {
	out := path[0]
	for _, p := range path[1:] {
		out += "." + p
	}
	return out
}

// EndpointLimits converts the configured limits.
func (c *Config) EndpointLimits() endpoint.Limits {
	return endpoint.Limits{
		MaxDepth: c.Limits.MaxDepth,
		MaxNodes: c.Limits.MaxNodes,
		MaxTake:  c.Limits.MaxTake,
	}
}

// Registry builds a type registry holding the configured record type.
func (c *Config) Registry() (*types.Registry, *types.Type, error) {
	specs := make([]types.FieldSpec, len(c.Record.Fields))
	for i, f := range c.Record.Fields {
		specs[i] = types.FieldSpec{Name: f.Name, Type: f.Type}
	}
	reg := types.NewRegistry()
	rec, err := reg.RegisterSchema(c.Record.Name, specs)
	if err != nil {
		return nil, nil, fmt.Errorf("record %s: %w", c.Record.Name, err)
	}
	return reg, rec, nil
}

// Path resolves p against the configuration directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}
