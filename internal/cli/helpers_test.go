package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testConfig = `
journal: "journal.db"
limits: max_take: 5
record: {
	name: "TestData"
	fields: [
		{name: "Name", type: "string"},
		{name: "Tag", type: "int"},
		{name: "Xs", type: "Seq[int]"},
	]
}
dataset: "data.yaml"
`

const testDataset = `
- {Name: Test1, Tag: 12, Xs: [35, 66, 2567]}
- {Name: Test2, Tag: 76789, Xs: [35, 18, 19]}
`

// containsFilter is x => Contains(x.Xs, 19) in wire form.
const containsFilter = `
filter:
  kind: lambda
  declared_type_name: "Func[TestData,bool]"
  children:
    - {kind: parameter, declared_type_name: TestData, operation_name: x}
    - kind: call
      declared_type_name: bool
      operation_name: Contains
      children:
        - null
        - kind: member_access
          declared_type_name: "Seq[int]"
          operation_name: Xs
          children:
            - {kind: parameter, declared_type_name: TestData, operation_name: x}
        - {kind: constant, declared_type_name: int, literal_value: 19}
`

// workspace is a temporary directory holding a config, its dataset and
// request files.
type workspace struct {
	dir    string
	config string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	ws := &workspace{dir: dir, config: filepath.Join(dir, "remoteq.cue")}
	ws.write(t, "remoteq.cue", testConfig)
	ws.write(t, "data.yaml", testDataset)
	return ws
}

// write creates a file in the workspace and returns its path.
func (ws *workspace) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(ws.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (ws *workspace) journal() string {
	return filepath.Join(ws.dir, "journal.db")
}

// execute runs cmd with args and returns its output.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
