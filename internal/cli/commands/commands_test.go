package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapvault/internal/cli/config"
	"github.com/leapstack-labs/leapvault/internal/testutil"
)

const tablesCSV = `base_name,rel_type,column_name,column_type,column_position,mapping
customer,stg,id,INTEGER,1,c
customer,stg,first_name,VARCHAR,2,c
customer,stg,email,VARCHAR,3,c
customer_v,stg_vw,views,,1,
customer,hub,id,INTEGER,1,pk
customer_details,hub_satellite,customer,INTEGER,1,hk
customer_details,hub_satellite,first_name,VARCHAR,2,attr
customer_details,hub_satellite,email,VARCHAR,3,attr
`

const transitionsCSV = `source_table,source_field,target_table,target_field,group_name,position,raw,transformation,transfer_type
customer,id,hub_customer,id_bk,customer,1,false,,business_key
customer,customer_hk,hsat_customer_details,customer,customer_details,0,false,,satellite_delta
customer,first_name,hsat_customer_details,first_name,customer_details,1,false,,descriptive_field
customer,email,hsat_customer_details,email,customer_details,2,false,,descriptive_field
`

const customerCSV = `id,first_name,email
1,Ada,ada@example.com
2,Alan,alan@example.com
`

// testProject is a project directory with customer metadata and a config
// pointing into it.
type testProject struct {
	dir string
	cfg *config.Config
}

func newTestProject(t *testing.T) *testProject {
	t.Helper()
	dir := t.TempDir()
	p := &testProject{
		dir: dir,
		cfg: &config.Config{
			Database:     filepath.Join(dir, "vault.duckdb"),
			ScriptsDir:   filepath.Join(dir, "scripts"),
			StatePath:    filepath.Join(dir, ".leapvault", "journal.db"),
			OutputFormat: "markdown",
			Metadata: config.MetadataConfig{
				Tables:      filepath.Join(dir, "tables.csv"),
				Transitions: filepath.Join(dir, "transitions.csv"),
			},
			Watch: config.WatchConfig{
				Dir:      filepath.Join(dir, "drop"),
				Pattern:  config.DefaultWatchPattern,
				Interval: 50 * time.Millisecond,
			},
			ProjectRoot: dir,
		},
	}
	p.writeFile(t, "tables.csv", tablesCSV)
	p.writeFile(t, "transitions.csv", transitionsCSV)
	p.writeFile(t, "scripts/views/customer_v.sql", "CREATE OR REPLACE VIEW stg.customer_v AS SELECT id, email FROM stg.customer")
	return p
}

func (p *testProject) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(p.dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type result struct {
	out    string
	errOut string
	err    error
}

// execute runs cmd with args against the project config.
func (p *testProject) execute(t *testing.T, cmd *cobra.Command, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	ctx := config.WithConfig(context.Background(), p.cfg)
	ctx = config.WithLogger(ctx, testutil.NewTestLogger(t))
	err := cmd.ExecuteContext(ctx)
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

// json runs cmd in JSON mode and decodes its output into v.
func (p *testProject) json(t *testing.T, v any, cmd *cobra.Command, args ...string) {
	t.Helper()
	saved := p.cfg.OutputFormat
	p.cfg.OutputFormat = "json"
	defer func() { p.cfg.OutputFormat = saved }()

	res := p.execute(t, cmd, args...)
	require.NoError(t, res.err, res.errOut)
	require.NoError(t, json.Unmarshal([]byte(res.out), v), res.out)
}

func (p *testProject) init(t *testing.T) {
	t.Helper()
	res := p.execute(t, NewInitCommand())
	require.NoError(t, res.err, res.errOut)
}

func TestCommandDefinitions(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewInitCommand(), "init", []string{"meta-only", "tables", "transitions"}},
		{NewCreateCommand(), "create", []string{"base", "kind"}},
		{NewHashCommand(), "hash <source>", nil},
		{NewLoadCommand(), "load <source>", []string{"load-date", "record-source"}},
		{NewRunCommand(), "run <source>", []string{"file", "force", "load-date", "record-source"}},
		{NewRunsCommand(), "runs", []string{"source", "limit"}},
		{NewWatchCommand(), "watch", []string{"dir", "source", "once"}},
		{NewValidateCommand(), "validate", nil},
		{NewMetadataCommand(), "metadata", nil},
	}
	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestParseLoadDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"", time.Time{}, false},
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), false},
		{"2024-01-02 03:04:05", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{"2024-01-02T03:04:05Z", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{"yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLoadDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestStatementSummary(t *testing.T) {
	assert.Equal(t, "CREATE TABLE x (", statementSummary("  CREATE TABLE x (\n  id INTEGER\n)"))
	long := statementSummary(string(bytes.Repeat([]byte("a"), 200)))
	assert.Len(t, long, 100)
	assert.Empty(t, statementSummary(""))
}

func TestConfiguredSources(t *testing.T) {
	fromMetadata := func() ([]string, error) { return []string{"meta"}, nil }

	names, err := configuredSources(&config.Config{Watch: config.WatchConfig{Sources: []string{"a"}}}, fromMetadata)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)

	names, err = configuredSources(&config.Config{Sources: map[string]config.SourceConfig{"b": {}, "a": {}}}, fromMetadata)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	names, err = configuredSources(&config.Config{}, fromMetadata)
	require.NoError(t, err)
	assert.Equal(t, []string{"meta"}, names)
}
