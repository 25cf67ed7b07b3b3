package output

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func newTestRenderer(mode Mode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"TEXT", ModeText, false},
		{"md", ModeMarkdown, false},
		{"json", ModeJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveMode(t *testing.T) {
	r, _, _ := newTestRenderer(ModeAuto, true)
	assert.Equal(t, ModeText, r.EffectiveMode())

	r, _, _ = newTestRenderer(ModeAuto, false)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())

	r, _, _ = newTestRenderer(ModeJSON, true)
	assert.Equal(t, ModeJSON, r.EffectiveMode())
	assert.True(t, r.IsJSON())
}

func TestTable_Markdown(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown, false)
	r.Table([]string{"source", "run_id"}, [][]any{{"customer", 1}, {"purchase", 2}})

	s := out.String()
	assert.Contains(t, s, "| source | run_id |")
	assert.Contains(t, s, "| customer | 1 |")
	assert.False(t, ansiPattern.MatchString(s))
}

func TestTable_TextEmpty(t *testing.T) {
	r, out, _ := newTestRenderer(ModeText, false)
	r.Table([]string{"a"}, nil)
	assert.Equal(t, "(0 rows)\n", out.String())
}

func TestStatusLineAndMessages(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeMarkdown, false)
	r.StatusLine("failure", "customer run 3")
	r.Warning("journal unavailable")
	r.Error("boom")

	assert.Equal(t, "- **failure** customer run 3\n", out.String())
	assert.True(t, strings.HasPrefix(errOut.String(), "warning: journal unavailable\n"))
	assert.Contains(t, errOut.String(), "error: boom")
}

func TestJSON(t *testing.T) {
	r, out, _ := newTestRenderer(ModeJSON, false)
	require.NoError(t, r.JSON(map[string]int{"run_id": 4}))
	assert.JSONEq(t, `{"run_id": 4}`, out.String())
}

func TestFormatKeyValue(t *testing.T) {
	assert.Equal(t, "- **database**: vault.duckdb", FormatKeyValue(plainStyles(), ModeMarkdown, "database", "vault.duckdb"))
	assert.Equal(t, "database:      vault.duckdb", FormatKeyValue(plainStyles(), ModeText, "database", "vault.duckdb"))
}
