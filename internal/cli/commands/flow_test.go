package commands

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapvault/internal/cli/testutil"
	"github.com/leapstack-labs/leapvault/internal/engine"
	"github.com/leapstack-labs/leapvault/internal/vault"
)

func sampleFlow() *engine.FlowResult {
	return &engine.FlowResult{
		Source: "customer",
		RunID:  7,
		State:  engine.StateSucceeded,
		Stages: []engine.StageResult{
			{Stage: "staging", Statements: 2, Duration: 3 * time.Millisecond},
			{Stage: "hash", Statements: 1},
		},
	}
}

func TestRenderFlow_Markdown(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	require.NoError(t, renderFlow(tr.Renderer, "/drop/customer_1.csv", sampleFlow(), nil))

	out := tr.Output()
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "## Run 7 of customer")
	assert.Contains(t, out, "- **file**: /drop/customer_1.csv")
	assert.Contains(t, out, "| staging | 2 | 0 | 3ms |")
	assert.Contains(t, out, "- **success** customer ended in state success")
}

func TestRenderFlow_Failure(t *testing.T) {
	tr := testutil.NewTestRendererText()
	result := sampleFlow()
	result.State = engine.StateFailed
	errs := vault.Errors{{Statement: "INSERT INTO dv.hub_customer\nSELECT 1", Message: "boom"}}

	require.NoError(t, renderFlow(tr.Renderer, "", result, errs))
	assert.Contains(t, tr.Output(), "[failure]")

	err := reportErrors(tr.Renderer, "run customer", errs)
	require.Error(t, err)
	assert.Equal(t, "run customer failed with 1 error(s)", err.Error())
	assert.Contains(t, tr.ErrorOutput(), "INSERT INTO dv.hub_customer\n  boom")
}

func TestRenderFlow_Skipped(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	result := &engine.FlowResult{Source: "customer", State: engine.StateSucceeded, Skipped: true}
	require.NoError(t, renderFlow(tr.Renderer, "/drop/customer_1.csv", result, nil))
	assert.Equal(t, "- **skipped** customer: /drop/customer_1.csv already loaded\n", tr.Output())
}

func TestRenderFlow_JSON(t *testing.T) {
	tr := testutil.NewTestRendererJSON()
	errs := vault.Errors{{Statement: "x", Message: "boom"}}
	require.NoError(t, renderFlow(tr.Renderer, "/f.csv", sampleFlow(), errs))

	var got map[string]any
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
	assert.Equal(t, "customer", got["source"])
	assert.InDelta(t, 7, got["run_id"], 0)
	assert.Equal(t, "/f.csv", got["file"])
	assert.Len(t, got["errors"], 1)

	assert.Empty(t, tr.ErrorOutput())
	require.Error(t, reportErrors(tr.Renderer, "run", errs))
	assert.Empty(t, tr.ErrorOutput())
}
