package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapvault/internal/vault"
)

func TestNewWatcher_Validation(t *testing.T) {
	e := New(Config{})

	_, err := NewWatcher(e, WatchConfig{Sources: []WatchSource{{Source: "customer", Pattern: "*.csv"}}})
	assert.ErrorContains(t, err, "directory is required")

	_, err = NewWatcher(e, WatchConfig{Dir: t.TempDir()})
	assert.ErrorContains(t, err, "at least one watch source")

	_, err = NewWatcher(e, WatchConfig{Dir: t.TempDir(), Sources: []WatchSource{{Source: "customer", Pattern: "[a-"}}})
	assert.ErrorContains(t, err, "invalid pattern")

	w, err := NewWatcher(e, WatchConfig{Dir: t.TempDir(), Sources: []WatchSource{{Source: "customer", Pattern: "*.csv"}}})
	require.NoError(t, err)
	assert.Equal(t, time.Second, w.cfg.Settle)
}

func TestWatcher_Match(t *testing.T) {
	w, err := NewWatcher(New(Config{}), WatchConfig{
		Dir: t.TempDir(),
		Sources: []WatchSource{
			{Source: "customer", Pattern: "customer_*.csv"},
			{Source: "purchase", Pattern: "purchase_*"},
		},
	})
	require.NoError(t, err)

	src, ok := w.Match("/drop/customer_2024.csv")
	require.True(t, ok)
	assert.Equal(t, "customer", src.Source)

	src, ok = w.Match("purchase_1.parquet")
	require.True(t, ok)
	assert.Equal(t, "purchase", src.Source)

	_, ok = w.Match("customer.csv")
	assert.False(t, ok)
}

func TestWatcher_ScanLoadsExistingFilesOnce(t *testing.T) {
	te := newTestEngine(t)
	te.initCustomer(t)
	ctx := context.Background()
	te.writeFile(t, "drop/customer_1.csv", customerFile1)
	te.writeFile(t, "drop/customer_2.csv", customerFile2)
	te.writeFile(t, "drop/readme.txt", "ignored")

	var loaded []string
	w, err := NewWatcher(te.Engine, WatchConfig{
		Dir:     filepath.Join(te.dir, "drop"),
		Sources: []WatchSource{{Source: "customer", Pattern: "customer_*.csv", RecordSource: "drop"}},
		OnFlow: func(path string, result *FlowResult, errs vault.Errors) {
			require.Empty(t, errs)
			if !result.Skipped {
				loaded = append(loaded, filepath.Base(path))
			}
		},
	})
	require.NoError(t, err)

	require.NoError(t, w.Scan(ctx))
	require.NoError(t, w.Scan(ctx))

	assert.Equal(t, []string{"customer_1.csv", "customer_2.csv"}, loaded)
	assert.Equal(t, int64(3), te.count(t, "dv.hub_customer"))
	assert.Len(t, te.runs(t), 4)
}

func TestWatcher_RunPicksUpNewFile(t *testing.T) {
	te := newTestEngine(t)
	te.initCustomer(t)
	drop := filepath.Join(te.dir, "drop")
	require.NoError(t, os.MkdirAll(drop, 0o755))

	done := make(chan *FlowResult, 1)
	w, err := NewWatcher(te.Engine, WatchConfig{
		Dir:     drop,
		Sources: []WatchSource{{Source: "customer", Pattern: "*.csv"}},
		Settle:  50 * time.Millisecond,
		OnFlow: func(_ string, result *FlowResult, _ vault.Errors) {
			select {
			case done <- result:
			default:
			}
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- w.Run(ctx) }()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(drop, "customer_1.csv"), []byte(customerFile1), 0o600))

	select {
	case result := <-done:
		assert.Equal(t, StateSucceeded, result.State)
		assert.Equal(t, int64(1), result.RunID)
	case <-time.After(10 * time.Second):
		t.Fatal("watcher did not process the file")
	}

	cancel()
	require.NoError(t, <-stopped)
	assert.Equal(t, int64(2), te.count(t, "dv.hub_customer"))
}
