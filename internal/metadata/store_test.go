package metadata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapvault/internal/testutil"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db := testutil.NewDuckDB(t)
	store := NewStore(db, testutil.NewTestLogger(t))
	require.Empty(t, store.CreateTables(context.Background()))
	return store
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestStore_CreateTablesIdempotent(t *testing.T) {
	store := setupStore(t)
	assert.Empty(t, store.CreateTables(context.Background()))
}

func TestStore_ReplaceAndQueryTables(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	cols := []TableColumn{
		{EntityName: "customer_details", EntityKind: KindHubSatellite, ColumnName: "email", ColumnType: "VARCHAR", Position: 3, Role: "attr"},
		{EntityName: "customer", EntityKind: KindHub, ColumnName: "id", ColumnType: "INTEGER", Position: 1, Role: "pk"},
		{EntityName: "customer_details", EntityKind: KindHubSatellite, ColumnName: "customer", ColumnType: "INTEGER", Position: 1, Role: RoleHashKey},
		{EntityName: "customer_details", EntityKind: KindHubSatellite, ColumnName: "first_name", ColumnType: "VARCHAR", Position: 2, Role: "attr"},
	}
	require.Empty(t, store.ReplaceTables(ctx, cols))

	all, err := store.Tables(ctx, TableFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	// ordered by rel_type, base_name, mapping, column_position
	assert.Equal(t, "first_name", all[0].ColumnName)
	assert.Equal(t, "email", all[1].ColumnName)
	assert.Equal(t, RoleHashKey, all[2].Role)
	assert.Equal(t, KindHub, all[3].EntityKind)

	sats, err := store.Tables(ctx, TableFilter{Kind: KindHubSatellite, Name: "customer_details"})
	require.NoError(t, err)
	assert.Len(t, sats, 3)

	// replacing truncates first
	require.Empty(t, store.ReplaceTables(ctx, cols[:1]))
	all, err = store.Tables(ctx, TableFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_ReplaceAndQueryTransitions(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	ts := []Transition{
		{SourceEntity: "customer", SourceField: "email", TargetEntity: "hsat_customer_details", TargetField: "email", GroupName: "customer_details", Position: 3, Kind: TransferField},
		{SourceEntity: "customer", SourceField: "id", TargetEntity: "hub_customer", TargetField: "id", GroupName: "customer", Position: 1, Kind: TransferBusinessKey, Transformation: "trim(#)"},
		{SourceEntity: "customer", SourceField: "first_name", TargetEntity: "hsat_customer_details", TargetField: "first_name", GroupName: "customer_details", Position: 1, Kind: TransferField},
		{SourceEntity: "order", SourceField: "crm", TargetEntity: "hub_order", TargetField: "source", GroupName: "order", Position: 1, Raw: true, Kind: TransferBusinessKey},
	}
	require.Empty(t, store.ReplaceTransitions(ctx, ts))

	got, err := store.Transitions(ctx, "customer")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first_name", got[0].SourceField)
	assert.Equal(t, "email", got[1].SourceField)
	assert.Equal(t, "hub_customer", got[2].TargetEntity)
	assert.Equal(t, "trim(#)", got[2].Transformation)
	assert.False(t, got[2].Raw)

	all, err := store.Transitions(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.True(t, all[3].Raw)

	sources, err := store.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"customer", "order"}, sources)
}

func TestStore_OverwriteFromCSV(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	tables := writeFile(t, "tables.csv", `base_name,rel_type,column_name,column_type,column_position,mapping
customer,stg,id,INTEGER,1,c
customer,hub,id,INTEGER,1,pk
customer_details,hub_satellite,customer,INTEGER,1,hk
`)
	transitions := writeFile(t, "transitions.csv", `source_table,source_field,target_table,target_field,group_name,position,raw,transformation,transfer_type
customer,id,hub_customer,id,customer,1,false,,business_key
customer,customer_hk,hsat_customer_details,customer,customer_details,0,false,,sat_delta
`)

	errs := store.OverwriteFromFiles(ctx, tables, transitions)
	require.Empty(t, errs, "%v", errs.Messages())

	cols, err := store.Tables(ctx, TableFilter{Kind: KindHubSatellite})
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, RoleHashKey, cols[0].Role)

	ts, err := store.Transitions(ctx, "customer")
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.Equal(t, TransferSatDelta, ts[0].Kind)
	assert.Equal(t, TransferBusinessKey, ts[1].Kind)
	assert.Empty(t, ts[1].Transformation)
}

func TestStore_OverwriteFromYAML(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	doc := writeFile(t, "metadata.yaml", `
tables:
  - {base_name: customer, rel_type: hub, column_name: id, column_type: INTEGER, column_position: 1, mapping: pk}
transitions:
  - {source_table: customer, source_field: id, target_table: hub_customer, target_field: id, group_name: customer, position: 1, transfer_type: business_key}
`)

	errs := store.OverwriteFromFiles(ctx, doc, doc)
	require.Empty(t, errs)

	cols, err := store.Tables(ctx, TableFilter{})
	require.NoError(t, err)
	assert.Len(t, cols, 1)

	ts, err := store.Transitions(ctx, "")
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, TransferBusinessKey, ts[0].Kind)
}

func TestStore_OverwriteMissingFile(t *testing.T) {
	store := setupStore(t)
	errs := store.OverwriteFromFiles(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), "")
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Statement, "read_csv")
}

func TestStore_RunHistory(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	id, err := store.NextRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(ctx, RunRecord{SourceEntity: "customer", RunID: 1, LogDate: now, SourceFile: "a.csv", Status: RunStatusStart}))

	ok, err := store.HasSucceeded(ctx, "customer", "a.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Record(ctx, RunRecord{SourceEntity: "customer", RunID: 1, LogDate: now.Add(time.Second), SourceFile: "a.csv", Status: RunStatusSuccess}))

	ok, err = store.HasSucceeded(ctx, "customer", "a.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.HasSucceeded(ctx, "customer", "b.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	id, err = store.NextRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	require.NoError(t, store.Record(ctx, RunRecord{SourceEntity: "order", RunID: 2, LogDate: now, Status: RunStatusFailure, Message: "1 error(s)"}))

	runs, err := store.List(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, int64(2), runs[0].RunID)
	assert.Equal(t, "1 error(s)", runs[0].Message)
	assert.Empty(t, runs[0].SourceFile)
	assert.Equal(t, RunStatusSuccess, runs[1].Status)
	assert.Equal(t, RunStatusStart, runs[2].Status)

	customer, err := store.List(ctx, RunFilter{Source: "customer", Limit: 1})
	require.NoError(t, err)
	require.Len(t, customer, 1)
	assert.Equal(t, RunStatusSuccess, customer[0].Status)
}
