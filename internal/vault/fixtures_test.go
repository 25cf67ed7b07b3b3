package vault

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapvault/internal/adapter"
	"github.com/leapstack-labs/leapvault/internal/metadata"
	"github.com/leapstack-labs/leapvault/internal/testutil"
)

// customerTables describes stg.customer, hub_customer and the
// hsat_customer_details satellite.
func customerTables() []metadata.TableColumn {
	return []metadata.TableColumn{
		{EntityName: "customer", EntityKind: metadata.KindStaging, ColumnName: "id", ColumnType: "INTEGER", Position: 1, Role: metadata.RoleStagingColumn},
		{EntityName: "customer", EntityKind: metadata.KindStaging, ColumnName: "first_name", ColumnType: "VARCHAR", Position: 2, Role: metadata.RoleStagingColumn},
		{EntityName: "customer", EntityKind: metadata.KindStaging, ColumnName: "last_name", ColumnType: "VARCHAR", Position: 3, Role: metadata.RoleStagingColumn},
		{EntityName: "customer", EntityKind: metadata.KindStaging, ColumnName: "email", ColumnType: "VARCHAR", Position: 4, Role: metadata.RoleStagingColumn},
		{EntityName: "customer", EntityKind: metadata.KindHub, ColumnName: "id", ColumnType: "INTEGER", Position: 1, Role: "pk"},
		{EntityName: "customer_details", EntityKind: metadata.KindHubSatellite, ColumnName: "customer", ColumnType: "INTEGER", Position: 1, Role: metadata.RoleHashKey},
		{EntityName: "customer_details", EntityKind: metadata.KindHubSatellite, ColumnName: "first_name", ColumnType: "VARCHAR", Position: 2, Role: "attr"},
		{EntityName: "customer_details", EntityKind: metadata.KindHubSatellite, ColumnName: "last_name", ColumnType: "VARCHAR", Position: 3, Role: "attr"},
		{EntityName: "customer_details", EntityKind: metadata.KindHubSatellite, ColumnName: "email", ColumnType: "VARCHAR", Position: 4, Role: "attr"},
	}
}

// customerTransitions maps customer into its hub and satellite using the
// given satellite regime.
func customerTransitions(regime metadata.TransferKind) []metadata.Transition {
	return []metadata.Transition{
		{SourceEntity: "customer", SourceField: "id", TargetEntity: "hub_customer", TargetField: "id_bk", GroupName: "customer", Position: 1, Kind: metadata.TransferBusinessKey},
		{SourceEntity: "customer", SourceField: "customer_hk", TargetEntity: "hsat_customer_details", TargetField: "customer", GroupName: "customer_details", Position: 0, Kind: regime},
		{SourceEntity: "customer", SourceField: "first_name", TargetEntity: "hsat_customer_details", TargetField: "first_name", GroupName: "customer_details", Position: 1, Kind: metadata.TransferField},
		{SourceEntity: "customer", SourceField: "last_name", TargetEntity: "hsat_customer_details", TargetField: "last_name", GroupName: "customer_details", Position: 2, Kind: metadata.TransferField},
		{SourceEntity: "customer", SourceField: "email", TargetEntity: "hsat_customer_details", TargetField: "email", GroupName: "customer_details", Position: 3, Kind: metadata.TransferField},
	}
}

// purchaseTables describes stg.purchase with hubs for purchases and
// customers and a link between them.
func purchaseTables() []metadata.TableColumn {
	return []metadata.TableColumn{
		{EntityName: "purchase", EntityKind: metadata.KindStaging, ColumnName: "purchase_id", ColumnType: "INTEGER", Position: 1, Role: metadata.RoleStagingColumn},
		{EntityName: "purchase", EntityKind: metadata.KindStaging, ColumnName: "customer_id", ColumnType: "INTEGER", Position: 2, Role: metadata.RoleStagingColumn},
		{EntityName: "purchase", EntityKind: metadata.KindStaging, ColumnName: "channel", ColumnType: "VARCHAR", Position: 3, Role: metadata.RoleStagingColumn},
		{EntityName: "customer", EntityKind: metadata.KindHub, ColumnName: "id", ColumnType: "INTEGER", Position: 1, Role: "pk"},
		{EntityName: "purchase", EntityKind: metadata.KindHub, ColumnName: "purchase_id", ColumnType: "INTEGER", Position: 1, Role: "pk"},
		{EntityName: "customer_purchase", EntityKind: metadata.KindLink, ColumnName: "customer", ColumnType: "", Position: 1, Role: metadata.RoleLinkHub},
		{EntityName: "customer_purchase", EntityKind: metadata.KindLink, ColumnName: "purchase", ColumnType: "", Position: 2, Role: metadata.RoleLinkHub},
		{EntityName: "customer_purchase", EntityKind: metadata.KindLink, ColumnName: "channel", ColumnType: "VARCHAR", Position: 3, Role: "dk"},
	}
}

func purchaseTransitions() []metadata.Transition {
	return []metadata.Transition{
		{SourceEntity: "purchase", SourceField: "customer_id", TargetEntity: "hub_customer", TargetField: "id_bk", GroupName: "customer", Position: 1, Kind: metadata.TransferBusinessKey},
		{SourceEntity: "purchase", SourceField: "purchase_id", TargetEntity: "hub_purchase", TargetField: "purchase_id_bk", GroupName: "purchase", Position: 1, Kind: metadata.TransferBusinessKey},
		{SourceEntity: "purchase", SourceField: "customer", TargetEntity: "link_customer_purchase", TargetField: "customer_hk", GroupName: "customer_purchase", Position: 1, Kind: metadata.TransferLinkToHub},
		{SourceEntity: "purchase", SourceField: "purchase", TargetEntity: "link_customer_purchase", TargetField: "purchase_hk", GroupName: "customer_purchase", Position: 2, Kind: metadata.TransferLinkToHub},
		{SourceEntity: "purchase", SourceField: "channel", TargetEntity: "link_customer_purchase", TargetField: "channel_dk", GroupName: "customer_purchase", Position: 3, Transformation: "lower(#)", Kind: metadata.TransferLinkKey},
	}
}

// newTestVault loads tables and transitions into an in-memory database and
// creates the staging tables and vault entities they describe.
func newTestVault(t *testing.T, tables []metadata.TableColumn, transitions []metadata.Transition) (*Vault, adapter.Adapter) {
	t.Helper()
	ctx := context.Background()

	db := testutil.NewDuckDB(t)
	logger := testutil.NewTestLogger(t)
	store := metadata.NewStore(db, logger)
	require.Empty(t, store.CreateTables(ctx))
	require.Empty(t, store.ReplaceTables(ctx, tables))
	require.Empty(t, store.ReplaceTransitions(ctx, transitions))

	v := New(Config{DB: db, Metadata: store, Logger: logger})
	requireNoErrors(t, v.CreateStagingTables(ctx, ""))
	requireNoErrors(t, v.CreateHubs(ctx, ""))
	requireNoErrors(t, v.CreateLinks(ctx, "", ""))
	requireNoErrors(t, v.CreateSatellites(ctx, "", ""))
	requireNoErrors(t, v.CreateCurrentViews(ctx, "", ""))

	return v, db
}

// runLoad replaces the staging rows of source and runs hash, hub, link and
// satellite loads.
func runLoad(t *testing.T, v *Vault, db adapter.Adapter, source string, runID int64, at time.Time, rows ...string) {
	t.Helper()
	ctx := context.Background()

	testutil.MustExec(t, db, "DELETE FROM stg."+source)
	for _, row := range rows {
		testutil.MustExec(t, db, "INSERT INTO stg."+source+" VALUES "+row)
	}

	p := LoadParams{RunID: runID, RecordSource: "test", LoadDate: at}
	requireNoErrors(t, v.ComputeHashView(ctx, source))
	requireNoErrors(t, v.LoadHubs(ctx, source, p))
	requireNoErrors(t, v.LoadLinks(ctx, source, p))
	requireNoErrors(t, v.LoadSatellites(ctx, source, p))
}

func requireNoErrors(t *testing.T, errs Errors) {
	t.Helper()
	require.Empty(t, errs, "unexpected errors: %v", errs.Err())
}

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return baseTime.AddDate(0, 0, n)
}
