package vault

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapvault/internal/adapter"
	"github.com/leapstack-labs/leapvault/internal/metadata"
)

// Columns every hub and link starts with after its hash key.
var keyHeader = []string{
	"load_dts TIMESTAMP NOT NULL",
	"record_source VARCHAR(255) NOT NULL",
	"run_id INTEGER NOT NULL",
}

// Satellite columns between the hash key and the payload.
var satelliteHeader = []string{"load_dts", "del_flag", "hash_diff", "record_source", "run_id"}

// DataVaultTable returns the dv relation of kind and base, e.g.
// dv.hub_customer.
func DataVaultTable(kind metadata.EntityKind, base string) string {
	return "dv." + adapter.QuoteIdent(kind.TableName(base))
}

// CurrentViewName returns the current-value view of a satellite, e.g.
// bv.hsat_customer_details_cv.
func CurrentViewName(kind metadata.EntityKind, base string) string {
	return "bv." + adapter.QuoteIdent(kind.TableName(base)+"_cv")
}

// HubDDL returns the CREATE TABLE statement of the hub base. Business key
// columns get a _bk suffix, or _cbk when the key is composite.
func HubDDL(base string, cols []metadata.TableColumn) (string, error) {
	if len(cols) == 0 {
		return "", configErrorf(DataVaultTable(metadata.KindHub, base), "no business key columns")
	}

	suffix := "_bk"
	if len(cols) > 1 {
		suffix = "_cbk"
	}

	defs := []string{adapter.QuoteIdent(HashKeyColumn(base)) + " CHAR(40) NOT NULL PRIMARY KEY"}
	defs = append(defs, keyHeader...)
	for _, c := range byPosition(cols) {
		defs = append(defs, adapter.QuoteIdent(c.ColumnName+suffix)+" "+columnType(c))
	}

	return createTable(DataVaultTable(metadata.KindHub, base), defs), nil
}

// LinkDDL returns the CREATE TABLE statement of a link or non-historized
// link. Hub references (role ll) come first as hash columns, followed by
// direct keys with a _dk suffix.
func LinkDDL(kind metadata.EntityKind, base string, cols []metadata.TableColumn) (string, error) {
	if !kind.IsLink() {
		return "", configErrorf(base, "%q is not a link kind", kind)
	}

	defs := []string{adapter.QuoteIdent(HashKeyColumn(base)) + " CHAR(40) NOT NULL PRIMARY KEY"}
	defs = append(defs, keyHeader...)

	var keys []string
	for _, c := range byPosition(cols) {
		if c.Role == metadata.RoleLinkHub {
			defs = append(defs, adapter.QuoteIdent(HashKeyColumn(c.ColumnName))+" CHAR(40)")
		} else {
			keys = append(keys, adapter.QuoteIdent(c.ColumnName+"_dk")+" "+columnType(c))
		}
	}
	defs = append(defs, keys...)

	return createTable(DataVaultTable(kind, base), defs), nil
}

// SatelliteDDL returns the CREATE TABLE statement of a hub or link
// satellite. The metadata must carry exactly one hash key column.
func SatelliteDDL(kind metadata.EntityKind, base string, cols []metadata.TableColumn) (string, error) {
	hk, payload, err := splitSatellite(kind, base, cols)
	if err != nil {
		return "", err
	}

	defs := []string{
		adapter.QuoteIdent(HashKeyColumn(hk.ColumnName)) + " CHAR(40) NOT NULL",
		"load_dts TIMESTAMP NOT NULL",
		"del_flag BOOLEAN NOT NULL",
		"hash_diff CHAR(40) NOT NULL",
		"record_source VARCHAR(255) NOT NULL",
		"run_id INTEGER NOT NULL",
	}
	for _, c := range payload {
		defs = append(defs, adapter.QuoteIdent(c.ColumnName)+" "+columnType(c))
	}

	return createTable(DataVaultTable(kind, base), defs), nil
}

// CurrentViewDDL returns the view exposing the most recent version of every
// key of a satellite, deleted or not.
func CurrentViewDDL(kind metadata.EntityKind, base string, cols []metadata.TableColumn) (string, error) {
	hk, payload, err := splitSatellite(kind, base, cols)
	if err != nil {
		return "", err
	}

	hkCol := adapter.QuoteIdent(HashKeyColumn(hk.ColumnName))
	names := append([]string{hkCol}, satelliteHeader...)
	for _, c := range payload {
		names = append(names, adapter.QuoteIdent(c.ColumnName))
	}
	list := strings.Join(names, ",\n    ")

	return fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS
SELECT
    %s
FROM (
    SELECT
        ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) AS rn,
        %s
    FROM %s
) x
WHERE x.rn = 1`,
		CurrentViewName(kind, base), list, hkCol, latestOrder(""),
		strings.Join(names, ",\n        "), DataVaultTable(kind, base)), nil
}

// StagingDDL returns the CREATE TABLE statement of the staging relation of
// base from its pass-through (role c) columns.
func StagingDDL(base string, cols []metadata.TableColumn) (string, error) {
	var defs []string
	for _, c := range byPosition(cols) {
		if c.Role == metadata.RoleStagingColumn {
			defs = append(defs, adapter.QuoteIdent(c.ColumnName)+" "+columnType(c))
		}
	}
	if len(defs) == 0 {
		return "", configErrorf("stg."+adapter.QuoteIdent(base), "no staging columns")
	}
	return createTable("stg."+adapter.QuoteIdent(base), defs), nil
}

// latestOrder is the ordering that ranks the most recent satellite version
// first. Versions sharing a load date are ranked by run id, then hash diff.
func latestOrder(alias string) string {
	if alias != "" {
		alias += "."
	}
	return alias + "load_dts DESC, " + alias + "run_id DESC, " + alias + "hash_diff DESC"
}

func splitSatellite(kind metadata.EntityKind, base string, cols []metadata.TableColumn) (metadata.TableColumn, []metadata.TableColumn, error) {
	entity := DataVaultTable(kind, base)
	if !kind.IsSatellite() {
		return metadata.TableColumn{}, nil, configErrorf(entity, "%q is not a satellite kind", kind)
	}

	var hks, payload []metadata.TableColumn
	for _, c := range byPosition(cols) {
		if c.Role == metadata.RoleHashKey {
			hks = append(hks, c)
		} else {
			payload = append(payload, c)
		}
	}
	if len(hks) != 1 {
		return metadata.TableColumn{}, nil, configErrorf(entity, "satellite must have exactly one hash key column, found %d", len(hks))
	}
	return hks[0], payload, nil
}

func byPosition(cols []metadata.TableColumn) []metadata.TableColumn {
	out := slices.Clone(cols)
	slices.SortStableFunc(out, func(a, b metadata.TableColumn) int {
		return a.Position - b.Position
	})
	return out
}

func columnType(c metadata.TableColumn) string {
	if c.ColumnType == "" {
		return "VARCHAR"
	}
	return c.ColumnType
}

func createTable(name string, defs []string) string {
	return "CREATE TABLE IF NOT EXISTS " + name + " (\n    " + strings.Join(defs, ",\n    ") + "\n)"
}

// ddlBuilder builds the statement of one entity.
type ddlBuilder func(kind metadata.EntityKind, base string, cols []metadata.TableColumn) (string, error)

// createEntities groups cols by entity and runs the statement built for each.
func (v *Vault) createEntities(ctx context.Context, what string, cols []metadata.TableColumn, build ddlBuilder) Errors {
	var errs Errors

	groups, err := metadata.GroupBy(cols, metadata.ByEntity)
	if err != nil {
		v.reject(&errs, what, err)
		return errs
	}

	groups.Each(func(_ string, entity []metadata.TableColumn) {
		kind, base := entity[0].EntityKind, entity[0].EntityName
		stmt, err := build(kind, base, entity)
		if err != nil {
			v.reject(&errs, kind.TableName(base), err)
			return
		}
		v.exec(ctx, &errs, stmt)
	})

	v.logger.Info("created "+what,
		slog.Int("entities", groups.Len()),
		slog.Int("errors", len(errs)))
	return errs
}

// CreateHubs creates every hub, or only base when it is not empty.
func (v *Vault) CreateHubs(ctx context.Context, base string) Errors {
	var errs Errors
	cols, ok := v.tables(ctx, &errs, base, metadata.KindHub)
	if !ok {
		return errs
	}
	return v.createEntities(ctx, "hubs", cols, func(_ metadata.EntityKind, base string, cols []metadata.TableColumn) (string, error) {
		return HubDDL(base, cols)
	})
}

// CreateLinks creates links and non-historized links. An empty kind
// selects both.
func (v *Vault) CreateLinks(ctx context.Context, base string, kind metadata.EntityKind) Errors {
	var errs Errors
	kinds := []metadata.EntityKind{metadata.KindLink, metadata.KindNonHistorizedLink}
	if kind != "" {
		kinds = []metadata.EntityKind{kind}
	}
	cols, ok := v.tables(ctx, &errs, base, kinds...)
	if !ok {
		return errs
	}
	return v.createEntities(ctx, "links", cols, LinkDDL)
}

// CreateSatellites creates hub and link satellites. An empty kind selects
// both.
func (v *Vault) CreateSatellites(ctx context.Context, base string, kind metadata.EntityKind) Errors {
	var errs Errors
	cols, ok := v.tables(ctx, &errs, base, satelliteKinds(kind)...)
	if !ok {
		return errs
	}
	return v.createEntities(ctx, "satellites", cols, SatelliteDDL)
}

// CreateCurrentViews creates the current-value view of each satellite.
func (v *Vault) CreateCurrentViews(ctx context.Context, base string, kind metadata.EntityKind) Errors {
	var errs Errors
	cols, ok := v.tables(ctx, &errs, base, satelliteKinds(kind)...)
	if !ok {
		return errs
	}
	return v.createEntities(ctx, "current views", cols, CurrentViewDDL)
}

// CreateStagingTables creates staging relations from stg metadata.
func (v *Vault) CreateStagingTables(ctx context.Context, base string) Errors {
	var errs Errors
	cols, ok := v.tables(ctx, &errs, base, metadata.KindStaging)
	if !ok {
		return errs
	}
	return v.createEntities(ctx, "staging tables", cols, func(_ metadata.EntityKind, base string, cols []metadata.TableColumn) (string, error) {
		return StagingDDL(base, cols)
	})
}

func satelliteKinds(kind metadata.EntityKind) []metadata.EntityKind {
	if kind != "" {
		return []metadata.EntityKind{kind}
	}
	return []metadata.EntityKind{metadata.KindHubSatellite, metadata.KindLinkSatellite}
}
