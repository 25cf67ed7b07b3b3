package vault

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapvault/internal/adapter"
	"github.com/leapstack-labs/leapvault/internal/metadata"
)

// HubInsert returns the statement loading new keys of one hub group into
// the hub. fields are the business key transitions of the group in
// position order. Keys already in the hub are excluded.
func HubInsert(source string, fields []metadata.Transition, p LoadParams) (string, error) {
	if len(fields) == 0 {
		return "", configErrorf(source, "hub group without fields")
	}
	target, group := fields[0].TargetEntity, fields[0].GroupName
	kind, base, ok := metadata.SplitEntity(target)
	if !ok || kind != metadata.KindHub {
		return "", configErrorf(target, "not a hub")
	}

	selects := make([]string, len(fields))
	for i, f := range fields {
		selects[i] = "src." + adapter.QuoteIdent(f.SourceField)
	}
	return keyInsert(source, DataVaultTable(kind, base), HashKeyColumn(base), group, "hub", fields, selects, p), nil
}

// LinkInsert returns the statement loading new keys of one link group into
// a link or non-historized link. Hub references read the referenced hub's
// hash key from the hash view, direct keys read the field itself.
func LinkInsert(source string, fields []metadata.Transition, p LoadParams) (string, error) {
	if len(fields) == 0 {
		return "", configErrorf(source, "link group without fields")
	}
	target, group := fields[0].TargetEntity, fields[0].GroupName
	kind, base, ok := metadata.SplitEntity(target)
	if !ok || !kind.IsLink() {
		return "", configErrorf(target, "not a link")
	}

	selects := make([]string, len(fields))
	for i, f := range fields {
		if f.Kind == metadata.TransferLinkToHub {
			selects[i] = "src." + adapter.QuoteIdent(HashKeyColumn(f.SourceField))
		} else {
			selects[i] = "src." + adapter.QuoteIdent(f.SourceField)
		}
	}
	return keyInsert(source, DataVaultTable(kind, base), HashKeyColumn(base), group, "link", fields, selects, p), nil
}

// keyInsert is the shared hub and link insert: distinct keys from the hash
// view anti-joined against the target.
func keyInsert(source, table, keyColumn, group, alias string, fields []metadata.Transition, selects []string, p LoadParams) string {
	key := adapter.QuoteIdent(keyColumn)
	srcKey := "src." + adapter.QuoteIdent(HashKeyColumn(group))

	cols := []string{key, "load_dts", "record_source", "run_id"}
	outer := []string{"SUB.hk", p.loadDate(), p.recordSource(), strconv.FormatInt(p.RunID, 10)}
	inner := []string{srcKey + " AS hk"}
	for i, f := range fields {
		col := "c" + strconv.Itoa(i+1)
		cols = append(cols, adapter.QuoteIdent(f.TargetField))
		outer = append(outer, "SUB."+col)
		inner = append(inner, selects[i]+" AS "+col)
	}

	return fmt.Sprintf(`INSERT INTO %s (%s)
SELECT
    %s
FROM (
    SELECT DISTINCT
        %s
    FROM %s src
    LEFT OUTER JOIN %s %s ON %s = %s.%s
    WHERE %s.%s IS NULL
) SUB`,
		table, strings.Join(cols, ", "),
		strings.Join(outer, ",\n    "),
		strings.Join(inner, ",\n        "),
		HashViewName(source),
		table, alias, srcKey, alias, key,
		alias, key)
}

// satelliteParts resolves the pieces shared by the satellite statements of
// one marker.
type satelliteParts struct {
	table    string
	hkColumn string
	srcKey   string
	srcDiff  string
	columns  []string
	payload  []metadata.Transition
}

func resolveSatellite(marker metadata.Transition, fields []metadata.Transition) (satelliteParts, error) {
	kind, base, ok := metadata.SplitEntity(marker.TargetEntity)
	if !ok || !kind.IsSatellite() {
		return satelliteParts{}, configErrorf(marker.TargetEntity, "not a satellite")
	}
	if !marker.Kind.IsSatelliteMarker() {
		return satelliteParts{}, configErrorf(marker.TargetEntity, "transition %q is not a satellite marker", marker.Kind)
	}

	parts := satelliteParts{
		table:    DataVaultTable(kind, base),
		hkColumn: adapter.QuoteIdent(HashKeyColumn(marker.TargetField)),
		srcKey:   "src." + adapter.QuoteIdent(marker.SourceField),
		payload:  fields,
	}
	// without payload the key doubles as the change fingerprint
	parts.srcDiff = parts.srcKey
	if len(fields) > 0 {
		parts.srcDiff = "src." + adapter.QuoteIdent(HashDiffColumn(marker.GroupName))
	}

	parts.columns = append([]string{parts.hkColumn}, satelliteHeader...)
	for _, f := range fields {
		parts.columns = append(parts.columns, adapter.QuoteIdent(f.TargetField))
	}
	return parts, nil
}

// latestCTE ranks the versions of the satellite and keeps the most recent
// one per key, with payload columns when withPayload is set.
func (s satelliteParts) latestCTE(withPayload bool) string {
	cols := []string{"sat." + s.hkColumn + " AS hk", "sat.hash_diff", "sat.del_flag"}
	outer := []string{"hk", "hash_diff", "del_flag"}
	if withPayload {
		for _, f := range s.payload {
			col := adapter.QuoteIdent(f.TargetField)
			cols = append(cols, "sat."+col)
			outer = append(outer, col)
		}
	}
	cols = append(cols, "ROW_NUMBER() OVER (PARTITION BY sat."+s.hkColumn+" ORDER BY "+latestOrder("sat")+") AS rn")

	return fmt.Sprintf(`WITH latest AS (
    SELECT %s
    FROM (
        SELECT
            %s
        FROM %s sat
    ) x
    WHERE x.rn = 1
)`, strings.Join(outer, ", "), strings.Join(cols, ",\n            "), s.table)
}

// SatelliteInsert returns the statement appending new and changed versions
// for a satellite marker. A row is inserted unless the most recent version
// of its key has the same hash diff and is not deleted. fields are the
// payload transitions of the marker's group.
func SatelliteInsert(source string, marker metadata.Transition, fields []metadata.Transition, p LoadParams) (string, error) {
	s, err := resolveSatellite(marker, fields)
	if err != nil {
		return "", err
	}

	selects := []string{s.srcKey, p.loadDate(), "false", s.srcDiff, p.recordSource(), strconv.FormatInt(p.RunID, 10)}
	for _, f := range fields {
		selects = append(selects, "src."+adapter.QuoteIdent(f.SourceField))
	}

	return fmt.Sprintf(`INSERT INTO %s (%s)
%s
SELECT DISTINCT
    %s
FROM %s src
WHERE NOT EXISTS (
    SELECT 1
    FROM latest lr
    WHERE lr.hk = %s
        AND lr.hash_diff = %s
        AND lr.del_flag = false
)`,
		s.table, strings.Join(s.columns, ", "),
		s.latestCTE(false),
		strings.Join(selects, ",\n    "),
		HashViewName(source),
		s.srcKey, s.srcDiff), nil
}

// SatelliteDeleteInsert returns the statement appending a deleted version
// for every key whose most recent version is not deleted and which is
// missing from the hash view. The last known payload and hash diff are
// carried forward.
func SatelliteDeleteInsert(source string, marker metadata.Transition, fields []metadata.Transition, p LoadParams) (string, error) {
	s, err := resolveSatellite(marker, fields)
	if err != nil {
		return "", err
	}

	selects := []string{"lr.hk", p.loadDate(), "true", "lr.hash_diff", p.recordSource(), strconv.FormatInt(p.RunID, 10)}
	for _, f := range fields {
		selects = append(selects, "lr."+adapter.QuoteIdent(f.TargetField))
	}

	return fmt.Sprintf(`INSERT INTO %s (%s)
%s
SELECT DISTINCT
    %s
FROM latest lr
LEFT JOIN %s src ON lr.hk = %s
WHERE %s IS NULL
    AND lr.del_flag = false`,
		s.table, strings.Join(s.columns, ", "),
		s.latestCTE(true),
		strings.Join(selects, ",\n    "),
		HashViewName(source), s.srcKey,
		s.srcDiff), nil
}

// LoadHubs loads every hub fed by source.
func (v *Vault) LoadHubs(ctx context.Context, source string, p LoadParams) Errors {
	return v.loadKeys(ctx, source, p, "hubs",
		func(t metadata.Transition) bool {
			kind, _, ok := metadata.SplitEntity(t.TargetEntity)
			return ok && kind == metadata.KindHub && t.Kind == metadata.TransferBusinessKey
		},
		HubInsert)
}

// LoadLinks loads every link and non-historized link fed by source.
func (v *Vault) LoadLinks(ctx context.Context, source string, p LoadParams) Errors {
	return v.loadKeys(ctx, source, p, "links",
		func(t metadata.Transition) bool {
			kind, _, ok := metadata.SplitEntity(t.TargetEntity)
			return ok && kind.IsLink() && (t.Kind == metadata.TransferLinkKey || t.Kind == metadata.TransferLinkToHub)
		},
		LinkInsert)
}

type keyInsertBuilder func(source string, fields []metadata.Transition, p LoadParams) (string, error)

func (v *Vault) loadKeys(ctx context.Context, source string, p LoadParams, what string, keep func(metadata.Transition) bool, build keyInsertBuilder) Errors {
	var errs Errors

	ts, ok := v.transitions(ctx, &errs, source)
	if !ok {
		return errs
	}

	var selected []metadata.Transition
	for _, t := range ts {
		if keep(t) {
			selected = append(selected, t)
		}
	}

	groups, err := metadata.GroupBy(selected, metadata.ByTargetGroup)
	if err != nil {
		v.reject(&errs, source, err)
		return errs
	}

	groups.Each(func(key string, fields []metadata.Transition) {
		stmt, err := build(source, fields, p)
		if err != nil {
			v.reject(&errs, key, err)
			return
		}
		v.exec(ctx, &errs, stmt)
	})

	v.logger.Info("loaded "+what,
		slog.String("source", source),
		slog.Int64("run_id", p.RunID),
		slog.Int("groups", groups.Len()),
		slog.Int("errors", len(errs)))
	return errs
}

// LoadSatellites loads every satellite marked for source. Full-extract
// satellites also receive deleted versions for keys missing from the
// extract.
func (v *Vault) LoadSatellites(ctx context.Context, source string, p LoadParams) Errors {
	var errs Errors

	ts, ok := v.transitions(ctx, &errs, source)
	if !ok {
		return errs
	}

	var markers, payload []metadata.Transition
	for _, t := range ts {
		switch {
		case t.Kind.IsSatelliteMarker():
			markers = append(markers, t)
		case t.Kind == metadata.TransferField:
			payload = append(payload, t)
		}
	}

	groups, err := metadata.GroupBy(payload, metadata.ByTargetGroup)
	if err != nil {
		v.reject(&errs, source, err)
		return errs
	}

	for _, marker := range markers {
		fields := groups.Get(marker.TargetEntity + "." + marker.GroupName)

		stmt, err := SatelliteInsert(source, marker, fields, p)
		if err != nil {
			v.reject(&errs, marker.TargetEntity, err)
			continue
		}
		v.exec(ctx, &errs, stmt)

		if marker.Kind != metadata.TransferSatFull {
			continue
		}
		stmt, err = SatelliteDeleteInsert(source, marker, fields, p)
		if err != nil {
			v.reject(&errs, marker.TargetEntity, err)
			continue
		}
		v.exec(ctx, &errs, stmt)
	}

	v.logger.Info("loaded satellites",
		slog.String("source", source),
		slog.Int64("run_id", p.RunID),
		slog.Int("satellites", len(markers)),
		slog.Int("errors", len(errs)))
	return errs
}
