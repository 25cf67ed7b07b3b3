package vault

import (
	"context"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapvault/internal/adapter"
	"github.com/leapstack-labs/leapvault/internal/metadata"
)

// BuildHashView returns the statement (re)creating the hash view of source
// from its transitions. The view selects every key hash and hash diff
// followed by all derived staging columns.
func BuildHashView(source string, transitions []metadata.Transition) (string, error) {
	var (
		fields []string
		seen   = make(map[string]bool)
	)
	add := func(expr string) {
		if !seen[expr] {
			seen[expr] = true
			fields = append(fields, expr)
		}
	}

	var businessKeys, linkKeys, payload []metadata.Transition
	for _, t := range transitions {
		switch {
		case t.Raw:
			add(adapter.QuoteLiteral(t.SourceField) + " AS " + adapter.QuoteIdent(t.SourceField))
		case t.Kind != metadata.TransferLinkToHub && !t.Kind.IsSatelliteMarker():
			add(fieldExpr(t) + " AS " + adapter.QuoteIdent(t.SourceField))
		}

		switch t.Kind {
		case metadata.TransferBusinessKey:
			businessKeys = append(businessKeys, t)
		case metadata.TransferLinkKey, metadata.TransferLinkToHub:
			linkKeys = append(linkKeys, t)
		case metadata.TransferField:
			payload = append(payload, t)
		}
	}

	hubGroups, err := metadata.GroupBy(businessKeys, metadata.ByGroupName)
	if err != nil {
		return "", configErrorf(source, "business keys: %v", err)
	}
	linkGroups, err := metadata.GroupBy(linkKeys, metadata.ByGroupName)
	if err != nil {
		return "", configErrorf(source, "link keys: %v", err)
	}
	payloadGroups, err := metadata.GroupBy(payload, metadata.ByGroupName)
	if err != nil {
		return "", configErrorf(source, "payload fields: %v", err)
	}

	var hashes []string
	for _, group := range hubGroups.Keys() {
		hashes = append(hashes, HashExpr(HashKeyColumn(group), sourceFields(hubGroups.Get(group))))
	}
	for _, group := range linkGroups.Keys() {
		var names []string
		for _, t := range linkGroups.Get(group) {
			if t.Kind != metadata.TransferLinkToHub {
				names = append(names, t.SourceField)
				continue
			}
			if !hubGroups.Has(t.SourceField) {
				return "", configErrorf(t.TargetEntity, "link group %q references unknown business key group %q", group, t.SourceField)
			}
			names = append(names, sourceFields(hubGroups.Get(t.SourceField))...)
		}
		hashes = append(hashes, HashExpr(HashKeyColumn(group), names))
	}
	for _, group := range payloadGroups.Keys() {
		hashes = append(hashes, HashExpr(HashDiffColumn(group), sourceFields(payloadGroups.Get(group))))
	}

	cte := "*"
	if len(fields) > 0 {
		cte = strings.Join(fields, ",\n        ")
	}

	var b strings.Builder
	b.WriteString("CREATE OR REPLACE VIEW " + HashViewName(source) + " AS (\nWITH cte AS (\n    SELECT\n        ")
	b.WriteString(cte)
	b.WriteString("\n    FROM stg." + adapter.QuoteIdent(source) + "\n)\nSELECT\n    ")
	b.WriteString(strings.Join(append(hashes, "*"), ",\n    "))
	b.WriteString("\nFROM cte\n)")

	return b.String(), nil
}

// fieldExpr applies the transformation template of t, where # stands for
// the source field.
func fieldExpr(t metadata.Transition) string {
	field := adapter.QuoteIdent(t.SourceField)
	if t.Transformation == "" {
		return field
	}
	return strings.ReplaceAll(t.Transformation, "#", field)
}

func sourceFields(ts []metadata.Transition) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.SourceField
	}
	return out
}

// ComputeHashView recreates the hash view of source.
func (v *Vault) ComputeHashView(ctx context.Context, source string) Errors {
	var errs Errors

	ts, ok := v.transitions(ctx, &errs, source)
	if !ok {
		return errs
	}

	stmt, err := BuildHashView(source, ts)
	if err != nil {
		v.reject(&errs, HashViewName(source), err)
		return errs
	}

	v.exec(ctx, &errs, stmt)
	v.logger.Info("hash view computed", slog.String("source", source), slog.Int("errors", len(errs)))
	return errs
}
