package vault

import (
	"fmt"

	"github.com/leapstack-labs/leapvault/internal/metadata"
)

// Validate checks table and transition metadata for configuration errors
// that would make DDL or loads fail or silently load nothing. The returned
// errors are ordered by check, then by metadata order.
func Validate(tables []metadata.TableColumn, transitions []metadata.Transition) []*ConfigError {
	var out []*ConfigError

	entities := make(map[string]bool)
	hashKeys := make(map[string]int)
	var satellites []string

	for _, c := range tables {
		if k, err := metadata.ParseEntityKind(string(c.EntityKind)); err != nil || k != c.EntityKind {
			out = append(out, configErrorf(c.EntityName, "unknown entity kind %q", c.EntityKind))
			continue
		}
		name := c.EntityKind.TableName(c.EntityName)
		if !entities[name] && c.EntityKind.IsSatellite() {
			satellites = append(satellites, name)
		}
		entities[name] = true
		if c.Role == metadata.RoleHashKey {
			hashKeys[name]++
		}
	}

	for _, sat := range satellites {
		if n := hashKeys[sat]; n != 1 {
			out = append(out, configErrorf(sat, "satellite must have exactly one hash key column, found %d", n))
		}
	}

	type groupKey struct{ source, target, group string }
	positions := make(map[groupKey]map[int]bool)
	businessGroups := make(map[string]map[string]bool)
	payloadGroups := make(map[groupKey]bool)
	reportedTargets := make(map[string]bool)

	for _, t := range transitions {
		if t.Kind == metadata.TransferBusinessKey {
			if businessGroups[t.SourceEntity] == nil {
				businessGroups[t.SourceEntity] = make(map[string]bool)
			}
			businessGroups[t.SourceEntity][t.GroupName] = true
		}
		if t.Kind == metadata.TransferField {
			payloadGroups[groupKey{t.SourceEntity, t.TargetEntity, t.GroupName}] = true
		}
	}

	for i, t := range transitions {
		ref := fmt.Sprintf("%s -> %s", t.SourceEntity, t.TargetEntity)

		if k, err := metadata.ParseTransferKind(string(t.Kind)); err != nil || k != t.Kind {
			out = append(out, configErrorf(ref, "transition %d: unknown transfer kind %q", i, t.Kind))
			continue
		}

		kind, base, ok := metadata.SplitEntity(t.TargetEntity)
		if !ok {
			out = append(out, configErrorf(ref, "transition %d: target %q has no hub, link or satellite prefix", i, t.TargetEntity))
			continue
		}
		if !entities[kind.TableName(base)] && !reportedTargets[t.TargetEntity] {
			reportedTargets[t.TargetEntity] = true
			out = append(out, configErrorf(t.TargetEntity, "no table metadata for target entity"))
		}

		switch t.Kind {
		case metadata.TransferBusinessKey:
			if kind != metadata.KindHub {
				out = append(out, configErrorf(ref, "transition %d: business key must target a hub", i))
			}
		case metadata.TransferLinkKey, metadata.TransferLinkToHub:
			if !kind.IsLink() {
				out = append(out, configErrorf(ref, "transition %d: link key must target a link", i))
			}
			if t.Kind == metadata.TransferLinkToHub && !businessGroups[t.SourceEntity][t.SourceField] {
				out = append(out, configErrorf(ref, "transition %d: link group %q references unknown business key group %q", i, t.GroupName, t.SourceField))
			}
		case metadata.TransferField, metadata.TransferSatDelta, metadata.TransferSatFull:
			if !kind.IsSatellite() {
				out = append(out, configErrorf(ref, "transition %d: %s must target a satellite", i, t.Kind))
			}
		}

		if t.Kind.IsSatelliteMarker() {
			if !payloadGroups[groupKey{t.SourceEntity, t.TargetEntity, t.GroupName}] {
				out = append(out, configErrorf(ref, "transition %d: satellite marker has no payload group %q", i, t.GroupName))
			}
			continue
		}

		if t.TargetField == "" {
			out = append(out, configErrorf(ref, "transition %d: empty target field", i))
		}
		gk := groupKey{t.SourceEntity, t.TargetEntity, t.GroupName}
		if positions[gk] == nil {
			positions[gk] = make(map[int]bool)
		}
		if positions[gk][t.Position] {
			out = append(out, configErrorf(ref, "transition %d: duplicate position %d in group %q", i, t.Position, t.GroupName))
		}
		positions[gk][t.Position] = true
	}

	return out
}
