// Package metadata holds the field-mapping description that drives the
// vault: table-column metadata, field transitions and run history.
package metadata

import (
	"fmt"
	"strings"
	"time"
)

// EntityKind is the rel_type of a table-column metadata row.
type EntityKind string

// Entity kinds.
const (
	KindStaging           EntityKind = "stg"
	KindStagingScript     EntityKind = "stg_vw"
	KindHub               EntityKind = "hub"
	KindLink              EntityKind = "link"
	KindNonHistorizedLink EntityKind = "nhl"
	KindHubSatellite      EntityKind = "hsat"
	KindLinkSatellite     EntityKind = "lsat"
)

var entityKinds = map[string]EntityKind{
	"stg":                 KindStaging,
	"staging":             KindStaging,
	"stg_vw":              KindStagingScript,
	"hub":                 KindHub,
	"link":                KindLink,
	"nhl":                 KindNonHistorizedLink,
	"non_historized_link": KindNonHistorizedLink,
	"hsat":                KindHubSatellite,
	"hub_satellite":       KindHubSatellite,
	"lsat":                KindLinkSatellite,
	"link_satellite":      KindLinkSatellite,
}

// ParseEntityKind parses a stored rel_type code or its long name.
func ParseEntityKind(s string) (EntityKind, error) {
	if k, ok := entityKinds[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// IsLink reports whether k is a link or non-historized link.
func (k EntityKind) IsLink() bool {
	return k == KindLink || k == KindNonHistorizedLink
}

// IsSatellite reports whether k is a hub or link satellite.
func (k EntityKind) IsSatellite() bool {
	return k == KindHubSatellite || k == KindLinkSatellite
}

// TableName returns the physical table name for base, e.g. hub_customer.
func (k EntityKind) TableName(base string) string {
	return string(k) + "_" + base
}

// SplitEntity splits a target entity such as "hub_customer" or
// "lsat_order_line" into its kind and base name.
func SplitEntity(target string) (EntityKind, string, bool) {
	prefix, base, ok := strings.Cut(target, "_")
	if !ok || base == "" {
		return "", "", false
	}
	switch k := EntityKind(prefix); k {
	case KindHub, KindLink, KindNonHistorizedLink, KindHubSatellite, KindLinkSatellite:
		return k, base, true
	}
	return "", "", false
}

// TransferKind is the transfer_type of a field transition.
type TransferKind string

// Transfer kinds.
const (
	TransferBusinessKey TransferKind = "bk"
	TransferLinkKey     TransferKind = "dk"
	TransferLinkToHub   TransferKind = "ll"
	TransferField       TransferKind = "f"
	TransferSatDelta    TransferKind = "sat_delta"
	TransferSatFull     TransferKind = "sat_full"
)

var transferKinds = map[string]TransferKind{
	"bk":                    TransferBusinessKey,
	"business_key":          TransferBusinessKey,
	"dk":                    TransferLinkKey,
	"link_key":              TransferLinkKey,
	"ll":                    TransferLinkToHub,
	"link_to_hub_reference": TransferLinkToHub,
	"f":                     TransferField,
	"descriptive_field":     TransferField,
	"sat_delta":             TransferSatDelta,
	"satellite_delta":       TransferSatDelta,
	"sat_full":              TransferSatFull,
	"satellite_full":        TransferSatFull,
}

// ParseTransferKind parses a transfer code or its long name.
func ParseTransferKind(s string) (TransferKind, error) {
	if k, ok := transferKinds[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown transfer kind %q", s)
}

// IsSatelliteMarker reports whether k marks a satellite load.
func (k TransferKind) IsSatelliteMarker() bool {
	return k == TransferSatDelta || k == TransferSatFull
}

// Role is the mapping column of a table-column metadata row.
type Role string

// Roles with a structural meaning. Any other value is a plain attribute.
const (
	RoleHashKey       Role = "hk"
	RoleLinkHub       Role = "ll"
	RoleStagingColumn Role = "c"
)

// TableColumn is one row of metadata.tables.
type TableColumn struct {
	EntityName string     `json:"base_name" yaml:"base_name"`
	EntityKind EntityKind `json:"rel_type" yaml:"rel_type"`
	ColumnName string     `json:"column_name" yaml:"column_name"`
	ColumnType string     `json:"column_type,omitempty" yaml:"column_type,omitempty"`
	Position   int        `json:"column_position" yaml:"column_position"`
	Role       Role       `json:"mapping,omitempty" yaml:"mapping,omitempty"`
}

// Transition is one row of metadata.transitions.
type Transition struct {
	SourceEntity   string       `json:"source_table" yaml:"source_table"`
	SourceField    string       `json:"source_field" yaml:"source_field"`
	TargetEntity   string       `json:"target_table" yaml:"target_table"`
	TargetField    string       `json:"target_field" yaml:"target_field"`
	GroupName      string       `json:"group_name" yaml:"group_name"`
	Position       int          `json:"position" yaml:"position"`
	Raw            bool         `json:"raw,omitempty" yaml:"raw,omitempty"`
	Transformation string       `json:"transformation,omitempty" yaml:"transformation,omitempty"`
	Kind           TransferKind `json:"transfer_type" yaml:"transfer_type"`
}

// RunStatus is the status of a run-history record.
type RunStatus string

// Run statuses.
const (
	RunStatusStart   RunStatus = "start"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailure RunStatus = "failure"
)

// RunRecord is one row of metadata.runinfo.
type RunRecord struct {
	SourceEntity string    `json:"source_table"`
	RunID        int64     `json:"run_id"`
	LogDate      time.Time `json:"log_date"`
	SourceFile   string    `json:"source_file,omitempty"`
	Status       RunStatus `json:"status"`
	Message      string    `json:"message,omitempty"`
}
