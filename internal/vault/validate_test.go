package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/leapvault/internal/metadata"
)

func reasons(errs []*ConfigError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

func TestValidate_ValidFixtures(t *testing.T) {
	assert.Empty(t, Validate(customerTables(), customerTransitions(metadata.TransferSatDelta)))
	assert.Empty(t, Validate(purchaseTables(), purchaseTransitions()))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		tables      []metadata.TableColumn
		transitions []metadata.Transition
		want        string
	}{
		{
			name:   "satellite without hash key",
			tables: []metadata.TableColumn{col(metadata.KindHubSatellite, "s", "a", "VARCHAR", 1, "attr")},
			want:   "hsat_s: satellite must have exactly one hash key column, found 0",
		},
		{
			name:   "unknown entity kind",
			tables: []metadata.TableColumn{col("mart", "m", "a", "VARCHAR", 1, "attr")},
			want:   `m: unknown entity kind "mart"`,
		},
		{
			name:   "unknown transfer kind",
			tables: customerTables(),
			transitions: []metadata.Transition{
				{SourceEntity: "customer", SourceField: "id", TargetEntity: "hub_customer", TargetField: "id_bk", GroupName: "customer", Kind: "business_key"},
			},
			want: `unknown transfer kind "business_key"`,
		},
		{
			name:   "unknown hub group",
			tables: purchaseTables(),
			transitions: []metadata.Transition{
				{SourceEntity: "purchase", SourceField: "store", TargetEntity: "link_customer_purchase", TargetField: "store_hk", GroupName: "customer_purchase", Kind: metadata.TransferLinkToHub},
			},
			want: `references unknown business key group "store"`,
		},
		{
			name:   "duplicate position",
			tables: customerTables(),
			transitions: []metadata.Transition{
				{SourceEntity: "customer", SourceField: "id", TargetEntity: "hub_customer", TargetField: "id_bk", GroupName: "customer", Position: 1, Kind: metadata.TransferBusinessKey},
				{SourceEntity: "customer", SourceField: "email", TargetEntity: "hub_customer", TargetField: "email_bk", GroupName: "customer", Position: 1, Kind: metadata.TransferBusinessKey},
			},
			want: `duplicate position 1 in group "customer"`,
		},
		{
			name:   "marker without payload",
			tables: customerTables(),
			transitions: []metadata.Transition{
				{SourceEntity: "customer", SourceField: "customer_hk", TargetEntity: "hsat_customer_details", TargetField: "customer", GroupName: "nothing", Kind: metadata.TransferSatFull},
			},
			want: `satellite marker has no payload group "nothing"`,
		},
		{
			name:   "target without table metadata",
			tables: nil,
			transitions: []metadata.Transition{
				{SourceEntity: "customer", SourceField: "id", TargetEntity: "hub_customer", TargetField: "id_bk", GroupName: "customer", Position: 1, Kind: metadata.TransferBusinessKey},
			},
			want: "hub_customer: no table metadata for target entity",
		},
		{
			name:   "target without prefix",
			tables: customerTables(),
			transitions: []metadata.Transition{
				{SourceEntity: "customer", SourceField: "id", TargetEntity: "customers", TargetField: "id", GroupName: "customer", Kind: metadata.TransferBusinessKey},
			},
			want: `target "customers" has no hub, link or satellite prefix`,
		},
		{
			name:   "business key into satellite",
			tables: customerTables(),
			transitions: []metadata.Transition{
				{SourceEntity: "customer", SourceField: "id", TargetEntity: "hsat_customer_details", TargetField: "id", GroupName: "customer", Kind: metadata.TransferBusinessKey},
			},
			want: "business key must target a hub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.tables, tt.transitions)
			assert.NotEmpty(t, errs)
			found := false
			for _, r := range reasons(errs) {
				if strings.Contains(r, tt.want) {
					found = true
				}
			}
			assert.True(t, found, "want %q in %v", tt.want, reasons(errs))
		})
	}
}
