package vault

import (
	"strings"
	"time"

	"github.com/leapstack-labs/leapvault/internal/adapter"
)

// hashSeparator joins hashed field values.
const hashSeparator = "||"

// HashExpr returns the expression hashing fields in order under alias:
//
//	sha1(upper(concat_ws('||', coalesce(a::VARCHAR, ''), ...))) AS alias
//
// Upper-casing and coalescing to the empty string make the result
// independent of case and of NULL versus empty input.
func HashExpr(alias string, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = "coalesce(" + adapter.QuoteIdent(f) + "::VARCHAR, '')"
	}
	return "sha1(upper(concat_ws(" + adapter.QuoteLiteral(hashSeparator) + ", " +
		strings.Join(parts, ", ") + "))) AS " + adapter.QuoteIdent(alias)
}

// HashKeyColumn names the hash key column of a key group, e.g. customer_hk.
func HashKeyColumn(name string) string {
	return name + "_hk"
}

// HashDiffColumn names the hash diff column of a payload group.
func HashDiffColumn(group string) string {
	return group + "_hashdiff"
}

// HashViewName returns the hash view relation of source, e.g.
// stg.customer_hash_vw.
func HashViewName(source string) string {
	return "stg." + adapter.QuoteIdent(source+"_hash_vw")
}

// LoadParams are the per-run values stamped on every inserted row.
type LoadParams struct {
	RunID        int64
	RecordSource string
	LoadDate     time.Time
}

func (p LoadParams) loadDate() string {
	t := p.LoadDate
	if t.IsZero() {
		t = time.Now()
	}
	return "TIMESTAMP '" + t.Format("2006-01-02 15:04:05.000000") + "'"
}

func (p LoadParams) recordSource() string {
	return adapter.QuoteLiteral(p.RecordSource)
}
