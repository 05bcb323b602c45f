// Package csvmap holds the pure functions mapping a parsed submission plus a
// model.Node to a header line and to one or more row lines (one for the
// main file, N for each repeat group).
package csvmap

import (
	"bytes"
	"encoding/csv"
)

// EncodeLine renders fields as one RFC 4180 CSV line (quoting, doubled
// embedded quotes, preserved embedded newlines) terminated by "\n". Built on
// encoding/csv.Writer rather than hand-rolled quoting, following the ETL/CSV
// examples in the retrieved pack (see DESIGN.md) - this also makes the
// "escaping is its own inverse" round-trip property automatic.
func EncodeLine(fields []string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = false
	_ = w.Write(fields)
	w.Flush()
	return buf.String()
}
