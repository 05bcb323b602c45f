package model

import "strings"

////////////////////////////////////////////////////////////////////////////////
// TYPES

// ColumnKind distinguishes the handful of special-cased column shapes from a
// plain single-cell field column.
type ColumnKind int

const (
	ColumnPlain ColumnKind = iota
	ColumnGeoComponent
	ColumnSelectChoice
	ColumnRepeatPlaceholder
)

// ColumnSpec describes one output column for a row of a given node: how to
// label it and how to pull its value out of a parsed submission.
type ColumnSpec struct {
	Header string // the CSV header cell
	Kind   ColumnKind
	Field  *Node  // the field this column derives from (nil for repeat placeholders)
	Geo    string // "Latitude" | "Longitude" | "Altitude" | "Accuracy", when Kind == ColumnGeoComponent
	Choice string // declared choice value, when Kind == ColumnSelectChoice
	Repeat *Node  // the repeat node, when Kind == ColumnRepeatPlaceholder
}

// FlattenOptions controls the behavioural flags from ExportConfiguration
// that affect column shape.
type FlattenOptions struct {
	SplitSelectMultiples bool
	RemoveGroupNames     bool
	IncludeGeoJSON       bool
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// FlattenColumns produces the column list for a row of node: groups are
// inlined with dash-joined names, geopoints split into four cells (plus an
// optional GeoJSON cell), repeats become a single SET-OF-<name> placeholder,
// and select-multiples either stay a single cell or split into one cell per
// declared choice.
func FlattenColumns(node *Node, opt FlattenOptions) []ColumnSpec {
	var cols []ColumnSpec
	for _, child := range ChildrenOf(node) {
		cols = append(cols, flattenChild(child, child.Name, opt)...)
	}
	if opt.RemoveGroupNames {
		cols = dedupeCollisions(cols)
	}
	return cols
}

func flattenChild(n *Node, label string, opt FlattenOptions) []ColumnSpec {
	switch n.Kind {
	case KindRepeat:
		return []ColumnSpec{{
			Header: "SET-OF-" + n.Name,
			Kind:   ColumnRepeatPlaceholder,
			Repeat: n,
		}}
	case KindGroup:
		var cols []ColumnSpec
		for _, child := range n.Children {
			childLabel := label + "-" + child.Name
			if opt.RemoveGroupNames {
				childLabel = child.Name
			}
			cols = append(cols, flattenChild(child, childLabel, opt)...)
		}
		return cols
	default: // KindField
		return flattenField(n, label, opt)
	}
}

func flattenField(n *Node, label string, opt FlattenOptions) []ColumnSpec {
	switch n.FieldType {
	case TypeGeopoint, TypeGeotrace, TypeGeoshape:
		cols := []ColumnSpec{
			{Header: label + "-Latitude", Kind: ColumnGeoComponent, Field: n, Geo: "Latitude"},
			{Header: label + "-Longitude", Kind: ColumnGeoComponent, Field: n, Geo: "Longitude"},
			{Header: label + "-Altitude", Kind: ColumnGeoComponent, Field: n, Geo: "Altitude"},
			{Header: label + "-Accuracy", Kind: ColumnGeoComponent, Field: n, Geo: "Accuracy"},
		}
		if opt.IncludeGeoJSON {
			cols = append(cols, ColumnSpec{Header: label + "-GeoJSON", Kind: ColumnGeoComponent, Field: n, Geo: "GeoJSON"})
		}
		return cols
	case TypeSelectMulti:
		if opt.SplitSelectMultiples && len(n.Choices) > 0 {
			cols := make([]ColumnSpec, 0, len(n.Choices))
			for _, choice := range n.Choices {
				cols = append(cols, ColumnSpec{Header: label + "-" + choice, Kind: ColumnSelectChoice, Field: n, Choice: choice})
			}
			return cols
		}
		return []ColumnSpec{{Header: label, Kind: ColumnPlain, Field: n}}
	default:
		return []ColumnSpec{{Header: label, Kind: ColumnPlain, Field: n}}
	}
}

// dedupeCollisions prefixes only the headers that collide once group names
// are stripped with the name of the field's immediate parent, dash-joined
// (e.g. "loc-Latitude" becomes "g1-loc-Latitude"). Outer group names are
// not restored.
func dedupeCollisions(cols []ColumnSpec) []ColumnSpec {
	seen := make(map[string]int, len(cols))
	for _, c := range cols {
		seen[c.Header]++
	}
	hasCollision := false
	for _, n := range seen {
		if n > 1 {
			hasCollision = true
			break
		}
	}
	if !hasCollision {
		return cols
	}
	for i := range cols {
		if seen[cols[i].Header] > 1 && cols[i].Field != nil {
			cols[i].Header = lastTwoSegments(cols[i].Field.FQN) + strings.TrimPrefix(cols[i].Header, cols[i].Field.Name)
		}
	}
	return cols
}

func lastTwoSegments(fqn string) string {
	depth := 0
	for i := len(fqn) - 1; i >= 0; i-- {
		if fqn[i] == '/' {
			depth++
			if depth == 2 {
				return dashJoin(fqn[i+1:])
			}
		}
	}
	return dashJoin(fqn)
}

func dashJoin(fqn string) string {
	out := make([]byte, len(fqn))
	copy(out, fqn)
	for i, b := range out {
		if b == '/' {
			out[i] = '-'
		}
	}
	return string(out)
}
