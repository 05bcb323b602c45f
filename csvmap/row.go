package csvmap

import (
	"strings"

	model "github.com/opendatakit-go/export-core/model"
	xmlnode "github.com/opendatakit-go/export-core/xmlnode"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// MainRow builds the main CSV's row cells for one submission: ctx is the
// document root, ancestor the schema root node the columns were flattened
// from.
func MainRow(ctx *xmlnode.Node, ancestor *model.Node, cols []model.ColumnSpec, submissionDate, key string, encrypted bool, validated string) []string {
	row := []string{submissionDate}
	for _, c := range cols {
		row = append(row, cellValue(ctx, ancestor, c))
	}
	row = append(row, key)
	if encrypted {
		row = append(row, validated)
	}
	return row
}

// RepeatRow builds one repeat CSV row: ctx is the repeat instance element,
// ancestor the repeat's own schema node.
func RepeatRow(ctx *xmlnode.Node, ancestor *model.Node, cols []model.ColumnSpec, parentKey, key string) []string {
	row := []string{parentKey, key}
	for _, c := range cols {
		row = append(row, cellValue(ctx, ancestor, c))
	}
	return row
}

func cellValue(ctx *xmlnode.Node, ancestor *model.Node, col model.ColumnSpec) string {
	switch col.Kind {
	case model.ColumnRepeatPlaceholder:
		// Rows for this field live in the child CSV; the placeholder cell
		// in this row is always empty.
		return ""
	case model.ColumnGeoComponent:
		raw := findValue(ctx, ancestor, col.Field)
		lat, lon, alt, acc := geoComponents(raw)
		switch col.Geo {
		case "Latitude":
			return lat
		case "Longitude":
			return lon
		case "Altitude":
			return alt
		case "Accuracy":
			return acc
		case "GeoJSON":
			return geoJSON(col.Field.FieldType, raw)
		default:
			return ""
		}
	case model.ColumnSelectChoice:
		raw := findValue(ctx, ancestor, col.Field)
		for _, v := range strings.Fields(raw) {
			if v == col.Choice {
				return "1"
			}
		}
		return "0"
	default: // ColumnPlain
		raw := findValue(ctx, ancestor, col.Field)
		if col.Field.FieldType == model.TypeBinary {
			return raw // stored filename, verbatim
		}
		return formatField(col.Field.FieldType, raw)
	}
}

func findValue(ctx *xmlnode.Node, ancestor, field *model.Node) string {
	rel := model.RelativePath(field, ancestor)
	return ctx.Find(rel).Value()
}
