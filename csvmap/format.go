package csvmap

import (
	"encoding/json"
	"strings"
	"time"

	model "github.com/opendatakit-go/export-core/model"
)

////////////////////////////////////////////////////////////////////////////////
// FIELD FORMATTING

// formatField renders a field's raw XML text per its declared type. Date and
// time parse failures fall back to the original text; an unrecognised
// boolean value renders as an empty cell.
func formatField(t model.FieldType, raw string) string {
	if raw == "" {
		return ""
	}
	switch t {
	case model.TypeBoolean:
		return formatBoolean(raw)
	case model.TypeDate:
		if v, err := time.Parse("2006-01-02", raw); err == nil {
			return v.Format("2006-01-02")
		}
		return raw
	case model.TypeTime:
		if v, err := time.Parse("15:04:05.000", raw); err == nil {
			return v.Format("15:04:05.000")
		}
		if v, err := time.Parse("15:04:05", raw); err == nil {
			return v.Format("15:04:05.000")
		}
		return raw
	case model.TypeDateTime:
		if v, err := time.Parse(time.RFC3339, raw); err == nil {
			return v.Format("2006-01-02T15:04:05.000Z07:00")
		}
		return raw
	case model.TypeDecimal:
		return raw // '.' separator, no thousands grouping is already how the text is recorded
	default:
		return raw
	}
}

func formatBoolean(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return "True"
	case "false", "0", "no":
		return "False"
	default:
		return ""
	}
}

// geoComponents splits a geopoint/geotrace/geoshape's space-separated
// "lat lon alt acc" text into its four cells; missing trailing components
// become empty.
func geoComponents(raw string) (lat, lon, alt, acc string) {
	parts := strings.Fields(raw)
	if len(parts) > 0 {
		lat = parts[0]
	}
	if len(parts) > 1 {
		lon = parts[1]
	}
	if len(parts) > 2 {
		alt = parts[2]
	}
	if len(parts) > 3 {
		acc = parts[3]
	}
	return
}

func geoJSON(kind model.FieldType, raw string) string {
	lat, lon, _, _ := geoComponents(raw)
	if lat == "" || lon == "" {
		return ""
	}
	shape := map[string]any{}
	switch kind {
	case model.TypeGeotrace:
		shape["type"] = "LineString"
	case model.TypeGeoshape:
		shape["type"] = "Polygon"
	default:
		shape["type"] = "Point"
	}
	shape["coordinates"] = []json.Number{json.Number(lon), json.Number(lat)}
	data, err := json.Marshal(shape)
	if err != nil {
		return ""
	}
	return string(data)
}
