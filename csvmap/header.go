package csvmap

import model "github.com/opendatakit-go/export-core/model"

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// MainColumns returns the flattened column list for the main CSV's own
// fields (excluding SubmissionDate/KEY/isValidated, which are fixed).
func MainColumns(root *model.Node, opt model.FlattenOptions) []model.ColumnSpec {
	return model.FlattenColumns(root, opt)
}

// MainHeader builds the main CSV header: SubmissionDate, one column per
// top-level field (inlined/split per opt), KEY, and isValidated when the
// form is encrypted.
func MainHeader(cols []model.ColumnSpec, encrypted bool) []string {
	header := []string{"SubmissionDate"}
	for _, c := range cols {
		header = append(header, c.Header)
	}
	header = append(header, "KEY")
	if encrypted {
		header = append(header, "isValidated")
	}
	return header
}

// RepeatColumns returns the flattened column list for one repeat node's own
// fields. Nested repeats naturally surface as SET-OF-<name> placeholders via
// the same flattening rules used for the main file.
func RepeatColumns(repeat *model.Node, opt model.FlattenOptions) []model.ColumnSpec {
	return model.FlattenColumns(repeat, opt)
}

// RepeatHeader builds a repeat CSV's header: PARENT_KEY, KEY, then the
// repeat's own fields.
func RepeatHeader(cols []model.ColumnSpec) []string {
	header := []string{"PARENT_KEY", "KEY"}
	for _, c := range cols {
		header = append(header, c.Header)
	}
	return header
}
