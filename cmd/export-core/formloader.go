package main

import (
	"encoding/json"
	"fmt"
	"os"

	model "github.com/opendatakit-go/export-core/model"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// formDoc is the on-disk JSON shape of a form definition: the XForms
// compiler that normally produces a model.Tree is out of scope for this
// module, so a form ships as a JSON document describing the same node tree
// directly, nested through each node's children.
type formDoc struct {
	FormID      string    `json:"formId"`
	FormName    string    `json:"formName"`
	FormVersion string    `json:"formVersion"`
	Encrypted   bool      `json:"encrypted"`
	Root        nodeDoc   `json:"root"`
}

type nodeDoc struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"` // "group" | "repeat" | "field"
	Type      string    `json:"type"` // meaningful when kind == "field"
	Choices   []string  `json:"choices,omitempty"`
	Children  []nodeDoc `json:"children,omitempty"`
}

var kindByName = map[string]model.Kind{
	"group":  model.KindGroup,
	"repeat": model.KindRepeat,
	"field":  model.KindField,
}

var fieldTypeByName = map[string]model.FieldType{
	"string":        model.TypeString,
	"int":           model.TypeInt,
	"decimal":       model.TypeDecimal,
	"boolean":       model.TypeBoolean,
	"date":          model.TypeDate,
	"time":          model.TypeTime,
	"dateTime":      model.TypeDateTime,
	"geopoint":      model.TypeGeopoint,
	"geotrace":      model.TypeGeotrace,
	"geoshape":      model.TypeGeoshape,
	"binary":        model.TypeBinary,
	"select-one":    model.TypeSelectOne,
	"select-multi":  model.TypeSelectMulti,
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// loadTree reads a form definition from path and builds a model.Tree.
func loadTree(path string) (model.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading form definition: %w", err)
	}

	var doc formDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing form definition: %w", err)
	}

	root, err := buildNode(doc.Root)
	if err != nil {
		return nil, err
	}
	model.Build(root)

	return model.New(root, doc.FormID, doc.FormName, doc.FormVersion, doc.Encrypted), nil
}

func buildNode(d nodeDoc) (*model.Node, error) {
	kind, ok := kindByName[d.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown node kind %q for %q", d.Kind, d.Name)
	}

	n := &model.Node{
		Name:    d.Name,
		Kind:    kind,
		Choices: d.Choices,
	}

	if kind == model.KindField {
		ft, ok := fieldTypeByName[d.Type]
		if !ok {
			return nil, fmt.Errorf("unknown field type %q for %q", d.Type, d.Name)
		}
		n.FieldType = ft
	}

	for _, c := range d.Children {
		child, err := buildNode(c)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}

	return n, nil
}
