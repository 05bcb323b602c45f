package main

import (
	"os"
	"path/filepath"
	"testing"

	model "github.com/opendatakit-go/export-core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeForm(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadTree(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	path := writeForm(t, `{
		"formId": "f1",
		"formName": "Survey",
		"formVersion": "1",
		"encrypted": false,
		"root": {
			"name": "data",
			"kind": "group",
			"children": [
				{"name": "name", "kind": "field", "type": "string"},
				{"name": "age", "kind": "field", "type": "int"},
				{"name": "g1", "kind": "repeat", "children": [
					{"name": "v", "kind": "field", "type": "string"}
				]}
			]
		}
	}`)

	tree, err := loadTree(path)
	require.NoError(err)
	assert.Equal("f1", tree.FormID())
	assert.Equal("Survey", tree.FormName())
	assert.False(tree.IsEncrypted())

	root := tree.Root()
	require.Len(root.Children, 3)
	assert.Equal(model.TypeString, root.Children[0].FieldType)
	assert.Equal(model.TypeInt, root.Children[1].FieldType)
	assert.Equal(model.KindRepeat, root.Children[2].Kind)
}

func TestLoadTree_UnknownKind(t *testing.T) {
	assert := assert.New(t)

	path := writeForm(t, `{"root": {"name": "data", "kind": "bogus"}}`)
	_, err := loadTree(path)
	assert.Error(err)
	assert.Contains(err.Error(), "unknown node kind")
}

func TestLoadTree_UnknownFieldType(t *testing.T) {
	assert := assert.New(t)

	path := writeForm(t, `{"root": {"name": "data", "kind": "field", "type": "bogus"}}`)
	_, err := loadTree(path)
	assert.Error(err)
	assert.Contains(err.Error(), "unknown field type")
}

func TestLoadTree_MissingFile(t *testing.T) {
	assert := assert.New(t)

	_, err := loadTree(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(err)
}

func TestLoadTree_InvalidJSON(t *testing.T) {
	assert := assert.New(t)

	path := writeForm(t, `not json`)
	_, err := loadTree(path)
	assert.Error(err)
}

func TestLoadTree_Encrypted(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	path := writeForm(t, `{
		"formId": "f2",
		"encrypted": true,
		"root": {"name": "data", "kind": "group"}
	}`)

	tree, err := loadTree(path)
	require.NoError(err)
	assert.True(tree.IsEncrypted())
}
