package xmlnode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("simple fields", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)

		doc := `<data id="simple" submissionDate="2020-01-02T10:00:00Z">
			<name>Alice</name>
			<age>30</age>
		</data>`

		root, err := Parse(strings.NewReader(doc))
		require.NoError(err)
		assert.Equal("data", root.Name)
		assert.Equal("simple", root.Attrs["id"])
		assert.Equal("2020-01-02T10:00:00Z", root.Attrs["submissionDate"])
		assert.Equal("Alice", root.Find("name").Value())
		assert.Equal("30", root.Find("age").Value())
	})

	t.Run("nested path lookup", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)

		doc := `<data><meta><instanceID>uuid:abc</instanceID></meta></data>`
		root, err := Parse(strings.NewReader(doc))
		require.NoError(err)
		assert.Equal("uuid:abc", root.Find("meta/instanceID").Value())
		assert.Nil(root.Find("meta/missing"))
		assert.Nil(root.Find("missing/instanceID"))
	})

	t.Run("repeated children", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)

		doc := `<data>
			<g1><item>1</item></g1>
			<g1><item>2</item></g1>
			<g1><item>3</item></g1>
		</data>`
		root, err := Parse(strings.NewReader(doc))
		require.NoError(err)

		instances := root.ChildrenNamed("g1")
		require.Len(instances, 3)
		assert.Equal("1", instances[0].Find("item").Value())
		assert.Equal("3", instances[2].Find("item").Value())

		all := root.FindAll("g1")
		assert.Len(all, 3)
	})

	t.Run("whitespace trimmed text", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)

		doc := "<data><name>\n  Bob  \n</name></data>"
		root, err := Parse(strings.NewReader(doc))
		require.NoError(err)
		assert.Equal("Bob", root.Find("name").Value())
	})

	t.Run("nil node value is empty", func(t *testing.T) {
		assert := assert.New(t)
		var n *Node
		assert.Equal("", n.Value())
	})
}
