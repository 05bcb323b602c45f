package export

import (
	"strings"
	"testing"

	xmlnode "github.com/opendatakit-go/export-core/xmlnode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCache(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	n, err := xmlnode.Parse(strings.NewReader("<data/>"))
	require.NoError(err)

	cache := newParseCache(2)
	cache.put("a", n)
	assert.NotNil(cache.take("a"))
	assert.Nil(cache.take("a")) // consumed once
}

func TestParseCache_EvictsOldest(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	n, err := xmlnode.Parse(strings.NewReader("<data/>"))
	require.NoError(err)

	cache := newParseCache(2)
	cache.put("a", n)
	cache.put("b", n)
	cache.put("c", n) // evicts "a"

	assert.Nil(cache.take("a"))
	assert.NotNil(cache.take("b"))
	assert.NotNil(cache.take("c"))
}
