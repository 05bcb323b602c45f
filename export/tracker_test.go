package export

import "testing"

import "github.com/stretchr/testify/assert"

func TestTracker(t *testing.T) {
	assert := assert.New(t)

	tr := newTracker(5)
	tr.incSkipped()
	exported, total := tr.incExported()
	assert.Equal(1, exported)
	assert.Equal(5, total)

	gotTotal, gotExported, gotSkipped := tr.snapshot()
	assert.Equal(5, gotTotal)
	assert.Equal(1, gotExported)
	assert.Equal(1, gotSkipped)
}
