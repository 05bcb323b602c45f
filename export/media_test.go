package export

import (
	"os"
	"path/filepath"
	"testing"

	model "github.com/opendatakit-go/export-core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryFilenames(t *testing.T) {
	assert := assert.New(t)

	cols := []model.ColumnSpec{
		{Kind: model.ColumnPlain, Field: &model.Node{FieldType: model.TypeString}},
		{Kind: model.ColumnPlain, Field: &model.Node{FieldType: model.TypeBinary}},
	}
	row := []string{"SubmissionDate-placeholder", "Alice", "photo.jpg"}

	names := binaryFilenames(cols, row, 1)
	assert.Equal([]string{"photo.jpg"}, names)
}

func TestBinaryFilenames_EmptyCellSkipped(t *testing.T) {
	assert := assert.New(t)

	cols := []model.ColumnSpec{
		{Kind: model.ColumnPlain, Field: &model.Node{FieldType: model.TypeBinary}},
	}
	row := []string{"", ""}

	names := binaryFilenames(cols, row, 1)
	assert.Empty(names)
}

func TestCopyMediaAndUniqueDestPath(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	srcDir := t.TempDir()
	destDir := filepath.Join(t.TempDir(), "media-out")

	require.NoError(os.WriteFile(filepath.Join(srcDir, "photo.jpg"), []byte("bytes-1"), 0644))
	require.NoError(copyMedia(srcDir, "photo.jpg", destDir))

	got, err := os.ReadFile(filepath.Join(destDir, "photo.jpg"))
	require.NoError(err)
	assert.Equal("bytes-1", string(got))

	// A second file with the same name is renamed, not overwritten.
	require.NoError(os.WriteFile(filepath.Join(srcDir, "photo.jpg"), []byte("bytes-2"), 0644))
	// Simulate a second submission referencing the same filename by copying
	// through a different source directory into the same destDir.
	srcDir2 := t.TempDir()
	require.NoError(os.WriteFile(filepath.Join(srcDir2, "photo.jpg"), []byte("bytes-2"), 0644))
	require.NoError(copyMedia(srcDir2, "photo.jpg", destDir))

	original, err := os.ReadFile(filepath.Join(destDir, "photo.jpg"))
	require.NoError(err)
	assert.Equal("bytes-1", string(original))

	renamed, err := os.ReadFile(filepath.Join(destDir, "photo-2.jpg"))
	require.NoError(err)
	assert.Equal("bytes-2", string(renamed))
}
