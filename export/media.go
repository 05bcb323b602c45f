package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	model "github.com/opendatakit-go/export-core/model"
	schema "github.com/opendatakit-go/export-core/schema"
)

// binaryFilenames returns the non-empty binary-field cell values from row,
// given the column list it was built from and the number of fixed leading
// columns (1 for a main row's SubmissionDate, 2 for a repeat row's
// PARENT_KEY/KEY).
func binaryFilenames(cols []model.ColumnSpec, row []string, leading int) []string {
	var out []string
	for i, c := range cols {
		if c.Kind == model.ColumnPlain && c.Field != nil && c.Field.FieldType == model.TypeBinary {
			if v := row[leading+i]; v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// copyMedia copies srcDir/name into destDir, creating destDir if needed and
// resolving filename collisions with a "-2", "-3", ... suffix.
func copyMedia(srcDir, name, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return schema.ErrIO(destDir, err)
	}

	src := filepath.Join(srcDir, name)
	in, err := os.Open(src)
	if err != nil {
		return schema.ErrCrypto(schema.KindMissingMedia, src, err)
	}
	defer in.Close()

	dest := uniqueDestPath(destDir, name)
	out, err := os.Create(dest)
	if err != nil {
		return schema.ErrIO(dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return schema.ErrIO(dest, err)
	}
	return nil
}

func uniqueDestPath(destDir, name string) string {
	dest := filepath.Join(destDir, name)
	if _, err := os.Stat(dest); err != nil {
		return dest
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := filepath.Join(destDir, fmt.Sprintf("%s-%d%s", base, i, ext))
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}
