// Package store is the on-disk submission layout abstraction: it enumerates
// instance directories under a form's instances/ folder and locates the
// primary submission.xml. Built on gocloud.dev/blob's file:// driver rather
// than raw os.ReadDir, so listing goes through the same bucket/delimiter
// idiom as any other blob-backed concern in this codebase.
package store

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	blob "gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// URLs
)

////////////////////////////////////////////////////////////////////////////////
// CONSTANTS

const SubmissionFile = "submission.xml"

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ListInstances returns the direct subdirectories of formDir/instances that
// contain a readable submission.xml, in no particular order (the pipeline
// sorts them). A missing or unreadable instances/ directory yields an empty
// slice, not an error.
func ListInstances(ctx context.Context, formDir string) ([]string, error) {
	instancesDir := filepath.Join(formDir, "instances")
	if fi, err := os.Stat(instancesDir); err != nil || !fi.IsDir() {
		return nil, nil
	}

	abs, err := filepath.Abs(instancesDir)
	if err != nil {
		return nil, nil
	}
	bucketURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, nil
	}
	defer bucket.Close()

	var out []string
	iter := bucket.List(&blob.ListOptions{Delimiter: "/"})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		} else if err != nil {
			return out, nil
		}
		if !obj.IsDir {
			continue
		}
		dirKey := strings.TrimSuffix(obj.Key, "/")
		candidate := filepath.Join(instancesDir, dirKey)
		if IsInstanceDir(candidate) {
			out = append(out, candidate)
		}
	}
	return out, nil
}

// IsInstanceDir reports whether path is a directory containing a readable
// submission.xml.
func IsInstanceDir(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		return false
	}
	f, err := os.Open(filepath.Join(path, SubmissionFile))
	if err != nil {
		return false
	}
	defer f.Close()
	return true
}

// SubmissionXMLPath returns the path to an instance directory's
// submission.xml.
func SubmissionXMLPath(instanceDir string) string {
	return filepath.Join(instanceDir, SubmissionFile)
}

// EncryptedXMLPath returns the path to an instance directory's encrypted
// submission payload, given its declared filename.
func EncryptedXMLPath(instanceDir, declaredName string) string {
	return filepath.Join(instanceDir, declaredName)
}

// MediaPath returns the path to a declared media file (encrypted or plain)
// within an instance directory.
func MediaPath(instanceDir, name string) string {
	return filepath.Join(instanceDir, name)
}
