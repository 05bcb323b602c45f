package export

import (
	"time"

	schema "github.com/opendatakit-go/export-core/schema"
	xmlnode "github.com/opendatakit-go/export-core/xmlnode"
)

// extractMetadata reads the submission metadata fields from the
// encrypted-submission element names used on the wire: base64EncryptedKey,
// meta/instanceID, media/file (repeated), encryptedXmlFile,
// base64EncryptedElementSignature.
func extractMetadata(root *xmlnode.Node) schema.Metadata {
	meta := schema.Metadata{
		InstanceID:             root.Find("meta/instanceID").Value(),
		EncryptedSymmetricKey: root.Find("base64EncryptedKey").Value(),
		EncryptedSignature:    root.Find("base64EncryptedElementSignature").Value(),
		EncryptedXMLFile:      root.Find("encryptedXmlFile").Value(),
	}
	for _, f := range root.FindAll("media/file") {
		meta.MediaFiles = append(meta.MediaFiles, f.Value())
	}
	if v := root.Attrs["submissionDate"]; v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			meta.SubmissionDate = t
			meta.HasSubmissionDate = true
		}
	}
	return meta
}

// readSubmissionDate reads the submissionDate attribute from an already
// parsed document, for the date-sort pass. That pass parses each submission
// fully (xmlnode trees are small) and caches the tree, so the later full
// pass can reuse it instead of re-parsing when the cache has not evicted the
// entry.
func readSubmissionDate(root *xmlnode.Node) (time.Time, bool) {
	if v := root.Attrs["submissionDate"]; v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
