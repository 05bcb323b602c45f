package schema

import (
	"time"

	xmlnode "github.com/opendatakit-go/export-core/xmlnode"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// ValidationStatus reflects the outcome of signature validation for an
// encrypted submission.
type ValidationStatus int

const (
	NotValidated ValidationStatus = iota
	Valid
	NotValid
)

func (v ValidationStatus) String() string {
	switch v {
	case Valid:
		return "VALID"
	case NotValid:
		return "NOT_VALID"
	default:
		return "NOT_VALIDATED"
	}
}

// Metadata is the subset of a submission's XML carried separately from the
// parsed tree, since some of it (the wrapped key, the signature) must
// survive the swap from the encrypted document to the decrypted one.
type Metadata struct {
	InstanceID            string
	SubmissionDate         time.Time
	HasSubmissionDate      bool
	EncryptedSymmetricKey string // base64, as read from submission.xml
	EncryptedSignature    string // base64, as read from submission.xml
	MediaFiles            []string // declared media file names, in declared order
	EncryptedXMLFile      string   // declared encrypted payload filename
}

// Submission is a parsed instance plus derived crypto state. It is created
// once per pipeline pass, mutated only by decryption (which replaces Root
// with the decrypted document), and discarded once its rows are written.
type Submission struct {
	Path        string // source instance directory
	WorkDir     string // == Path for unencrypted forms; a fresh temp dir otherwise
	Root        *xmlnode.Node
	Meta        Metadata
	Validation  ValidationStatus
	Sequence    int64 // not set by the export pipeline, which orders worker results by its own sequence numbers

	decryptedSignature []byte
}

// Key returns the instance id, falling back to a synthesized uuid for
// submissions that never declared one.
func (s *Submission) Key(fallback func() string) string {
	if s.Meta.InstanceID != "" {
		return s.Meta.InstanceID
	}
	return "uuid:" + fallback()
}
