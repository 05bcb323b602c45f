package export

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"time"

	csvmap "github.com/opendatakit-go/export-core/csvmap"
	cryptoengine "github.com/opendatakit-go/export-core/cryptoengine"
	model "github.com/opendatakit-go/export-core/model"
	schema "github.com/opendatakit-go/export-core/schema"
	store "github.com/opendatakit-go/export-core/store"
	xmlnode "github.com/opendatakit-go/export-core/xmlnode"
	uuid "github.com/google/uuid"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// procResult holds the rows (or the skip/error) produced by one worker; it
// reaches the single ordered writer stage in pipeline.go wrapped in a
// pendingResult that carries its sequence number.
type procResult struct {
	path        string
	skip        bool
	err         error
	mainRow     []string
	repeatRows  map[*model.Node][][]string
	tempDir     string
	mediaSrcDir string
	binaryFiles []string
}

////////////////////////////////////////////////////////////////////////////////
// PROCESSING

func processSubmission(
	tree model.Tree,
	path string,
	hasDate bool,
	date time.Time,
	mainCols []model.ColumnSpec,
	repeatCols map[*model.Node][]model.ColumnSpec,
	engine *cryptoengine.Engine,
	cfg schema.ExportConfiguration,
	logger Logger,
	cache *parseCache,
) *procResult {
	xmlPath := store.SubmissionXMLPath(path)
	root, err := parseSubmission(cache, xmlPath)
	if err != nil {
		wrapped := schema.ErrParse(path, err)
		return &procResult{path: path, skip: schema.IsSkippable(wrapped), err: wrapped}
	}

	sub := &schema.Submission{Path: path, WorkDir: path, Root: root, Meta: extractMetadata(root)}
	mediaSrcDir := path

	if tree.IsEncrypted() {
		res := decryptSubmission(tree, sub, engine, cfg, logger)
		if res != nil {
			return res
		}
		mediaSrcDir = sub.WorkDir
	}

	instanceID := sub.Meta.InstanceID
	if instanceID == "" {
		instanceID = "uuid:" + uuid.NewString()
	}

	dateStr := ""
	if hasDate {
		dateStr = date.Format("2006-01-02T15:04:05.000Z07:00")
	}

	validatedStr := "False"
	if sub.Validation == schema.Valid {
		validatedStr = "True"
	}

	mainRow := csvmap.MainRow(sub.Root, tree.Root(), mainCols, dateStr, instanceID, tree.IsEncrypted(), validatedStr)

	repeatRows := make(map[*model.Node][][]string)
	walkRepeats(tree.Root(), sub.Root, instanceID, repeatCols, repeatRows)

	binaryFiles := binaryFilenames(mainCols, mainRow, 1)
	for node, rows := range repeatRows {
		for _, row := range rows {
			binaryFiles = append(binaryFiles, binaryFilenames(repeatCols[node], row, 2)...)
		}
	}

	tempDir := ""
	if sub.WorkDir != sub.Path {
		tempDir = sub.WorkDir
	}

	return &procResult{
		path:        path,
		mainRow:     mainRow,
		repeatRows:  repeatRows,
		tempDir:     tempDir,
		mediaSrcDir: mediaSrcDir,
		binaryFiles: binaryFiles,
	}
}

// decryptSubmission mutates sub in place (working dir, decrypted root,
// validation status) and returns a non-nil *procResult only when decryption
// cannot proceed: a skip for a per-submission failure, or a non-skippable
// error (failure to create the temporary directory) that aborts the export.
func decryptSubmission(tree model.Tree, sub *schema.Submission, engine *cryptoengine.Engine, cfg schema.ExportConfiguration, logger Logger) *procResult {
	if cfg.PrivateKey == nil {
		err := schema.ErrCrypto(schema.KindDecryptionFailed, sub.Path, errNoPrivateKey)
		return &procResult{path: sub.Path, skip: schema.IsSkippable(err), err: err}
	}

	baseKey, err := engine.UnwrapKey(sub.Meta.EncryptedSymmetricKey)
	if err != nil {
		wrapped := schema.ErrCrypto(schema.KindDecryptionFailed, sub.Path, err)
		return &procResult{path: sub.Path, skip: schema.IsSkippable(wrapped), err: wrapped}
	}

	cs, err := engine.NewCipherSequence(sub.Meta.InstanceID, baseKey)
	if err != nil {
		wrapped := schema.ErrCrypto(schema.KindDecryptionFailed, sub.Path, err)
		return &procResult{path: sub.Path, skip: schema.IsSkippable(wrapped), err: wrapped}
	}

	workDir, err := os.MkdirTemp("", "export-core-*")
	if err != nil {
		// Failure to create a scratch directory signals a systemic problem
		// (disk full, permissions), not a bad submission: not skippable.
		wrapped := schema.ErrIO(sub.Path, err)
		return &procResult{path: sub.Path, skip: schema.IsSkippable(wrapped), err: wrapped}
	}

	var mediaDigests []cryptoengine.FileDigest
	for _, name := range sub.Meta.MediaFiles {
		src := store.MediaPath(sub.Path, name)
		if _, statErr := os.Stat(src); statErr != nil {
			os.RemoveAll(workDir)
			wrapped := schema.ErrCrypto(schema.KindMissingMedia, src, statErr)
			return &procResult{path: sub.Path, skip: schema.IsSkippable(wrapped), err: wrapped}
		}
		dstName := stripExtension(name)
		digest, err := cryptoengine.DecryptFile(cs.Next(), src, filepath.Join(workDir, dstName))
		if err != nil {
			os.RemoveAll(workDir)
			return &procResult{path: sub.Path, skip: schema.IsSkippable(err), err: err}
		}
		mediaDigests = append(mediaDigests, cryptoengine.FileDigest{Name: dstName, B64MD5: digest})
	}

	payloadSrc := store.EncryptedXMLPath(sub.Path, sub.Meta.EncryptedXMLFile)
	payloadName := stripExtension(sub.Meta.EncryptedXMLFile)
	payloadDst := filepath.Join(workDir, payloadName)
	payloadDigest, err := cryptoengine.DecryptFile(cs.Next(), payloadSrc, payloadDst)
	if err != nil {
		os.RemoveAll(workDir)
		return &procResult{path: sub.Path, skip: schema.IsSkippable(err), err: err}
	}

	pf, err := os.Open(payloadDst)
	if err != nil {
		os.RemoveAll(workDir)
		wrapped := schema.ErrParse(payloadDst, err)
		return &procResult{path: sub.Path, skip: schema.IsSkippable(wrapped), err: wrapped}
	}
	decryptedRoot, err := xmlnode.Parse(pf)
	pf.Close()
	if err != nil {
		os.RemoveAll(workDir)
		wrapped := schema.ErrParse(payloadDst, err)
		return &procResult{path: sub.Path, skip: schema.IsSkippable(wrapped), err: wrapped}
	}

	sub.Root = decryptedRoot
	sub.WorkDir = workDir
	if sub.Meta.InstanceID == "" {
		sub.Meta.InstanceID = decryptedRoot.Find("meta/instanceID").Value()
	}

	decryptedSig, err := engine.DecryptSignature(sub.Meta.EncryptedSignature)
	if err != nil {
		sub.Validation = schema.NotValid
		logger.Warn("signature decryption failed, treating as mismatch", "path", sub.Path, "err", err)
		return nil
	}

	canonical := cryptoengine.CanonicalSignatureString(
		tree.FormID(), tree.FormVersion(),
		base64.StdEncoding.EncodeToString(baseKey),
		sub.Meta.InstanceID,
		mediaDigests,
		cryptoengine.FileDigest{Name: payloadName, B64MD5: payloadDigest},
	)
	if cryptoengine.DigestMatches(canonical, decryptedSig) {
		sub.Validation = schema.Valid
	} else {
		sub.Validation = schema.NotValid
		logger.Warn("signature mismatch", "path", sub.Path)
	}

	return nil
}

func stripExtension(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext)
}
