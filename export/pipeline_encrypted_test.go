package export

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	cryptoengine "github.com/opendatakit-go/export-core/cryptoengine"
	model "github.com/opendatakit-go/export-core/model"
	schema "github.com/opendatakit-go/export-core/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The helpers below independently reproduce the client-side encryption
// recipe cryptoengine.Engine decrypts, so a test can build a realistic
// encrypted instance directory without exporting any crypto internals.

func encPkcs5Pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	pad := make([]byte, n)
	for i := range pad {
		pad[i] = byte(n)
	}
	return append(append([]byte{}, b...), pad...)
}

func encryptFixtureFile(t *testing.T, instanceID string, baseKey, plaintext []byte, fileIndex int) []byte {
	t.Helper()
	block, err := aes.NewCipher(baseKey)
	require.NoError(t, err)

	seed := md5.Sum(append([]byte(instanceID), baseKey...))
	iv := seed
	iv[len(iv)-1] = byte((int(seed[len(seed)-1]) + fileIndex) % 256)

	padded := encPkcs5Pad(plaintext)
	ciphertext := make([]byte, len(padded))
	cipher.NewCFBEncrypter(block, iv[:]).XORKeyStream(ciphertext, padded)
	return ciphertext
}

func encryptedTree() model.Tree {
	root := &model.Node{
		Name: "data",
		Kind: model.KindGroup,
		Children: []*model.Node{
			{Name: "photo", Kind: model.KindField, FieldType: model.TypeBinary},
		},
	}
	model.Build(root)
	return model.New(root, "encform", "encform", "1", true)
}

// encryptedFixture bundles everything needed to assemble an encrypted
// instance directory and to independently recompute the values a correct
// signature would hash.
type encryptedFixture struct {
	instanceID    string
	priv          *rsa.PrivateKey
	baseKey       []byte
	mediaPlain    []byte
	mediaDeclared string // name as it appears in media/file, on disk encrypted
	mediaStripped string // name after decryption (extension removed)
	payloadXML    string
	payloadDeclared string
	payloadStripped string
}

func newEncryptedFixture(t *testing.T, instanceID string) *encryptedFixture {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	baseKey := make([]byte, 32)
	_, err = rand.Read(baseKey)
	require.NoError(t, err)

	return &encryptedFixture{
		instanceID:      instanceID,
		priv:            priv,
		baseKey:         baseKey,
		mediaPlain:      []byte("fake-jpeg-bytes"),
		mediaDeclared:   "photo.jpg.enc",
		mediaStripped:   "photo.jpg",
		payloadXML:      "<data><photo>photo.jpg</photo></data>",
		payloadDeclared: "submission.xml.enc",
		payloadStripped: "submission.xml",
	}
}

// signatureDigest returns the base64-RSA-wrapped signature the client would
// have produced for this fixture's current field values, unless corrupt is
// set, in which case an unrelated digest is wrapped instead so verification
// is guaranteed to fail.
func (f *encryptedFixture) signatureDigest(t *testing.T, corrupt bool) string {
	t.Helper()
	mediaDigest := md5.Sum(f.mediaPlain)
	payloadDigest := md5.Sum([]byte(f.payloadXML))

	canonical := cryptoengine.CanonicalSignatureString(
		"encform", "1",
		base64.StdEncoding.EncodeToString(f.baseKey),
		f.instanceID,
		[]cryptoengine.FileDigest{{Name: f.mediaStripped, B64MD5: base64.StdEncoding.EncodeToString(mediaDigest[:])}},
		cryptoengine.FileDigest{Name: f.payloadStripped, B64MD5: base64.StdEncoding.EncodeToString(payloadDigest[:])},
	)

	sig := md5.Sum([]byte(canonical))
	raw := sig[:]
	if corrupt {
		wrong := md5.Sum([]byte("not-the-right-signature"))
		raw = wrong[:]
	}

	wrapped, err := rsa.EncryptPKCS1v15(rand.Reader, &f.priv.PublicKey, raw)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(wrapped)
}

func (f *encryptedFixture) wrappedKey(t *testing.T) string {
	t.Helper()
	wrapped, err := rsa.EncryptPKCS1v15(rand.Reader, &f.priv.PublicKey, f.baseKey)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(wrapped)
}

// write lays out an instance directory for this fixture. When skipMedia is
// true, the declared media file is never written, so the instance should be
// skipped for a missing attachment.
func (f *encryptedFixture) write(t *testing.T, formDir, id string, corruptSignature, skipMedia bool) {
	t.Helper()
	dir := filepath.Join(formDir, "instances", id)
	require.NoError(t, os.MkdirAll(dir, 0755))

	if !skipMedia {
		mediaCipher := encryptFixtureFile(t, f.instanceID, f.baseKey, f.mediaPlain, 0)
		require.NoError(t, os.WriteFile(filepath.Join(dir, f.mediaDeclared), mediaCipher, 0644))
	}
	payloadCipher := encryptFixtureFile(t, f.instanceID, f.baseKey, []byte(f.payloadXML), 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, f.payloadDeclared), payloadCipher, 0644))

	envelope := fmt.Sprintf(
		`<data submissionDate="2020-01-01T00:00:00.000Z"><meta><instanceID>%s</instanceID></meta>`+
			`<base64EncryptedKey>%s</base64EncryptedKey>`+
			`<media><file>%s</file></media>`+
			`<encryptedXmlFile>%s</encryptedXmlFile>`+
			`<base64EncryptedElementSignature>%s</base64EncryptedElementSignature></data>`,
		f.instanceID, f.wrappedKey(t), f.mediaDeclared, f.payloadDeclared, f.signatureDigest(t, corruptSignature),
	)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "submission.xml"), []byte(envelope), 0644))
}

func TestExport_EncryptedSubmission_HappyPath(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	formDir := t.TempDir()
	exportDir := t.TempDir()
	mediaDir := t.TempDir()

	fixture := newEncryptedFixture(t, "uuid:enc-1")
	fixture.write(t, formDir, "sub1", false, false)

	cfg := schema.ExportConfiguration{
		ExportDir:              exportDir,
		OverwriteExistingFiles: true,
		PrivateKey:             fixture.priv,
		ExportMedia:            true,
		ExportMediaPath:        mediaDir,
	}
	outcome, err := Export(context.Background(), encryptedTree(), formDir, cfg)
	require.NoError(err)
	assert.Equal(schema.AllExported, outcome)

	rows := readCSV(t, filepath.Join(exportDir, "encform.csv"))
	require.Len(rows, 2) // header + 1 row
	assert.Equal([]string{"SubmissionDate", "photo", "KEY", "isValidated"}, rows[0])
	assert.Equal(fixture.mediaStripped, rows[1][1])
	assert.Equal("True", rows[1][len(rows[1])-1])

	got, err := os.ReadFile(filepath.Join(mediaDir, fixture.mediaStripped))
	require.NoError(err)
	assert.Equal(fixture.mediaPlain, got)
}

func TestExport_EncryptedSubmission_SignatureMismatch(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	formDir := t.TempDir()
	exportDir := t.TempDir()

	fixture := newEncryptedFixture(t, "uuid:enc-2")
	fixture.write(t, formDir, "sub1", true, false)

	cfg := schema.ExportConfiguration{
		ExportDir:              exportDir,
		OverwriteExistingFiles: true,
		PrivateKey:             fixture.priv,
	}
	outcome, err := Export(context.Background(), encryptedTree(), formDir, cfg)
	require.NoError(err)
	assert.Equal(schema.AllExported, outcome)

	rows := readCSV(t, filepath.Join(exportDir, "encform.csv"))
	require.Len(rows, 2)
	assert.Equal("False", rows[1][len(rows[1])-1])
}

func TestExport_EncryptedSubmission_MissingMediaIsSkipped(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	formDir := t.TempDir()
	exportDir := t.TempDir()

	fixture := newEncryptedFixture(t, "uuid:enc-3")
	fixture.write(t, formDir, "sub1", false, true)

	cfg := schema.ExportConfiguration{
		ExportDir:              exportDir,
		OverwriteExistingFiles: true,
		PrivateKey:             fixture.priv,
	}
	outcome, err := Export(context.Background(), encryptedTree(), formDir, cfg)
	require.NoError(err)
	assert.Equal(schema.AllSkipped, outcome)

	rows := readCSV(t, filepath.Join(exportDir, "encform.csv"))
	require.Len(rows, 1) // header only, no data row
}
