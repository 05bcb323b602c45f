// Package cryptoengine implements the hybrid RSA/AES decryption scheme used
// by encrypted form submissions: an RSA-wrapped per-submission AES key, a
// deterministic sequence of per-file AES/CFB ciphers derived from an MD5
// seed, and MD5-based signature validation of the decrypted payload.
//
// Built on crypto/rsa, crypto/aes, crypto/cipher and crypto/md5 directly
// (see DESIGN.md for why no third-party crypto library in the retrieved
// pack covers PKCS1v1.5 unwrap plus CFB file streaming better than stdlib).
package cryptoengine

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	schema "github.com/opendatakit-go/export-core/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Engine derives keys and ciphers for one RSA private key. A single Engine
// is reused across every submission of a form.
type Engine struct {
	privateKey *rsa.PrivateKey
}

// CipherSequence produces the per-file AES/CFB decrypt streams for one
// submission, in the order the client encrypted them: each declared media
// file first, then the submission payload last. Never reused across
// submissions - a fresh sequence is derived per instance id.
type CipherSequence struct {
	block   cipher.Block
	seed    [aes.BlockSize]byte
	counter int
}

// FileDigest names one file's contribution to the canonical signature
// string.
type FileDigest struct {
	Name     string
	B64MD5   string
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func New(privateKey *rsa.PrivateKey) *Engine {
	return &Engine{privateKey: privateKey}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - KEY DERIVATION

// UnwrapKey RSA/PKCS1-decrypts a base64-encoded, RSA-wrapped symmetric key,
// returning the 256-bit base AES key.
func (e *Engine) UnwrapKey(wrappedB64 string) ([]byte, error) {
	return e.rsaDecrypt(wrappedB64)
}

// DecryptSignature RSA/PKCS1-decrypts the base64-encoded signature field,
// returning the original 16-byte MD5 digest the client encrypted.
func (e *Engine) DecryptSignature(signatureB64 string) ([]byte, error) {
	return e.rsaDecrypt(signatureB64)
}

func (e *Engine) rsaDecrypt(b64 string) ([]byte, error) {
	if e.privateKey == nil {
		return nil, fmt.Errorf("no private key configured")
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	return rsa.DecryptPKCS1v15(rand.Reader, e.privateKey, raw)
}

// NewCipherSequence derives the per-file IV seed md5(instanceID||baseKey)
// and returns a sequence that yields a fresh AES-256/CFB decrypt stream on
// each call to Next, the IV mutated by incrementing its low byte modulo 256
// for every successive cipher.
func (e *Engine) NewCipherSequence(instanceID string, baseKey []byte) (*CipherSequence, error) {
	block, err := aes.NewCipher(baseKey)
	if err != nil {
		return nil, fmt.Errorf("aes key setup: %w", err)
	}
	seed := md5.Sum(append([]byte(instanceID), baseKey...))
	return &CipherSequence{block: block, seed: seed}, nil
}

// Next returns the decrypt stream for the next file in the sequence.
func (cs *CipherSequence) Next() cipher.Stream {
	iv := cs.seed
	iv[len(iv)-1] = byte((int(cs.seed[len(cs.seed)-1]) + cs.counter) % 256)
	cs.counter++
	return cipher.NewCFBDecrypter(cs.block, iv[:])
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - FILE DECRYPTION

const chunkSize = 2048

// DecryptFile streams src through stream 2KiB at a time, strips the trailing
// PKCS5 pad, and writes the plaintext to dst. It returns the base64 MD5
// digest of the decrypted bytes, used to build the canonical signature
// string. Fails with a KindDecryptionFailed error on short/invalid padding.
func DecryptFile(stream cipher.Stream, src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", schema.ErrCrypto(schema.KindMissingMedia, src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", schema.ErrIO(dst, err)
	}
	defer out.Close()

	hash := md5.New()
	reader := &cipher.StreamReader{S: stream, R: in}

	buf := make([]byte, chunkSize)
	var pending []byte
	for {
		n, rerr := reader.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			if len(pending) > aes.BlockSize {
				flush := len(pending) - aes.BlockSize
				if _, werr := out.Write(pending[:flush]); werr != nil {
					return "", schema.ErrIO(dst, werr)
				}
				hash.Write(pending[:flush])
				pending = pending[flush:]
			}
		}
		if rerr == io.EOF {
			break
		} else if rerr != nil {
			return "", schema.ErrCrypto(schema.KindDecryptionFailed, src, rerr)
		}
	}

	plain, err := pkcs5Unpad(pending)
	if err != nil {
		return "", schema.ErrCrypto(schema.KindDecryptionFailed, src, err)
	}
	if _, err := out.Write(plain); err != nil {
		return "", schema.ErrIO(dst, err)
	}
	hash.Write(plain)

	return base64.StdEncoding.EncodeToString(hash.Sum(nil)), nil
}

func pkcs5Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b) > aes.BlockSize {
		return nil, fmt.Errorf("invalid padding block length %d", len(b))
	}
	n := int(b[len(b)-1])
	if n == 0 || n > len(b) {
		return nil, fmt.Errorf("invalid pkcs5 padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("invalid pkcs5 padding")
		}
	}
	return b[:len(b)-n], nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - SIGNATURE

// CanonicalSignatureString builds the newline-joined string the client
// hashed before RSA-encrypting the signature field: form id, optional form
// version, base64 symmetric key, instance id, then
// "filename::base64(md5(bytes))" for each media file in order and finally
// the submission payload.
func CanonicalSignatureString(formID, formVersion, keyB64, instanceID string, media []FileDigest, payload FileDigest) string {
	var lines []string
	lines = append(lines, formID)
	if formVersion != "" {
		lines = append(lines, formVersion)
	}
	lines = append(lines, keyB64)
	lines = append(lines, instanceID)
	for _, m := range media {
		lines = append(lines, m.Name+"::"+m.B64MD5)
	}
	lines = append(lines, payload.Name+"::"+payload.B64MD5)

	var buf bytes.Buffer
	for i, l := range lines {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(l)
	}
	return buf.String()
}

// DigestMatches computes md5(signatureString) and compares it byte-wise with
// the RSA-decrypted signature field.
func DigestMatches(signatureString string, decryptedSignature []byte) bool {
	sum := md5.Sum([]byte(signatureString))
	return bytes.Equal(sum[:], decryptedSignature)
}
