package jarsigner

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/oshokin/webstart-packager/internal/tool/jarfile"
	"github.com/oshokin/webstart-packager/internal/tool/keytool"
)

const (
	// SignatureAlgorithm is the only supported signature algorithm.
	SignatureAlgorithm = "Ed25519"

	signatureVersion = "Signature-Version: 1.0"
	blockExtension   = ".ED25519"
	sfExtension      = ".SF"
)

var (
	// ErrVerification is returned when a signed jar does not verify.
	ErrVerification = errors.New("jar verification failed")

	errUnsupported = errors.New("unsupported signing parameter")
)

// Options are the signer inputs.
type Options struct {
	Alias     string
	Keystore  string
	StorePass string
	KeyPass   string
	SigFile   string
	SigAlg    string
	DigestAlg string
	// Verify re-reads every signed jar and checks its signature.
	Verify bool
}

// Signer signs jars with one keystore alias. The key is loaded on first use.
type Signer struct {
	opts     Options
	digester *digester
	key      ed25519.PrivateKey
}

// New validates opts and returns a Signer.
func New(opts Options) (*Signer, error) {
	if opts.SigAlg != "" && !strings.EqualFold(opts.SigAlg, SignatureAlgorithm) {
		return nil, fmt.Errorf("%w: signature algorithm %q", errUnsupported, opts.SigAlg)
	}

	if opts.SigFile == "" {
		return nil, fmt.Errorf("%w: empty signature file name", errUnsupported)
	}

	d, err := newDigester(opts.DigestAlg)
	if err != nil {
		return nil, err
	}

	if opts.KeyPass == "" {
		opts.KeyPass = opts.StorePass
	}

	return &Signer{opts: opts, digester: d}, nil
}

// Sign signs the jar at jarPath in place.
func (s *Signer) Sign(ctx context.Context, jarPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.loadKey(); err != nil {
		return err
	}

	entries, err := jarfile.Read(jarPath)
	if err != nil {
		return err
	}

	signed, err := s.signEntries(entries)
	if err != nil {
		return fmt.Errorf("sign %s: %w", jarPath, err)
	}

	data, err := jarfile.Encode(signed, zip.Deflate)
	if err != nil {
		return fmt.Errorf("encode %s: %w", jarPath, err)
	}

	if err = jarfile.Replace(jarPath, data); err != nil {
		return err
	}

	if !s.opts.Verify {
		return nil
	}

	return Verify(jarPath, s.opts.SigFile, s.key.Public().(ed25519.PublicKey))
}

func (s *Signer) loadKey() error {
	if s.key != nil {
		return nil
	}

	store, err := keytool.Open(s.opts.Keystore, s.opts.StorePass)
	if err != nil {
		return err
	}

	if s.key, err = store.PrivateKey(s.opts.Alias, s.opts.KeyPass); err != nil {
		return err
	}

	return nil
}

// signEntries returns the jar contents with a fresh manifest, signature file
// and signature block in front of the payload entries.
func (s *Signer) signEntries(entries []jarfile.Entry) ([]jarfile.Entry, error) {
	var (
		manifest []byte
		payload  = make([]jarfile.Entry, 0, len(entries))
		digests  = make(map[string]string, len(entries))
		modified = time.Now().UTC().Truncate(time.Second)
	)

	for _, entry := range entries {
		switch {
		case entry.Name == jarfile.ManifestName:
			manifest = entry.Data
			modified = entry.Modified
		case entry.Name == jarfile.MetaInfDir:
		case isSignatureEntry(entry.Name):
			// Dropped; re-signing replaces previous signatures.
		default:
			payload = append(payload, entry)

			if !entry.IsDir() {
				digests[entry.Name] = s.digester.sum(entry.Data)
			}
		}
	}

	newManifest := buildManifest(mainSection(manifest), digests, s.digester.attribute())
	sf := s.signatureFile(newManifest)
	signature := ed25519.Sign(s.key, sf)

	block := make([]byte, 0, ed25519.PublicKeySize+ed25519.SignatureSize)
	block = append(block, s.key.Public().(ed25519.PublicKey)...)
	block = append(block, signature...)

	out := make([]jarfile.Entry, 0, len(payload)+4)
	out = append(out,
		jarfile.Entry{Name: jarfile.MetaInfDir, Modified: modified},
		jarfile.Entry{Name: jarfile.ManifestName, Modified: modified, Data: newManifest},
		jarfile.Entry{Name: jarfile.MetaInfDir + s.opts.SigFile + sfExtension, Modified: modified, Data: sf},
		jarfile.Entry{Name: jarfile.MetaInfDir + s.opts.SigFile + blockExtension, Modified: modified, Data: block},
	)

	return append(out, payload...), nil
}

func (s *Signer) signatureFile(manifest []byte) []byte {
	var b strings.Builder

	b.WriteString(signatureVersion + crlf)
	b.WriteString(s.digester.manifestAttribute() + ": " + s.digester.sum(manifest) + crlf)
	b.WriteString("Created-By: webstart-packager" + crlf)
	b.WriteString(crlf)

	return []byte(b.String())
}

// isSignatureEntry matches META-INF signature files and blocks of any signer.
func isSignatureEntry(name string) bool {
	dir, file := path.Split(name)
	if dir != jarfile.MetaInfDir {
		return false
	}

	switch strings.ToUpper(path.Ext(file)) {
	case sfExtension, blockExtension, ".RSA", ".DSA", ".EC":
		return true
	default:
		return false
	}
}

// Verify checks the signature written under sigFile. When expected is not
// nil the embedded public key must match it.
func Verify(jarPath, sigFile string, expected ed25519.PublicKey) error {
	entries, err := jarfile.Read(jarPath)
	if err != nil {
		return err
	}

	byName := make(map[string][]byte, len(entries))
	for _, entry := range entries {
		byName[entry.Name] = entry.Data
	}

	manifest, sf, block := byName[jarfile.ManifestName],
		byName[jarfile.MetaInfDir+sigFile+sfExtension],
		byName[jarfile.MetaInfDir+sigFile+blockExtension]

	if manifest == nil || sf == nil || len(block) != ed25519.PublicKeySize+ed25519.SignatureSize {
		return fmt.Errorf("%w: %s: signature entries missing", ErrVerification, jarPath)
	}

	public := ed25519.PublicKey(block[:ed25519.PublicKeySize])
	if expected != nil && !public.Equal(expected) {
		return fmt.Errorf("%w: %s: signed by an unexpected key", ErrVerification, jarPath)
	}

	if !ed25519.Verify(public, sf, block[ed25519.PublicKeySize:]) {
		return fmt.Errorf("%w: %s: bad signature", ErrVerification, jarPath)
	}

	d, err := digesterFromSignatureFile(sf)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrVerification, jarPath, err)
	}

	if !strings.Contains(string(sf), d.manifestAttribute()+": "+d.sum(manifest)+crlf) {
		return fmt.Errorf("%w: %s: manifest digest mismatch", ErrVerification, jarPath)
	}

	digests, err := parseDigests(manifest, d.attribute())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrVerification, jarPath, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || entry.Name == jarfile.ManifestName || isSignatureEntry(entry.Name) {
			continue
		}

		if digests[entry.Name] != d.sum(entry.Data) {
			return fmt.Errorf("%w: %s: entry %s digest mismatch", ErrVerification, jarPath, entry.Name)
		}
	}

	return nil
}

func digesterFromSignatureFile(sf []byte) (*digester, error) {
	for _, algorithm := range []string{"SHA-256", "BLAKE3"} {
		d, _ := newDigester(algorithm)
		if strings.Contains(string(sf), d.manifestAttribute()+": ") {
			return d, nil
		}
	}

	return nil, fmt.Errorf("%w: unknown manifest digest", errUnsupported)
}
