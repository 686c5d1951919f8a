package jarsigner

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"strings"

	"github.com/zeebo/blake3"
)

// digester produces manifest digests for one algorithm.
type digester struct {
	// header is the attribute prefix, for example "SHA-256".
	header string
	newFn  func() hash.Hash
}

func newDigester(algorithm string) (*digester, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA-256":
		return &digester{header: "SHA-256", newFn: sha256.New}, nil
	case "BLAKE3":
		return &digester{header: "BLAKE3", newFn: func() hash.Hash { return blake3.New() }}, nil
	default:
		return nil, fmt.Errorf("%w: digest algorithm %q", errUnsupported, algorithm)
	}
}

// sum returns the base64 digest of data.
func (d *digester) sum(data []byte) string {
	h := d.newFn()
	_, _ = h.Write(data)

	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// attribute is the per-entry manifest attribute name.
func (d *digester) attribute() string {
	return d.header + "-Digest"
}

// manifestAttribute is the signature file attribute for the whole manifest.
func (d *digester) manifestAttribute() string {
	return d.header + "-Digest-Manifest"
}
