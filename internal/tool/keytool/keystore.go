package keytool

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filippo.io/age"
	"filippo.io/age/armor"
	"gopkg.in/yaml.v3"
)

const (
	// StoreType is the keystore format written by this package.
	StoreType = "age"
	// KeyAlgorithm is the only supported key algorithm.
	KeyAlgorithm = "Ed25519"

	storeVersion  = 1
	storeFileMode = 0o600
	// scryptWorkFactor keeps opening a store well under a second.
	scryptWorkFactor = 15
	day              = 24 * time.Hour
)

var (
	// ErrAliasNotFound is returned when the store has no entry for an alias.
	ErrAliasNotFound = errors.New("alias not found in keystore")
	// ErrAliasExists is returned when generating a key for a taken alias.
	ErrAliasExists = errors.New("alias already exists in keystore")
	// ErrExpired is returned for keys past their validity period.
	ErrExpired = errors.New("key has expired")

	errUnsupported = errors.New("unsupported keystore parameter")
	errCorruptKey  = errors.New("corrupt key material")
)

// GenerateOptions are the keystore generator inputs.
type GenerateOptions struct {
	Alias     string
	DName     string
	KeyAlg    string
	KeySize   int
	SigAlg    string
	Keystore  string
	StoreType string
	StorePass string
	KeyPass   string
	// Validity is the key lifetime in days.
	Validity int
}

// Store is an opened keystore.
type Store struct {
	Version int      `yaml:"version"`
	Entries []*Entry `yaml:"entries"`
}

// Entry is one aliased key pair.
type Entry struct {
	Alias              string    `yaml:"alias"`
	DName              string    `yaml:"dname"`
	KeyAlgorithm       string    `yaml:"key_algorithm"`
	SignatureAlgorithm string    `yaml:"signature_algorithm"`
	NotBefore          time.Time `yaml:"not_before"`
	NotAfter           time.Time `yaml:"not_after"`
	// PublicKey is the base64 encoded public key.
	PublicKey string `yaml:"public_key"`
	// PrivateKey is the armored age ciphertext of the seed.
	PrivateKey string `yaml:"private_key"`
}

// Generate creates a key pair for opts.Alias and writes it to opts.Keystore,
// creating the store when it does not exist yet.
func Generate(ctx context.Context, opts *GenerateOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := opts.validate(); err != nil {
		return err
	}

	store := &Store{Version: storeVersion}

	if _, err := os.Stat(opts.Keystore); err == nil {
		if store, err = Open(opts.Keystore, opts.StorePass); err != nil {
			return err
		}
	}

	if _, err := store.entry(opts.Alias); err == nil {
		return fmt.Errorf("%w: %s", ErrAliasExists, opts.Alias)
	}

	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	sealed, err := seal(private.Seed(), opts.KeyPass)
	if err != nil {
		return fmt.Errorf("encrypt private key: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)

	store.Entries = append(store.Entries, &Entry{
		Alias:              opts.Alias,
		DName:              opts.DName,
		KeyAlgorithm:       KeyAlgorithm,
		SignatureAlgorithm: opts.SigAlg,
		NotBefore:          now,
		NotAfter:           now.Add(time.Duration(opts.Validity) * day),
		PublicKey:          base64.StdEncoding.EncodeToString(public),
		PrivateKey:         sealed,
	})

	return store.save(opts.Keystore, opts.StorePass)
}

// Delete removes the keystore file. It reports whether a file was removed;
// a missing store is not an error.
func Delete(path string) (bool, error) {
	err := os.Remove(filepath.Clean(path))

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("delete keystore: %w", err)
	}
}

// Open decrypts and parses the keystore at path.
func Open(path, storePass string) (*Store, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}

	plain, err := open(string(contents), storePass)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}

	var store Store
	if err = yaml.Unmarshal(plain, &store); err != nil {
		return nil, fmt.Errorf("decode keystore: %w", err)
	}

	return &store, nil
}

// PrivateKey decrypts the key for alias. Expired keys are refused.
func (s *Store) PrivateKey(alias, keyPass string) (ed25519.PrivateKey, error) {
	e, err := s.entry(alias)
	if err != nil {
		return nil, err
	}

	if time.Now().After(e.NotAfter) {
		return nil, fmt.Errorf("%w: %s expired at %s", ErrExpired, alias, e.NotAfter.Format(time.RFC3339))
	}

	seed, err := open(e.PrivateKey, keyPass)
	if err != nil {
		return nil, fmt.Errorf("decrypt key %s: %w", alias, err)
	}

	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: %s", errCorruptKey, alias)
	}

	return ed25519.NewKeyFromSeed(seed), nil
}

// PublicKey returns the public half of the key for alias.
func (s *Store) PublicKey(alias string) (ed25519.PublicKey, error) {
	e, err := s.entry(alias)
	if err != nil {
		return nil, err
	}

	public, err := base64.StdEncoding.DecodeString(e.PublicKey)
	if err != nil || len(public) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %s", errCorruptKey, alias)
	}

	return ed25519.PublicKey(public), nil
}

func (s *Store) entry(alias string) (*Entry, error) {
	for _, e := range s.Entries {
		if e.Alias == alias {
			return e, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrAliasNotFound, alias)
}

func (s *Store) save(path, storePass string) error {
	plain, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode keystore: %w", err)
	}

	sealed, err := seal(plain, storePass)
	if err != nil {
		return fmt.Errorf("encrypt keystore: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err = os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create keystore directory: %w", err)
		}
	}

	if err = os.WriteFile(filepath.Clean(path), []byte(sealed), storeFileMode); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}

	return nil
}

func (o *GenerateOptions) validate() error {
	switch {
	case o.Alias == "":
		return fmt.Errorf("%w: alias is empty", errUnsupported)
	case o.Keystore == "":
		return fmt.Errorf("%w: keystore path is empty", errUnsupported)
	case o.StorePass == "":
		return fmt.Errorf("%w: store password is empty", errUnsupported)
	case o.StoreType != "" && o.StoreType != StoreType:
		return fmt.Errorf("%w: store type %q", errUnsupported, o.StoreType)
	case o.KeyAlg != "" && !strings.EqualFold(o.KeyAlg, KeyAlgorithm):
		return fmt.Errorf("%w: key algorithm %q", errUnsupported, o.KeyAlg)
	case o.KeySize != 0 && o.KeySize != 8*ed25519.PublicKeySize:
		return fmt.Errorf("%w: key size %d", errUnsupported, o.KeySize)
	case o.Validity <= 0:
		return fmt.Errorf("%w: validity %d days", errUnsupported, o.Validity)
	}

	if o.KeyPass == "" {
		o.KeyPass = o.StorePass
	}

	return nil
}

// seal encrypts plain with a passphrase and returns armored text.
func seal(plain []byte, passphrase string) (string, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return "", err
	}

	recipient.SetWorkFactor(scryptWorkFactor)

	var buf bytes.Buffer

	armorWriter := armor.NewWriter(&buf)

	writer, err := age.Encrypt(armorWriter, recipient)
	if err != nil {
		return "", err
	}

	if _, err = writer.Write(plain); err != nil {
		return "", err
	}

	if err = writer.Close(); err != nil {
		return "", err
	}

	if err = armorWriter.Close(); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// open reverses seal.
func open(armored, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, err
	}

	reader, err := age.Decrypt(armor.NewReader(strings.NewReader(armored)), identity)
	if err != nil {
		return nil, err
	}

	return io.ReadAll(reader)
}
