package keytool

import (
	"context"
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func generateOptions(path string) *GenerateOptions {
	return &GenerateOptions{
		Alias:     "release",
		DName:     "CN=Example, O=Example, C=US",
		KeyAlg:    KeyAlgorithm,
		SigAlg:    "Ed25519",
		Keystore:  path,
		StoreType: StoreType,
		StorePass: "store-secret",
		KeyPass:   "key-secret",
		Validity:  30,
	}
}

// TestGenerateOpenSign generates a key and signs with it after reopening the store.
func TestGenerateOpenSign(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keys", "store.age")

	require.NoError(t, Generate(context.Background(), generateOptions(path)))

	store, err := Open(path, "store-secret")
	require.NoError(t, err)

	private, err := store.PrivateKey("release", "key-secret")
	require.NoError(t, err)

	public, err := store.PublicKey("release")
	require.NoError(t, err)

	msg := []byte("manifest")
	require.True(t, ed25519.Verify(public, msg, ed25519.Sign(private, msg)))

	_, err = store.PrivateKey("release", "wrong")
	require.Error(t, err)

	_, err = store.PublicKey("other")
	require.ErrorIs(t, err, ErrAliasNotFound)

	_, err = Open(path, "wrong")
	require.Error(t, err)
}

// TestGenerateDuplicateAlias refuses to overwrite an existing alias.
func TestGenerateDuplicateAlias(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.age")
	opts := generateOptions(path)

	require.NoError(t, Generate(context.Background(), opts))
	require.ErrorIs(t, Generate(context.Background(), opts), ErrAliasExists)
}

// TestDelete is idempotent.
func TestDelete(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.age")

	removed, err := Delete(path)
	require.NoError(t, err)
	require.False(t, removed)

	require.NoError(t, Generate(context.Background(), generateOptions(path)))

	removed, err = Delete(path)
	require.NoError(t, err)
	require.True(t, removed)
	require.NoFileExists(t, path)
}

// TestGenerateRejectsUnsupported checks parameter validation.
func TestGenerateRejectsUnsupported(t *testing.T) {
	t.Parallel()

	opts := generateOptions(filepath.Join(t.TempDir(), "store.age"))
	opts.KeyAlg = "RSA"
	require.Error(t, Generate(context.Background(), opts))

	opts = generateOptions(filepath.Join(t.TempDir(), "store.age"))
	opts.Validity = 0
	require.Error(t, Generate(context.Background(), opts))
}
