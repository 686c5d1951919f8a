package bundler

import (
	"context"
	"fmt"
	"os"

	"github.com/oshokin/webstart-packager/internal/config"
	"github.com/oshokin/webstart-packager/internal/domain/artifact"
	"github.com/oshokin/webstart-packager/internal/logger"
	"github.com/oshokin/webstart-packager/internal/tool/keytool"
)

// Signer signs a jar in place.
type Signer interface {
	Sign(ctx context.Context, jarPath string) error
}

// KeystoreTool deletes and generates keystores.
type KeystoreTool interface {
	// Delete removes the keystore and reports whether one existed.
	Delete(path string) (bool, error)
	// Generate creates a key pair in the keystore.
	Generate(ctx context.Context, opts *keytool.GenerateOptions) error
}

// SigningStage signs the jars written this run.
type SigningStage struct {
	signer   Signer
	keystore KeystoreTool
	sign     *config.Sign
	life     config.Keystore
}

// NewSigningStage creates the stage for the given sign and keystore settings.
func NewSigningStage(signer Signer, keystore KeystoreTool, sign *config.Sign, life config.Keystore) *SigningStage {
	return &SigningStage{
		signer:   signer,
		keystore: keystore,
		sign:     sign,
		life:     life,
	}
}

// PrepareKeystore regenerates the keystore when configured. Deletion only
// happens as part of generation, so a run never ends without a keystore.
func (s *SigningStage) PrepareKeystore(ctx context.Context) error {
	if !s.life.Gen {
		return nil
	}

	if s.life.Delete {
		removed, err := s.keystore.Delete(s.sign.Keystore)
		if err != nil {
			return fmt.Errorf("delete keystore: %w", err)
		}

		if removed {
			logger.DebugKV(ctx, "Deleted keystore", "path", s.sign.Keystore)
		} else {
			logger.DebugKV(ctx, "Skipping deletion of non existing keystore", "path", s.sign.Keystore)
		}
	}

	opts := &keytool.GenerateOptions{
		Alias:     s.sign.Alias,
		DName:     s.sign.DName,
		KeyAlg:    s.sign.KeyAlg,
		KeySize:   s.sign.KeySize,
		SigAlg:    s.sign.SigAlg,
		Keystore:  s.sign.Keystore,
		StoreType: s.sign.StoreType,
		StorePass: s.sign.StorePass,
		KeyPass:   s.sign.KeyPass,
		Validity:  s.sign.Validity,
	}

	if err := s.keystore.Generate(ctx, opts); err != nil {
		return fmt.Errorf("generate keystore: %w", err)
	}

	logger.InfoKV(ctx, "Generated keystore", "path", s.sign.Keystore, "alias", s.sign.Alias)

	return nil
}

// Sign signs every jar written this run and restores each jar's
// modification time afterwards, so a later run does not mistake the
// signer's write for a fresh copy. The number of signed jars must equal the
// number of jars the copier wrote; any difference is an InvariantError.
func (s *SigningStage) Sign(ctx context.Context, run *RunContext) (int, error) {
	jars, err := run.listTouched(artifact.IsJarName)
	if err != nil {
		return 0, err
	}

	logger.DebugKV(ctx, "Signing jars", "dir", run.WorkDir, "count", len(jars))

	for _, path := range jars {
		if err = s.signOne(ctx, path); err != nil {
			return 0, err
		}
	}

	if expected := len(run.ModifiedJars()); expected != len(jars) {
		return len(jars), &InvariantError{
			Stage:    "sign",
			Expected: expected,
			Actual:   len(jars),
			Detail:   "the number of signed jars differs from the number of jars staged in this run",
		}
	}

	return len(jars), nil
}

func (s *SigningStage) signOne(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	modified := info.ModTime()

	if err = s.signer.Sign(ctx, path); err != nil {
		return fmt.Errorf("sign %s: %w", path, err)
	}

	if err = os.Chtimes(path, modified, modified); err != nil {
		return fmt.Errorf("restore modification time of %s: %w", path, err)
	}

	logger.DebugKV(ctx, "Signed jar", "path", path)

	return nil
}
