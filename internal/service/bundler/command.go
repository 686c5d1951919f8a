package bundler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/oshokin/webstart-packager/internal/config"
	"github.com/oshokin/webstart-packager/internal/logger"
	"github.com/oshokin/webstart-packager/internal/repository/resolver"
	"github.com/oshokin/webstart-packager/internal/service/publisher"
	"github.com/oshokin/webstart-packager/internal/tool/archiver"
	"github.com/oshokin/webstart-packager/internal/tool/descriptor"
	"github.com/oshokin/webstart-packager/internal/tool/jarsigner"
	"github.com/oshokin/webstart-packager/internal/tool/keytool"
	"github.com/oshokin/webstart-packager/internal/tool/packer"
)

var errUnknownLogLevel = errors.New("unknown log level")

// Options are inputs accepted by the bundler entry point. Non-empty values
// override the configuration file.
type Options struct {
	// ConfigPath is the build configuration file.
	ConfigPath string
	// WorkDir overrides the staging directory.
	WorkDir string
	// OutputDir overrides the archive directory.
	OutputDir string
	// ResolvedFile overrides the resolved artifacts manifest.
	ResolvedFile string
	// Verbose switches to debug logging.
	Verbose bool
	// LogLevel sets the log level explicitly.
	LogLevel string
}

// Run loads the configuration, builds the collaborators and runs the
// pipeline once. It is the entry point for the CLI.
func Run(ctx context.Context, opts *Options) (*Bundle, error) {
	ctx = logger.WithName(ctx, "webstart-packager")
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString())

	cfg, err := loadConfig(opts)
	if err != nil {
		logger.ErrorKV(ctx, "Unable to load configuration", "error", err)
		return nil, err
	}

	if err = applyLogLevel(cfg, opts); err != nil {
		return nil, err
	}

	if actor, actorErr := DetectActor(); actorErr == nil {
		logger.DebugKV(ctx, "Build started", "actor", actor.String(), "work_dir", cfg.WorkDir)
	}

	warnConcurrentRuns(ctx)

	deps, err := NewCollaborators(cfg)
	if err != nil {
		logger.ErrorKV(ctx, "Unable to prepare tools", "error", err)
		return nil, err
	}

	pipeline, err := NewPipeline(cfg, deps)
	if err != nil {
		return nil, err
	}

	bundle, err := pipeline.Run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Bundle build failed", "error", err)
		return nil, err
	}

	logger.InfoKV(ctx, "Bundle written",
		"archive", bundle.ArchivePath,
		"size", humanize.Bytes(uint64(max(bundle.Size, 0))),
		"jars", len(bundle.Staged),
		"changed", len(bundle.Touched),
		"signed", bundle.Signed,
		"packed", bundle.Packed)

	if bundle.ObjectKey != "" {
		logger.InfoKV(ctx, "Bundle published", "key", bundle.ObjectKey)
	}

	return bundle, nil
}

// NewCollaborators builds the default tools for cfg.
func NewCollaborators(cfg *config.Config) (Collaborators, error) {
	gen, err := descriptor.New(cfg.JNLP.Template)
	if err != nil {
		return Collaborators{}, err
	}

	deps := Collaborators{
		Resolver:   resolver.NewFileResolver(cfg.ResolvedFile, cfg.Repository),
		Descriptor: gen,
		Archiver:   ArchiverFunc(archiver.Archive),
	}

	if cfg.Pack.Enabled {
		deps.Packer = packer.New(cfg.Pack.Gzip)
	}

	if cfg.Sign != nil {
		signer, signErr := jarsigner.New(jarsigner.Options{
			Alias:     cfg.Sign.Alias,
			Keystore:  cfg.Sign.Keystore,
			StorePass: cfg.Sign.StorePass,
			KeyPass:   cfg.Sign.KeyPass,
			SigFile:   cfg.Sign.SigFile,
			SigAlg:    cfg.Sign.SigAlg,
			DigestAlg: cfg.Sign.DigestAlg,
			Verify:    cfg.Sign.Verify,
		})
		if signErr != nil {
			return Collaborators{}, fmt.Errorf("prepare signer: %w", signErr)
		}

		deps.Signer = signer
		deps.Keystore = Keytool{}
	}

	if cfg.Publish != nil {
		pub, pubErr := publisher.New(cfg.Publish)
		if pubErr != nil {
			return Collaborators{}, pubErr
		}

		deps.Publisher = pub
	}

	return deps, nil
}

// Keytool adapts the keytool package to KeystoreTool.
type Keytool struct{}

// Delete removes the keystore at path.
func (Keytool) Delete(path string) (bool, error) {
	return keytool.Delete(path)
}

// Generate creates a key pair in the keystore.
func (Keytool) Generate(ctx context.Context, opts *keytool.GenerateOptions) error {
	return keytool.Generate(ctx, opts)
}

// ArchiverFunc adapts a function to Archiver.
type ArchiverFunc func(ctx context.Context, dir, dest string) (int64, error)

// Archive calls f.
func (f ArchiverFunc) Archive(ctx context.Context, dir, dest string) (int64, error) {
	return f(ctx, dir, dest)
}

func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.WorkDir != "" {
		cfg.WorkDir = filepath.Clean(opts.WorkDir)
	}

	if opts.OutputDir != "" {
		cfg.OutputDir = filepath.Clean(opts.OutputDir)
	}

	if opts.ResolvedFile != "" {
		cfg.ResolvedFile = filepath.Clean(opts.ResolvedFile)
	}

	cfg.Verbose = cfg.Verbose || opts.Verbose

	// Overrides bypass Validate.
	if err = cfg.CheckArchivePath(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyLogLevel(cfg *config.Config, opts *Options) error {
	if opts.LogLevel != "" {
		level, ok := logger.ParseLogLevel(opts.LogLevel)
		if !ok {
			return fmt.Errorf("%w: %q", errUnknownLogLevel, opts.LogLevel)
		}

		logger.SetLevel(level)
	}

	logger.SetVerbose(cfg.Verbose)

	return nil
}
