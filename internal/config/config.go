package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/webstart-packager/internal/domain/artifact"
	"github.com/oshokin/webstart-packager/internal/tool/archiver"
)

// Config describes one bundle build.
type Config struct {
	// BaseDir is the project directory that relative paths are resolved against.
	BaseDir string `yaml:"base_dir"`
	// WorkDir is the persistent staging directory; it is the incremental cache.
	WorkDir string `yaml:"work_dir"`
	// OutputDir receives the final archive.
	OutputDir string `yaml:"output_dir"`
	// FinalName is the archive name without the .zip suffix.
	FinalName string `yaml:"final_name"`
	// ResolvedFile lists the artifacts produced by the dependency resolver.
	ResolvedFile string `yaml:"resolved_file"`
	// Repository is a Maven-layout root used for resolved entries without a path.
	Repository string `yaml:"repository,omitempty"`
	// Dependencies are versionless group:name coordinates to bundle.
	Dependencies []string `yaml:"dependencies"`
	// Verbose switches logging to debug level.
	Verbose bool `yaml:"verbose"`
	// JNLP configures the deployment descriptor.
	JNLP JNLP `yaml:"jnlp"`
	// Pack configures the compression stage.
	Pack Pack `yaml:"pack"`
	// Sign enables jar signing when set.
	Sign *Sign `yaml:"sign,omitempty"`
	// Keystore configures the keystore lifecycle run before signing.
	Keystore Keystore `yaml:"keystore"`
	// Publish uploads the archive to an object store when set.
	Publish *Publish `yaml:"publish,omitempty"`
}

// JNLP holds descriptor settings.
type JNLP struct {
	// MainClass is the fully qualified application entry point.
	MainClass string `yaml:"main_class"`
	// Codebase is the URL the descriptor is served from.
	Codebase string `yaml:"codebase"`
	// Spec is the JNLP specification version, 1.0+ by default.
	Spec string `yaml:"spec"`
	// OutputFile is the descriptor name inside the working directory.
	OutputFile string `yaml:"output_file"`
	// Template overrides the embedded descriptor template.
	Template string `yaml:"template,omitempty"`
	// UseJNLPServlet lets the servlet substitute $$codebase at download time.
	UseJNLPServlet bool `yaml:"use_jnlp_servlet"`
	// AllPermissions requests the all-permissions security element.
	AllPermissions bool `yaml:"all_permissions"`
	// OfflineAllowed adds the offline-allowed element.
	OfflineAllowed bool `yaml:"offline_allowed"`
	// J2SEVersion is the required runtime version.
	J2SEVersion string `yaml:"j2se_version"`
	// Arguments are passed to the main class.
	Arguments []string `yaml:"arguments,omitempty"`
	// Information blocks; icons referenced here are staged into images/.
	Information []Information `yaml:"information"`
}

// Information is one descriptor information block.
type Information struct {
	Title       string `yaml:"title"`
	Vendor      string `yaml:"vendor"`
	Homepage    string `yaml:"homepage,omitempty"`
	Description string `yaml:"description,omitempty"`
	Locale      string `yaml:"locale,omitempty"`
	Icons       []Icon `yaml:"icons,omitempty"`
}

// Icon references an image resource.
type Icon struct {
	// Href is searched as given, then under BaseDir, then under BaseDir/src/jnlp/icons.
	Href   string `yaml:"href"`
	Kind   string `yaml:"kind,omitempty"`
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
}

// Pack configures the compression stage.
type Pack struct {
	// Enabled turns on packing of changed jars.
	Enabled bool `yaml:"enabled"`
	// Gzip selects the .jar.pack.gz form instead of .jar.pack.
	Gzip bool `yaml:"gzip"`
}

// Sign holds signer and keystore generator parameters.
type Sign struct {
	Alias     string `yaml:"alias"`
	Keystore  string `yaml:"keystore"`
	StorePass string `yaml:"storepass"`
	KeyPass   string `yaml:"keypass"`
	StoreType string `yaml:"storetype"`
	SigFile   string `yaml:"sigfile"`
	SigAlg    string `yaml:"sigalg"`
	DigestAlg string `yaml:"digestalg"`
	KeyAlg    string `yaml:"keyalg"`
	KeySize   int    `yaml:"keysize"`
	DName     string `yaml:"dname"`
	// Validity is the certificate lifetime in days.
	Validity int  `yaml:"validity"`
	Verify   bool `yaml:"verify"`
}

// Keystore controls the keystore lifecycle.
type Keystore struct {
	// Delete removes an existing keystore before signing.
	Delete bool `yaml:"delete"`
	// Gen generates a fresh keystore before signing.
	Gen bool `yaml:"gen"`
}

// Publish describes an S3-compatible destination for the archive.
type Publish struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

const (
	// DefaultConfigFilename is the default build configuration file.
	DefaultConfigFilename = "webstart.yaml"
	// DefaultResolvedFilename is the default resolver output.
	DefaultResolvedFilename = "resolved-dependencies.yaml"
	// DefaultWorkDir is the staging directory relative to BaseDir.
	DefaultWorkDir = "target/jnlp"
	// DefaultOutputDir receives the archive relative to BaseDir.
	DefaultOutputDir = "target"
	// DefaultFinalName is used when no final name is configured.
	DefaultFinalName = "bundle"
	// DefaultSpec is the JNLP spec version written when none is configured.
	DefaultSpec = "1.0+"
	// DefaultDescriptor is the descriptor file name.
	DefaultDescriptor = "launch.jnlp"
	// DefaultJ2SEVersion is the runtime version requested by default.
	DefaultJ2SEVersion = "1.5+"
	// ServletCodebase is the placeholder the JNLP servlet replaces.
	ServletCodebase = "$$codebase"

	// DefaultStoreType is the only keystore format the bundled keytool writes.
	DefaultStoreType = "age"
	// DefaultSigAlg is the signature algorithm.
	DefaultSigAlg = "Ed25519"
	// DefaultDigestAlg is the manifest digest algorithm.
	DefaultDigestAlg = "SHA-256"
	// DefaultKeyAlg is the generated key algorithm.
	DefaultKeyAlg = "Ed25519"
	// DefaultValidityDays is the generated certificate lifetime.
	DefaultValidityDays = 365

	// DefaultFilePermissions is used for files written by the packager.
	DefaultFilePermissions = 0o600

	maxSigFileLength = 8
)

var (
	// ErrInvalid wraps every configuration validation failure.
	ErrInvalid = errors.New("invalid configuration")

	errConfigIsNotSet = errors.New("configuration is not set")
)

// Load reads configuration from path, expands environment references in
// secrets, applies defaults and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if cfg.BaseDir == "" {
		cfg.BaseDir = filepath.Dir(path)
	}

	cfg.expandSecrets()

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path in YAML form.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Passwords may be inline, so restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and feature combinations and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	cfg.applyDefaults()

	if strings.TrimSpace(cfg.JNLP.MainClass) == "" {
		return fmt.Errorf("%w: jnlp.main_class must be provided", ErrInvalid)
	}

	if len(cfg.Dependencies) == 0 {
		return fmt.Errorf("%w: at least one dependency must be listed", ErrInvalid)
	}

	for _, dep := range cfg.Dependencies {
		if err := artifact.Spec(dep).Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}

	if err := cfg.validateFeatures(); err != nil {
		return err
	}

	if cfg.Sign != nil {
		if err := cfg.Sign.validate(); err != nil {
			return err
		}
	}

	if cfg.Publish != nil {
		if err := cfg.Publish.validate(); err != nil {
			return err
		}
	}

	return nil
}

// ArchivePath is where the final archive is written.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.OutputDir, c.FinalName+".zip")
}

// CheckArchivePath rejects an archive path inside the working directory,
// since the archive would then be packed into itself.
func (c *Config) CheckArchivePath() error {
	inside, err := archiver.IsWithin(c.WorkDir, c.ArchivePath())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if inside {
		return fmt.Errorf("%w: archive %s is inside work_dir %s", ErrInvalid, c.ArchivePath(), c.WorkDir)
	}

	return nil
}

// IconSearchDir is the conventional icon directory under BaseDir.
func (c *Config) IconSearchDir() string {
	return filepath.Join(c.BaseDir, "src", "jnlp", "icons")
}

func (c *Config) validateFeatures() error {
	if c.Pack.Gzip && !c.Pack.Enabled {
		return fmt.Errorf("%w: pack.gzip requires pack.enabled", ErrInvalid)
	}

	if c.JNLP.Codebase == "" && !c.JNLP.UseJNLPServlet {
		return fmt.Errorf("%w: jnlp.codebase is empty; %s is only substituted by the jnlp servlet (set use_jnlp_servlet)",
			ErrInvalid, ServletCodebase)
	}

	if c.JNLP.Codebase != "" && c.JNLP.Codebase != ServletCodebase {
		if _, err := url.ParseRequestURI(c.JNLP.Codebase); err != nil {
			return fmt.Errorf("%w: invalid codebase: %w", ErrInvalid, err)
		}
	}

	if (c.Keystore.Gen || c.Keystore.Delete) && c.Sign == nil {
		return fmt.Errorf("%w: keystore lifecycle requires a sign section", ErrInvalid)
	}

	if c.Keystore.Delete && !c.Keystore.Gen {
		return fmt.Errorf("%w: keystore.delete without keystore.gen would leave nothing to sign with", ErrInvalid)
	}

	if err := c.CheckArchivePath(); err != nil {
		return err
	}

	for _, info := range c.JNLP.Information {
		for _, icon := range info.Icons {
			if strings.TrimSpace(icon.Href) == "" {
				return fmt.Errorf("%w: icon without href in information %q", ErrInvalid, info.Title)
			}
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.BaseDir == "" {
		c.BaseDir = "."
	}

	c.WorkDir = c.resolve(c.WorkDir, DefaultWorkDir)
	c.OutputDir = c.resolve(c.OutputDir, DefaultOutputDir)
	c.ResolvedFile = c.resolve(c.ResolvedFile, DefaultResolvedFilename)

	if c.Repository != "" {
		c.Repository = c.resolve(c.Repository, "")
	}

	if c.FinalName == "" {
		c.FinalName = DefaultFinalName
	}

	if c.JNLP.Spec == "" {
		c.JNLP.Spec = DefaultSpec
	}

	if c.JNLP.OutputFile == "" {
		c.JNLP.OutputFile = DefaultDescriptor
	}

	if c.JNLP.J2SEVersion == "" {
		c.JNLP.J2SEVersion = DefaultJ2SEVersion
	}

	if c.JNLP.Codebase == "" && c.JNLP.UseJNLPServlet {
		c.JNLP.Codebase = ServletCodebase
	}

	if c.Sign != nil {
		c.Sign.applyDefaults(c.BaseDir)
	}
}

// resolve anchors relative paths at BaseDir.
func (c *Config) resolve(value, fallback string) string {
	if value == "" {
		value = fallback
	}

	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}

	return filepath.Join(c.BaseDir, value)
}

func (c *Config) expandSecrets() {
	if c.Sign != nil {
		c.Sign.StorePass = os.ExpandEnv(c.Sign.StorePass)
		c.Sign.KeyPass = os.ExpandEnv(c.Sign.KeyPass)
	}

	if c.Publish != nil {
		c.Publish.AccessKey = os.ExpandEnv(c.Publish.AccessKey)
		c.Publish.SecretKey = os.ExpandEnv(c.Publish.SecretKey)
	}
}

func (s *Sign) applyDefaults(baseDir string) {
	if s.StoreType == "" {
		s.StoreType = DefaultStoreType
	}

	if s.SigAlg == "" {
		s.SigAlg = DefaultSigAlg
	}

	if s.DigestAlg == "" {
		s.DigestAlg = DefaultDigestAlg
	}

	if s.KeyAlg == "" {
		s.KeyAlg = DefaultKeyAlg
	}

	if s.Validity <= 0 {
		s.Validity = DefaultValidityDays
	}

	if s.KeyPass == "" {
		s.KeyPass = s.StorePass
	}

	if s.SigFile == "" {
		s.SigFile = SigFileFromAlias(s.Alias)
	}

	if s.Keystore != "" && !filepath.IsAbs(s.Keystore) {
		s.Keystore = filepath.Join(baseDir, s.Keystore)
	}
}

func (s *Sign) validate() error {
	switch {
	case s.Alias == "":
		return fmt.Errorf("%w: sign.alias must be provided", ErrInvalid)
	case s.Keystore == "":
		return fmt.Errorf("%w: sign.keystore must be provided", ErrInvalid)
	case s.StorePass == "":
		return fmt.Errorf("%w: sign.storepass must be provided", ErrInvalid)
	case s.StoreType != DefaultStoreType:
		return fmt.Errorf("%w: unsupported sign.storetype %q", ErrInvalid, s.StoreType)
	case !strings.EqualFold(s.SigAlg, DefaultSigAlg):
		return fmt.Errorf("%w: unsupported sign.sigalg %q", ErrInvalid, s.SigAlg)
	case !strings.EqualFold(s.KeyAlg, DefaultKeyAlg):
		return fmt.Errorf("%w: unsupported sign.keyalg %q", ErrInvalid, s.KeyAlg)
	}

	switch strings.ToUpper(s.DigestAlg) {
	case "SHA-256", "BLAKE3":
	default:
		return fmt.Errorf("%w: unsupported sign.digestalg %q", ErrInvalid, s.DigestAlg)
	}

	return nil
}

// SigFileFromAlias derives the signature file base name the way jarsigner
// does: upper-cased alias, at most eight characters, [A-Z0-9_-] only.
func SigFileFromAlias(alias string) string {
	var b strings.Builder

	for _, r := range strings.ToUpper(alias) {
		if b.Len() == maxSigFileLength {
			break
		}

		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	if b.Len() == 0 {
		return "SIGNER"
	}

	return b.String()
}

func (p *Publish) validate() error {
	switch {
	case p.Endpoint == "":
		return fmt.Errorf("%w: publish.endpoint must be provided", ErrInvalid)
	case p.Bucket == "":
		return fmt.Errorf("%w: publish.bucket must be provided", ErrInvalid)
	case strings.Contains(p.Endpoint, "/"):
		return fmt.Errorf("%w: publish.endpoint must be host[:port] without scheme", ErrInvalid)
	}

	return nil
}
