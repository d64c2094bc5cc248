// Package config loads sqlseq.toml (or .json/.yaml) and resolves connection
// secrets from dotenv files.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/sqlseq/sqlseq/internal/driver"
	"gopkg.in/yaml.v3"
)

// ErrNoConnections is returned by commands that need at least one connection.
var ErrNoConnections = errors.New("no connections configured")

// FileNames are the configuration files looked for, in order of preference.
var FileNames = []string{"sqlseq.toml", "sqlseq.json", "sqlseq.yaml", "sqlseq.yml"}

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a string like \"10s\"", node.Line)
	}
	return d.UnmarshalText([]byte(node.Value))
}

type ApplicationConfig struct {
	InputDirectory   string `toml:"input_directory" json:"input_directory" yaml:"input_directory"`
	OutputDirectory  string `toml:"output_directory" json:"output_directory" yaml:"output_directory"`
	StagingDirectory string `toml:"staging_directory" json:"staging_directory" yaml:"staging_directory"`
	LogFile          string `toml:"log_file" json:"log_file" yaml:"log_file"`
}

type PoolConfig struct {
	Size              int      `toml:"size" json:"size" yaml:"size"`
	ConnectionTimeout Duration `toml:"connection_timeout" json:"connection_timeout" yaml:"connection_timeout"`
	IdleTimeout       Duration `toml:"idle_timeout" json:"idle_timeout" yaml:"idle_timeout"`
}

type ExecutorConfig struct {
	UniqueSuffix           string `toml:"unique_suffix" json:"unique_suffix" yaml:"unique_suffix"`
	IncludeSequenceResults bool   `toml:"include_sequence_results" json:"include_sequence_results" yaml:"include_sequence_results"`
	KeepStaging            bool   `toml:"keep_staging" json:"keep_staging" yaml:"keep_staging"`
	RemovePartialArtifact  bool   `toml:"remove_partial_artifact" json:"remove_partial_artifact" yaml:"remove_partial_artifact"`
	SlugFileNames          bool   `toml:"slug_file_names" json:"slug_file_names" yaml:"slug_file_names"`
	ValidateSQL            bool   `toml:"validate_sql" json:"validate_sql" yaml:"validate_sql"`
}

// ConnectionConfig is one [connections.<id>] table. String fields may
// reference ${VARS} resolved from dotenv files and the environment.
type ConnectionConfig struct {
	URL        string            `toml:"url" json:"url" yaml:"url"`
	Driver     string            `toml:"driver" json:"driver" yaml:"driver"`
	User       string            `toml:"user" json:"user" yaml:"user"`
	Password   string            `toml:"password" json:"password" yaml:"password"`
	Databases  []string          `toml:"databases" json:"databases" yaml:"databases"`
	Properties map[string]string `toml:"properties" json:"properties" yaml:"properties"`
}

// PublishConfig configures the optional S3-compatible artifact upload.
type PublishConfig struct {
	Endpoint  string `toml:"endpoint" json:"endpoint" yaml:"endpoint"`
	Bucket    string `toml:"bucket" json:"bucket" yaml:"bucket"`
	Prefix    string `toml:"prefix" json:"prefix" yaml:"prefix"`
	AccessKey string `toml:"access_key" json:"access_key" yaml:"access_key"`
	SecretKey string `toml:"secret_key" json:"secret_key" yaml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl" json:"use_ssl" yaml:"use_ssl"`
	Region    string `toml:"region" json:"region" yaml:"region"`
}

// Enabled reports whether publishing is configured.
func (p PublishConfig) Enabled() bool {
	return p.Endpoint != "" && p.Bucket != ""
}

type Config struct {
	Application ApplicationConfig           `toml:"application" json:"application" yaml:"application"`
	Pool        PoolConfig                  `toml:"pool" json:"pool" yaml:"pool"`
	Executor    ExecutorConfig              `toml:"executor" json:"executor" yaml:"executor"`
	Connections map[string]ConnectionConfig `toml:"connections" json:"connections" yaml:"connections"`
	Publish     PublishConfig               `toml:"publish" json:"publish" yaml:"publish"`

	ConfigFilePath string `toml:"-" json:"-" yaml:"-"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			InputDirectory:   "scripts",
			OutputDirectory:  "results",
			StagingDirectory: "staging",
		},
		Pool: PoolConfig{
			Size:              1,
			ConnectionTimeout: Duration{10 * time.Second},
			IdleTimeout:       Duration{5 * time.Minute},
		},
		Executor: ExecutorConfig{
			UniqueSuffix: SuffixTimestamp,
		},
		Publish: PublishConfig{
			UseSSL: true,
		},
	}
}

// Load reads the file at path, or discovers one from the working directory
// when path is empty.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	return LoadConfig()
}

// LoadConfig walks up from the working directory looking for a
// configuration file, stopping at the first project root. Without a file
// the defaults are returned.
func LoadConfig() (*Config, error) {
	startDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	dir := startDir
	for {
		for _, name := range FileNames {
			configPath := filepath.Join(dir, name)
			if info, err := os.Stat(configPath); err == nil && !info.IsDir() {
				return LoadFile(configPath)
			}
		}

		if isProjectRoot(dir) {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return Default(), nil
}

// LoadFile reads and validates one configuration file. The format follows
// the file extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		if err := decode(path, data, config); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	config.ConfigFilePath = abs

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

func decode(path string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(config)
	case ".json":
		if err := validateJSON(data); err != nil {
			return err
		}
		return json.Unmarshal(data, config)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		return dec.Decode(config)
	default:
		return fmt.Errorf("unsupported configuration format %q", filepath.Ext(path))
	}
}

// Validate checks values the decoders cannot.
func (c *Config) Validate() error {
	var errs []error
	if c.Pool.Size < 1 {
		errs = append(errs, fmt.Errorf("pool.size must be >= 1, got %d", c.Pool.Size))
	}
	if c.Pool.ConnectionTimeout.Duration <= 0 {
		errs = append(errs, errors.New("pool.connection_timeout must be positive"))
	}
	if c.Pool.IdleTimeout.Duration <= 0 {
		errs = append(errs, errors.New("pool.idle_timeout must be positive"))
	}
	for id, conn := range c.Connections {
		if strings.TrimSpace(conn.URL) == "" {
			errs = append(errs, fmt.Errorf("connections.%s.url is required", id))
		}
		if len(conn.Databases) == 0 {
			errs = append(errs, fmt.Errorf("connections.%s.databases must list at least one database", id))
		}
		if conn.Driver != "" {
			if _, err := driver.ParseType(conn.Driver); err != nil {
				errs = append(errs, fmt.Errorf("connections.%s.driver: %w", id, err))
			}
		}
	}
	if c.Publish.Endpoint != "" && c.Publish.Bucket == "" {
		errs = append(errs, errors.New("publish.bucket is required when publish.endpoint is set"))
	}
	return errors.Join(errs...)
}

// ConfigDir returns the directory holding the configuration file, or the
// working directory when no file was loaded.
func (c *Config) ConfigDir() string {
	if c.ConfigFilePath != "" {
		return filepath.Dir(c.ConfigFilePath)
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

func (c *Config) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ConfigDir(), p)
}

// InputDir is where scripts are looked up.
func (c *Config) InputDir() string { return c.resolvePath(c.Application.InputDirectory) }

// OutputDir is where workbooks are written.
func (c *Config) OutputDir() string { return c.resolvePath(c.Application.OutputDirectory) }

// StagingDir is where staging SQLite files are created.
func (c *Config) StagingDir() string { return c.resolvePath(c.Application.StagingDirectory) }

// LogFile is the optional JSON log destination.
func (c *Config) LogFile() string { return c.resolvePath(c.Application.LogFile) }

// DescribeError expands TOML decode errors with the offending line and
// position. Other errors are returned as-is.
func DescribeError(err error) string {
	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		row, col := decodeErr.Position()
		return fmt.Sprintf("%s\n(line %d, column %d)", decodeErr.String(), row, col)
	}
	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) {
		return strictErr.String()
	}
	return err.Error()
}

// isProjectRoot checks if the directory is a project root based on common markers
func isProjectRoot(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err == nil {
		return true
	}
	return false
}
