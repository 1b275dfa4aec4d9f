package geodair

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// ErrMissingConfig is returned when a required configuration value is absent.
var ErrMissingConfig = errors.New("missing configuration")

// Environment variables read by LoadConfig.
const (
	EnvConfigFile       = "GEODAIR_CONFIG"
	EnvBucket           = "GCS_BUCKET_NAME"
	EnvProject          = "GCP_PROJECT_ID"
	EnvDataset          = "BIGQUERY_DATASET_ID"
	EnvAPIKey           = "GEODAIR_API_KEY"
	EnvAPIBaseURL       = "GEODAIR_API_BASE_URL"
	EnvLocalDir         = "GEODAIR_LOCAL_DIR"
	EnvLogLevel         = "LOG_LEVEL"
	EnvPrettyLogging    = "LOG_PRETTY"
	EnvConcurrency      = "TRANSFORM_CONCURRENCY"
	EnvWriteDisposition = "LOAD_WRITE_DISPOSITION"
	EnvJournalPath      = "LOAD_JOURNAL_PATH"
	EnvSourceEncoding   = "TRANSFORM_SOURCE_ENCODING"
	EnvSlackToken       = "SLACK_TOKEN"
	EnvSlackChannel     = "SLACK_CHANNEL"
)

const (
	defaultDataset          = "geodair_prod"
	defaultAPIBaseURL       = "https://www.geodair.fr/api-ext"
	defaultLogLevel         = "info"
	defaultConcurrency      = 4
	defaultWriteDisposition = "WRITE_APPEND"
)

// Stage is a stage of the pipeline.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageLoad      Stage = "load"
)

// SlackConfig configures Slack notifications. Notifications are off without a token.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// Config is the configuration of the whole pipeline.
type Config struct {
	// Bucket is the Cloud Storage bucket holding raw and transformed files.
	Bucket string `yaml:"bucket"`

	// LocalDir replaces Cloud Storage with a local directory when set.
	LocalDir string `yaml:"local_dir"`

	// Project and Dataset identify the destination BigQuery dataset.
	Project string `yaml:"project"`
	Dataset string `yaml:"dataset"`

	APIKey     string `yaml:"api_key"`
	APIBaseURL string `yaml:"api_base_url"`

	LogLevel      string `yaml:"log_level"`
	PrettyLogging bool   `yaml:"pretty_logging"`

	// Concurrency bounds parallel reads of raw files.
	Concurrency int `yaml:"concurrency"`

	// SourceEncoding is the WHATWG name of the encoding of raw CSV files
	// without byte order mark, such as "windows-1252". Empty means UTF-8.
	SourceEncoding string `yaml:"source_encoding"`

	// WriteDisposition is the BigQuery write disposition of load jobs.
	WriteDisposition string `yaml:"write_disposition"`

	// JournalPath is the SQLite file recording loaded tables. Empty disables the journal.
	JournalPath string `yaml:"journal_path"`

	Slack SlackConfig `yaml:"slack"`
}

// LoadConfig builds a Config from defaults, the optional YAML file at path and
// the environment, in this order of precedence.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Dataset:          defaultDataset,
		APIBaseURL:       defaultAPIBaseURL,
		LogLevel:         defaultLogLevel,
		Concurrency:      defaultConcurrency,
		WriteDisposition: defaultWriteDisposition,
	}

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}

	if path != "" {
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, xerrors.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(body, cfg); err != nil {
			return nil, xerrors.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvBucket, &c.Bucket)
	str(EnvLocalDir, &c.LocalDir)
	str(EnvProject, &c.Project)
	str(EnvDataset, &c.Dataset)
	str(EnvAPIKey, &c.APIKey)
	str(EnvAPIBaseURL, &c.APIBaseURL)
	str(EnvLogLevel, &c.LogLevel)
	str(EnvWriteDisposition, &c.WriteDisposition)
	str(EnvJournalPath, &c.JournalPath)
	str(EnvSourceEncoding, &c.SourceEncoding)
	str(EnvSlackToken, &c.Slack.Token)
	str(EnvSlackChannel, &c.Slack.Channel)

	if v := os.Getenv(EnvPrettyLogging); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return xerrors.Errorf("invalid %s %q: %w", EnvPrettyLogging, v, err)
		}
		c.PrettyLogging = b
	}

	if v := os.Getenv(EnvConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return xerrors.Errorf("invalid %s %q: %w", EnvConcurrency, v, err)
		}
		c.Concurrency = n
	}

	return nil
}

// Validate checks that every value required by the stage is present.
// The returned error wraps ErrMissingConfig and names the missing variable.
func (c *Config) Validate(stage Stage) error {
	missing := func(name string) error {
		return xerrors.Errorf("%w: %s", ErrMissingConfig, name)
	}

	switch stage {
	case StageExtract:
		if c.Bucket == "" && c.LocalDir == "" {
			return missing(EnvBucket)
		}
		if c.APIKey == "" {
			return missing(EnvAPIKey)
		}
	case StageTransform:
		if c.Bucket == "" && c.LocalDir == "" {
			return missing(EnvBucket)
		}
		if _, err := c.Encoding(); err != nil {
			return err
		}
	case StageLoad:
		if c.Bucket == "" {
			return missing(EnvBucket)
		}
		if c.Project == "" {
			return missing(EnvProject)
		}
		if c.Dataset == "" {
			return missing(EnvDataset)
		}
		switch c.WriteDisposition {
		case "WRITE_APPEND", "WRITE_TRUNCATE", "WRITE_EMPTY":
		default:
			return xerrors.Errorf("invalid %s %q", EnvWriteDisposition, c.WriteDisposition)
		}
	default:
		return xerrors.Errorf("unknown stage %q", stage)
	}

	if c.Concurrency < 1 {
		return xerrors.Errorf("invalid %s %d: must be positive", EnvConcurrency, c.Concurrency)
	}

	return nil
}

// Encoding returns the encoding of raw CSV files, or nil for UTF-8.
func (c *Config) Encoding() (encoding.Encoding, error) {
	if c.SourceEncoding == "" {
		return nil, nil
	}

	enc, err := htmlindex.Get(c.SourceEncoding)
	if err != nil {
		return nil, xerrors.Errorf("invalid %s %q: %w", EnvSourceEncoding, c.SourceEncoding, err)
	}

	return enc, nil
}
