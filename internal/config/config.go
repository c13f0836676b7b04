// Package config loads tmplstore settings from defaults, an optional YAML
// file, TMPLSTORE_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/styles"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix      = "TMPLSTORE"
	ConfigName     = "tmplstore"
	DefaultDirName = ".tmplstore"

	BackendNative = "native"
	BackendGitCLI = "gitcli"
)

type Author struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Email string `mapstructure:"email" yaml:"email"`
}

type Config struct {
	DataDir              string        `mapstructure:"data_dir" yaml:"data_dir"`
	DefaultBranch        string        `mapstructure:"default_branch" yaml:"default_branch"`
	Backend              string        `mapstructure:"backend" yaml:"backend"`
	Author               Author        `mapstructure:"author" yaml:"author"`
	CacheSize            int           `mapstructure:"cache_size" yaml:"cache_size"`
	ProtectDefaultBranch bool          `mapstructure:"protect_default_branch" yaml:"protect_default_branch"`
	WatchDelay           time.Duration `mapstructure:"watch_delay" yaml:"-"`
	LogLevel             string        `mapstructure:"log_level" yaml:"log_level"`
	// HighlightStyle is the chroma style for "cat" and "diff" on a terminal.
	// Empty disables syntax highlighting.
	HighlightStyle       string        `mapstructure:"highlight_style" yaml:"highlight_style"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// MarshalYAML writes WatchDelay as a duration string ("350ms") that Load can
// read back.
func (c Config) MarshalYAML() (any, error) {
	type plain Config
	return struct {
		plain      `yaml:",inline"`
		WatchDelay string `yaml:"watch_delay"`
	}{plain(c), c.WatchDelay.String()}, nil
}

// DefaultDir is ~/.tmplstore, or .tmplstore when the home directory is
// unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

func Default() Config {
	return Config{
		DataDir:       DefaultDir(),
		DefaultBranch: "main",
		Backend:       BackendNative,
		Author: Author{
			Name:  "tmplstore",
			Email: "tmplstore@localhost",
		},
		CacheSize:            256,
		ProtectDefaultBranch: true,
		WatchDelay:           350 * time.Millisecond,
		LogLevel:             "info",
		HighlightStyle:       "github-dark",
	}
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"data-dir": "data_dir",
	"backend":  "backend",
}

// Load reads the configuration. cfgFile, when set, must exist; otherwise
// ./tmplstore.yaml and ~/.tmplstore/tmplstore.yaml are tried and a missing
// file is not an error. Flags in flags that were set override everything.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	defaults := Default()
	v.SetDefault("data_dir", defaults.DataDir)
	v.SetDefault("default_branch", defaults.DefaultBranch)
	v.SetDefault("backend", defaults.Backend)
	v.SetDefault("author.name", defaults.Author.Name)
	v.SetDefault("author.email", defaults.Author.Email)
	v.SetDefault("cache_size", defaults.CacheSize)
	v.SetDefault("protect_default_branch", defaults.ProtectDefaultBranch)
	v.SetDefault("watch_delay", defaults.WatchDelay)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("highlight_style", defaults.HighlightStyle)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, fmt.Errorf("data_dir must not be empty"))
	}
	if b := strings.TrimSpace(c.DefaultBranch); b == "" || strings.ContainsAny(b, " \t~^:?*[\\") {
		errs = append(errs, fmt.Errorf("default_branch %q is not a valid branch name", c.DefaultBranch))
	}
	switch c.Backend {
	case BackendNative, BackendGitCLI:
	default:
		errs = append(errs, fmt.Errorf("backend %q must be %q or %q", c.Backend, BackendNative, BackendGitCLI))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache_size must not be negative"))
	}
	if c.WatchDelay < 0 {
		errs = append(errs, fmt.Errorf("watch_delay must not be negative"))
	}
	if c.HighlightStyle != "" && styles.Registry[c.HighlightStyle] == nil {
		errs = append(errs, fmt.Errorf("highlight_style %q is not a known chroma style", c.HighlightStyle))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", s, err)
	}
	return level, nil
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	header := []byte("# tmplstore configuration\n# Every key can be overridden with a TMPLSTORE_<KEY> environment variable,\n# e.g. TMPLSTORE_AUTHOR_NAME or TMPLSTORE_DATA_DIR.\n\n")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	_, err = f.Write(append(header, data...))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
