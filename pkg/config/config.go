package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
)

const (
	// DefaultChunkSize is the streaming read size used for hashing (64 KiB).
	DefaultChunkSize = 65536

	DefaultHashAlgo    = "sha256"
	DefaultMinFileSize = int64(1)
)

type Configuration struct {
	Scan          ScanConfig          `koanf:"scan"`
	Retention     RetentionConfig     `koanf:"retention"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

type ScanConfig struct {
	Directory      string   `koanf:"directory"`
	MinFileSize    int64    `koanf:"min_file_size"`
	HashAlgo       string   `koanf:"hash_algo"`
	PartialHash    bool     `koanf:"partial_hash"`
	CheckHardlinks bool     `koanf:"check_hardlinks"`
	Workers        int      `koanf:"workers"`
	Filters        []string `koanf:"filters"`
	IgnorePatterns []string `koanf:"ignore_patterns"`
}

type RetentionConfig struct {
	Strategy string `koanf:"strategy"`
}

type NotificationsConfig struct {
	WebhookURL   string `koanf:"webhook_url"`
	Detailed     bool   `koanf:"detailed"`
	SkipEmptyRun bool   `koanf:"skip_empty_run"`
}

var Config *Configuration

// DefaultWorkers returns the default hashing worker count, half the available
// hardware parallelism.
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()/2)
}

// BoundWorkers clamps a requested worker count to 1..NumCPU, substituting the
// default when the request is zero.
func BoundWorkers(requested int) int {
	if requested <= 0 {
		return DefaultWorkers()
	}
	return min(requested, runtime.NumCPU())
}

// Init loads configuration defaults and, when present, the YAML config file at
// configFilePath. A missing config file is not an error; every option has a
// usable default or is supplied via flags.
func Init(configFilePath string) error {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"scan.min_file_size":   DefaultMinFileSize,
		"scan.hash_algo":       DefaultHashAlgo,
		"scan.partial_hash":    false,
		"scan.check_hardlinks": false,
		"scan.workers":         DefaultWorkers(),
		"retention.strategy":   "first",
	}

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return errors.Wrap(err, "load config defaults")
	}

	if configFilePath != "" {
		if _, err := os.Stat(configFilePath); err == nil {
			if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
				return errors.Wrapf(err, "load config file: %s", configFilePath)
			}
		} else if !os.IsNotExist(err) {
			return errors.Wrapf(err, "stat config file: %s", configFilePath)
		}
	}

	cfg := &Configuration{}
	if err := k.Unmarshal("", cfg); err != nil {
		return errors.Wrap(err, "unmarshal config")
	}

	cfg.Scan.Workers = BoundWorkers(cfg.Scan.Workers)

	Config = cfg
	return nil
}

// GetDefaultConfigDirectory returns the default config directory for the app,
// preferring the OS user config dir and falling back to the working directory.
func GetDefaultConfigDirectory(app string, configFile string) string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, app)
	}

	if dir, err := os.Getwd(); err == nil {
		return dir
	}

	return "."
}
