// Package config layers the runtime configuration: built-in defaults,
// an optional TOML file, an optional YAML file, then environment
// variables, each overriding the last via viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the fully-resolved runtime configuration for a probe
// invocation.
type Config struct {
	MaxPages      int
	MaxRetries    int
	RunDeadline   time.Duration
	StorePath     string
	StoreBackend  string
	ArtifactsRoot string

	HTTPAddr string
	JWTKey   string

	TelegramToken  string
	TelegramChatID int64

	LogLevel string
}

func defaults() *viper.Viper {
	v := viper.New()
	v.SetDefault("max_pages", 50)
	v.SetDefault("max_retries", 3)
	v.SetDefault("run_deadline", "30m")
	v.SetDefault("store_path", ".probe/runs.json")
	v.SetDefault("store_backend", "json")
	v.SetDefault("artifacts_root", ".probe/artifacts")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	return v
}

// Load resolves Config from, in increasing precedence: built-in
// defaults, tomlPath (if non-empty and present), yamlPath (if
// non-empty and present), then PROBE_-prefixed environment variables.
// A missing configFile is not an error; a malformed one is.
func Load(tomlPath, yamlPath string) (*Config, error) {
	v := defaults()
	v.SetEnvPrefix("probe")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if tomlPath != "" {
		layer, err := decodeTOMLFile(tomlPath)
		if err != nil {
			return nil, fmt.Errorf("loading toml config %s: %w", tomlPath, err)
		}
		if layer != nil {
			if err := v.MergeConfigMap(layer); err != nil {
				return nil, fmt.Errorf("merging toml config %s: %w", tomlPath, err)
			}
		}
	}
	if yamlPath != "" {
		layer, err := decodeYAMLFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("loading yaml config %s: %w", yamlPath, err)
		}
		if layer != nil {
			if err := v.MergeConfigMap(layer); err != nil {
				return nil, fmt.Errorf("merging yaml config %s: %w", yamlPath, err)
			}
		}
	}

	deadline, err := time.ParseDuration(v.GetString("run_deadline"))
	if err != nil {
		return nil, fmt.Errorf("parsing run_deadline %q: %w", v.GetString("run_deadline"), err)
	}

	return &Config{
		MaxPages:       v.GetInt("max_pages"),
		MaxRetries:     v.GetInt("max_retries"),
		RunDeadline:    deadline,
		StorePath:      v.GetString("store_path"),
		StoreBackend:   v.GetString("store_backend"),
		ArtifactsRoot:  v.GetString("artifacts_root"),
		HTTPAddr:       v.GetString("http_addr"),
		JWTKey:         v.GetString("jwt_key"),
		TelegramToken:  v.GetString("telegram_token"),
		TelegramChatID: v.GetInt64("telegram_chat_id"),
		LogLevel:       v.GetString("log_level"),
	}, nil
}

// decodeTOMLFile returns nil, nil when path does not exist: a missing
// layer is not an error, only a malformed one.
func decodeTOMLFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var layer map[string]any
	if _, err := toml.Decode(string(data), &layer); err != nil {
		return nil, err
	}
	return layer, nil
}

func decodeYAMLFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var layer map[string]any
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return nil, err
	}
	return layer, nil
}
