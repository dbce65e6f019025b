package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/MegaGrindStone/streamchat/internal/models"
	"github.com/MegaGrindStone/streamchat/internal/tui"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	appDirName      = "streamchat"
	defaultEndpoint = "http://localhost:5000/chat"
	endpointEnvKey  = "STREAMCHAT_ENDPOINT"
)

type config struct {
	Endpoint             endpointConfig `yaml:"endpoint"`
	RequireTerminalEvent bool           `yaml:"requireTerminalEvent"`
	Markdown             bool           `yaml:"markdown"`
	History              historyConfig  `yaml:"history"`
	LogFile              string         `yaml:"logFile"`
	Labels               models.Labels  `yaml:"labels"`
	Theme                tui.Theme      `yaml:"theme"`
}

// endpointConfig is either a bare URL or a mapping with the request settings.
type endpointConfig struct {
	URL string `yaml:"url"`
	// RequestTimeout bounds the wait for the response headers. The stream itself is not limited.
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	MaxEventSize   int           `yaml:"maxEventSize"`
}

type historyConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func (e *endpointConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.URL = value.Value
		return nil
	}

	type rawEndpointConfig endpointConfig
	var raw rawEndpointConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*e = endpointConfig(raw)
	return nil
}

func (h historyConfig) enabled() bool {
	return h.Enabled == nil || *h.Enabled
}

func appDir() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting user config dir: %w", err)
	}
	return filepath.Join(cfgDir, appDirName), nil
}

func defaultConfigPath() (string, error) {
	dir, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// loadConfig reads the configuration file at path, then applies the .env file of the working
// directory and the environment. A missing file is only an error when the path was given
// explicitly.
func loadConfig(path string, explicit bool) (config, error) {
	cfg := config{
		Endpoint: endpointConfig{URL: defaultEndpoint},
	}

	cfgFile, err := os.Open(path)
	switch {
	case err == nil:
		defer cfgFile.Close()
		if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config{}, fmt.Errorf("error loading .env file: %w", err)
	}
	if endpoint := os.Getenv(endpointEnvKey); endpoint != "" {
		cfg.Endpoint.URL = endpoint
	}

	if err := cfg.applyDefaults(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c *config) applyDefaults() error {
	if c.Endpoint.URL == "" {
		c.Endpoint.URL = defaultEndpoint
	}
	c.Labels = c.Labels.Merge(models.DefaultLabels())

	if c.LogFile != "" && c.History.Path != "" {
		return nil
	}
	dir, err := appDir()
	if err != nil {
		return err
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(dir, "streamchat.log")
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(dir, "history.db")
	}
	return nil
}

func (c config) validate() error {
	u, err := url.Parse(c.Endpoint.URL)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint %q must use http or https", c.Endpoint.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", c.Endpoint.URL)
	}
	if c.Endpoint.RequestTimeout < 0 {
		return fmt.Errorf("requestTimeout must not be negative")
	}
	if c.Endpoint.MaxEventSize < 0 {
		return fmt.Errorf("maxEventSize must not be negative")
	}
	return nil
}
