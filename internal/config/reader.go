package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Reader loads the application config.
type Reader interface {
	Read() (*Config, error)
}

// NewReader returns a FileReader when path is set and an EnvReader
// otherwise.
func NewReader(path string) Reader {
	if path != "" {
		return NewFileReader(path)
	}
	return NewEnvReader()
}

// EnvReader reads the config from environment variables only.
type EnvReader struct{}

func NewEnvReader() EnvReader {
	return EnvReader{}
}

func (EnvReader) Read() (*Config, error) {
	cfg := new(Config)
	err := cleanenv.ReadEnv(cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// FileReader reads a dotenv file, named with a .env extension. Keys
// set in the file override the environment; the rest fall back to
// environment variables and defaults.
type FileReader struct {
	path string
}

func NewFileReader(path string) FileReader {
	return FileReader{path: path}
}

func (r FileReader) Read() (*Config, error) {
	cfg := new(Config)
	err := cleanenv.ReadConfig(r.path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", r.path, err)
	}

	return cfg, nil
}
