package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvFile is the name of the dotenv file searched for by Load
const EnvFile = "config.env"

// Config holds everything the CLI needs; it is passed explicitly to constructors.
type Config struct {
	Password string `env:"RH_PASSWORD"`
	Salt     string `env:"SALT"`
	File     string `env:"FILE"`
	Dev      bool   `env:"DEV" envDefault:"false"`

	Bucket         string `env:"S3_BUCKET"`
	DevBucket      string `env:"S3_DEV_BUCKET"`
	Region         string `env:"AWS_REGION" envDefault:"us-east-1"`
	Endpoint       string `env:"S3_ENDPOINT"`
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`
	Prefix         string `env:"S3_PREFIX"`
	Mirror         string `env:"HYPERDRIVE_MIRROR"`

	Ledger string `env:"HYPERDRIVE_LEDGER" envDefault:".hyperdrive"`
	Suffix string `env:"HYPERDRIVE_SUFFIX" envDefault:".encrypted"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// EnvFile is the config.env that was loaded, empty if none was found
	EnvFile string `env:"-"`
}

// Load reads config.env (searched from dir upwards) and the process
// environment into a Config. Process variables take precedence.
func Load(dir string) (Config, error) {
	values := make(map[string]string)

	envFile, err := FindEnvFile(dir, EnvFile)
	if err != nil {
		return Config{}, err
	}
	if envFile != "" {
		fileValues, err := godotenv.Read(envFile)
		if err != nil {
			return Config{}, errors.Join(ErrReadingEnvFile, err)
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}

	for k, v := range env.ToMap(os.Environ()) {
		values[k] = v
	}

	return parse(values, envFile)
}

// LoadFrom parses a Config from the given variables only. Useful in tests.
func LoadFrom(values map[string]string) (Config, error) {
	return parse(values, "")
}

func parse(values map[string]string, envFile string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: values}); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	cfg.EnvFile = envFile
	return cfg, nil
}

// FindEnvFile walks from dir up to the filesystem root looking for name.
// It returns an empty path when no file is found.
func FindEnvFile(dir, name string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		candidate := filepath.Join(abs, name)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", nil
		}
		abs = parent
	}
}

// BucketName returns the bucket for the current environment
func (c Config) BucketName() string {
	if c.Dev {
		return c.DevBucket
	}
	return c.Bucket
}

// RequireSalt returns the configured salt or ErrMissingSalt
func (c Config) RequireSalt() (string, error) {
	if c.Salt == "" {
		return "", ErrMissingSalt
	}
	return c.Salt, nil
}

// RemoteKind reports which blob store the configuration selects:
// "mirror", "s3", or "" when none is configured.
func (c Config) RemoteKind() string {
	switch {
	case c.Mirror != "":
		return "mirror"
	case c.BucketName() != "":
		return "s3"
	default:
		return ""
	}
}

// BlobPath returns the encrypted sibling path for a plaintext path
func (c Config) BlobPath(path string) string {
	return path + c.Suffix
}

// PlainPath strips the blob suffix from path, if present
func (c Config) PlainPath(path string) string {
	return strings.TrimSuffix(path, c.Suffix)
}
