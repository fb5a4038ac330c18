package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperdrive-data/hyperdrive/internal/config"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ".hyperdrive", cfg.Ledger)
	assert.Equal(t, ".encrypted", cfg.Suffix)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.Dev)
	assert.Empty(t, cfg.RemoteKind())
}

func TestLoadFrom_Values(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"RH_PASSWORD":         "hunter2",
		"SALT":                "abcd",
		"FILE":                "data/keys.csv",
		"S3_BUCKET":           "prod-bucket",
		"S3_DEV_BUCKET":       "dev-bucket",
		"S3_FORCE_PATH_STYLE": "true",
	})
	require.NoError(t, err)

	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, "abcd", cfg.Salt)
	assert.Equal(t, "data/keys.csv", cfg.File)
	assert.True(t, cfg.ForcePathStyle)
	assert.Equal(t, "prod-bucket", cfg.BucketName())
	assert.Equal(t, "s3", cfg.RemoteKind())
}

func TestLoadFrom_InvalidBool(t *testing.T) {
	_, err := config.LoadFrom(map[string]string{"DEV": "maybe"})
	require.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestBucketName_Dev(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"DEV":           "true",
		"S3_BUCKET":     "prod-bucket",
		"S3_DEV_BUCKET": "dev-bucket",
	})
	require.NoError(t, err)
	assert.Equal(t, "dev-bucket", cfg.BucketName())
}

func TestRemoteKind_MirrorWins(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"S3_BUCKET":         "prod-bucket",
		"HYPERDRIVE_MIRROR": "/tmp/mirror",
	})
	require.NoError(t, err)
	assert.Equal(t, "mirror", cfg.RemoteKind())
}

func TestRequireSalt(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)

	_, err = cfg.RequireSalt()
	require.ErrorIs(t, err, config.ErrMissingSalt)

	cfg.Salt = "pepper"
	salt, err := cfg.RequireSalt()
	require.NoError(t, err)
	assert.Equal(t, "pepper", salt)
}

func TestBlobPaths(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "secrets/.env.encrypted", cfg.BlobPath("secrets/.env"))
	assert.Equal(t, "secrets/.env", cfg.PlainPath("secrets/.env.encrypted"))
	assert.Equal(t, "secrets/.env", cfg.PlainPath("secrets/.env"))
}

func TestLoad_EnvFileFromParentDirectory(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "scripts", "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	content := "SALT=from-file\nS3_BUCKET=file-bucket\nHYPERDRIVE_SUFFIX=.enc\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, config.EnvFile), []byte(content), 0o600))

	// Process environment overrides the file
	t.Setenv("S3_BUCKET", "env-bucket")

	cfg, err := config.Load(sub)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, config.EnvFile), cfg.EnvFile)
	assert.Equal(t, "from-file", cfg.Salt)
	assert.Equal(t, "env-bucket", cfg.Bucket)
	assert.Equal(t, ".enc", cfg.Suffix)

	// The file must not leak into the process environment
	_, set := os.LookupEnv("HYPERDRIVE_SUFFIX")
	assert.False(t, set)
}

func TestFindEnvFile_NotFound(t *testing.T) {
	dir := t.TempDir()
	path, err := config.FindEnvFile(dir, "definitely-not-here.env")
	require.NoError(t, err)
	assert.Empty(t, path)
}
