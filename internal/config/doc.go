// Package config loads hyperdrive configuration from the process environment
// and an optional config.env file.
//
// It wraps `github.com/joho/godotenv` and `github.com/caarlos0/env/v11`:
// the env file is read into a map (the process environment is never
// modified), real environment variables are overlaid on top of it, and the
// result is parsed into Config using field tags.
//
// The env file is looked up from the given directory upwards, so a single
// config.env at the repository root serves every subdirectory.
//
// There is no package-level state. Load returns a value that callers pass
// explicitly to the components that need it.
package config
