package internal

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/dataask/dataask/core/config"
	"github.com/dataask/dataask/core/logger"
)

var envFiles = []string{".env.local", ".env.development", ".env"}

// LoadEnvFiles loads the first .env file found next to the config file,
// in the working directory or next to the binary. Variables already set
// in the environment win.
func LoadEnvFiles(fromDir string) {
	var dirs []string
	if fromDir != "" {
		dirs = append(dirs, fromDir)
	}
	dirs = append(dirs, "")
	if execPath, err := os.Executable(); err == nil {
		if realPath, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = realPath
		}
		dirs = append(dirs, filepath.Dir(execPath))
	}

	for _, dir := range dirs {
		for _, envFile := range envFiles {
			if err := godotenv.Load(filepath.Join(dir, envFile)); err == nil {
				return
			}
		}
	}
}

// LoadConfig loads the .env files next to path and then the config itself.
func LoadConfig(path string) (*config.Config, error) {
	LoadEnvFiles(filepath.Dir(path))
	return config.Load(path)
}

// ResolvePort resolves the port from CLI flag, PORT env var or config file
func ResolvePort(cliPort string, cfg *config.Config) string {
	if cliPort != "" {
		return cliPort
	}
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	if cfg != nil && cfg.Server.Port != "" {
		return cfg.Server.Port
	}
	return config.DefaultPort
}

// ResolveLogLevel resolves the log level from verbose flag, CLI flag,
// config file, or default
func ResolveLogLevel(verbose bool, cliLogLevel int, cfg *config.Config) (int, error) {
	if verbose {
		return logger.LogLevelDebug, nil
	}
	if cliLogLevel > 0 {
		return cliLogLevel, nil
	}
	if cfg != nil {
		return logger.ParseLevel(cfg.Log.Level)
	}
	return logger.LogLevelInfo, nil
}

// ResolveLogTags picks the tag filter from the flag, DATAASK_LOG_TAGS or
// the config file.
func ResolveLogTags(cliTags string, cfg *config.Config) string {
	if cliTags != "" {
		return cliTags
	}
	if tags := os.Getenv("DATAASK_LOG_TAGS"); tags != "" {
		return tags
	}
	if cfg != nil {
		return cfg.Log.Tags
	}
	return ""
}
