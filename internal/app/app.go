package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/devhack/hacklet/internal/config"
)

// App encapsulates the application's dependencies, configuration and
// lifecycle for a single command invocation.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *Config
	file   *config.Config
}

// NewApp is the constructor for the main application. A failure to load
// the configuration file is a fatal startup error and panics; the
// entrypoint recovers and turns it into a clean exit.
func NewApp(outW io.Writer, appCfg *Config) *App {
	logger := newLogger(appCfg.LogLevel, appCfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	file, err := config.Load(appCfg.ConfigPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration loaded.", "path", appCfg.ConfigPath, "devices", len(file.Devices))

	return &App{
		outW:   outW,
		logger: logger,
		cfg:    appCfg,
		file:   file,
	}
}

// journalPath resolves where the journal lives: config file first, then
// the home directory dotfile.
func (a *App) journalPath() (string, error) {
	if a.file.JournalPath != "" {
		return a.file.JournalPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".hacklet.journal"), nil
}

// DefaultConfigPath resolves the default location of the config file.
// A resolution failure just disables the file; the defaults still apply.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".hacklet.hcl")
}
