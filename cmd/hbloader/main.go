// cmd/hbloader/main.go
package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tamzrod/gw-hbloader/internal/config"
)

var (
	log = logrus.New()

	cfgPath string
	logFile string
)

func main() {
	root := &cobra.Command{
		Use:           "hbloader",
		Short:         "Homebrew loader menu and flashing tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (yaml); defaults apply when empty")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")

	root.AddCommand(
		newMenuCmd(),
		newFlashCmd(),
		newGwbinCmd(),
	)

	if err := root.Execute(); err != nil {
		log.Fatalf("hbloader: %v", err)
	}
}

// --------------------
// Load + validate config
// --------------------

func loadConfig() (*config.Config, func(), error) {
	cfg := &config.Config{}
	if cfgPath != "" {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return nil, nil, errors.Wrap(err, "config load failed")
		}
	}

	if err := config.Validate(cfg); err != nil {
		return nil, nil, errors.Wrap(err, "config validation failed")
	}
	config.Normalize(cfg)

	closeLog, err := setupLogging(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closeLog, nil
}

func setupLogging(c config.LogConfig) (func(), error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	log.SetLevel(level)

	if c.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if logFile == "" {
		log.SetOutput(os.Stderr)
		return func() {}, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open log file")
	}
	log.SetOutput(f)
	return func() { _ = f.Close() }, nil
}

// quiet drops log output while the terminal UI owns the screen.
func quiet() {
	if logFile == "" {
		log.SetOutput(io.Discard)
	}
}
