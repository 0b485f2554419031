// Command siteserver serves the agency website API, the admin API and
// the Prometheus metrics endpoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/psantana5/agencysite/internal/config"
	"github.com/psantana5/agencysite/pkg/content"
	"github.com/psantana5/agencysite/pkg/logging"
	"github.com/psantana5/agencysite/pkg/store"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "siteserver",
	Short:         "Agency website content service",
	Long:          `siteserver serves the public site API with built-in content fallbacks, the admin API, lead and newsletter forms, the chat widget proxy and outbound webhooks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./siteserver.yaml or /etc/agencysite/siteserver.yaml)")
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func newLogger(cfg *config.Config, subComponent string) (*logging.Logger, error) {
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.ToFile {
		return logging.NewFileLogger("siteserver", subComponent, level, cfg.Logging.JSON)
	}
	return logging.NewLogger(level, cfg.Logging.JSON), nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	st, err := store.NewStore(store.Config{
		Type:            cfg.Database.Type,
		DSN:             cfg.Database.DSN,
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Database.Type, err)
	}
	return st, nil
}

// loadBundle returns the configured override bundle, or the built-in one
func loadBundle(cfg *config.Config) (*content.Bundle, error) {
	if cfg.Content.DefaultsFile == "" {
		return content.DefaultBundle()
	}
	return content.LoadBundleFile(cfg.Content.DefaultsFile)
}
