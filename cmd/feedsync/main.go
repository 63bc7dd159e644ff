// Package main is the CLI entrypoint for the feed-to-Jetshop product
// synchronization.
//
// Configuration comes from environment variables (optionally via a
// .env file); the field mapping lives in a YAML document whose path is
// set by MAPPING_FILE or the --mapping flag.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/spf13/cobra"

	"github.com/pellelindal/FEEDJetshop/pkg/core/config"
	"github.com/pellelindal/FEEDJetshop/pkg/core/logging"
	"github.com/pellelindal/FEEDJetshop/pkg/feed"
	"github.com/pellelindal/FEEDJetshop/pkg/jetshop"
	"github.com/pellelindal/FEEDJetshop/pkg/mapping"
	"github.com/pellelindal/FEEDJetshop/pkg/transport"
)

var mappingFile string

var rootCmd = &cobra.Command{
	Use:           "feedsync",
	Short:         "Synchronize feed products into a Jetshop store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&mappingFile, "mapping", "",
		"Path to the mapping YAML document (env: MAPPING_FILE)")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runtime bundles everything a command needs after startup.
type runtime struct {
	cfg     *config.Config
	mapping *mapping.Config
	logger  *slog.Logger
	closer  io.Closer
}

func (r *runtime) Close() {
	if r.closer != nil {
		_ = r.closer.Close()
	}
}

// setup loads the environment configuration, the mapping document and
// the logger shared by all commands.
func setup() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, closer, err := logging.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	path := mappingFile
	if path == "" {
		path = cfg.Sync.MappingFile
	}
	mapCfg, err := mapping.Load(path)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, mapping: mapCfg, logger: logger, closer: closer}, nil
}

// retryConfig builds the shared transport retry policy.
func retryConfig(cfg *config.Config, logger *slog.Logger) transport.RetryConfig {
	return transport.RetryConfig{
		MaxAttempts: cfg.Sync.RetryCount,
		RetryIf:     transport.IsTransient(),
		Backoff:     transport.BackoffExponential,
		BaseDelay:   cfg.Sync.RetryBackoff,
		Logger:      logger,
	}
}

func newFeedClient(rt *runtime) *feed.Client {
	return feed.NewClient(feed.ClientOptions{
		TokenURL:     rt.cfg.Feed.TokenURL,
		ExportURL:    rt.cfg.Feed.ExportURL,
		ClientID:     rt.cfg.Feed.ClientID,
		ClientSecret: rt.cfg.Feed.ClientSecret,
		Timeout:      rt.cfg.Sync.HTTPTimeout,
		Retry:        retryConfig(rt.cfg, rt.logger),
	}, rt.logger)
}

func newJetshopClient(rt *runtime) *jetshop.Client {
	return jetshop.NewClient(jetshop.ClientOptions{
		URL:        rt.cfg.Jetshop.URL,
		Username:   rt.cfg.Jetshop.Username,
		Password:   rt.cfg.Jetshop.Password,
		ShopID:     rt.cfg.Jetshop.ShopID,
		HeaderXML:  rt.cfg.Jetshop.HeaderXML,
		TemplateID: rt.cfg.Jetshop.TemplateID,
		Timeout:    rt.cfg.Sync.HTTPTimeout,
		Retry:      retryConfig(rt.cfg, rt.logger),
	}, rt.logger)
}
