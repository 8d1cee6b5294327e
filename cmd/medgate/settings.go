package main

import (
	"os"

	"github.com/spf13/cobra"

	"medgate/internal/config"
)

// Environment variables providing flag defaults.
const (
	envConfig   = "MEDGATE_CONFIG"
	envAddr     = "MEDGATE_ADDR"
	envLogLevel = "MEDGATE_LOG_LEVEL"
)

// addOverrideFlags registers the flags that override config file values.
func addOverrideFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.String("addr", os.Getenv(envAddr), "HTTP listen address, e.g. :5000")
	fs.String("log-level", os.Getenv(envLogLevel), "Log level: debug, info, warn, error")
	fs.String("assets-dir", "", "Directory or object storage URL holding tokenizer.json")
	fs.String("runtime-url", "", "Base URL of the model runtime server")
}

// loadSettings reads the config file named by --config, layers flag and
// environment overrides on top, and fills defaults.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	override := func(name string, dst *string) {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			return
		}
		if v := f.Value.String(); v != "" {
			*dst = v
		}
	}
	override("addr", &cfg.Addr)
	override("log-level", &cfg.LogLevel)
	override("assets-dir", &cfg.AssetsDir)
	override("runtime-url", &cfg.RuntimeURL)
	cfg.ApplyDefaults()
	return cfg, nil
}
