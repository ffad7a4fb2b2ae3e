package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/manifd/manifd"
)

// Exit codes for the hook integration. Hook frameworks branch on these,
// so they are part of the CLI contract.
const (
	exitFailure   = 1
	exitTransient = 2
	exitIntegrity = 3
	exitTimeout   = 4
	exitLocked    = 5
)

var rootCmd = &cobra.Command{
	Use:           "manifd",
	Short:         "Canonical manifest distribution",
	Long:          "Serve, publish, and synchronize a single canonical manifest document across many repositories.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// One greppable line per failure: kind plus context.
		fmt.Fprintf(os.Stderr, "manifd: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, manifd.ErrCorruptDownload):
		return exitIntegrity
	case errors.Is(err, manifd.ErrTimeout):
		return exitTimeout
	case errors.Is(err, manifd.ErrLocked):
		return exitLocked
	case errors.Is(err, manifd.ErrTransient):
		return exitTransient
	}
	return exitFailure
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/manifd/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "server data directory (default: ~/.local/share/manifd)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MANIFD")
	viper.AutomaticEnv()
	viper.SetDefault("data_dir", defaultDataDir())

	viper.ReadInConfig()
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "manifd")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "manifd")
	}
	return ".manifd"
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "manifd")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "manifd")
	}
	return ".manifd"
}

func getDataDir() string {
	return viper.GetString("data_dir")
}

func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	return config.Build()
}
