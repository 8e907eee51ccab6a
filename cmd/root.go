// Copyright © 2024 The QDAP authors

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "qdap",
	Short: "QDAP: debug adapter for quantum programs",
	Long: `QDAP serves the Debug Adapter Protocol for a reversible quantum program
execution engine. Editors connect to it to step forward and backward through
a program, set breakpoints, inspect classical registers and the quantum state,
and get a root-cause report when an assertion fails.

Getting started:
  qdap serve                   Listen for a DAP client on 127.0.0.1:4711
  qdap serve --stdio           Speak DAP over stdin/stdout
  qdap run file.qasm           Run a program and report failed assertions

Configuration is read from $HOME/.qdap.yaml (or --config) and from
QDAP_* environment variables, e.g. QDAP_PORT or QDAP_LOG_LEVEL.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a process exit code for a failure that has already
// been reported.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.qdap.yaml)")
	flags.String("log-level", "warn", `Log level: "trace", "debug", "info", "warn" or "error"`)
	flags.Bool("log-json", false, "Write log entries as JSON")
	mustBind(flags.Lookup("log-level"), flags.Lookup("log-json"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in home directory with name ".qdap" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".qdap")
	}

	viper.SetEnvPrefix("qdap")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in. Stdout may be the DAP stream,
	// so the notice goes to stderr.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds a logger from the log-level and log-json settings.
func newLogger(v *viper.Viper, w io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)
	name := v.GetString("log-level")
	if name == "" {
		name = "warn"
	}
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return nil, fmt.Errorf("log-level: %w", err)
	}
	log.SetLevel(level)
	if v.GetBool("log-json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log, nil
}
