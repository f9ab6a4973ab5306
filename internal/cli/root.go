// Package cli provides the s3ready commands.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kumasuke/s3ready/internal/config"
)

var (
	// Version is set at build time.
	Version = "dev"
	// Commit is set at build time.
	Commit = "unknown"
)

// Exit codes of the run command.
const (
	ExitReady         = 0
	ExitNotReady      = 1
	ExitConfigError   = 2
	ExitInternalError = 3
)

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "s3ready",
		Short:         "s3ready - S3 production readiness validator",
		Long:          "s3ready runs a catalog of tests against an S3-compatible endpoint and produces a weighted production-readiness verdict.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewListCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return exitCode(NewRootCmd().Execute())
}

func exitCode(err error) int {
	if err == nil {
		return ExitReady
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	log.Error().Err(err).Msg("Command failed")
	return ExitConfigError
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
