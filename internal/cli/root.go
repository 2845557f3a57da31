package cli

import (
	"fmt"
	"io"

	"github.com/buemura/redirhunt/internal/config"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configFlag  string
	verboseFlag bool
	quietFlag   bool
	noColorFlag bool
)

// appConfig holds the loaded configuration, available after PersistentPreRunE.
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "redirhunt",
	Short: "redirhunt — open redirect scanner",
	Long: `redirhunt probes a single web application for open redirect
vulnerabilities by injecting attacker-chosen destinations into
redirect-style query parameters and following what the server does.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var (
			cfg *config.Config
			err error
		)
		if configFlag != "" {
			cfg, err = config.LoadFromFile(configFlag)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		config.ApplyFlags(cfg, cmd)
		if noColorFlag {
			color.NoColor = true
		}

		appConfig = cfg
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default "+config.ConfigFilePath()+")")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "debug logging (retries, back-offs, state changes)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "only log warnings and errors")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger(w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case verboseFlag:
		level = zerolog.DebugLevel
	case quietFlag:
		level = zerolog.WarnLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    color.NoColor,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Logger()
}
