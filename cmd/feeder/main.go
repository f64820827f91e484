package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/feeder/internal/config"
	"github.com/alfredjeanlab/feeder/internal/ui"
)

var (
	configFile string
	debug      bool
	jsonOutput bool
	noColor    bool

	logger *slog.Logger
	cfg    *config.Config
	env    *app
)

var rootCmd = &cobra.Command{
	Use:           "feeder <command>",
	Short:         "Build incidents from JSON documents and feed them to XSOAR",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		var err error
		cfg, err = config.Load(configFile)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if env != nil {
			env.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultFile(), "config file (YAML)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "mapping", Title: "Mapping:"},
		&cobra.Group{ID: "library", Title: "Library:"},
		&cobra.Group{ID: "submit", Title: "Submission:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Mapping
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(incidentCmd)
	rootCmd.AddCommand(fieldCmd)

	// Library
	rootCmd.AddCommand(jsonCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(attachmentCmd)

	// Submission
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(bulkCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(backupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if env != nil {
			env.Close()
		}
		os.Exit(1)
	}
}
