package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reapertools/clonereaper/cmd"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "clonereaper",
		Short: "A CLI duplicate file finder",
		Long: `A CLI application that finds byte-identical files in a directory tree
and optionally removes redundant copies under a retention strategy.
`,
	}

	// Parse persistent flags
	rootCmd.PersistentFlags().StringVar(&cmd.FlagConfigFolder, "config-dir", cmd.FlagConfigFolder, "Config folder")
	rootCmd.PersistentFlags().StringVarP(&cmd.FlagConfigFile, "config", "c", cmd.FlagConfigFile, "Config file")
	rootCmd.PersistentFlags().StringVarP(&cmd.FlagLogFile, "log", "l", cmd.FlagLogFile, "Log file")
	rootCmd.PersistentFlags().CountVarP(&cmd.FlagLogLevel, "verbose", "v", "Verbose level")

	rootCmd.PersistentFlags().BoolVar(&cmd.FlagDryRun, "dry-run", false, "Dry run mode")

	rootCmd.AddCommand(cmd.ScanCommand())
	rootCmd.AddCommand(cmd.CleanCommand())
	rootCmd.AddCommand(cmd.UpdateCommand())
	rootCmd.AddCommand(cmd.VersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
