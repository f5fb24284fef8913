package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slipstream/slskbridge/internal/config"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "slskbridge",
		Short: "Download client bridge for slskd",
		Long: `slskbridge presents the transfers of an slskd (Soulseek daemon) instance
as a download client queue: one release per user directory, with status,
progress and removal.`,
		SilenceUsage: true,
	}
	rootCmd.Version = config.Version
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./config.yaml)")

	rootCmd.AddCommand(RunServeCommand(&configPath))
	rootCmd.AddCommand(RunQueueCommand(&configPath))
	rootCmd.AddCommand(RunSearchCommand(&configPath))
	rootCmd.AddCommand(RunTestCommand(&configPath))
	rootCmd.AddCommand(RunVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of slskbridge",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(config.Version)
		},
	}
}
