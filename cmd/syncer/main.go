package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	version    = "dev"
	gitCommit  = "unknown"
	buildTime  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "syncer",
	Short:         "Synchronize growi posts and metrics into postgres",
	Long:          `syncer pages through the growi partner API on a schedule and upserts every post and its latest metrics into postgres.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDaemon,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "syncer %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "Git commit: %s\n", gitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "Build time: %s\n", buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newBackfillCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
