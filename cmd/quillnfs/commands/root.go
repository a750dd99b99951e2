// Package commands defines the quillnfs CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "quillnfs",
	Short: "An embeddable NFSv3 server",
	Long: `quillnfs serves a pluggable virtual file system over NFSv3.

A standard NFS client mounts the export over TCP; MOUNT v3 and a faked
PORTMAP v2 are answered on the same port, so no system portmapper is
needed:

  mount -t nfs -o nolock,vers=3,tcp,port=11111,mountport=11111 localhost:/export /mnt`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Printf("quillnfs %s (commit %s, built %s)\n", version, commit, date)
	},
}
