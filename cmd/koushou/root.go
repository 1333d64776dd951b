// Package main implements the koushou CLI: install, remove, list, sync,
// genpkg, buildpkg (spec.md §6), grounded on
// _examples/clearlinux-mixer-tools/mixer/cmd's root-command-plus-verb-files
// layout and flag-registration style.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/seiryolinux/koushou/internal/kconfig"
	"github.com/seiryolinux/koushou/internal/klog"
)

var rootFlags = struct {
	root    string
	verbose bool
	logFile string
}{}

var persistentFlags *pflag.FlagSet

var settings kconfig.Settings

// RootCmd is the base command when koushou is called without a subcommand.
var RootCmd = &cobra.Command{
	Use:   "koushou",
	Short: "koushou is a source-based package manager",
	Long:  `koushou resolves, fetches, builds, and installs packages from KDL-described manifests.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := kconfig.Load(kconfig.DefaultSettingsPath)
		if err != nil {
			return err
		}
		settings = s

		if rootFlags.verbose {
			klog.SetLevel(klog.LevelDebug)
		}
		if rootFlags.logFile != "" {
			if _, err := klog.SetOutputFilename(rootFlags.logFile); err != nil {
				return err
			}
		}
		return nil
	},
}

// Execute runs the root command. Called once from main.main.
func Execute() {
	defer klog.Close()
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	persistentFlags = RootCmd.PersistentFlags()
	persistentFlags.StringVarP(&rootFlags.root, "root", "r", "/", "Target root directory for install/remove/list operations")
	persistentFlags.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Enable debug logging")
	persistentFlags.StringVar(&rootFlags.logFile, "log-file", "", "Write log output to this file in addition to the console")

	RootCmd.AddCommand(installCmd)
	RootCmd.AddCommand(removeCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(syncCmd)
	RootCmd.AddCommand(genpkgCmd)
	RootCmd.AddCommand(buildpkgCmd)
}
