package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seiryolinux/koushou/internal/pkgbuild"
)

var buildpkgCmd = &cobra.Command{
	Use:   "buildpkg <dir>",
	Short: "Build a .kpkg archive from a package directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputPath, err := pkgbuild.Build(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Built: %s\n", outputPath)
		return nil
	},
}
