package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seiryolinux/koushou/internal/pkgbuild"
)

var genpkgCmd = &cobra.Command{
	Use:   "genpkg <name>",
	Short: "Scaffold a new package directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := pkgbuild.Generate(args[0]); err != nil {
			return err
		}
		fmt.Printf("Created package template: %s\n", args[0])
		return nil
	},
}
