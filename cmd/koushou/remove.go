package main

import (
	"github.com/spf13/cobra"

	"github.com/seiryolinux/koushou/internal/remove"
)

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an installed package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return remove.Package(rootFlags.root, args[0])
	},
}
