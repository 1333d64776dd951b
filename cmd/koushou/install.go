package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seiryolinux/koushou/internal/install"
	"github.com/seiryolinux/koushou/internal/transaction"
)

var installFlags = struct {
	progress bool
}{}

var installCmd = &cobra.Command{
	Use:   "install <name|path.kpkg>...",
	Short: "Install a local .kpkg archive, or resolve, fetch, and install one or more packages by name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 && isLocalKpkg(args[0]) {
			return install.Local(args[0], rootFlags.root)
		}
		return transaction.Install(context.Background(), rootFlags.root, args, transaction.Options{
			ShowProgress: installFlags.progress,
		})
	},
}

// isLocalKpkg reports whether arg is a path to a .kpkg archive rather than
// a package name to resolve (spec.md §6: "path with .kpkg extension → local
// install; else name → resolve+fetch+install").
func isLocalKpkg(arg string) bool {
	return strings.HasSuffix(arg, ".kpkg")
}

func init() {
	installCmd.Flags().BoolVar(&installFlags.progress, "progress", true, "Show a download progress bar")
}
