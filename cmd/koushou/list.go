package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/seiryolinux/koushou/internal/pkgdb"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := pkgdb.LoadOrEmpty(pkgdb.Path(rootFlags.root))
		if err != nil {
			return err
		}

		pkgs := db.List()
		if len(pkgs) == 0 {
			fmt.Println("No packages installed.")
			return nil
		}

		sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
		for _, pkg := range pkgs {
			fmt.Printf("%s-%s (%s)\n", pkg.Name, pkg.Version, pkg.Arch)
		}
		return nil
	},
}
