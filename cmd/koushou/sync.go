package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seiryolinux/koushou/internal/mirror"
	"github.com/seiryolinux/koushou/internal/reposync"
	"github.com/seiryolinux/koushou/internal/transaction"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh cached repository databases from the configured mirrors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Syncing repositories...")

		flavor, err := transaction.ReadFlavor(rootFlags.root)
		if err != nil {
			return err
		}
		arch, err := transaction.DetectArch()
		if err != nil {
			return err
		}

		mirrors, err := mirror.LoadDefault()
		if err != nil {
			return err
		}

		results, err := reposync.Sync(context.Background(), nil, rootFlags.root, flavor, arch, mirrors)
		for _, r := range results {
			switch {
			case r.Skipped:
				fmt.Printf("  %s: no mirror has this repo, skipped\n", r.Repo)
			case r.Err != nil:
				fmt.Printf("  %s: failed: %s\n", r.Repo, r.Err)
			default:
				fmt.Printf("  %s: synced\n", r.Repo)
			}
		}
		if err != nil {
			return err
		}

		fmt.Println("Repos synced successfully.")
		return nil
	},
}
