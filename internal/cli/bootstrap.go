package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kuitang/e2ekit/internal/browser"
	"github.com/kuitang/e2ekit/internal/config"
	"github.com/kuitang/e2ekit/internal/obs"
	"github.com/kuitang/e2ekit/internal/session"
)

func init() {
	rootCmd.AddCommand(bootstrapCmd)
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Log in once and capture the session snapshot",
	Long: "Authenticates through the login form with the configured credentials and\n" +
		"writes the browser storage state to the snapshot path. Run before a suite\n" +
		"that depends on pre-authenticated state. Any failure is fatal; a prior\n" +
		"snapshot is left untouched.",
	Args: cobra.NoArgs,
	RunE: runBootstrap,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := obs.WithRunID(context.Background(), obs.NewRunID())

	sess, err := browser.Launch(cfg.Headless())
	if err != nil {
		return err
	}
	defer sess.Close()

	snapshot, err := session.Bootstrap(ctx, sess, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Snapshot written to %s (%d cookies, %d origins)\n",
		cfg.SnapshotPath(), len(snapshot.Cookies), len(snapshot.Origins))
	return nil
}
