package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kuitang/e2ekit/internal/config"
	"github.com/kuitang/e2ekit/internal/errs"
)

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect resolved harness configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		masked := map[string]any{
			"executionMode": cfg.ExecutionMode,
			"browserMode":   cfg.BrowserMode,
			"environment":   cfg.Environment,
			"baseURL":       cfg.BaseURL,
			"loginEmail":    cfg.LoginEmail,
			"loginPassword": mask(cfg.LoginPassword),
			"apiToken":      mask(cfg.APIToken),
			"stateDir":      cfg.StateDir,
			"outcomePath":   cfg.OutcomePath(),
			"snapshotPath":  cfg.SnapshotPath(),
		}

		encoded, err := json.MarshalIndent(masked, "", "  ")
		if err != nil {
			return errs.Wrap(errs.Internal, "encode configuration", err)
		}
		fmt.Println(string(encoded))
		return nil
	},
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "[REDACTED]"
}
