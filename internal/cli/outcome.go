package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kuitang/e2ekit/internal/config"
	"github.com/kuitang/e2ekit/internal/errs"
	"github.com/kuitang/e2ekit/internal/outcome"
)

func init() {
	outcomeCmd.AddCommand(outcomeGetCmd)
	outcomeCmd.AddCommand(outcomeSetCmd)
	outcomeCmd.AddCommand(outcomeClearCmd)
	rootCmd.AddCommand(outcomeCmd)
}

var outcomeCmd = &cobra.Command{
	Use:   "outcome",
	Short: "Inspect and manage the shared outcome file",
}

func outcomeStore() (*outcome.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return outcome.NewStore(cfg.OutcomePath()), nil
}

var outcomeGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the outcome record, or a single key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := outcomeStore()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			value, ok := store.ReadKey(args[0])
			if !ok {
				return errs.New(errs.IO, fmt.Sprintf("no outcome recorded for %q", args[0]))
			}
			encoded, err := json.Marshal(value)
			if err != nil {
				return errs.Wrap(errs.Internal, "encode outcome value", err)
			}
			fmt.Println(string(encoded))
			return nil
		}

		encoded, err := json.MarshalIndent(store.Read(), "", "  ")
		if err != nil {
			return errs.Wrap(errs.Internal, "encode outcome record", err)
		}
		fmt.Println(string(encoded))
		return nil
	},
}

var outcomeSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Merge one key into the outcome record",
	Long:  "The value is parsed as JSON (true, 42, \"text\"); anything unparseable is stored as a string.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := outcomeStore()
		if err != nil {
			return err
		}

		var value any
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			value = args[1]
		}
		return store.WriteKey(args[0], value)
	},
}

var outcomeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the outcome file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := outcomeStore()
		if err != nil {
			return err
		}
		return store.Clear()
	},
}
