package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danilokhury/termdock/internal/state"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect the saved layout snapshot",
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved layout snapshot as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStateStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		snap, err := store.LoadSnapshot(cmd.Context())
		if errors.Is(err, state.ErrNotFound) {
			fmt.Println("no snapshot saved")
			return nil
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

var snapshotClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved layout snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStateStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.ClearSnapshot(cmd.Context())
	},
}

func openStateStore(cmd *cobra.Command) (*state.Store, error) {
	path, err := statePath()
	if err != nil {
		return nil, err
	}
	return state.Open(cmd.Context(), path)
}

func init() {
	snapshotCmd.AddCommand(snapshotShowCmd, snapshotClearCmd)
}
