package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/danilokhury/termdock/internal/shared/types"
)

var (
	flagCwd  string
	flagCols int
	flagRows int
)

var newCmd = &cobra.Command{
	Use:   "new [profile]",
	Short: "Create a session (claude-code, codex, gemini, or shell)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile := types.ProfileShell
		if len(args) == 1 {
			profile = types.Profile(args[0])
		}
		if !profile.Valid() {
			return fmt.Errorf("unknown profile %q", profile)
		}

		id, err := gatewayClient().Create(cmd.Context(), profile, flagCols, flagRows, flagCwd)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List live sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		live, err := gatewayClient().List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tPROFILE\tCREATED")
		for _, s := range live {
			created := time.Unix(s.CreatedAt, 0).Format("2006-01-02 15:04:05")
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Profile, created)
		}
		return w.Flush()
	},
}

var killCmd = &cobra.Command{
	Use:   "kill <session-id>",
	Short: "Terminate a session's PTY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return gatewayClient().Delete(cmd.Context(), args[0])
	},
}

func init() {
	newCmd.Flags().StringVar(&flagCwd, "cwd", "", "Working directory for the session")
	newCmd.Flags().IntVar(&flagCols, "cols", 0, "Initial columns (defaults to the gateway's)")
	newCmd.Flags().IntVar(&flagRows, "rows", 0, "Initial rows (defaults to the gateway's)")
}
