package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danilokhury/termdock/internal/console"
	"github.com/danilokhury/termdock/internal/infrastructure/logging"
	"github.com/danilokhury/termdock/internal/transport"
)

var attachCmd = &cobra.Command{
	Use:   "attach <session-id>",
	Short: "Attach the current terminal to a session (Ctrl-] detaches)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		con, err := console.New()
		if err != nil {
			return err
		}
		defer con.Dispose()

		exited := make(chan string, 1)
		binding, err := transport.Open(cmd.Context(), gatewayClient().SocketURL(id), id, con, transport.Events{
			OnExit: func(reason string) {
				select {
				case exited <- reason:
				default:
				}
			},
		}, transport.Options{Logger: logging.NewNop()})
		if err != nil {
			return err
		}

		con.OnDetach(func() { binding.Close() })
		if err := con.Start(); err != nil {
			binding.Close()
			return err
		}

		<-binding.Done()
		con.Dispose()

		select {
		case reason := <-exited:
			fmt.Printf("\nsession ended: %s\n", reason)
		default:
			fmt.Println("\ndetached, session still running")
		}
		return nil
	},
}
