package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/objbridge/pkg/transport"
)

func watchCmd(a *app) *cobra.Command {
	var events []string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the root object and follow its changes",
		Long: `Connect to a bridge server, print the root object's properties and
then every property change and event until interrupted.

Examples:
  objbridge watch
  objbridge watch --url ws://example.com/ws --event changed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, cmd.OutOrStdout(), events)
		},
	}

	cmd.Flags().StringP("url", "u", "", "Server URL (default from client.url)")
	cmd.Flags().Int("timeout", 0, "Connect timeout in seconds (default from client.timeout_seconds)")
	cmd.Flags().StringSliceVarP(&events, "event", "e", []string{"changed", "reset"}, "Events to listen for")

	return cmd
}

func (a *app) watch(ctx context.Context, out io.Writer, events []string) error {
	s, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	root := s.root
	success(out, "%s (methods: %v)", root, root.Methods())

	props := root.Props()
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	slices.Sort(names)

	// Callbacks run on the transport's read goroutine, one at a time.
	for _, name := range names {
		name := name
		info(out, "%s = %s", name, formatValue(props[name]))
		root.Watch(name, func(v any) {
			info(out, "%s = %s", name, formatValue(v))
		})
	}
	for _, event := range events {
		event := event
		root.On(event, func(payload any) {
			info(out, "event %s %s", event, formatValue(payload))
		})
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-s.done:
		if err == nil || errors.Is(err, transport.ErrConnectionClosed) {
			info(out, "connection closed")
			return nil
		}
		return clientError(err)
	}
}
