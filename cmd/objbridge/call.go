package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	clierrors "github.com/vango-dev/objbridge/internal/errors"
)

func callCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <method> [json-args...]",
		Short: "Call a method on the root object",
		Long: `Connect to a bridge server, call a method on its root object and
print the result as JSON. Each argument is parsed as a JSON value.

Examples:
  objbridge call increment 5
  objbridge call rename '"kitchen"'
  objbridge call echo '{"a": [1, 2]}' true`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseArgs(args[1:])
			if err != nil {
				return err
			}
			return a.call(cmd.Context(), cmd.OutOrStdout(), args[0], params)
		},
	}

	cmd.Flags().StringP("url", "u", "", "Server URL (default from client.url)")
	cmd.Flags().Int("timeout", 0, "Timeout in seconds (default from client.timeout_seconds)")

	return cmd
}

// parseArgs decodes each argument as JSON.
func parseArgs(args []string) ([]any, error) {
	params := make([]any, len(args))
	for i, arg := range args {
		if err := json.Unmarshal([]byte(arg), &params[i]); err != nil {
			return nil, clierrors.New("B032").
				WithDetail(fmt.Sprintf("Argument %d (%s) is not valid JSON: %v", i+1, arg, err))
		}
	}
	return params, nil
}

func (a *app) call(ctx context.Context, out io.Writer, method string, params []any) error {
	s, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if !s.root.HasMethod(method) {
		return clierrors.New("B031").
			WithDetail(fmt.Sprintf("%s has no method %q.", s.root.Type(), method)).
			WithSuggestion("Available methods: " + strings.Join(s.root.Methods(), ", "))
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Client.Timeout())
	defer cancel()
	result, err := s.root.Call(method, params...).Await(callCtx)
	if err != nil {
		return clientError(err)
	}
	fmt.Fprintln(out, formatValue(result))
	return nil
}
