package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ssured/drawbot/internal/persist"
	"github.com/ssured/drawbot/internal/transport"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <subject...>",
		Short: "Print a node from a hub",
		Long: `Connect to a hub, observe a node and print its properties once the hub
has had time to answer.

Example:
  drawbot get drawing/layers
  drawbot get drawing layers --hub ws://hub:8765/ --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Hub, "hub", "", "hub websocket URL (default: ws://<listen>/)")
	cmd.Flags().DurationVar(&opts.Settle, "settle", DefaultSettle, "time to wait for the hub")

	return cmd
}

func runGet(opts *ClientOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	subject, err := parseSubject(args)
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeArgument, "invalid subject", err)
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeConfig, "invalid config", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	// Read only: nothing written locally goes back to the hub.
	s, err := dialHub(ctx, opts.hubURL(cfg), cfg, transport.WithForwardChanges(false))
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeConnect, "failed to connect to hub", err)
	}
	defer s.close()

	h := s.g.Observe(subject)
	defer h.Release()
	if err := s.settle(ctx, opts.Settle); err != nil {
		return fail(out, ExitFailure, ErrCodeConnect, "hub connection failed", err)
	}

	rec := persist.Record{}
	for _, t := range s.g.Tuples(subject) {
		rec[t.Prop] = t.Value
	}
	return out.Success(NodeOutput{Subject: subject, Props: rec})
}
