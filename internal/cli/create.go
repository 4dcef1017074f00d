package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssured/drawbot/internal/model"
	"github.com/ssured/drawbot/internal/persist"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	ClientOptions
	Value string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{ClientOptions: ClientOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "create <parent...>",
		Short: "Add a new child node on a hub",
		Long: `Connect to a hub, create a child of the parent subject under a fresh
name and write the properties of a JSON object to it in one state. The new
node stays observed for keep_alive so the hub receives every property.

Example:
  drawbot create drawing/layers --value '{"name": "ink", "visible": true}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Hub, "hub", "", "hub websocket URL (default: ws://<listen>/)")
	cmd.Flags().DurationVar(&opts.Settle, "settle", DefaultSettle, "time to wait for the hub")
	cmd.Flags().StringVar(&opts.Value, "value", "{}", "JSON object with the initial properties")

	return cmd
}

func runCreate(opts *CreateOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	parent, err := parseSubject(args)
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeArgument, "invalid subject", err)
	}
	entry, err := parseEntry(opts.Value)
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeArgument, "invalid value", err)
	}
	fields, ok := entry.(map[string]any)
	if !ok {
		return fail(out, ExitCommandError, ErrCodeArgument, "invalid value", fmt.Errorf("value must be a JSON object"))
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeConfig, "invalid config", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := dialHub(ctx, opts.hubURL(cfg), cfg)
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeConnect, "failed to connect to hub", err)
	}
	defer s.close()

	m, err := model.Create(ctx, s.g, func(m model.Model) model.Model { return m }, parent,
		func(m model.Model) error {
			if len(fields) == 0 {
				return nil
			}
			return s.g.Assign(m.Subject(), fields)
		}, cfg.KeepAlive)
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeArgument, "write rejected", err)
	}
	if err := s.settle(ctx, opts.Settle); err != nil {
		return fail(out, ExitFailure, ErrCodeConnect, "hub connection failed", err)
	}

	rec := persist.Record{}
	for _, t := range model.Tuples(m) {
		rec[t.Prop] = t.Value
	}
	return out.Success(NodeOutput{Subject: m.Subject(), Props: rec})
}
