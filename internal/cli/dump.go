package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ssured/drawbot/internal/config"
	"github.com/ssured/drawbot/internal/persist"
)

var errMemoryBackend = errors.New("the memory backend keeps no data between runs")

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <subject...>",
		Short: "Print a node straight from the backend",
		Long: `Read a node from the configured persistence backend without a hub.
Stop the hub first when it uses the badger backend, which allows a single
process only.

Example:
  drawbot dump drawing --config drawbot.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runDump(opts *RootOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	subject, err := parseSubject(args)
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeArgument, "invalid subject", err)
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeConfig, "invalid config", err)
	}
	if cfg.Backend == config.BackendMemory {
		return fail(out, ExitCommandError, ErrCodeConfig, "nothing to dump", errMemoryBackend)
	}

	backend, err := openBackend(cfg)
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeBackend, "failed to open backend", err)
	}
	defer backend.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rec, err := persist.Load(ctx, backend, subject)
	if err != nil {
		return fail(out, ExitFailure, ErrCodeBackend, "failed to read node", err)
	}
	return out.Success(NodeOutput{Subject: subject, Props: rec})
}
