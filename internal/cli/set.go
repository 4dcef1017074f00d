package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssured/drawbot/internal/persist"
	"github.com/ssured/drawbot/internal/value"
)

// SetOptions holds flags for the set command.
type SetOptions struct {
	ClientOptions
	Prop  string
	Value string
	Ref   string
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetOptions{ClientOptions: ClientOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "set <subject...>",
		Short: "Write one property on a hub",
		Long: `Connect to a hub, write one property of a node and wait for the write to
be sent. The value is JSON; --ref writes a reference to another subject
instead.

Example:
  drawbot set drawing --prop title --value '"sketch"'
  drawbot set drawing/pen --prop width --value 0.5
  drawbot set drawing --prop layer --ref drawing/layers/1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Hub, "hub", "", "hub websocket URL (default: ws://<listen>/)")
	cmd.Flags().DurationVar(&opts.Settle, "settle", DefaultSettle, "time to wait for the hub")
	cmd.Flags().StringVar(&opts.Prop, "prop", "", "property to write (required)")
	cmd.Flags().StringVar(&opts.Value, "value", "", "JSON value to write")
	cmd.Flags().StringVar(&opts.Ref, "ref", "", "subject to reference, segments separated by /")
	_ = cmd.MarkFlagRequired("prop")
	cmd.MarkFlagsMutuallyExclusive("value", "ref")
	cmd.MarkFlagsOneRequired("value", "ref")

	return cmd
}

// parseEntry decodes a JSON command-line value into an entry with NFC
// normalized text.
func parseEntry(raw string) (value.Entry, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("value is not JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("value has trailing data")
	}
	e, err := value.Normalize(v)
	if err != nil {
		return nil, err
	}
	return nfc(e), nil
}

func runSet(opts *SetOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	subject, err := parseSubject(args)
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeArgument, "invalid subject", err)
	}
	var entry value.Entry
	if opts.Ref != "" {
		target, err := parseSubject([]string{opts.Ref})
		if err != nil {
			return fail(out, ExitCommandError, ErrCodeArgument, "invalid reference", err)
		}
		entry = value.Ref{Subject: target}
	} else if entry, err = parseEntry(opts.Value); err != nil {
		return fail(out, ExitCommandError, ErrCodeArgument, "invalid value", err)
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

	// The hub only accepts writes to subjects it is asked to observe.
	h := s.g.Observe(subject)
	defer h.Release()
	if err := s.g.Set(subject, opts.Prop, entry); err != nil {
		return fail(out, ExitCommandError, ErrCodeArgument, "write rejected", err)
	}
	written, _ := s.g.Get(subject, opts.Prop)
	if err := s.settle(ctx, opts.Settle); err != nil {
		return fail(out, ExitFailure, ErrCodeConnect, "hub connection failed", err)
	}
	return out.Success(NodeOutput{Subject: subject, Props: persist.Record{opts.Prop: written}})
}
