package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssured/drawbot/internal/config"
	"github.com/ssured/drawbot/internal/value"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the drawbot CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "drawbot",
		Short: "drawbot - replicated state hub",
		Long:  "Serve, inspect and edit the replicated node graph shared by drawbot clients.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			setupLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to YAML config file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))

	return cmd
}

// setupLogging installs a text handler on w, at debug level when verbose.
func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// fail prints err through f and returns it as an ExitError.
func fail(f *OutputFormatter, exitCode int, errCode, message string, err error) error {
	exitErr := WrapExitError(exitCode, message, err)
	if printErr := f.Error(errCode, exitErr.Error()); printErr != nil {
		slog.Debug("printing error", "error", printErr)
	}
	return exitErr
}

// parseSubject turns command arguments into an NFC normalized subject. A
// single argument may hold several segments separated by "/".
func parseSubject(args []string) (value.Subject, error) {
	var segments []string
	if len(args) == 1 {
		segments = strings.Split(args[0], "/")
	} else {
		segments = args
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("subject is empty")
	}
	for i, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("subject segment %d is empty", i)
		}
	}
	return nfcSubject(value.S(segments...)), nil
}
