// Package rootcmd wires the root cobra.Command for the terminus CLI binary.
package rootcmd

import (
	"log/slog"
	"os"

	"github.com/m-mizutani/ctxlog"
	"github.com/spf13/cobra"

	configcmd "github.com/go-ports/terminus/cmd/terminus/config"
	mcpcmd "github.com/go-ports/terminus/cmd/terminus/mcp"
	orgcmd "github.com/go-ports/terminus/cmd/terminus/org"
	"github.com/go-ports/terminus/cmd/terminus/shared"
	"github.com/go-ports/terminus/internal/buildinfo"
	"github.com/go-ports/terminus/internal/config"
	"github.com/go-ports/terminus/internal/logging"
)

// New creates and returns the root cobra.Command for the terminus CLI.
func New() *cobra.Command {
	return NewWithContext(&shared.Context{})
}

// NewWithContext builds the command tree around ctx. Tests use it to inject
// a Prompter or an HTTP client.
func NewWithContext(ctx *shared.Context) *cobra.Command {
	root := &cobra.Command{
		Use:           "terminus",
		Short:         "Manage organization memberships on the hosting platform",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := shared.ValidateFormat(ctx.Format); err != nil {
				return err
			}
			return installLogger(cmd, ctx)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&ctx.Home, "home", "",
		"Override terminus home directory (default: $TERMINUS_HOME env → persisted config → ~/.terminus)")
	pf.StringVar(&ctx.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&ctx.LogFormat, "log-format", "", "Log format: auto, console or json")
	pf.StringVar(&ctx.Format, "format", shared.FormatTable, "Output format: table, json or yaml")
	pf.BoolVarP(&ctx.Yes, "yes", "y", false, "Answer yes to confirmations")

	root.AddCommand(
		orgcmd.New(ctx).Cmd(),
		configcmd.New(ctx).Cmd(),
		mcpcmd.New(ctx).Cmd(),
	)

	return root
}

// installLogger resolves level and format (flag → env → config), installs the
// logger as the slog default and stores it in the command context.
func installLogger(cmd *cobra.Command, ctx *shared.Context) error {
	lc := config.Default().Log
	if cfg, err := ctx.Config(); err == nil {
		lc = cfg.Log
	}
	level := firstSet(ctx.LogLevel, os.Getenv("TERMINUS_LOG_LEVEL"), lc.Level)
	format, err := logging.ParseFormat(firstSet(ctx.LogFormat, os.Getenv("TERMINUS_LOG_FORMAT"), lc.Format))
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.ParseLogLevel(level), cmd.ErrOrStderr(), format)
	slog.SetDefault(logger)
	cmd.SetContext(ctxlog.With(cmd.Context(), logger))
	return nil
}

func firstSet(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
