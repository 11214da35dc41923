// Package configcmd implements the `terminus config` command group.
package configcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-ports/terminus/cmd/terminus/shared"
	"github.com/go-ports/terminus/internal/config"
	"github.com/go-ports/terminus/internal/redaction"
)

const configTemplate = `# terminus configuration
# TERMINUS_API_URL, TERMINUS_TOKEN and TERMINUS_USER override the api section.

api:
  base_url: https://terminus.pantheon.io/api
  # token: ""                  # session bearer token
  # user_id: ""                # session user UUID
  timeout: 30s
  page_size: 100

# How workflows started by mutations are polled.
workflow:
  poll_interval: 2s
  max_poll_interval: 15s
  timeout: 10m

log:
  level: info                   # debug | info | warn | error
  format: auto                  # auto | console | json
`

// Command implements `terminus config`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the config command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "config",
		Short: "Show or manage configuration",
		RunE:  c.runShow,
	}
	c.cmd.AddCommand(
		newConfigInit(ctx),
		newSetHome(),
		newClearHome(),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) runShow(cmd *cobra.Command, _ []string) error {
	home, source := config.ResolveHome()
	if c.ctx.Home != "" {
		home = c.ctx.Home
		source = "flag"
	}
	cfg, err := config.LoadFromHome(home)
	if err != nil {
		return err
	}
	data := map[string]any{
		"api": map[string]any{
			"base_url":  cfg.API.BaseURL,
			"token":     redaction.Mask(cfg.API.Token),
			"user_id":   cfg.API.UserID,
			"timeout":   cfg.API.Timeout.String(),
			"page_size": cfg.API.PageSize,
		},
		"workflow": map[string]any{
			"poll_interval":     cfg.Workflow.PollInterval.String(),
			"max_poll_interval": cfg.Workflow.MaxPollInterval.String(),
			"timeout":           cfg.Workflow.Timeout.String(),
		},
		"log": map[string]any{
			"level":  cfg.Log.Level,
			"format": cfg.Log.Format,
		},
		"terminus_home":        home,
		"terminus_home_source": source,
	}
	b, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(b))
	return nil
}

// ---------------------------------------------------------------------------
// config init
// ---------------------------------------------------------------------------

func newConfigInit(ctx *shared.Context) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			home := ctx.Home
			if home == "" {
				home = config.GetHome()
			}
			cfgPath := config.FilePath(home)
			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				fmt.Fprintf(out, "Config already exists at %s\n", cfgPath)
				fmt.Fprintln(out, "Use --force to overwrite.")
				return nil
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(cfgPath, []byte(configTemplate), 0o600); err != nil {
				return err
			}
			fmt.Fprintf(out, "Created %s\n", cfgPath)
			fmt.Fprintln(out, "Set api.token and api.user_id to start a session.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config")
	return cmd
}

// ---------------------------------------------------------------------------
// config set-home
// ---------------------------------------------------------------------------

func newSetHome() *cobra.Command {
	return &cobra.Command{
		Use:   "set-home <path>",
		Short: "Persist terminus home location (used when TERMINUS_HOME is unset)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := config.SetPersistedHome(args[0])
			if err != nil {
				return err
			}
			if err := os.MkdirAll(resolved, 0o700); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Persisted terminus home: %s\n", resolved)
			fmt.Fprintln(out, "Override anytime with TERMINUS_HOME.")
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// config clear-home
// ---------------------------------------------------------------------------

func newClearHome() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-home",
		Short: "Remove persisted terminus home location from global config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			changed, err := config.ClearPersistedHome()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if changed {
				fmt.Fprintln(out, "Cleared persisted terminus home setting.")
			} else {
				fmt.Fprintln(out, "No persisted terminus home setting was found.")
			}
			return nil
		},
	}
}
