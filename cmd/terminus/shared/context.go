// Package shared holds the state and helpers common to all CLI commands.
package shared

import (
	"net/http"

	"github.com/go-ports/terminus/internal/config"
	"github.com/go-ports/terminus/internal/service"
)

// Context carries global CLI state (flags set on the root command).
type Context struct {
	// Home overrides the terminus home directory.
	// When empty, resolution falls through to TERMINUS_HOME env → persisted config → ~/.terminus.
	Home string

	// LogLevel and LogFormat override the configured logger.
	LogLevel  string
	LogFormat string

	// Format selects listing output: table, json or yaml.
	Format string

	// Yes answers confirmations affirmatively.
	Yes bool

	// Prompter asks for missing input. When nil, a terminal prompter is used
	// if stdin is a terminal and prompting is disabled otherwise.
	Prompter Prompter

	// HTTPClient is handed to the API client. Nil uses the default.
	HTTPClient *http.Client
}

// Config loads the effective configuration for the selected home.
func (c *Context) Config() (*config.Config, error) {
	return config.LoadFromHome(c.Home)
}

// Service builds the orchestrator for the configured session.
func (c *Context) Service() (*service.Service, error) {
	cfg, err := c.Config()
	if err != nil {
		return nil, err
	}
	return service.New(cfg, c.HTTPClient)
}
