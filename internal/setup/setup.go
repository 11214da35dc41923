// Package setup registers and unregisters the terminus MCP server in the
// configuration of supported coding agents (Claude Code, Cursor, Codex,
// OpenCode).
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ServerName is the key the MCP server is registered under.
const ServerName = "terminus"

// Agent identifies a supported coding agent.
type Agent string

const (
	AgentClaudeCode Agent = "claude-code"
	AgentCursor     Agent = "cursor"
	AgentCodex      Agent = "codex"
	AgentOpencode   Agent = "opencode"
)

// Agents lists the supported agents.
func Agents() []Agent {
	return []Agent{AgentClaudeCode, AgentCursor, AgentCodex, AgentOpencode}
}

// ErrUnknownAgent is returned for an agent name not in Agents.
var ErrUnknownAgent = errors.New("unknown agent")

// ParseAgent validates an agent name.
func ParseAgent(s string) (Agent, error) {
	for _, a := range Agents() {
		if string(a) == s {
			return a, nil
		}
	}
	names := make([]string, 0, len(Agents()))
	for _, a := range Agents() {
		names = append(names, string(a))
	}
	return "", fmt.Errorf("%w %q: choose one of %s", ErrUnknownAgent, s, strings.Join(names, ", "))
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

// ConfigPath returns the file that holds agent's MCP servers. dir overrides
// the agent's config directory; project selects the per-project file in cwd.
//
//revive:disable:flag-parameter
func ConfigPath(agent Agent, dir string, project bool) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("setup.ConfigPath: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("setup.ConfigPath: %w", err)
	}
	base := func(dot string) string {
		switch {
		case dir != "":
			return dir
		case project:
			return filepath.Join(cwd, dot)
		default:
			return filepath.Join(home, dot)
		}
	}

	switch agent {
	case AgentClaudeCode:
		if project || dir != "" {
			return filepath.Join(filepath.Dir(base(".claude")), ".mcp.json"), nil
		}
		return filepath.Join(home, ".claude.json"), nil
	case AgentCursor:
		return filepath.Join(base(".cursor"), "mcp.json"), nil
	case AgentCodex:
		return filepath.Join(base(".codex"), "config.toml"), nil
	case AgentOpencode:
		if dir != "" {
			return filepath.Join(dir, "opencode.json"), nil
		}
		if project {
			return filepath.Join(cwd, "opencode.json"), nil
		}
		return filepath.Join(home, ".config", "opencode", "opencode.json"), nil
	}
	return "", fmt.Errorf("setup.ConfigPath: %w %q", ErrUnknownAgent, agent)
}

//revive:enable:flag-parameter

// ---------------------------------------------------------------------------
// Install / Uninstall
// ---------------------------------------------------------------------------

// Install registers the server in the agent config at path. It reports
// false when the entry was already present.
func Install(agent Agent, path string) (bool, error) {
	var (
		added bool
		err   error
	)
	switch agent {
	case AgentClaudeCode, AgentCursor:
		added, err = installJSON(path, "mcpServers", map[string]any{
			"command": "terminus",
			"args":    []any{"mcp"},
			"type":    "stdio",
		})
	case AgentOpencode:
		added, err = installJSON(path, "mcp", map[string]any{
			"type":    "local",
			"command": []any{"terminus", "mcp"},
		})
	case AgentCodex:
		added, err = appendTOMLSection(path)
	default:
		return false, fmt.Errorf("setup.Install: %w %q", ErrUnknownAgent, agent)
	}
	if err != nil {
		return false, fmt.Errorf("setup.Install: %s: %w", path, err)
	}
	return added, nil
}

// Uninstall removes the server from the agent config at path. It reports
// false when there was nothing to remove.
func Uninstall(agent Agent, path string) (bool, error) {
	var (
		removed bool
		err     error
	)
	switch agent {
	case AgentClaudeCode, AgentCursor:
		removed, err = uninstallJSON(path, "mcpServers")
	case AgentOpencode:
		removed, err = uninstallJSON(path, "mcp")
	case AgentCodex:
		removed, err = removeTOMLSection(path)
	default:
		return false, fmt.Errorf("setup.Uninstall: %w %q", ErrUnknownAgent, agent)
	}
	if err != nil {
		return false, fmt.Errorf("setup.Uninstall: %s: %w", path, err)
	}
	return removed, nil
}

// ---------------------------------------------------------------------------
// JSON configs (Claude Code, Cursor, OpenCode)
// ---------------------------------------------------------------------------

// readJSON returns the object in path, or an empty one when the file is
// missing. A file that is not a JSON object is an error so it is never
// overwritten.
func readJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string]any), nil
	}
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	if m == nil {
		m = make(map[string]any)
	}
	return m, nil
}

func writeJSON(path string, data map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644) // #nosec G306 -- agent MCP server entries do not contain secrets
}

func installJSON(path, section string, entry map[string]any) (bool, error) {
	data, err := readJSON(path)
	if err != nil {
		return false, err
	}
	servers, _ := data[section].(map[string]any)
	if servers == nil {
		servers = make(map[string]any)
		data[section] = servers
	}
	if _, exists := servers[ServerName]; exists {
		return false, nil
	}
	servers[ServerName] = entry
	return true, writeJSON(path, data)
}

func uninstallJSON(path, section string) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	data, err := readJSON(path)
	if err != nil {
		return false, err
	}
	servers, _ := data[section].(map[string]any)
	if _, exists := servers[ServerName]; !exists {
		return false, nil
	}
	delete(servers, ServerName)
	if len(servers) == 0 {
		delete(data, section)
	}
	if len(data) == 0 {
		return true, os.Remove(path)
	}
	return true, writeJSON(path, data)
}

// ---------------------------------------------------------------------------
// TOML config (Codex); text based, only the [mcp_servers.terminus] table
// ---------------------------------------------------------------------------

const (
	tomlHeader  = "[mcp_servers." + ServerName + "]"
	tomlSection = "\n" + tomlHeader + "\ncommand = \"terminus\"\nargs = [\"mcp\"]\n"
)

func hasTOMLSection(content string) bool {
	for line := range strings.SplitSeq(content, "\n") {
		if strings.TrimSpace(line) == tomlHeader {
			return true
		}
	}
	return false
}

func appendTOMLSection(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	if hasTOMLSection(string(data)) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, err
	}
	defer f.Close()
	if _, err := f.WriteString(tomlSection); err != nil {
		return false, err
	}
	return true, nil
}

func removeTOMLSection(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	content := string(data)
	if !hasTOMLSection(content) {
		return false, nil
	}
	// Drop the header and its key-value pairs up to the next table or EOF.
	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	inSection := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == tomlHeader {
			inSection = true
			continue
		}
		if inSection && strings.HasPrefix(trimmed, "[") {
			inSection = false
		}
		if !inSection {
			kept = append(kept, line)
		}
	}
	cleaned := strings.TrimSpace(strings.Join(kept, "\n"))
	if cleaned == "" {
		return true, os.Remove(path)
	}
	return true, os.WriteFile(path, []byte(cleaned+"\n"), 0o644) // #nosec G306 -- agent TOML config is not a credential file
}
