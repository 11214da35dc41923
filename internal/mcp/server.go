// Package mcp provides the stdio MCP server exposing read-only organization
// tools for agents.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-ports/terminus/internal/buildinfo"
	"github.com/go-ports/terminus/internal/service"
)

const orgListDescription = `List the organizations the session user belongs to. Returns one record per organization with its name and id. Call this first to learn valid values for the "org" argument of the other tools.`

const teamListDescription = `List the members of an organization. Returns first, last, email, role and uuid for every member.`

const sitesListDescription = `List the sites associated with an organization, optionally only those tagged with "tag". Each record carries name, id, service_level, framework, created and tags; "frozen" is present only for frozen sites. An empty result includes a message explaining why.`

const rolesDescription = `List the roles that can be assigned in an organization. team_member and developer are only available when the organization has change management enabled.`

// NewServer creates and registers all organization tools on a new MCP server.
// It is separate from Serve so tests can obtain a configured server without
// the stdio transport.
func NewServer(svc *service.Service) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("terminus", buildinfo.Version)
	registerTools(s, svc)
	return s
}

// Serve runs the stdio MCP server, blocking until stdin closes.
func Serve(_ context.Context, svc *service.Service) error {
	return mcpserver.ServeStdio(NewServer(svc))
}

func registerTools(s *mcpserver.MCPServer, svc *service.Service) {
	s.AddTool(mcp.NewTool("org_list",
		mcp.WithDescription(orgListDescription),
	), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		l, err := svc.ListOrganizations(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return listingResult(l)
	})

	s.AddTool(mcp.NewTool("org_team_list",
		mcp.WithDescription(teamListDescription),
		mcp.WithString("org",
			mcp.Description("Organization name or id."),
			mcp.Required(),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		l, err := svc.ListTeam(ctx, req.GetString("org", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return listingResult(l)
	})

	s.AddTool(mcp.NewTool("org_sites_list",
		mcp.WithDescription(sitesListDescription),
		mcp.WithString("org",
			mcp.Description("Organization name or id."),
			mcp.Required(),
		),
		mcp.WithString("tag",
			mcp.Description("Only list sites whose organization membership carries this tag (exact match)."),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		l, err := svc.ListSites(ctx, req.GetString("org", ""), req.GetString("tag", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return listingResult(l)
	})

	s.AddTool(mcp.NewTool("org_roles",
		mcp.WithDescription(rolesDescription),
		mcp.WithString("org",
			mcp.Description("Organization name or id."),
			mcp.Required(),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		org, err := svc.ResolveOrganization(ctx, req.GetString("org", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		roles, err := svc.RoleChoices(ctx, org)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{
			"org":   org.Name,
			"roles": roles,
		})
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// listingResult renders l as {"count", "records", "message"?}.
func listingResult(l service.Listing) (*mcp.CallToolResult, error) {
	records := l.Records
	if records == nil {
		records = make([]service.Record, 0)
	}
	out := map[string]any{
		"count":   len(records),
		"records": records,
	}
	if l.Notice != "" {
		out["message"] = l.Notice
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
