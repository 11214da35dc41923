package mcp_test

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/go-ports/terminus/internal/apitest"
	"github.com/go-ports/terminus/internal/checkers"
	"github.com/go-ports/terminus/internal/config"
	internalmcp "github.com/go-ports/terminus/internal/mcp"
	"github.com/go-ports/terminus/internal/service"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// newMCPClient creates an in-process MCP client backed by a service talking
// to a seeded fake platform. The client is started and initialized before it
// is returned.
func newMCPClient(c *qt.C) *mcpclient.Client {
	c.Helper()

	p := apitest.New(c.TB)
	apitest.Seed(p)

	cfg := config.Default()
	cfg.API = p.APIConfig(apitest.SessionUserID)
	cfg.Workflow.PollInterval = time.Millisecond
	svc, err := service.New(cfg, nil)
	c.Assert(err, qt.IsNil)

	cl, err := mcpclient.NewInProcessClient(internalmcp.NewServer(svc))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = cl.Close() })

	c.Assert(cl.Start(context.Background()), qt.IsNil)

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "terminus-test", Version: "0.0.1"}
	_, err = cl.Initialize(context.Background(), initReq)
	c.Assert(err, qt.IsNil)

	return cl
}

// callTool invokes the named tool and returns the text of the first content
// item along with the result's error flag.
func callTool(c *qt.C, cl *mcpclient.Client, name string, args map[string]any) (string, bool) {
	c.Helper()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := cl.CallTool(context.Background(), req)
	c.Assert(err, qt.IsNil)
	c.Assert(result.Content, qt.HasLen, 1)

	tc, ok := mcp.AsTextContent(result.Content[0])
	c.Assert(ok, qt.IsTrue)
	return tc.Text, result.IsError
}

// ---------------------------------------------------------------------------
// ListTools
// ---------------------------------------------------------------------------

func TestListTools(t *testing.T) {
	c := qt.New(t)
	cl := newMCPClient(c)

	result, err := cl.ListTools(context.Background(), mcp.ListToolsRequest{})
	c.Assert(err, qt.IsNil)

	names := make(map[string]bool)
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	c.Assert(names, qt.DeepEquals, map[string]bool{
		"org_list":       true,
		"org_team_list":  true,
		"org_sites_list": true,
		"org_roles":      true,
	})
}

// ---------------------------------------------------------------------------
// Tools
// ---------------------------------------------------------------------------

func TestOrgList(t *testing.T) {
	c := qt.New(t)
	cl := newMCPClient(c)

	out, isErr := callTool(c, cl, "org_list", nil)
	c.Assert(isErr, qt.IsFalse)
	c.Assert(out, checkers.JSONPathEquals("$.count"), float64(2))
	c.Assert(out, checkers.JSONPathEquals("$.records[0].name"), "Acme")
	c.Assert(out, checkers.JSONPathEquals("$.records[1].id"), apitest.BetaOrgID)
}

func TestOrgTeamList_HappyPath(t *testing.T) {
	c := qt.New(t)
	cl := newMCPClient(c)

	out, isErr := callTool(c, cl, "org_team_list", map[string]any{"org": "Beta"})
	c.Assert(isErr, qt.IsFalse)
	c.Assert(out, checkers.JSONPathEquals("$.count"), float64(2))
	c.Assert(out, checkers.JSONPathEquals("$.records[1].email"), "carol@example.com")
	c.Assert(out, checkers.JSONPathEquals("$.records[1].role"), "developer")
}

func TestOrgTeamList_FailurePath(t *testing.T) {
	c := qt.New(t)
	cl := newMCPClient(c)

	out, isErr := callTool(c, cl, "org_team_list", map[string]any{"org": "Gamma"})
	c.Assert(isErr, qt.IsTrue)
	c.Assert(out, qt.Equals, `no organization named "Gamma" is accessible to you`)
}

func TestOrgSitesList(t *testing.T) {
	c := qt.New(t)

	c.Run("tag filter", func(c *qt.C) {
		cl := newMCPClient(c)
		out, isErr := callTool(c, cl, "org_sites_list", map[string]any{"org": "Acme", "tag": "prod"})
		c.Assert(isErr, qt.IsFalse)
		c.Assert(out, checkers.JSONPathEquals("$.count"), float64(2))
		c.Assert(out, checkers.JSONPathEquals("$.records[0].name"), "www")
		c.Assert(out, checkers.JSONPathEquals("$.records[0].frozen"), true)
		c.Assert(out, checkers.JSONPathEquals("$.records[1].tags"), []any{"prod"})
	})

	c.Run("empty result carries a message", func(c *qt.C) {
		cl := newMCPClient(c)
		out, isErr := callTool(c, cl, "org_sites_list", map[string]any{"org": "Beta"})
		c.Assert(isErr, qt.IsFalse)
		c.Assert(out, checkers.JSONPathEquals("$.count"), float64(0))
		c.Assert(out, checkers.JSONPathEquals("$.records"), []any{})
		c.Assert(out, checkers.JSONPathEquals("$.message"), service.NoticeNoSitesCriterion)
	})
}

func TestOrgRoles(t *testing.T) {
	c := qt.New(t)
	cl := newMCPClient(c)

	out, isErr := callTool(c, cl, "org_roles", map[string]any{"org": "Acme"})
	c.Assert(isErr, qt.IsFalse)
	c.Assert(out, checkers.JSONPathEquals("$.roles"), []any{"unprivileged", "admin"})

	out, _ = callTool(c, cl, "org_roles", map[string]any{"org": apitest.BetaOrgID})
	c.Assert(out, checkers.JSONPathEquals("$.org"), "Beta")
	c.Assert(out, checkers.JSONPathEquals("$.roles"), []any{"unprivileged", "admin", "team_member", "developer"})
}
