package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/terminus/internal/api"
	"github.com/go-ports/terminus/internal/apitest"
	"github.com/go-ports/terminus/internal/checkers"
	"github.com/go-ports/terminus/internal/config"
	"github.com/go-ports/terminus/internal/models"
	"github.com/go-ports/terminus/internal/service"
	"github.com/go-ports/terminus/internal/workflow"
)

func newService(c *qt.C) (*service.Service, *apitest.Platform) {
	c.Helper()
	p := apitest.New(c.TB)
	apitest.Seed(p)

	cfg := config.Default()
	cfg.API = p.APIConfig(apitest.SessionUserID)
	cfg.Workflow.PollInterval = time.Millisecond
	cfg.Workflow.MaxPollInterval = 2 * time.Millisecond
	cfg.Workflow.Timeout = 5 * time.Second

	svc, err := service.New(cfg, nil)
	c.Assert(err, qt.IsNil)
	return svc, p
}

func recordsJSON(c *qt.C, l service.Listing) string {
	c.Helper()
	b, err := json.Marshal(l.Records)
	c.Assert(err, qt.IsNil)
	return string(b)
}

func field(r service.Record, key string) any {
	v, _ := r.Get(key)
	return v
}

func settle(c *qt.C, wf *workflow.Workflow, err error) models.WorkflowState {
	c.Helper()
	c.Assert(err, qt.IsNil)
	state, err := wf.Wait(context.Background())
	c.Assert(err, qt.IsNil)
	return state
}

// ---------------------------------------------------------------------------
// New
// ---------------------------------------------------------------------------

func TestNew_FailurePath(t *testing.T) {
	c := qt.New(t)

	c.Run("missing session", func(c *qt.C) {
		_, err := service.New(config.Default(), nil)
		c.Assert(err, qt.ErrorIs, service.ErrNoSession)
	})

	c.Run("invalid config", func(c *qt.C) {
		cfg := config.Default()
		cfg.API.PageSize = 0
		_, err := service.New(cfg, nil)
		c.Assert(err, qt.ErrorMatches, `service.New: config: .*page_size.*`)
	})
}

// ---------------------------------------------------------------------------
// Organizations
// ---------------------------------------------------------------------------

func TestListOrganizations(t *testing.T) {
	c := qt.New(t)
	svc, _ := newService(c)

	l, err := svc.ListOrganizations(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(l.Notice, qt.Equals, "")
	out := recordsJSON(c, l)
	c.Assert(out, checkers.JSONPathEquals("$[0].name"), "Acme")
	c.Assert(out, checkers.JSONPathEquals("$[1].id"), apitest.BetaOrgID)
	c.Assert(l.Records[0].Len(), qt.Equals, 2)
	c.Assert(l.Records[0].Oldest().Key, qt.Equals, "name")
}

func TestResolveOrganization_HappyPath(t *testing.T) {
	c := qt.New(t)
	svc, _ := newService(c)

	for _, ref := range []string{"Acme", apitest.AcmeOrgID} {
		org, err := svc.ResolveOrganization(context.Background(), ref)
		c.Assert(err, qt.IsNil)
		c.Assert(org.ID, qt.Equals, apitest.AcmeOrgID)
	}
}

func TestResolveOrganization_FailurePath(t *testing.T) {
	c := qt.New(t)
	svc, _ := newService(c)

	tests := []struct {
		ref  string
		want string
	}{
		{"zzz", `no organization named "zzz" is accessible to you`},
		{"6f1c3b0e-1111-4222-8333-444455556666", `organization 6f1c3b0e-1111-4222-8333-444455556666 is either invalid or you lack permission to access it`},
		{"", `no organization given`},
	}
	for _, tt := range tests {
		c.Run(tt.ref, func(c *qt.C) {
			_, err := svc.ResolveOrganization(context.Background(), tt.ref)
			c.Assert(err, qt.ErrorIs, service.ErrUnresolved)
			c.Assert(err, qt.ErrorMatches, tt.want)
			var ue *service.UnresolvedIdentifierError
			c.Assert(errors.As(err, &ue), qt.IsTrue)
			c.Assert(ue.Value, qt.Equals, tt.ref)
		})
	}

	c.Run("rejected session surfaces a fetch error", func(c *qt.C) {
		p := apitest.New(c.TB)
		cfg := config.Default()
		cfg.API = p.APIConfig(apitest.SessionUserID)
		cfg.API.Token = "expired"
		svc, err := service.New(cfg, nil)
		c.Assert(err, qt.IsNil)

		_, err = svc.ResolveOrganization(context.Background(), "Acme")
		var fe *api.RemoteFetchError
		c.Assert(errors.As(err, &fe), qt.IsTrue)
		c.Assert(api.IsUnauthorized(err), qt.IsTrue)
	})
}

// ---------------------------------------------------------------------------
// Roles
// ---------------------------------------------------------------------------

func TestRoleChoices(t *testing.T) {
	c := qt.New(t)
	svc, _ := newService(c)

	acme, err := svc.ResolveOrganization(context.Background(), "Acme")
	c.Assert(err, qt.IsNil)
	roles, err := svc.RoleChoices(context.Background(), acme)
	c.Assert(err, qt.IsNil)
	c.Assert(roles, qt.DeepEquals, []models.Role{models.RoleUnprivileged, models.RoleAdmin})

	beta, err := svc.ResolveOrganization(context.Background(), "Beta")
	c.Assert(err, qt.IsNil)
	roles, err = svc.RoleChoices(context.Background(), beta)
	c.Assert(err, qt.IsNil)
	c.Assert(roles, qt.HasLen, 4)
}

func TestValidateRole(t *testing.T) {
	c := qt.New(t)

	for _, cm := range []bool{false, true} {
		choices := models.AssignableRoles(cm)
		for _, role := range []string{"unprivileged", "admin"} {
			got, err := service.ValidateRole(choices, role)
			c.Assert(err, qt.IsNil)
			c.Assert(string(got), qt.Equals, role)
		}
		for _, role := range []string{"team_member", "developer"} {
			_, err := service.ValidateRole(choices, role)
			if cm {
				c.Assert(err, qt.IsNil)
			} else {
				c.Assert(err, qt.ErrorIs, service.ErrInvalidRole)
			}
		}
	}

	_, err := service.ValidateRole(models.AssignableRoles(false), "owner")
	c.Assert(err, qt.ErrorMatches, `invalid role "owner": choose one of unprivileged, admin`)
}

// ---------------------------------------------------------------------------
// Team
// ---------------------------------------------------------------------------

func TestListTeam(t *testing.T) {
	c := qt.New(t)
	svc, _ := newService(c)

	l, err := svc.ListTeam(context.Background(), "Acme")
	c.Assert(err, qt.IsNil)
	c.Assert(l.Records, qt.HasLen, 2)
	out := recordsJSON(c, l)
	c.Assert(out, checkers.JSONPathEquals("$[1].first"), "Bob")
	c.Assert(out, checkers.JSONPathEquals("$[1].last"), "Stone")
	c.Assert(out, checkers.JSONPathEquals("$[1].email"), "bob@example.com")
	c.Assert(out, checkers.JSONPathEquals("$[1].role"), "unprivileged")
	c.Assert(out, checkers.JSONPathEquals("$[1].uuid"), apitest.BobUserID)

	c.Run("absent name parts are null", func(c *qt.C) {
		l, err := svc.ListTeam(context.Background(), "Beta")
		c.Assert(err, qt.IsNil)
		c.Assert(l.Records, qt.HasLen, 2)
		c.Assert(field(l.Records[1], "first"), qt.Equals, "Carol")
		c.Assert(field(l.Records[1], "last"), qt.IsNil)
		c.Assert(recordsJSON(c, l), qt.Contains, `"last":null`)
	})
}

func TestAddMember_HappyPath(t *testing.T) {
	c := qt.New(t)
	svc, p := newService(c)

	wf, err := svc.AddMember(context.Background(), "Acme", "a@example.com", "admin")
	state := settle(c, wf, err)
	c.Assert(state.Status, qt.Equals, models.WorkflowSucceeded)
	c.Assert(state.Description, qt.Equals, "Add a@example.com to Acme")
	c.Assert(wf.History(), qt.DeepEquals, []models.WorkflowStatus{
		models.WorkflowCreated, models.WorkflowRunning, models.WorkflowSucceeded,
	})
	_, ok := p.MemberByEmail(apitest.AcmeOrgID, "a@example.com")
	c.Assert(ok, qt.IsTrue)
}

func TestAddMember_BaseRolesWithoutFeatures(t *testing.T) {
	c := qt.New(t)
	svc, p := newService(c)
	p.FailFeatures(http.StatusBadGateway)

	for _, role := range []string{"admin", "unprivileged"} {
		email := role + "@example.com"
		wf, err := svc.AddMember(context.Background(), "Acme", email, role)
		state := settle(c, wf, err)
		c.Assert(state.Status, qt.Equals, models.WorkflowSucceeded)
	}
	c.Assert(p.Mutations(), qt.Equals, 2)

	wf, err := svc.ChangeRole(context.Background(), "Acme", "bob@example.com", "admin")
	settle(c, wf, err)
	role, _ := p.Role(apitest.AcmeOrgID, apitest.BobUserID)
	c.Assert(role, qt.Equals, "admin")
}

func TestAddMember_FailurePath(t *testing.T) {
	c := qt.New(t)

	c.Run("extended role without change management", func(c *qt.C) {
		svc, p := newService(c)
		for _, role := range []string{"team_member", "developer"} {
			_, err := svc.AddMember(context.Background(), "Acme", "a@example.com", role)
			var re *service.InvalidRoleError
			c.Assert(errors.As(err, &re), qt.IsTrue)
			c.Assert(re.Role, qt.Equals, role)
		}
		c.Assert(p.Mutations(), qt.Equals, 0)
	})

	c.Run("extended role when features cannot be fetched", func(c *qt.C) {
		svc, p := newService(c)
		p.FailFeatures(http.StatusBadGateway)
		_, err := svc.AddMember(context.Background(), "Acme", "a@example.com", "developer")
		c.Assert(err, qt.ErrorIs, api.ErrTransport)
		c.Assert(p.Mutations(), qt.Equals, 0)
	})

	c.Run("unknown organization", func(c *qt.C) {
		svc, p := newService(c)
		_, err := svc.AddMember(context.Background(), "zzz", "a@example.com", "admin")
		c.Assert(err, qt.ErrorIs, service.ErrUnresolved)
		c.Assert(p.Mutations(), qt.Equals, 0)
	})

	c.Run("remote failure carries the reason", func(c *qt.C) {
		svc, _ := newService(c)
		wf, err := svc.AddMember(context.Background(), "Acme", "bob@example.com", "admin")
		c.Assert(err, qt.IsNil)
		_, err = wf.Wait(context.Background())
		c.Assert(err, qt.ErrorIs, workflow.ErrFailed)
		c.Assert(err, qt.ErrorMatches, `.*already a member.*`)
	})
}

func TestRemoveMember(t *testing.T) {
	c := qt.New(t)

	c.Run("removes by email", func(c *qt.C) {
		svc, p := newService(c)
		wf, err := svc.RemoveMember(context.Background(), "Acme", "bob@example.com")
		settle(c, wf, err)
		_, ok := p.Role(apitest.AcmeOrgID, apitest.BobUserID)
		c.Assert(ok, qt.IsFalse)
	})

	c.Run("refuses to remove the session user", func(c *qt.C) {
		svc, p := newService(c)
		_, err := svc.RemoveMember(context.Background(), "Acme", "ann@example.com")
		c.Assert(err, qt.ErrorIs, service.ErrSelfRemoval)
		c.Assert(p.Mutations(), qt.Equals, 0)
	})

	c.Run("unknown member", func(c *qt.C) {
		svc, p := newService(c)
		_, err := svc.RemoveMember(context.Background(), "Acme", "nobody@example.com")
		c.Assert(err, qt.ErrorMatches, `no member named "nobody@example.com" is accessible to you`)
		c.Assert(p.Mutations(), qt.Equals, 0)
	})
}

func TestChangeRole(t *testing.T) {
	c := qt.New(t)

	c.Run("extended role with change management", func(c *qt.C) {
		svc, p := newService(c)
		wf, err := svc.ChangeRole(context.Background(), "Beta", "carol@example.com", "team_member")
		settle(c, wf, err)
		role, _ := p.Role(apitest.BetaOrgID, apitest.CarolUserID)
		c.Assert(role, qt.Equals, "team_member")
	})

	c.Run("extended role rejected before any mutation", func(c *qt.C) {
		svc, p := newService(c)
		_, err := svc.ChangeRole(context.Background(), "Acme", "Bob Stone", "developer")
		c.Assert(err, qt.ErrorIs, service.ErrInvalidRole)
		c.Assert(p.Mutations(), qt.Equals, 0)
	})
}

// ---------------------------------------------------------------------------
// Sites
// ---------------------------------------------------------------------------

func TestListSites_HappyPath(t *testing.T) {
	c := qt.New(t)

	c.Run("tag filter keeps order and marks frozen only when true", func(c *qt.C) {
		svc, _ := newService(c)
		l, err := svc.ListSites(context.Background(), "Acme", "prod")
		c.Assert(err, qt.IsNil)
		c.Assert(l.Records, qt.HasLen, 2)
		c.Assert(l.Notice, qt.Equals, "")

		www, blog := l.Records[0], l.Records[1]
		c.Assert(field(www, "name"), qt.Equals, "www")
		c.Assert(field(blog, "name"), qt.Equals, "blog")
		c.Assert(field(www, "frozen"), qt.Equals, true)
		_, present := blog.Get("frozen")
		c.Assert(present, qt.IsFalse)

		out := recordsJSON(c, l)
		c.Assert(out, checkers.JSONPathEquals("$[0].tags"), []any{"prod", "eu"})
		c.Assert(out, checkers.JSONPathEquals("$[0].created"), "2016-03-01 12:00:00")
		c.Assert(out, checkers.JSONPathEquals("$[0].service_level"), "pro")
	})

	c.Run("no tag lists every site", func(c *qt.C) {
		svc, _ := newService(c)
		l, err := svc.ListSites(context.Background(), "Acme", "")
		c.Assert(err, qt.IsNil)
		c.Assert(l.Records, qt.HasLen, 5)
		c.Assert(recordsJSON(c, l), checkers.JSONPathEquals("$[2].tags"), []any{})
	})

	c.Run("empty result without tag", func(c *qt.C) {
		svc, _ := newService(c)
		l, err := svc.ListSites(context.Background(), "Beta", "")
		c.Assert(err, qt.IsNil)
		c.Assert(l.Records, qt.HasLen, 0)
		c.Assert(l.Notice, qt.Equals, service.NoticeNoSitesCriterion)
	})

	c.Run("empty result with tag", func(c *qt.C) {
		svc, _ := newService(c)
		l, err := svc.ListSites(context.Background(), "Acme", "archived")
		c.Assert(err, qt.IsNil)
		c.Assert(l.Notice, qt.Equals, service.NoticeNoSitesCriteria)
	})
}

func TestAddRemoveSite(t *testing.T) {
	c := qt.New(t)

	c.Run("add one of the session user's sites", func(c *qt.C) {
		svc, p := newService(c)
		wf, err := svc.AddSite(context.Background(), "Acme", "sandbox")
		settle(c, wf, err)
		c.Assert(p.OrganizationSites(apitest.AcmeOrgID), qt.Contains, apitest.SiteSandbox)
	})

	c.Run("add rejects sites the user does not belong to", func(c *qt.C) {
		svc, p := newService(c)
		_, err := svc.AddSite(context.Background(), "Acme", "wiki")
		c.Assert(err, qt.ErrorIs, service.ErrUnresolved)
		c.Assert(p.Mutations(), qt.Equals, 0)
	})

	c.Run("remove by site id", func(c *qt.C) {
		svc, p := newService(c)
		wf, err := svc.RemoveSite(context.Background(), "Acme", apitest.SiteDocs)
		settle(c, wf, err)
		c.Assert(p.OrganizationSites(apitest.AcmeOrgID), qt.Not(qt.Contains), apitest.SiteDocs)
	})

	c.Run("remove rejects sites outside the organization", func(c *qt.C) {
		svc, p := newService(c)
		_, err := svc.RemoveSite(context.Background(), "Acme", "sandbox")
		c.Assert(err, qt.ErrorMatches, `no site named "sandbox" is accessible to you`)
		c.Assert(p.Mutations(), qt.Equals, 0)
	})
}
