package apitest_test

import (
	"context"
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/terminus/internal/api"
	"github.com/go-ports/terminus/internal/apitest"
	"github.com/go-ports/terminus/internal/config"
)

func seeded(c *qt.C) (*apitest.Platform, *api.Client) {
	p := apitest.New(c.TB)
	apitest.Seed(p)
	return p, p.Client(apitest.SessionUserID)
}

func TestPlatform_Listing(t *testing.T) {
	c := qt.New(t)
	p, cl := seeded(c)

	c.Run("listings are paged by the client page size", func(c *qt.C) {
		path := "organizations/" + apitest.AcmeOrgID + "/memberships/sites"
		var ids []string
		for page := 0; ; page++ {
			records, more, err := cl.Listing(context.Background(), path, page)
			c.Assert(err, qt.IsNil)
			for _, r := range records {
				var rec struct{ ID string }
				c.Assert(json.Unmarshal(r, &rec), qt.IsNil)
				ids = append(ids, rec.ID)
			}
			if !more {
				break
			}
		}
		c.Assert(ids, qt.DeepEquals, p.OrganizationSites(apitest.AcmeOrgID))
	})

	c.Run("wrong token is unauthorized", func(c *qt.C) {
		cfg := p.APIConfig(apitest.SessionUserID)
		cfg.Token = "stale"
		_, _, err := api.New(cfg, nil).Listing(context.Background(), "users/"+apitest.SessionUserID+"/memberships/organizations", 0)
		c.Assert(err, qt.ErrorIs, api.ErrUnauthorized)
	})

	c.Run("unknown organization is not found", func(c *qt.C) {
		_, _, err := cl.Listing(context.Background(), "organizations/nope/memberships/users", 0)
		c.Assert(err, qt.ErrorIs, api.ErrNotFound)
	})
}

func TestPlatform_Workflows(t *testing.T) {
	c := qt.New(t)

	poll := func(c *qt.C, cl *api.Client, id string) string {
		raw, err := cl.WorkflowStatus(context.Background(), "organizations/"+apitest.AcmeOrgID+"/workflows/"+id)
		c.Assert(err, qt.IsNil)
		var st struct{ Status string }
		c.Assert(json.Unmarshal(raw, &st), qt.IsNil)
		return st.Status
	}

	c.Run("workflow steps and applies its mutation", func(c *qt.C) {
		p, cl := seeded(c)
		raw, err := cl.Mutate(context.Background(), "organizations/"+apitest.AcmeOrgID+"/workflows", map[string]any{
			"type":   "update_organization_user_membership",
			"params": map[string]any{"user_id": apitest.BobUserID, "role": "admin"},
		})
		c.Assert(err, qt.IsNil)
		var wf struct{ ID, Status string }
		c.Assert(json.Unmarshal(raw, &wf), qt.IsNil)
		c.Assert(wf.Status, qt.Equals, "created")
		c.Assert(p.Mutations(), qt.Equals, 1)

		c.Assert(poll(c, cl, wf.ID), qt.Equals, "running")
		role, _ := p.Role(apitest.AcmeOrgID, apitest.BobUserID)
		c.Assert(role, qt.Equals, "unprivileged")

		c.Assert(poll(c, cl, wf.ID), qt.Equals, "succeeded")
		role, _ = p.Role(apitest.AcmeOrgID, apitest.BobUserID)
		c.Assert(role, qt.Equals, "admin")
	})

	c.Run("forced failure leaves state untouched", func(c *qt.C) {
		p, cl := seeded(c)
		p.FailWorkflows("maintenance window")
		raw, err := cl.Mutate(context.Background(), "organizations/"+apitest.AcmeOrgID+"/workflows", map[string]any{
			"type":   "remove_organization_site_membership",
			"params": map[string]any{"site_id": apitest.SiteWWW},
		})
		c.Assert(err, qt.IsNil)
		var wf struct{ ID string }
		c.Assert(json.Unmarshal(raw, &wf), qt.IsNil)
		poll(c, cl, wf.ID)
		c.Assert(poll(c, cl, wf.ID), qt.Equals, "failed")
		c.Assert(p.OrganizationSites(apitest.AcmeOrgID), qt.Contains, apitest.SiteWWW)
	})

	c.Run("unknown workflow type is rejected", func(c *qt.C) {
		_, cl := seeded(c)
		_, err := cl.Mutate(context.Background(), "organizations/"+apitest.AcmeOrgID+"/workflows", map[string]any{"type": "explode"})
		c.Assert(err, qt.ErrorIs, api.ErrTransport)
	})
}

func TestPlatform_APIConfigValidates(t *testing.T) {
	c := qt.New(t)
	p := apitest.New(t)
	cfg := config.Default()
	cfg.API = p.APIConfig(apitest.SessionUserID)
	c.Assert(cfg.Validate(), qt.IsNil)
}
