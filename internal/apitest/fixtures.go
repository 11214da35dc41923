package apitest

import "time"

// Fixture IDs used by Seed.
const (
	SessionUserID = "5d6b4a8e-0f0c-4c4a-9a57-3a2c8e1f0001"
	BobUserID     = "5d6b4a8e-0f0c-4c4a-9a57-3a2c8e1f0002"
	CarolUserID   = "5d6b4a8e-0f0c-4c4a-9a57-3a2c8e1f0003"

	AcmeOrgID = "0a1b2c3d-0000-4000-8000-00000000ac01"
	BetaOrgID = "0a1b2c3d-0000-4000-8000-00000000be01"

	SiteWWW     = "c0ffee00-0000-4000-8000-000000000001"
	SiteBlog    = "c0ffee00-0000-4000-8000-000000000002"
	SiteDocs    = "c0ffee00-0000-4000-8000-000000000003"
	SiteShop    = "c0ffee00-0000-4000-8000-000000000004"
	SiteWiki    = "c0ffee00-0000-4000-8000-000000000005"
	SiteSandbox = "c0ffee00-0000-4000-8000-000000000006"
)

// Created is the creation time of every seeded site.
var Created = time.Date(2016, 3, 1, 12, 0, 0, 0, time.UTC)

// Seed populates p with a small world:
//
//   - Acme: no change management; features served only from the features
//     endpoint. Members: session user (admin), Bob (unprivileged). Sites:
//     www (prod, eu, frozen), blog (prod), docs, shop (staging), wiki.
//   - Beta: change management enabled and embedded. Members: session user
//     (admin), Carol (developer). No sites.
//   - The session user belongs directly to www and sandbox.
func Seed(p *Platform) {
	p.AddUser(User{ID: SessionUserID, Email: "ann@example.com", FirstName: "Ann", LastName: "Lee"})
	p.AddUser(User{ID: BobUserID, Email: "bob@example.com", FirstName: "Bob", LastName: "Stone"})
	p.AddUser(User{ID: CarolUserID, Email: "carol@example.com", FirstName: "Carol"})

	p.AddOrganization(Organization{ID: AcmeOrgID, Name: "Acme"})
	p.AddOrganization(Organization{
		ID:            BetaOrgID,
		Name:          "Beta",
		Features:      map[string]bool{"change_management": true},
		EmbedFeatures: true,
	})

	p.AddMember(AcmeOrgID, SessionUserID, "admin")
	p.AddMember(AcmeOrgID, BobUserID, "unprivileged")
	p.AddMember(BetaOrgID, SessionUserID, "admin")
	p.AddMember(BetaOrgID, CarolUserID, "developer")

	for _, s := range []Site{
		{ID: SiteWWW, Name: "www", ServiceLevel: "pro", Framework: "drupal", Frozen: true},
		{ID: SiteBlog, Name: "blog", ServiceLevel: "basic", Framework: "wordpress"},
		{ID: SiteDocs, Name: "docs", ServiceLevel: "free", Framework: "drupal8"},
		{ID: SiteShop, Name: "shop", ServiceLevel: "business", Framework: "wordpress"},
		{ID: SiteWiki, Name: "wiki", ServiceLevel: "free", Framework: "drupal"},
		{ID: SiteSandbox, Name: "sandbox", ServiceLevel: "free", Framework: "wordpress"},
	} {
		s.Created = Created
		p.AddSite(s)
	}

	p.AddOrganizationSite(AcmeOrgID, SiteWWW, "prod", "eu")
	p.AddOrganizationSite(AcmeOrgID, SiteBlog, "prod")
	p.AddOrganizationSite(AcmeOrgID, SiteDocs)
	p.AddOrganizationSite(AcmeOrgID, SiteShop, "staging")
	p.AddOrganizationSite(AcmeOrgID, SiteWiki)

	p.AddUserSite(SessionUserID, SiteWWW)
	p.AddUserSite(SessionUserID, SiteSandbox)
}
