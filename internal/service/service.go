// Package service implements the command orchestrator: it resolves
// organizations, members and sites from user input, enforces role policy,
// and hands back listings or the workflow a mutation started.
package service

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/m-mizutani/ctxlog"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/go-ports/terminus/internal/api"
	"github.com/go-ports/terminus/internal/collection"
	"github.com/go-ports/terminus/internal/config"
	"github.com/go-ports/terminus/internal/memberships"
	"github.com/go-ports/terminus/internal/models"
	"github.com/go-ports/terminus/internal/workflow"
)

// Record is one flat output row. Column order is insertion order.
type Record = *orderedmap.OrderedMap[string, any]

func newRecord() Record { return orderedmap.New[string, any]() }

// Listing is the result of a read operation. Notice is set when the listing
// is empty and the caller should tell the user why.
type Listing struct {
	Records []Record
	Notice  string
}

// Service orchestrates organization membership operations for one session.
// It is not safe for concurrent use.
type Service struct {
	Config *config.Config

	client *api.Client
	opts   workflow.Options

	orgMems *memberships.UserOrganizationMemberships
}

// New returns a Service for cfg. A nil httpClient gets the API default.
func New(cfg *config.Config, httpClient *http.Client) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("service.New: %w", err)
	}
	if cfg.API.Token == "" || cfg.API.UserID == "" {
		return nil, fmt.Errorf("service.New: %w", ErrNoSession)
	}
	return &Service{
		Config: cfg,
		client: api.New(cfg.API, httpClient),
		opts:   workflow.OptionsFrom(cfg.Workflow),
	}, nil
}

// UserID returns the session user's ID.
func (s *Service) UserID() string { return s.client.UserID() }

// ---------------------------------------------------------------------------
// Organizations
// ---------------------------------------------------------------------------

// organizations returns the session user's organization memberships,
// fetching them on first use.
func (s *Service) organizations(ctx context.Context) (*memberships.UserOrganizationMemberships, error) {
	if s.orgMems != nil {
		return s.orgMems, nil
	}
	m := memberships.NewUserOrganizationMemberships(s.client.UserID(), s.client)
	if err := m.Populate(ctx); err != nil {
		return nil, fmt.Errorf("service: list organizations: %w", err)
	}
	s.orgMems = m
	return m, nil
}

// Organizations returns the session user's organization memberships in
// listing order.
func (s *Service) Organizations(ctx context.Context) ([]models.UserOrganizationMembership, error) {
	m, err := s.organizations(ctx)
	if err != nil {
		return nil, err
	}
	return m.Slice(), nil
}

// ListOrganizations returns one row per organization: name, id.
func (s *Service) ListOrganizations(ctx context.Context) (Listing, error) {
	orgs, err := s.Organizations(ctx)
	if err != nil {
		return Listing{}, err
	}
	var out Listing
	for _, m := range orgs {
		r := newRecord()
		r.Set("name", m.Organization.Name)
		r.Set("id", m.Organization.ID)
		out.Records = append(out.Records, r)
	}
	if len(out.Records) == 0 {
		out.Notice = "You are not a member of any organization."
	}
	return out, nil
}

// ResolveOrganization resolves ref (ID or name) against the session user's
// organization memberships.
func (s *Service) ResolveOrganization(ctx context.Context, ref string) (models.Organization, error) {
	m, err := s.organizations(ctx)
	if err != nil {
		return models.Organization{}, err
	}
	mem, err := resolve(m.Collection, "organization", ref)
	if err != nil {
		return models.Organization{}, err
	}
	return mem.Organization, nil
}

// resolve looks ref up in coll and converts a miss into an
// UnresolvedIdentifierError.
func resolve[T collection.Entity](coll *collection.Collection[T], kind, ref string) (T, error) {
	e, match := coll.Lookup(ref)
	switch match {
	case collection.Found:
		return e, nil
	case collection.Ambiguous:
		return e, &UnresolvedIdentifierError{Kind: kind, Value: ref, Ambiguous: true}
	default:
		return e, &UnresolvedIdentifierError{Kind: kind, Value: ref}
	}
}

// Features returns org's feature flags, fetching them when the membership
// payload did not carry them.
func (s *Service) Features(ctx context.Context, org models.Organization) (map[string]bool, error) {
	if org.Features != nil {
		return org.Features, nil
	}
	var features map[string]bool
	if err := s.client.Get(ctx, memberships.OrganizationOwner(org.ID).Path()+"/features", &features); err != nil {
		return nil, fmt.Errorf("service: features of %s: %w", org.Name, err)
	}
	if features == nil {
		features = map[string]bool{}
	}
	return features, nil
}

// RoleChoices returns the roles org accepts.
func (s *Service) RoleChoices(ctx context.Context, org models.Organization) ([]models.Role, error) {
	features, err := s.Features(ctx, org)
	if err != nil {
		return nil, err
	}
	return models.AssignableRoles(features[models.FeatureChangeManagement]), nil
}

// ValidateRole returns role when it is one of choices.
func ValidateRole(choices []models.Role, role string) (models.Role, error) {
	if slices.Contains(choices, models.Role(role)) {
		return models.Role(role), nil
	}
	return "", &InvalidRoleError{Role: role, Valid: choices}
}

// ---------------------------------------------------------------------------
// Team
// ---------------------------------------------------------------------------

// Members returns the populated member collection of org.
func (s *Service) Members(ctx context.Context, org models.Organization) (*memberships.OrganizationUserMemberships, error) {
	m := memberships.NewOrganizationUserMemberships(org.ID, s.client, s.opts)
	if err := m.Populate(ctx); err != nil {
		return nil, fmt.Errorf("service: list members of %s: %w", org.Name, err)
	}
	return m, nil
}

// ListTeam returns one row per member of the organization named by orgRef:
// first, last, email, role, uuid.
func (s *Service) ListTeam(ctx context.Context, orgRef string) (Listing, error) {
	org, err := s.ResolveOrganization(ctx, orgRef)
	if err != nil {
		return Listing{}, err
	}
	members, err := s.Members(ctx, org)
	if err != nil {
		return Listing{}, err
	}
	var out Listing
	for m := range members.All() {
		r := newRecord()
		r.Set("first", optional(m.User.FirstName))
		r.Set("last", optional(m.User.LastName))
		r.Set("email", m.User.Email)
		r.Set("role", string(m.Role))
		r.Set("uuid", m.User.ID)
		out.Records = append(out.Records, r)
	}
	if len(out.Records) == 0 {
		out.Notice = fmt.Sprintf("%s has no members.", org.Name)
	}
	return out, nil
}

// AddMember invites email to the organization with role. The role is checked
// against the organization's policy before any request is sent.
func (s *Service) AddMember(ctx context.Context, orgRef, email, role string) (*workflow.Workflow, error) {
	org, err := s.ResolveOrganization(ctx, orgRef)
	if err != nil {
		return nil, err
	}
	if email == "" {
		return nil, &UnresolvedIdentifierError{Kind: "member email"}
	}
	r, err := s.checkRole(ctx, org, role)
	if err != nil {
		return nil, err
	}
	ctxlog.From(ctx).Info("adding member", "org", org.ID, "email", email, "role", r)
	return memberships.NewOrganizationUserMemberships(org.ID, s.client, s.opts).AddMember(ctx, email, r)
}

// RemoveMember removes the member named by memberRef. The session user
// cannot remove themself.
func (s *Service) RemoveMember(ctx context.Context, orgRef, memberRef string) (*workflow.Workflow, error) {
	org, members, member, err := s.member(ctx, orgRef, memberRef)
	if err != nil {
		return nil, err
	}
	if member.User.ID == s.client.UserID() {
		return nil, ErrSelfRemoval
	}
	ctxlog.From(ctx).Info("removing member", "org", org.ID, "user", member.User.ID)
	return members.RemoveMember(ctx, member)
}

// ChangeRole sets the role of the member named by memberRef.
func (s *Service) ChangeRole(ctx context.Context, orgRef, memberRef, role string) (*workflow.Workflow, error) {
	org, members, member, err := s.member(ctx, orgRef, memberRef)
	if err != nil {
		return nil, err
	}
	r, err := s.checkRole(ctx, org, role)
	if err != nil {
		return nil, err
	}
	ctxlog.From(ctx).Info("changing member role", "org", org.ID, "user", member.User.ID, "role", r)
	return members.SetRole(ctx, member, r)
}

func (s *Service) checkRole(ctx context.Context, org models.Organization, role string) (models.Role, error) {
	if r := models.Role(role); r == models.RoleUnprivileged || r == models.RoleAdmin {
		return r, nil
	}
	choices, err := s.RoleChoices(ctx, org)
	if err != nil {
		return "", err
	}
	return ValidateRole(choices, role)
}

// optional maps an empty profile field to nil so it renders as null.
func optional(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func (s *Service) member(ctx context.Context, orgRef, memberRef string) (
	models.Organization, *memberships.OrganizationUserMemberships, models.OrganizationUserMembership, error,
) {
	var zero models.OrganizationUserMembership
	org, err := s.ResolveOrganization(ctx, orgRef)
	if err != nil {
		return models.Organization{}, nil, zero, err
	}
	members, err := s.Members(ctx, org)
	if err != nil {
		return models.Organization{}, nil, zero, err
	}
	member, err := resolve(members.Collection, "member", memberRef)
	if err != nil {
		return models.Organization{}, nil, zero, err
	}
	return org, members, member, nil
}

// ---------------------------------------------------------------------------
// Sites
// ---------------------------------------------------------------------------

// Empty site listing notices.
const (
	NoticeNoSitesCriterion = "No sites match your criterion."
	NoticeNoSitesCriteria  = "No sites match your criteria."
)

// OrganizationSites returns the populated site memberships of org.
func (s *Service) OrganizationSites(ctx context.Context, org models.Organization) (*memberships.OrganizationSiteMemberships, error) {
	m := memberships.NewOrganizationSiteMemberships(org.ID, s.client, s.opts)
	if err := m.Populate(ctx); err != nil {
		return nil, fmt.Errorf("service: list sites of %s: %w", org.Name, err)
	}
	return m, nil
}

// UserSites returns the populated direct site memberships of the session user.
func (s *Service) UserSites(ctx context.Context) (*memberships.UserSiteMemberships, error) {
	m := memberships.NewUserSiteMemberships(s.client.UserID(), s.client)
	if err := m.Populate(ctx); err != nil {
		return nil, fmt.Errorf("service: list your sites: %w", err)
	}
	return m, nil
}

// ListSites returns one row per site of the organization named by orgRef,
// restricted to memberships tagged tag when tag is not empty. Rows carry
// name, id, service_level, framework, created, tags, and frozen only when
// the site is frozen.
func (s *Service) ListSites(ctx context.Context, orgRef, tag string) (Listing, error) {
	org, err := s.ResolveOrganization(ctx, orgRef)
	if err != nil {
		return Listing{}, err
	}
	sites, err := s.OrganizationSites(ctx, org)
	if err != nil {
		return Listing{}, err
	}

	var out Listing
	for _, m := range sites.WithTag(tag) {
		r := newRecord()
		r.Set("name", m.Site.Name)
		r.Set("id", m.Site.ID)
		r.Set("service_level", m.Site.ServiceLevel)
		r.Set("framework", m.Site.Framework)
		r.Set("created", m.Site.Created.Format(models.DateFormat))
		tags := m.Tags
		if tags == nil {
			tags = []string{}
		}
		r.Set("tags", tags)
		if m.Site.Frozen {
			r.Set("frozen", true)
		}
		out.Records = append(out.Records, r)
	}

	if len(out.Records) == 0 {
		out.Notice = NoticeNoSitesCriterion
		if tag != "" {
			out.Notice = NoticeNoSitesCriteria
		}
		ctxlog.From(ctx).Debug("empty site listing", "org", org.ID, "tag", tag)
	}
	return out, nil
}

// AddSite associates a site the session user belongs to with the
// organization.
func (s *Service) AddSite(ctx context.Context, orgRef, siteRef string) (*workflow.Workflow, error) {
	org, err := s.ResolveOrganization(ctx, orgRef)
	if err != nil {
		return nil, err
	}
	own, err := s.UserSites(ctx)
	if err != nil {
		return nil, err
	}
	site, err := resolve(own.Collection, "site", siteRef)
	if err != nil {
		return nil, err
	}
	ctxlog.From(ctx).Info("adding site", "org", org.ID, "site", site.Site.ID)
	return memberships.NewOrganizationSiteMemberships(org.ID, s.client, s.opts).Create(ctx, site.Site)
}

// RemoveSite dissociates one of the organization's sites.
func (s *Service) RemoveSite(ctx context.Context, orgRef, siteRef string) (*workflow.Workflow, error) {
	org, err := s.ResolveOrganization(ctx, orgRef)
	if err != nil {
		return nil, err
	}
	sites, err := s.OrganizationSites(ctx, org)
	if err != nil {
		return nil, err
	}
	site, err := resolve(sites.Collection, "site", siteRef)
	if err != nil {
		return nil, err
	}
	ctxlog.From(ctx).Info("removing site", "org", org.ID, "site", site.Site.ID)
	return sites.Delete(ctx, site.Site)
}
