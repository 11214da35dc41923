// Package apitest runs an in-process fake of the hosting platform API for
// tests. It serves paged membership listings, feature flags, and workflows
// that step created, running, then succeeded or failed on successive polls
// and apply their mutation when they succeed.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/go-ports/terminus/internal/api"
	"github.com/go-ports/terminus/internal/config"
)

// Token is the only bearer token the platform accepts.
const Token = "apitest-session-token"

// User seeds a platform account.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

// Organization seeds an organization. When EmbedFeatures is false the
// features are only served from organizations/{id}/features.
type Organization struct {
	ID            string
	Name          string
	Features      map[string]bool
	EmbedFeatures bool
}

// Site seeds a site.
type Site struct {
	ID           string
	Name         string
	ServiceLevel string
	Framework    string
	Created      time.Time
	Frozen       bool
}

type member struct {
	userID string
	role   string
}

type siteLink struct {
	siteID string
	tags   []string
}

type workflowRecord struct {
	id          string
	orgID       string
	op          string
	params      map[string]any
	status      string
	description string
	reason      string
}

// Platform is the fake API. All methods are safe for concurrent use.
type Platform struct {
	srv *httptest.Server

	mu        sync.Mutex
	users     []*User
	orgs      []*Organization
	sites     []*Site
	members   map[string][]member   // org ID -> members in join order
	orgSites  map[string][]siteLink // org ID -> associated sites
	userSites map[string][]string   // user ID -> site IDs
	workflows map[string]*workflowRecord
	failWith  string
	featErr   int
	mutations int
}

// New starts a platform and registers its shutdown with tb.
func New(tb testing.TB) *Platform {
	tb.Helper()

	p := &Platform{
		members:   map[string][]member{},
		orgSites:  map[string][]siteLink{},
		userSites: map[string][]string{},
		workflows: map[string]*workflowRecord{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/{uid}/memberships/organizations", p.authorized(p.listUserOrganizations))
	mux.HandleFunc("GET /users/{uid}/memberships/sites", p.authorized(p.listUserSites))
	mux.HandleFunc("GET /organizations/{oid}/memberships/users", p.authorized(p.listOrganizationUsers))
	mux.HandleFunc("GET /organizations/{oid}/memberships/sites", p.authorized(p.listOrganizationSites))
	mux.HandleFunc("GET /organizations/{oid}/features", p.authorized(p.features))
	mux.HandleFunc("POST /organizations/{oid}/workflows", p.authorized(p.createWorkflow))
	mux.HandleFunc("GET /organizations/{oid}/workflows/{wid}", p.authorized(p.pollWorkflow))

	p.srv = httptest.NewServer(mux)
	tb.Cleanup(p.srv.Close)
	return p
}

// URL returns the API base URL.
func (p *Platform) URL() string { return p.srv.URL }

// APIConfig returns client settings for a session as userID.
func (p *Platform) APIConfig(userID string) config.APIConfig {
	return config.APIConfig{
		BaseURL:  p.srv.URL,
		Token:    Token,
		UserID:   userID,
		Timeout:  5 * time.Second,
		PageSize: 2,
	}
}

// Client returns an API client for a session as userID. The page size is
// small so listings exercise pagination.
func (p *Platform) Client(userID string) *api.Client {
	return api.New(p.APIConfig(userID), p.srv.Client())
}

// ---------------------------------------------------------------------------
// Seeding and inspection
// ---------------------------------------------------------------------------

// AddUser seeds a user.
func (p *Platform) AddUser(u User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, &u)
}

// AddOrganization seeds an organization.
func (p *Platform) AddOrganization(o Organization) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orgs = append(p.orgs, &o)
}

// AddSite seeds a site.
func (p *Platform) AddSite(s Site) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sites = append(p.sites, &s)
}

// AddMember makes userID a member of orgID with role.
func (p *Platform) AddMember(orgID, userID, role string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[orgID] = append(p.members[orgID], member{userID: userID, role: role})
}

// AddOrganizationSite associates siteID with orgID.
func (p *Platform) AddOrganizationSite(orgID, siteID string, tags ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orgSites[orgID] = append(p.orgSites[orgID], siteLink{siteID: siteID, tags: tags})
}

// AddUserSite makes userID a direct member of siteID.
func (p *Platform) AddUserSite(userID, siteID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userSites[userID] = append(p.userSites[userID], siteID)
}

// FailWorkflows makes every subsequent workflow fail with reason. An empty
// reason restores success.
func (p *Platform) FailWorkflows(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWith = reason
}

// FailFeatures makes the features endpoint answer with status. Zero restores
// normal responses.
func (p *Platform) FailFeatures(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.featErr = status
}

// Mutations returns the number of workflows created.
func (p *Platform) Mutations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mutations
}

// Role returns userID's role in orgID and whether they are a member.
func (p *Platform) Role(orgID, userID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.members[orgID] {
		if m.userID == userID {
			return m.role, true
		}
	}
	return "", false
}

// MemberByEmail returns the ID of the member of orgID with email.
func (p *Platform) MemberByEmail(orgID, email string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := p.userByEmail(email)
	if u == nil {
		return "", false
	}
	for _, m := range p.members[orgID] {
		if m.userID == u.ID {
			return u.ID, true
		}
	}
	return "", false
}

// OrganizationSites returns the IDs of the sites associated with orgID.
func (p *Platform) OrganizationSites(orgID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []string
	for _, l := range p.orgSites[orgID] {
		ids = append(ids, l.siteID)
	}
	return ids
}

// ---------------------------------------------------------------------------
// Lookups (callers hold mu)
// ---------------------------------------------------------------------------

func (p *Platform) user(id string) *User {
	for _, u := range p.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (p *Platform) userByEmail(email string) *User {
	for _, u := range p.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (p *Platform) org(id string) *Organization {
	for _, o := range p.orgs {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (p *Platform) site(id string) *Site {
	for _, s := range p.sites {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Payloads
// ---------------------------------------------------------------------------

func orgPayload(o *Organization) map[string]any {
	out := map[string]any{
		"id":      o.ID,
		"profile": map[string]any{"name": o.Name},
	}
	if o.EmbedFeatures {
		out["features"] = o.Features
	}
	return out
}

func userPayload(u *User) map[string]any {
	profile := map[string]any{}
	if u.FirstName != "" {
		profile["firstname"] = u.FirstName
	}
	if u.LastName != "" {
		profile["lastname"] = u.LastName
	}
	return map[string]any{"id": u.ID, "email": u.Email, "profile": profile}
}

func sitePayload(s *Site) map[string]any {
	out := map[string]any{
		"id":            s.ID,
		"name":          s.Name,
		"service_level": s.ServiceLevel,
		"framework":     s.Framework,
		"created":       s.Created.Unix(),
	}
	if s.Frozen {
		out["frozen"] = true
	}
	return out
}

func (w *workflowRecord) payload() map[string]any {
	out := map[string]any{
		"id":          w.id,
		"type":        w.op,
		"status":      w.status,
		"description": w.description,
	}
	if w.reason != "" {
		out["final_task"] = map[string]any{"reason": w.reason}
	}
	if w.status == "succeeded" {
		out["result"] = map[string]any{"params": w.params}
	}
	return out
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (*Platform) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			http.Error(w, `{"error":"invalid session"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writePage serves records as a paged envelope when the request carries a
// limit, and as a bare array otherwise.
func writePage(w http.ResponseWriter, r *http.Request, records []map[string]any) {
	if records == nil {
		records = []map[string]any{}
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		writeJSON(w, records)
		return
	}
	start, _ := strconv.Atoi(r.URL.Query().Get("start"))
	start = min(max(start, 0), len(records))
	end := min(start+limit, len(records))
	writeJSON(w, map[string]any{
		"data":     records[start:end],
		"has_more": end < len(records),
	})
}

func (p *Platform) listUserOrganizations(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	uid := r.PathValue("uid")
	var records []map[string]any
	for _, o := range p.orgs {
		for _, m := range p.members[o.ID] {
			if m.userID == uid {
				records = append(records, map[string]any{
					"id":           o.ID,
					"role":         m.role,
					"organization": orgPayload(o),
				})
			}
		}
	}
	writePage(w, r, records)
}

func (p *Platform) listUserSites(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var records []map[string]any
	for _, id := range p.userSites[r.PathValue("uid")] {
		if s := p.site(id); s != nil {
			records = append(records, map[string]any{"id": s.ID, "site": sitePayload(s)})
		}
	}
	writePage(w, r, records)
}

func (p *Platform) listOrganizationUsers(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	oid := r.PathValue("oid")
	if p.org(oid) == nil {
		http.NotFound(w, r)
		return
	}
	var records []map[string]any
	for _, m := range p.members[oid] {
		if u := p.user(m.userID); u != nil {
			records = append(records, map[string]any{
				"id":   oid + ":" + u.ID,
				"role": m.role,
				"user": userPayload(u),
			})
		}
	}
	writePage(w, r, records)
}

func (p *Platform) listOrganizationSites(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	oid := r.PathValue("oid")
	if p.org(oid) == nil {
		http.NotFound(w, r)
		return
	}
	var records []map[string]any
	for _, l := range p.orgSites[oid] {
		if s := p.site(l.siteID); s != nil {
			tags := l.tags
			if tags == nil {
				tags = []string{}
			}
			records = append(records, map[string]any{"id": s.ID, "tags": tags, "site": sitePayload(s)})
		}
	}
	writePage(w, r, records)
}

func (p *Platform) features(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.featErr != 0 {
		http.Error(w, `{"error":"features unavailable"}`, p.featErr)
		return
	}
	o := p.org(r.PathValue("oid"))
	if o == nil {
		http.NotFound(w, r)
		return
	}
	features := o.Features
	if features == nil {
		features = map[string]bool{}
	}
	writeJSON(w, features)
}

func (p *Platform) createWorkflow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type   string         `json:"type"`
		Params map[string]any `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	o := p.org(r.PathValue("oid"))
	if o == nil {
		http.NotFound(w, r)
		return
	}
	desc, ok := describe(o, req.Type, req.Params)
	if !ok {
		http.Error(w, "unknown workflow type "+req.Type, http.StatusBadRequest)
		return
	}

	wf := &workflowRecord{
		id:          uuid.NewString(),
		orgID:       o.ID,
		op:          req.Type,
		params:      req.Params,
		status:      "created",
		description: desc,
	}
	p.workflows[wf.id] = wf
	p.mutations++
	writeJSON(w, wf.payload())
}

// pollWorkflow advances the workflow one state per poll.
func (p *Platform) pollWorkflow(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wf, ok := p.workflows[r.PathValue("wid")]
	if !ok || wf.orgID != r.PathValue("oid") {
		http.NotFound(w, r)
		return
	}
	switch wf.status {
	case "created":
		wf.status = "running"
	case "running":
		reason := p.failWith
		if reason == "" {
			reason = p.apply(wf)
		}
		if reason != "" {
			wf.status, wf.reason = "failed", reason
		} else {
			wf.status = "succeeded"
		}
	}
	writeJSON(w, wf.payload())
}

func describe(o *Organization, op string, params map[string]any) (string, bool) {
	switch op {
	case "add_organization_user_membership":
		return fmt.Sprintf("Add %v to %s", params["user_email"], o.Name), true
	case "remove_organization_user_membership":
		return fmt.Sprintf("Remove user from %s", o.Name), true
	case "update_organization_user_membership":
		return fmt.Sprintf("Update role to %v in %s", params["role"], o.Name), true
	case "add_organization_site_membership":
		return fmt.Sprintf("Add site to %s", o.Name), true
	case "remove_organization_site_membership":
		return fmt.Sprintf("Remove site from %s", o.Name), true
	}
	return "", false
}

// apply performs wf's mutation and returns a failure reason, or "".
func (p *Platform) apply(wf *workflowRecord) string {
	str := func(k string) string {
		s, _ := wf.params[k].(string)
		return s
	}
	oid := wf.orgID
	memberIndex := func(userID string) int {
		return slices.IndexFunc(p.members[oid], func(m member) bool { return m.userID == userID })
	}
	siteIndex := func(siteID string) int {
		return slices.IndexFunc(p.orgSites[oid], func(l siteLink) bool { return l.siteID == siteID })
	}

	switch wf.op {
	case "add_organization_user_membership":
		u := p.userByEmail(str("user_email"))
		if u == nil {
			u = &User{ID: uuid.NewString(), Email: str("user_email")}
			p.users = append(p.users, u)
		}
		if memberIndex(u.ID) >= 0 {
			return "user is already a member of the organization"
		}
		p.members[oid] = append(p.members[oid], member{userID: u.ID, role: str("role")})
	case "remove_organization_user_membership":
		i := memberIndex(str("user_id"))
		if i < 0 {
			return "user is not a member of the organization"
		}
		p.members[oid] = slices.Delete(p.members[oid], i, i+1)
	case "update_organization_user_membership":
		i := memberIndex(str("user_id"))
		if i < 0 {
			return "user is not a member of the organization"
		}
		p.members[oid][i].role = str("role")
	case "add_organization_site_membership":
		if p.site(str("site_id")) == nil {
			return "site does not exist"
		}
		if siteIndex(str("site_id")) >= 0 {
			return "site is already in the organization"
		}
		p.orgSites[oid] = append(p.orgSites[oid], siteLink{siteID: str("site_id")})
	case "remove_organization_site_membership":
		i := siteIndex(str("site_id"))
		if i < 0 {
			return "site is not in the organization"
		}
		p.orgSites[oid] = slices.Delete(p.orgSites[oid], i, i+1)
	}
	return ""
}
