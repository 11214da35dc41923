package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/yalp/jsonpath"
)

// Parse failure causes.
var (
	ErrMissingField = errors.New("missing required field")
	ErrWrongType    = errors.New("wrong type")
	ErrInvalidValue = errors.New("invalid value")
)

// ParseError reports a payload whose shape does not match its entity kind.
type ParseError struct {
	Kind  string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("parse %s: %s: %v", e.Kind, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// document wraps a decoded JSON object and reads typed fields from it by
// JSON path, recording the entity kind for errors.
type document struct {
	kind string
	root any
}

func decode(kind string, raw []byte) (document, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return document{}, &ParseError{Kind: kind, Err: err}
	}
	if _, ok := v.(map[string]any); !ok {
		return document{}, &ParseError{Kind: kind, Err: fmt.Errorf("%w: expected object, got %s", ErrWrongType, jsonType(v))}
	}
	return document{kind: kind, root: v}, nil
}

// lookup returns the value at field ("a.b") and whether it is present and
// non-null.
func (d document) lookup(field string) (any, bool) {
	v, err := jsonpath.Read(d.root, "$."+field)
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

func (d document) fail(field string, err error) error {
	return &ParseError{Kind: d.kind, Field: field, Err: err}
}

func (d document) wrongType(field, want string, got any) error {
	return d.fail(field, fmt.Errorf("%w: expected %s, got %s", ErrWrongType, want, jsonType(got)))
}

func (d document) requiredString(field string) (string, error) {
	v, ok := d.lookup(field)
	if !ok {
		return "", d.fail(field, ErrMissingField)
	}
	s, ok := v.(string)
	if !ok {
		return "", d.wrongType(field, "string", v)
	}
	if s == "" {
		return "", d.fail(field, ErrMissingField)
	}
	return s, nil
}

func (d document) optionalString(field string) (string, error) {
	v, ok := d.lookup(field)
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", d.wrongType(field, "string", v)
	}
	return s, nil
}

func (d document) optionalBool(field string) (bool, error) {
	v, ok := d.lookup(field)
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, d.wrongType(field, "boolean", v)
	}
	return b, nil
}

// optionalUnix reads a Unix timestamp in seconds.
func (d document) optionalUnix(field string) (time.Time, error) {
	v, ok := d.lookup(field)
	if !ok {
		return time.Time{}, nil
	}
	n, ok := v.(float64)
	if !ok {
		return time.Time{}, d.wrongType(field, "number", v)
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}

func (d document) optionalStrings(field string) ([]string, error) {
	v, ok := d.lookup(field)
	if !ok {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, d.wrongType(field, "array", v)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, d.wrongType(fmt.Sprintf("%s[%d]", field, i), "string", item)
		}
		out = append(out, s)
	}
	return out, nil
}

func (d document) optionalFlags(field string) (map[string]bool, error) {
	v, ok := d.lookup(field)
	if !ok {
		return nil, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, d.wrongType(field, "object", v)
	}
	flags := make(map[string]bool, len(obj))
	for k, raw := range obj {
		b, ok := raw.(bool)
		if !ok {
			return nil, d.wrongType(field+"."+k, "boolean", raw)
		}
		flags[k] = b
	}
	return flags, nil
}

// object returns the nested object at field as a document of kind.
func (d document) object(field, kind string, required bool) (document, bool, error) {
	v, ok := d.lookup(field)
	if !ok {
		if required {
			return document{}, false, d.fail(field, ErrMissingField)
		}
		return document{}, false, nil
	}
	if _, ok := v.(map[string]any); !ok {
		return document{}, false, d.wrongType(field, "object", v)
	}
	return document{kind: kind, root: v}, true, nil
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// ---------------------------------------------------------------------------
// Entity parsers
// ---------------------------------------------------------------------------

// ParseOrganization parses {id, profile:{name}, features?}.
func ParseOrganization(raw []byte) (Organization, error) {
	d, err := decode("organization", raw)
	if err != nil {
		return Organization{}, err
	}
	return organizationFrom(d)
}

func organizationFrom(d document) (Organization, error) {
	var (
		o   Organization
		err error
	)
	if o.ID, err = d.requiredString("id"); err != nil {
		return Organization{}, err
	}
	if o.Name, err = d.requiredString("profile.name"); err != nil {
		return Organization{}, err
	}
	if o.Features, err = d.optionalFlags("features"); err != nil {
		return Organization{}, err
	}
	return o, nil
}

// ParseUser parses {id, email, profile?:{firstname, lastname, full_name}}.
func ParseUser(raw []byte) (User, error) {
	d, err := decode("user", raw)
	if err != nil {
		return User{}, err
	}
	return userFrom(d)
}

func userFrom(d document) (User, error) {
	var (
		u   User
		err error
	)
	if u.ID, err = d.requiredString("id"); err != nil {
		return User{}, err
	}
	if u.Email, err = d.optionalString("email"); err != nil {
		return User{}, err
	}
	if u.FirstName, err = d.optionalString("profile.firstname"); err != nil {
		return User{}, err
	}
	if u.LastName, err = d.optionalString("profile.lastname"); err != nil {
		return User{}, err
	}
	if u.FullName, err = d.optionalString("profile.full_name"); err != nil {
		return User{}, err
	}
	return u, nil
}

// ParseSite parses {id, name, service_level, framework, created, frozen?}.
func ParseSite(raw []byte) (Site, error) {
	d, err := decode("site", raw)
	if err != nil {
		return Site{}, err
	}
	return siteFrom(d)
}

func siteFrom(d document) (Site, error) {
	var (
		s   Site
		err error
	)
	if s.ID, err = d.requiredString("id"); err != nil {
		return Site{}, err
	}
	if s.Name, err = d.requiredString("name"); err != nil {
		return Site{}, err
	}
	if s.ServiceLevel, err = d.optionalString("service_level"); err != nil {
		return Site{}, err
	}
	if s.Framework, err = d.optionalString("framework"); err != nil {
		return Site{}, err
	}
	if s.Created, err = d.optionalUnix("created"); err != nil {
		return Site{}, err
	}
	if s.Frozen, err = d.optionalBool("frozen"); err != nil {
		return Site{}, err
	}
	return s, nil
}

// ParseUserOrganizationMembership parses {id, role, profile?:{name}, organization}.
// A missing id falls back to the organization's ID.
func ParseUserOrganizationMembership(raw []byte) (UserOrganizationMembership, error) {
	d, err := decode("user organization membership", raw)
	if err != nil {
		return UserOrganizationMembership{}, err
	}
	var m UserOrganizationMembership
	orgDoc, _, err := d.object("organization", "organization", true)
	if err != nil {
		return UserOrganizationMembership{}, err
	}
	if m.Organization, err = organizationFrom(orgDoc); err != nil {
		return UserOrganizationMembership{}, err
	}
	if m.ID, err = d.optionalString("id"); err != nil {
		return UserOrganizationMembership{}, err
	}
	if m.ID == "" {
		m.ID = m.Organization.ID
	}
	role, err := d.optionalString("role")
	if err != nil {
		return UserOrganizationMembership{}, err
	}
	m.Role = Role(role)
	if m.Name, err = d.optionalString("profile.name"); err != nil {
		return UserOrganizationMembership{}, err
	}
	return m, nil
}

// ParseOrganizationUserMembership parses {id, role, user}.
func ParseOrganizationUserMembership(raw []byte) (OrganizationUserMembership, error) {
	d, err := decode("organization user membership", raw)
	if err != nil {
		return OrganizationUserMembership{}, err
	}
	var m OrganizationUserMembership
	userDoc, _, err := d.object("user", "user", true)
	if err != nil {
		return OrganizationUserMembership{}, err
	}
	if m.User, err = userFrom(userDoc); err != nil {
		return OrganizationUserMembership{}, err
	}
	if m.ID, err = d.optionalString("id"); err != nil {
		return OrganizationUserMembership{}, err
	}
	if m.ID == "" {
		m.ID = m.User.ID
	}
	role, err := d.optionalString("role")
	if err != nil {
		return OrganizationUserMembership{}, err
	}
	m.Role = Role(role)
	return m, nil
}

// ParseSiteMembership parses {id, tags?, site}.
func ParseSiteMembership(raw []byte) (SiteMembership, error) {
	d, err := decode("site membership", raw)
	if err != nil {
		return SiteMembership{}, err
	}
	var m SiteMembership
	siteDoc, _, err := d.object("site", "site", true)
	if err != nil {
		return SiteMembership{}, err
	}
	if m.Site, err = siteFrom(siteDoc); err != nil {
		return SiteMembership{}, err
	}
	if m.ID, err = d.optionalString("id"); err != nil {
		return SiteMembership{}, err
	}
	if m.ID == "" {
		m.ID = m.Site.ID
	}
	if m.Tags, err = d.optionalStrings("tags"); err != nil {
		return SiteMembership{}, err
	}
	return m, nil
}
