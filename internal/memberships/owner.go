// Package memberships specializes Collection for the membership listings of
// a user or an organization and issues the mutations they support.
package memberships

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-ports/terminus/internal/collection"
	"github.com/go-ports/terminus/internal/workflow"
)

// OwnerKind distinguishes the entity that owns a membership collection.
type OwnerKind int

const (
	OwnerUser OwnerKind = iota
	OwnerOrganization
)

func (k OwnerKind) String() string {
	if k == OwnerOrganization {
		return "organization"
	}
	return "user"
}

// Owner identifies the parent of a membership collection.
type Owner struct {
	Kind OwnerKind
	ID   string
}

// UserOwner returns the owner for user id.
func UserOwner(id string) Owner { return Owner{Kind: OwnerUser, ID: id} }

// OrganizationOwner returns the owner for organization id.
func OrganizationOwner(id string) Owner { return Owner{Kind: OwnerOrganization, ID: id} }

// Path is the owner's API root, e.g. "organizations/<id>".
func (o Owner) Path() string {
	if o.Kind == OwnerOrganization {
		return "organizations/" + o.ID
	}
	return "users/" + o.ID
}

// ListingPath is the membership listing of kind under the owner.
func (o Owner) ListingPath(kind string) string {
	return o.Path() + "/memberships/" + kind
}

func (o Owner) String() string { return o.Kind.String() + " " + o.ID }

// Client is the subset of the API client used by membership collections.
type Client interface {
	collection.Lister
	workflow.StatusFetcher
	Mutate(ctx context.Context, path string, payload any) (json.RawMessage, error)
}

// Workflow operation types.
const (
	OpAddOrgUser    = "add_organization_user_membership"
	OpRemoveOrgUser = "remove_organization_user_membership"
	OpUpdateOrgUser = "update_organization_user_membership"
	OpAddOrgSite    = "add_organization_site_membership"
	OpRemoveOrgSite = "remove_organization_site_membership"
)

// startWorkflow posts op to the owner's workflow endpoint and returns the
// handle. It does not wait.
func startWorkflow(ctx context.Context, client Client, owner Owner, opts workflow.Options, op string, params map[string]any) (*workflow.Workflow, error) {
	raw, err := client.Mutate(ctx, owner.Path()+"/workflows", map[string]any{
		"type":   op,
		"params": params,
	})
	if err != nil {
		return nil, err
	}
	wf, err := workflow.New(owner.Path(), raw, client, opts)
	if err != nil {
		return nil, fmt.Errorf("memberships: %s: %w", op, err)
	}
	return wf, nil
}
