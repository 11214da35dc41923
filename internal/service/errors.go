package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/go-ports/terminus/internal/models"
)

var (
	// ErrUnresolved is wrapped by UnresolvedIdentifierError.
	ErrUnresolved = errors.New("unresolved identifier")
	// ErrInvalidRole is wrapped by InvalidRoleError.
	ErrInvalidRole = errors.New("invalid role")
	// ErrSelfRemoval rejects removing the session user from an organization.
	ErrSelfRemoval = errors.New("you cannot remove yourself from an organization")
	// ErrNoSession means no token or user ID is configured.
	ErrNoSession = errors.New("no session: set api.token and api.user_id or TERMINUS_TOKEN and TERMINUS_USER")
)

// UnresolvedIdentifierError reports user input that names no entity, or
// names several.
type UnresolvedIdentifierError struct {
	Kind      string
	Value     string
	Ambiguous bool
}

func (e *UnresolvedIdentifierError) Error() string {
	switch {
	case e.Value == "":
		return fmt.Sprintf("no %s given", e.Kind)
	case e.Ambiguous:
		return fmt.Sprintf("%s name %q is ambiguous; use its ID instead", e.Kind, e.Value)
	case isUUID(e.Value):
		return fmt.Sprintf("%s %s is either invalid or you lack permission to access it", e.Kind, e.Value)
	default:
		return fmt.Sprintf("no %s named %q is accessible to you", e.Kind, e.Value)
	}
}

func (e *UnresolvedIdentifierError) Unwrap() error { return ErrUnresolved }

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// InvalidRoleError reports a role outside the organization's assignable set.
type InvalidRoleError struct {
	Role  string
	Valid []models.Role
}

func (e *InvalidRoleError) Error() string {
	names := make([]string, len(e.Valid))
	for i, r := range e.Valid {
		names[i] = string(r)
	}
	return fmt.Sprintf("invalid role %q: choose one of %s", e.Role, strings.Join(names, ", "))
}

func (e *InvalidRoleError) Unwrap() error { return ErrInvalidRole }
