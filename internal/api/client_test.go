package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/terminus/internal/api"
	"github.com/go-ports/terminus/internal/config"
)

func newClient(srvURL, token string, pageSize int) *api.Client {
	return api.New(config.APIConfig{
		BaseURL:  srvURL,
		Token:    token,
		UserID:   "u-1",
		Timeout:  5 * time.Second,
		PageSize: pageSize,
	}, nil)
}

// ---------------------------------------------------------------------------
// Client.Listing
// ---------------------------------------------------------------------------

func TestListing_HappyPath(t *testing.T) {
	c := qt.New(t)

	c.Run("bare array is a complete listing", func(c *qt.C) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"id":"a"},{"id":"b"}]`))
		}))
		defer srv.Close()

		records, hasMore, err := newClient(srv.URL, "tok", 10).Listing(context.Background(), "users/u-1/memberships/organizations", 0)
		c.Assert(err, qt.IsNil)
		c.Assert(hasMore, qt.IsFalse)
		c.Assert(records, qt.HasLen, 2)
		c.Assert(string(records[1]), qt.Equals, `{"id":"b"}`)
	})

	c.Run("paged envelope reports has_more and sends offsets", func(c *qt.C) {
		var gotQuery string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			_, _ = w.Write([]byte(`{"data":[{"id":"c"}],"has_more":true}`))
		}))
		defer srv.Close()

		records, hasMore, err := newClient(srv.URL, "tok", 25).Listing(context.Background(), "/organizations/o-1/memberships/sites", 2)
		c.Assert(err, qt.IsNil)
		c.Assert(hasMore, qt.IsTrue)
		c.Assert(records, qt.HasLen, 1)
		c.Assert(gotQuery, qt.Equals, "limit=25&start=50")
	})

	c.Run("session headers are sent", func(c *qt.C) {
		var auth, agent string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			agent = r.Header.Get("User-Agent")
			_, _ = w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		_, _, err := newClient(srv.URL, "session-token", 10).Listing(context.Background(), "x", 0)
		c.Assert(err, qt.IsNil)
		c.Assert(auth, qt.Equals, "Bearer session-token")
		c.Assert(agent, qt.Matches, `terminus/.+`)
	})
}

func TestListing_FailurePath(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"401 is unauthorized", http.StatusUnauthorized, api.ErrUnauthorized},
		{"403 is unauthorized", http.StatusForbidden, api.ErrUnauthorized},
		{"404 is not found", http.StatusNotFound, api.ErrNotFound},
		{"500 is transport", http.StatusInternalServerError, api.ErrTransport},
	}

	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			_, _, err := newClient(srv.URL, "tok", 10).Listing(context.Background(), "organizations/o-1/memberships/users", 0)
			var fe *api.RemoteFetchError
			c.Assert(errors.As(err, &fe), qt.IsTrue)
			c.Assert(fe.Path, qt.Equals, "organizations/o-1/memberships/users")
			c.Assert(err, qt.ErrorIs, tt.want)
		})
	}

	c.Run("session token in response body is redacted", func(c *qt.C) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad session leaked-session-token", http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, _, err := newClient(srv.URL, "leaked-session-token", 10).Listing(context.Background(), "x", 0)
		c.Assert(err, qt.IsNotNil)
		c.Assert(err.Error(), qt.Not(qt.Contains), "leaked-session-token")
		c.Assert(err.Error(), qt.Contains, "[REDACTED]")
	})

	c.Run("malformed body is a transport failure", func(c *qt.C) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":`))
		}))
		defer srv.Close()

		_, _, err := newClient(srv.URL, "tok", 10).Listing(context.Background(), "x", 0)
		c.Assert(err, qt.ErrorIs, api.ErrTransport)
	})

	c.Run("object without data is rejected", func(c *qt.C) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error":"maintenance","items":[{"id":"x"}]}`))
		}))
		defer srv.Close()

		records, more, err := newClient(srv.URL, "tok", 10).Listing(context.Background(), "x", 0)
		var fe *api.RemoteFetchError
		c.Assert(errors.As(err, &fe), qt.IsTrue)
		c.Assert(err, qt.ErrorIs, api.ErrTransport)
		c.Assert(records, qt.IsNil)
		c.Assert(more, qt.IsFalse)
	})

	c.Run("unreachable server is a transport failure", func(c *qt.C) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, _, err := newClient(url, "tok", 10).Listing(context.Background(), "x", 0)
		c.Assert(err, qt.ErrorIs, api.ErrTransport)
		c.Assert(api.IsUnauthorized(err), qt.IsFalse)
	})
}

// ---------------------------------------------------------------------------
// Client.Mutate / Client.WorkflowStatus / Client.Get
// ---------------------------------------------------------------------------

func TestMutate_HappyPath(t *testing.T) {
	c := qt.New(t)

	var method, path string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		_, _ = w.Write([]byte(`{"id":"wf-1","status":"created"}`))
	}))
	defer srv.Close()

	raw, err := newClient(srv.URL, "tok", 10).Mutate(context.Background(), "organizations/o-1/workflows", map[string]any{
		"type":   "add_organization_user_membership",
		"params": map[string]any{"user_email": "a@example.com", "role": "admin"},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(string(raw), qt.Equals, `{"id":"wf-1","status":"created"}`)
	c.Assert(method, qt.Equals, http.MethodPost)
	c.Assert(path, qt.Equals, "/organizations/o-1/workflows")
	c.Assert(payload["type"], qt.Equals, "add_organization_user_membership")
}

func TestMutate_FailurePath(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, "tok", 10).Mutate(context.Background(), "organizations/o-1/workflows", map[string]any{})
	var me *api.RemoteMutationError
	c.Assert(errors.As(err, &me), qt.IsTrue)
	c.Assert(api.IsUnauthorized(err), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, `mutate organizations/o-1/workflows: unauthorized: HTTP 403: forbidden`)
}

func TestWorkflowStatus_HappyPath(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.URL.Path, qt.Equals, "/organizations/o-1/workflows/wf-1")
		_, _ = w.Write([]byte(`{"id":"wf-1","status":"running"}`))
	}))
	defer srv.Close()

	raw, err := newClient(srv.URL, "tok", 10).WorkflowStatus(context.Background(), "organizations/o-1/workflows/wf-1")
	c.Assert(err, qt.IsNil)
	c.Assert(string(raw), qt.Contains, `"running"`)
}

func TestGet_HappyPath(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"change_management":true}`))
	}))
	defer srv.Close()

	var features map[string]bool
	err := newClient(srv.URL, "tok", 10).Get(context.Background(), "organizations/o-1/features", &features)
	c.Assert(err, qt.IsNil)
	c.Assert(features["change_management"], qt.IsTrue)
}

func TestGet_FailurePath(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	var out map[string]any
	err := newClient(srv.URL, "tok", 10).Get(context.Background(), "organizations/missing", &out)
	c.Assert(err, qt.ErrorIs, api.ErrNotFound)
}

func TestNew_Defaults(t *testing.T) {
	c := qt.New(t)
	cl := api.New(config.APIConfig{BaseURL: "http://x/", UserID: "me"}, nil)
	c.Assert(cl.PageSize(), qt.Equals, 100)
	c.Assert(cl.UserID(), qt.Equals, "me")
}
