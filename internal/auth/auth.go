// Package auth holds per-role bearer tokens obtained by login probes and
// attaches them to subsequent requests by role name.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/beatspace-qa/harness/internal/config"
	"github.com/beatspace-qa/harness/internal/probe"
)

// LoginEndpoint is the login path relative to the API base, declared once
// for the whole harness.
const LoginEndpoint = "/auth/login"

// Entry is one role's authenticated identity for the lifetime of a run.
type Entry struct {
	Token      string
	UserID     string
	Email      string
	Role       string
	ObtainedAt time.Time
}

// Context maps role names to login entries. It implements
// probe.TokenSource so the HTTP client can inject Authorization headers.
type Context struct {
	entries map[string]Entry
}

// NewContext creates an empty auth context.
func NewContext() *Context {
	return &Context{entries: make(map[string]Entry)}
}

// Token returns the bearer token for a role.
func (a *Context) Token(role string) (string, bool) {
	e, ok := a.entries[role]
	return e.Token, ok
}

// Entry returns the full login entry for a role.
func (a *Context) Entry(role string) (Entry, bool) {
	e, ok := a.entries[role]
	return e, ok
}

// Has reports whether a role has logged in.
func (a *Context) Has(role string) bool {
	_, ok := a.entries[role]
	return ok
}

// Logout drops a role's entry.
func (a *Context) Logout(role string) {
	delete(a.entries, role)
}

// Login executes the login probe for a role using the configured
// credentials and stores the resulting token. A login failure is a normal
// Result failure; no entry is stored and dependent steps will skip.
func (a *Context) Login(ctx context.Context, c *probe.Client, role string, cred config.Credentials) probe.Result {
	res := c.Do(ctx, probe.Probe{
		Name:           fmt.Sprintf("%s login", role),
		Method:         http.MethodPost,
		Endpoint:       LoginEndpoint,
		ExpectedStatus: http.StatusOK,
		Body:           map[string]string{"email": cred.Email, "password": cred.Password},
		RequireJSON:    true,
	})
	if !res.Success {
		return res
	}

	token, ok := probe.StringField(res.Body, "access_token")
	if !ok || token == "" {
		return res.Fail(probe.KindShape, "missing fields: access_token")
	}

	entry := Entry{Token: token, ObtainedAt: time.Now()}
	if v, ok := probe.NestedField(res.Body, "user.id"); ok {
		entry.UserID = fmt.Sprintf("%v", v)
	}
	if v, ok := probe.NestedField(res.Body, "user.email"); ok {
		entry.Email = fmt.Sprintf("%v", v)
	}
	if v, ok := probe.NestedField(res.Body, "user.role"); ok {
		entry.Role = fmt.Sprintf("%v", v)
	}
	a.entries[role] = entry
	return res
}
