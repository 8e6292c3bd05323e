// Package webtest builds requests and collaborators for handler tests.
package webtest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/activos-fijos/activos/internal/auth"
	"github.com/activos-fijos/activos/internal/credentials"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/shared"
	_ "github.com/activos-fijos/activos/internal/testing/guard"
	"github.com/activos-fijos/activos/internal/view"
)

// CSRFSecret signs the CSRF tokens of test requests.
const CSRFSecret = "webtest-csrf-secret"

// Engine parses the embedded templates or fails the test.
func Engine(t testing.TB) *view.Engine {
	t.Helper()
	engine, err := view.NewEngine()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	return engine
}

// CSRF returns the manager matching CSRFSecret.
func CSRF() *shared.CSRFManager {
	return shared.NewCSRFManager(CSRFSecret)
}

// Failer returns the production error responder over an in-memory store.
func Failer(engine *view.Engine) *auth.Middleware {
	return &auth.Middleware{Store: credentials.NewMemoryStore(), Templates: engine, CSRF: CSRF()}
}

// Session returns a fresh unsaved session.
func Session(t testing.TB) *shared.Session {
	t.Helper()
	sm := shared.NewSessionManager(nil, shared.SessionConfig{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(req.Context(), req)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return sess
}

// Request builds a request carrying sess, a signed-in user and the table
// merged from perms. A non-nil form is sent url-encoded.
func Request(t testing.TB, sess *shared.Session, method, target string, form url.Values, perms ...rbac.Permission) *http.Request {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if sess == nil {
		sess = Session(t)
	}
	user := credentials.User{ID: 1, Email: "capitan@bomberos.local", Name: "Capitán"}
	ctx := shared.ContextWithSession(req.Context(), sess)
	ctx = credentials.WithKey(ctx, sess.ID)
	ctx = credentials.WithUser(ctx, user)
	ctx = rbac.ContextWithTable(ctx, rbac.Merge(perms))
	return req.WithContext(ctx)
}

// Grant is shorthand for one permission.
func Grant(subject string, actions ...string) rbac.Permission {
	return rbac.Permission{Subject: subject, Actions: actions}
}

// Serve runs h on req and commits the request session through sm before
// the first byte goes out, so Set-Cookie lands on the recorder.
func Serve(t testing.TB, h http.Handler, sm *shared.SessionManager, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := &committingRecorder{ResponseRecorder: httptest.NewRecorder()}
	rec.commit = func() {
		if err := sm.Commit(req.Context(), rec.ResponseRecorder, req, shared.SessionFromContext(req.Context())); err != nil {
			t.Errorf("commit session: %v", err)
		}
	}
	h.ServeHTTP(rec, req)
	rec.commitOnce()
	return rec.ResponseRecorder
}

type committingRecorder struct {
	*httptest.ResponseRecorder
	commit func()
	done   bool
}

func (c *committingRecorder) commitOnce() {
	if !c.done {
		c.done = true
		c.commit()
	}
}

func (c *committingRecorder) WriteHeader(code int) {
	c.commitOnce()
	c.ResponseRecorder.WriteHeader(code)
}

func (c *committingRecorder) Write(b []byte) (int, error) {
	c.commitOnce()
	return c.ResponseRecorder.Write(b)
}

func (c *committingRecorder) WriteString(s string) (int, error) {
	return c.Write([]byte(s))
}
