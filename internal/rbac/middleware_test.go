package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAllowsGrantedAction(t *testing.T) {
	table := Merge([]Permission{{Subject: "activos", Actions: []string{"read"}}})
	handler := Middleware{}.Require(SubjectActivos, ActionRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/activos", nil)
	req = req.WithContext(ContextWithTable(req.Context(), table))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRequireRejectsMissingAction(t *testing.T) {
	table := Merge([]Permission{{Subject: "activos", Actions: []string{"read"}}})
	handler := Middleware{}.Require(SubjectActivos, ActionDelete)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/activos/1/delete", nil)
	req = req.WithContext(ContextWithTable(req.Context(), table))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireWithoutTable(t *testing.T) {
	handler := Middleware{}.Require(SubjectRoles)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/roles", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
