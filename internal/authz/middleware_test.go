package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func performRequest(t *testing.T, mw func(http.Handler) http.Handler, ac *Context) *httptest.ResponseRecorder {
	t.Helper()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	if ac != nil {
		req = req.WithContext(WithContext(req.Context(), ac))
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestRequireAnyWithoutContextFailsClosed(t *testing.T) {
	m := Middleware{}
	res := performRequest(t, m.RequireAny("roles:read"), nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireAnyGranted(t *testing.T) {
	m := Middleware{}
	ac := &Context{Set: Set{"roles:read": {}}}
	res := performRequest(t, m.RequireAny("roles:read", "roles:update"), ac)
	assert.Equal(t, http.StatusNoContent, res.Code)
}

func TestRequireAllDeniedOnMissingCode(t *testing.T) {
	m := Middleware{}
	ac := &Context{Set: Set{"roles:read": {}}}
	res := performRequest(t, m.RequireAll("roles:read", "roles:update"), ac)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireActionChecksBothConventions(t *testing.T) {
	m := Middleware{}

	legacy := &Context{Set: Set{"ROLES_UPDATE": {}}}
	res := performRequest(t, m.RequireAction("roles", ActionUpdate), legacy)
	assert.Equal(t, http.StatusNoContent, res.Code)

	colon := &Context{Set: Set{"roles:update": {}}}
	res = performRequest(t, m.RequireAction("roles", ActionUpdate), colon)
	assert.Equal(t, http.StatusNoContent, res.Code)
}

func TestRequireActionAdminWildcard(t *testing.T) {
	m := Middleware{}
	ac := NewContext(&Subject{ID: 1, IsAdmin: true}, "0")
	res := performRequest(t, m.RequireAction("anything", ActionDelete), ac)
	assert.Equal(t, http.StatusNoContent, res.Code)
}

func TestRequireAnyNoCodesPassesThrough(t *testing.T) {
	m := Middleware{}
	res := performRequest(t, m.RequireAny(), nil)
	assert.Equal(t, http.StatusNoContent, res.Code)
}
