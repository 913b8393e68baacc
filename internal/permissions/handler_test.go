package permissions

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-mdm/meridian-mdm/internal/authz"
	"github.com/meridian-mdm/meridian-mdm/internal/observability"
)

func newTestHandler(t *testing.T, repo *mockRepository, metrics *observability.Metrics) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewService(repo, &mockAudit{}, &mockRefresher{}, "en")
	handler := NewHandler(logger, service, authz.Middleware{Logger: logger}, metrics)

	r := chi.NewRouter()
	r.Put("/{id}", handler.update)
	return r
}

func scrapeMetrics(t *testing.T, metrics *observability.Metrics) string {
	t.Helper()
	recorder := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return recorder.Body.String()
}

func TestUpdateCountsCommittedMutation(t *testing.T) {
	repo := newMockRepository()
	perm := seedPermission(repo)
	metrics := observability.NewMetrics()
	router := newTestHandler(t, repo, metrics)

	body := strings.NewReader(`{"code": "ROLES_EDIT", "comment": "align naming"}`)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPut, "/"+strconv.FormatInt(perm.ID, 10), body))
	require.Equal(t, http.StatusOK, recorder.Code)

	scraped := scrapeMetrics(t, metrics)
	assert.Contains(t, scraped, `meridian_entity_mutations_total{entity="permission"} 1`)
	assert.NotContains(t, scraped, `meridian_noop_saves_total{entity="permission"}`)
}

func TestUpdateCountsNoopSave(t *testing.T) {
	repo := newMockRepository()
	perm := seedPermission(repo)
	metrics := observability.NewMetrics()
	router := newTestHandler(t, repo, metrics)

	// Resubmitting the stored code is an empty diff: no write, no mutation
	// count, one no-op save.
	body := strings.NewReader(`{"code": "ROLES_UPDATE"}`)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPut, "/"+strconv.FormatInt(perm.ID, 10), body))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "no changes to save")
	assert.Zero(t, repo.updateCalls)

	scraped := scrapeMetrics(t, metrics)
	assert.Contains(t, scraped, `meridian_noop_saves_total{entity="permission"} 1`)
	assert.NotContains(t, scraped, `meridian_entity_mutations_total{entity="permission"}`)
}
