package httpapi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessLogCarriesCandidateAndErrorCode(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	f.srv = NewServer(f.srv.deps, slog.New(slog.NewJSONHandler(&buf, nil)))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/matches/r9-l9/confirm", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))

	var access map[string]any
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		if line["msg"] == "http_request" {
			access = line
		}
	}
	require.NotNil(t, access)
	assert.Equal(t, "req-1", access["request_id"])
	assert.Equal(t, "r9-l9", access["candidate_id"])
	assert.Equal(t, "unknown_candidate", access["error_code"])
	assert.Equal(t, "/api/v1/matches/{candidate_id}/confirm", access["route"])
}

func TestRouteTemplateOutsideRouter(t *testing.T) {
	assert.Equal(t, unmatchedRoute, routeTemplate(httptest.NewRequest(http.MethodGet, "/nope/123", nil)))
}

func TestRemoteIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	assert.Equal(t, "10.0.0.5", remoteIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	assert.Equal(t, "203.0.113.7", remoteIP(req))
}
