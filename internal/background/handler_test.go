package background_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/apply-service/internal/background"
	"jobmate/apply-service/internal/model"
)

func newServer(t *testing.T) (*httptest.Server, *background.Service) {
	t.Helper()
	svc, _ := newService(t)
	mux := http.NewServeMux()
	background.NewHandler(svc).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHandler_Health(t *testing.T) {
	srv, _ := newServer(t)
	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestHandler_Settings(t *testing.T) {
	srv, _ := newServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/settings", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 30, body["dailyLimit"])
	assert.EqualValues(t, 60000, body["delayBetweenApplications"])

	resp, body = do(t, http.MethodPut, srv.URL+"/settings", `{"dailyLimit":12,"delayBetweenApplications":5000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 12, body["dailyLimit"])
	assert.EqualValues(t, 5000, body["delayBetweenApplications"])

	resp, body = do(t, http.MethodPut, srv.URL+"/settings", `{"enabledPlatforms":["monster"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "unknown platform")

	resp, _ = do(t, http.MethodPut, srv.URL+"/settings", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/settings", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandler_StatsAndHistory(t *testing.T) {
	srv, svc := newServer(t)
	ctx := context.Background()
	_, err := svc.RecordApplication(ctx, outcome("a", model.PlatformLinkedIn, model.StatusSuccess))
	require.NoError(t, err)
	_, err = svc.RecordApplication(ctx, outcome("b", model.PlatformNaukri, model.StatusFailed))
	require.NoError(t, err)

	resp, body := do(t, http.MethodGet, srv.URL+"/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["totalApplications"])
	today, ok := body["today"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, today["dailyApplications"])

	res, err := http.Get(srv.URL + "/history?platform=naukri")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var recs []model.ApplicationRecord
	require.NoError(t, json.NewDecoder(res.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].Title)

	resp, _ = do(t, http.MethodGet, srv.URL+"/history?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/history?platform=monster", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/stats", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
