package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, tokens []string) *httptest.Server {
	t.Helper()
	catalog := mustParseCatalog(t, exampleManifest)
	store, _ := newTestStore(t, map[string]string{"a": "firmware-a", "b": "firmware-b-payload"})

	svc := NewUpdateService(catalog, store, discardLogger())
	auth := NewDeviceAuthService(tokens, discardLogger())
	server := httptest.NewServer(NewRouter(svc, auth, discardLogger()))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url string, header http.Header) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestAPI_CheckForUpdate(t *testing.T) {
	server := newTestServer(t, nil)

	t.Run("best release", func(t *testing.T) {
		resp, body := get(t, server.URL+"/updates?hwv=1.0.0&fwv=1.0.5", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.JSONEq(t, `{"target_version": "1.2.0", "artifact_id": "b"}`, string(body))
	})

	t.Run("up to date", func(t *testing.T) {
		resp, body := get(t, server.URL+"/updates?hwv=1.0.0&fwv=1.2.0", nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Empty(t, body)
	})

	t.Run("eligible set", func(t *testing.T) {
		resp, body := get(t, server.URL+"/updates?hwv=1.0.0&fwv=1.0.5&all=true", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var releases []ReleaseResponse
		require.NoError(t, json.Unmarshal(body, &releases))
		assert.Equal(t, []ReleaseResponse{
			{TargetVersion: "1.1.0", ArtifactID: "a"},
			{TargetVersion: "1.2.0", ArtifactID: "b"},
		}, releases)
	})

	t.Run("empty eligible set", func(t *testing.T) {
		resp, body := get(t, server.URL+"/updates?hwv=1.0.0&fwv=1.2.0&all=1", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `[]`, string(body))
	})

	t.Run("constraints are not exposed", func(t *testing.T) {
		_, body := get(t, server.URL+"/updates?hwv=1.0.0&fwv=1.0.5", nil)
		var fields map[string]any
		require.NoError(t, json.Unmarshal(body, &fields))
		assert.Len(t, fields, 2)
	})
}

func TestAPI_CheckForUpdate_BadRequest(t *testing.T) {
	server := newTestServer(t, nil)

	for name, query := range map[string]string{
		"missing fwv":      "?hwv=1.0.0",
		"missing both":     "",
		"invalid hardware": "?hwv=not.a.version&fwv=1.0.0",
		"invalid firmware": "?hwv=1.0.0&fwv=not.a.version",
		"invalid all":      "?hwv=1.0.0&fwv=1.0.0&all=maybe",
	} {
		t.Run(name, func(t *testing.T) {
			resp, body := get(t, server.URL+"/updates"+query, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var payload map[string]string
			require.NoError(t, json.Unmarshal(body, &payload))
			assert.NotEmpty(t, payload["error"])
		})
	}
}

func TestAPI_DownloadArtifact(t *testing.T) {
	server := newTestServer(t, nil)

	t.Run("streams bytes", func(t *testing.T) {
		resp, body := get(t, server.URL+"/updates/b", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "binary/octet-stream", resp.Header.Get("Content-Type"))
		assert.Equal(t, "firmware-b-payload", string(body))
	})

	t.Run("range request", func(t *testing.T) {
		resp, body := get(t, server.URL+"/updates/b", http.Header{"Range": {"bytes=9-"}})
		require.Equal(t, http.StatusPartialContent, resp.StatusCode)
		assert.Equal(t, "b-payload", string(body))
	})

	t.Run("unknown artifact", func(t *testing.T) {
		resp, body := get(t, server.URL+"/updates/c", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.NotContains(t, string(body), "firmware")
	})
}

func TestAPI_DeviceTokens(t *testing.T) {
	server := newTestServer(t, []string{"device-secret"})

	resp, _ := get(t, server.URL+"/updates?hwv=1.0.0&fwv=1.0.5", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))

	resp, _ = get(t, server.URL+"/updates/a", http.Header{"Authorization": {"Bearer wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := get(t, server.URL+"/updates/a", http.Header{"Authorization": {"Bearer device-secret"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "firmware-a", string(body))

	// Public routes stay open.
	resp, _ = get(t, server.URL+"/hello/device", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_PublicRoutes(t *testing.T) {
	server := newTestServer(t, nil)

	resp, body := get(t, server.URL+"/hello/warp", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello, warp!", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, body = get(t, server.URL+"/api/v1/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, ServerVersion, status.Version)
	assert.Equal(t, 2, status.TotalReleases)
}
