package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/threestage/mergetree/pkg/filemode"
	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/mergesvc"
	"github.com/threestage/mergetree/pkg/mergesvc/httpapi"
	"github.com/threestage/mergetree/pkg/object"
	"github.com/threestage/mergetree/pkg/odb"
)

const testSecret = "test-secret"

func newBackend() *odb.ODB {
	return odb.New(odb.NewMemoryStorage())
}

func writeFileTree(t *testing.T, ctx context.Context, b object.Backend, files map[string]string) hash.Hash {
	t.Helper()
	entries := make([]*object.TreeEntry, 0, len(files))
	for name, content := range files {
		h, err := b.WriteBlob(ctx, []byte(content))
		require.NoError(t, err)
		entries = append(entries, &object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: h})
	}
	th, err := b.WriteTree(ctx, object.NewTree(entries))
	require.NoError(t, err)
	return th
}

func newTestServer(t *testing.T, backend object.Backend) *httptest.Server {
	t.Helper()
	srv := httpapi.NewServer(backend, testSecret, httpapi.Options{})
	return httptest.NewServer(srv)
}

func authedRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	tok, err := httpapi.GenerateToken(testSecret, "test-repo", time.Hour)
	require.NoError(t, err)
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(method, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHandleMergeTree_Clean(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	base := writeFileTree(t, ctx, b, map[string]string{"file": "same"})

	srv := newTestServer(t, b)
	defer srv.Close()

	req := authedRequest(t, http.MethodPost, srv.URL+"/v1/merge-tree", mergesvc.MergeTreeRequest{
		Base: base.String(), Ours: base.String(), Theirs: base.String(),
	})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out mergesvc.MergeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, 1, out.Clean)
	require.Empty(t, out.Conflicts)
	require.NotEmpty(t, out.Tree)
}

func TestHandleMergeTree_Conflict(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	base := writeFileTree(t, ctx, b, map[string]string{"a": "base"})
	ours := writeFileTree(t, ctx, b, map[string]string{"a": "ours"})
	theirs := writeFileTree(t, ctx, b, map[string]string{})

	srv := newTestServer(t, b)
	defer srv.Close()

	req := authedRequest(t, http.MethodPost, srv.URL+"/v1/merge-tree", mergesvc.MergeTreeRequest{
		Base: base.String(), Ours: ours.String(), Theirs: theirs.String(),
	})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out mergesvc.MergeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, 0, out.Clean)
	require.Equal(t, []string{"a"}, out.Conflicts)
	require.Len(t, out.Messages, 1)
}

func TestHandleMergeTree_RequiresAuth(t *testing.T) {
	b := newBackend()
	srv := newTestServer(t, b)
	defer srv.Close()

	body, _ := json.Marshal(mergesvc.MergeTreeRequest{})
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/merge-tree", bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleMergeTree_InvalidHash(t *testing.T) {
	b := newBackend()
	srv := newTestServer(t, b)
	defer srv.Close()

	req := authedRequest(t, http.MethodPost, srv.URL+"/v1/merge-tree", mergesvc.MergeTreeRequest{
		Base: "not-a-hash", Ours: "not-a-hash", Theirs: "not-a-hash",
	})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	b := newBackend()
	srv := newTestServer(t, b)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
