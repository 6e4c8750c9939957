package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newExtractServer(t *testing.T, handler func(docName string) (remoteResponse, int)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/extract", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.NotEmpty(t, r.FormValue("device"))
		assert.NotEmpty(t, r.FormValue("batchsize"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		resp, status := handler(header.Filename)
		w.WriteHeader(status)
		if status == http.StatusOK {
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		}
	}))
}

func TestRemoteEngineExtract(t *testing.T) {
	pdf := writeTempFile(t, "a.pdf", "%PDF-fake")
	srv := newExtractServer(t, func(string) (remoteResponse, int) {
		return remoteResponse{Pages: []remotePage{
			{Index: 1, Text: "page one"},
			{Index: 2, Text: "page two"},
		}}, http.StatusOK
	})
	defer srv.Close()

	eng := NewRemoteEngine(srv.URL, "cuda:0", 4, time.Minute)
	rec := newPageRecorder()
	results, err := eng.Extract(context.Background(),
		[]Source{{DocID: "a", Bucket: "2310", Path: pdf}}, rec.sink)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 2, results[0].Pages)
	require.Len(t, rec.pages["a"], 2)
	assert.Equal(t, "page one", rec.pages["a"][0].Text)
}

func TestRemoteEngineServerError(t *testing.T) {
	pdf := writeTempFile(t, "a.pdf", "%PDF-fake")
	srv := newExtractServer(t, func(string) (remoteResponse, int) {
		return remoteResponse{}, http.StatusInternalServerError
	})
	defer srv.Close()

	eng := NewRemoteEngine(srv.URL, "cuda:0", 4, time.Minute)
	results, err := eng.Extract(context.Background(),
		[]Source{{DocID: "a", Bucket: "2310", Path: pdf}}, newPageRecorder().sink)
	require.NoError(t, err, "a failing document never fails the batch")
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrFailure)
}

func TestRemoteEngineUnreachable(t *testing.T) {
	pdf := writeTempFile(t, "a.pdf", "%PDF-fake")
	eng := NewRemoteEngine("http://127.0.0.1:1", "cuda:0", 4, time.Second)
	results, err := eng.Extract(context.Background(),
		[]Source{{DocID: "a", Bucket: "2310", Path: pdf}}, newPageRecorder().sink)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrFailure)
}

func TestRemoteEngineBadPageIndex(t *testing.T) {
	pdf := writeTempFile(t, "a.pdf", "%PDF-fake")
	srv := newExtractServer(t, func(string) (remoteResponse, int) {
		return remoteResponse{Pages: []remotePage{{Index: 0, Text: "zero"}}}, http.StatusOK
	})
	defer srv.Close()

	eng := NewRemoteEngine(srv.URL, "cuda:0", 4, time.Minute)
	results, err := eng.Extract(context.Background(),
		[]Source{{DocID: "a", Bucket: "2310", Path: pdf}}, newPageRecorder().sink)
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, ErrFailure)
}

func TestRemoteEngineSinkFault(t *testing.T) {
	pdf := writeTempFile(t, "a.pdf", "%PDF-fake")
	srv := newExtractServer(t, func(string) (remoteResponse, int) {
		return remoteResponse{Pages: []remotePage{{Index: 1, Text: "one"}}}, http.StatusOK
	})
	defer srv.Close()

	rec := newPageRecorder()
	rec.fail = os.ErrPermission
	eng := NewRemoteEngine(srv.URL, "cuda:0", 4, time.Minute)
	_, err := eng.Extract(context.Background(),
		[]Source{{DocID: "a", Bucket: "2310", Path: pdf}}, rec.sink)
	require.Error(t, err, "sink faults are resource faults and abort the batch")
}
