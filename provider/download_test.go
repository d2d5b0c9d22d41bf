package provider

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, `"etag"`, r.Header.Get("If-Match"))
		w.WriteHeader(200)
		_, _ = w.Write([]byte("hello world"))
	})

	handle, err := p.Download(t.Context(), "foo.txt", `"etag"`)
	require.NoError(t, err)

	data, err := io.ReadAll(handle)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	require.NoError(t, handle.Finish())
}

func TestDownloadFinishBeforeDrainIsLogicError(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("hello world"))
	})

	handle, err := p.Download(t.Context(), "foo.txt", "")
	require.NoError(t, err)

	err = handle.Finish()
	require.Error(t, err)
}

func TestDownloadNotFound(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	})
	_, err := p.Download(t.Context(), "missing.txt", "")
	require.Error(t, err)
}

func TestDownloadCancel(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("hello world"))
	})

	handle, err := p.Download(t.Context(), "foo.txt", "")
	require.NoError(t, err)
	handle.Cancel()
	handle.Cancel() // idempotent
}
