package provider

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFile(t *testing.T) {
	var received []byte
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "PUT":
			assert.Equal(t, "*", r.Header.Get("If-None-Match"))
			assert.EqualValues(t, 5, r.ContentLength)
			body, _ := io.ReadAll(r.Body)
			received = body
			w.WriteHeader(201)
		case "PROPFIND":
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(207)
			_, _ = w.Write([]byte(`<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/remote.php/webdav/new.txt</D:href>
    <D:propstat>
      <D:prop><D:getetag>"uploaded"</D:getetag></D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`))
		}
	})

	handle, err := p.CreateFile(t.Context(), ".", "new.txt", 5, "text/plain", false)
	require.NoError(t, err)

	go func() {
		_, _ = handle.Write([]byte("hello"))
		_ = handle.Close()
	}()

	item, err := handle.Result()
	require.NoError(t, err)
	assert.Equal(t, `"uploaded"`, item.ETag)
	assert.Equal(t, "hello", string(received))
}

func TestUpdateConflict(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"old"`, r.Header.Get("If-Match"))
		w.WriteHeader(412)
	})

	handle, err := p.Update(t.Context(), "foo.txt", 3, `"old"`)
	require.NoError(t, err)

	go func() {
		_, _ = handle.Write([]byte("abc"))
		_ = handle.Close()
	}()

	_, err = handle.Result()
	require.Error(t, err)
}
