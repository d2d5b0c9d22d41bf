package provider

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFolder(t *testing.T) {
	calls := 0
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch r.Method {
		case "MKCOL":
			assert.Equal(t, "/remote.php/webdav/newfolder/", r.URL.Path)
			w.WriteHeader(201)
		case "PROPFIND":
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(207)
			_, _ = w.Write([]byte(`<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/remote.php/webdav/newfolder/</D:href>
    <D:propstat>
      <D:prop><D:resourcetype><D:collection/></D:resourcetype></D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`))
		}
	})

	item, err := p.CreateFolder(t.Context(), ".", "newfolder")
	require.NoError(t, err)
	assert.Equal(t, "newfolder/", item.ItemID)
	assert.Equal(t, 2, calls)
}

func TestCreateFolderAlreadyExists(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(405)
	})
	_, err := p.CreateFolder(t.Context(), ".", "existing")
	require.Error(t, err)
}

func TestDelete(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DELETE", r.Method)
		w.WriteHeader(204)
	})
	err := p.Delete(t.Context(), "foo.txt")
	require.NoError(t, err)
}

func TestDeleteNotFound(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	})
	err := p.Delete(t.Context(), "missing.txt")
	require.Error(t, err)
}

func TestMove(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "MOVE":
			assert.Equal(t, "/remote.php/webdav/old.txt", r.URL.Path)
			assert.Contains(t, r.Header.Get("Destination"), "/remote.php/webdav/new.txt")
			w.WriteHeader(201)
		case "PROPFIND":
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(207)
			_, _ = w.Write([]byte(`<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/remote.php/webdav/new.txt</D:href>
    <D:propstat>
      <D:prop><D:getetag>"new-etag"</D:getetag></D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`))
		}
	})

	item, err := p.Move(t.Context(), "old.txt", ".", "new.txt")
	require.NoError(t, err)
	assert.Equal(t, "new.txt", item.ItemID)
	assert.Equal(t, `"new-etag"`, item.ETag)
}

func TestCopyConflict(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(409)
	})
	_, err := p.Copy(t.Context(), "src.txt", ".", "dst.txt")
	require.Error(t, err)
}
