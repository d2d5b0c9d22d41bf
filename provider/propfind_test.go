package provider

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *url.URL) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	base, err := url.Parse(srv.URL + "/remote.php/webdav/")
	require.NoError(t, err)
	p := New(http.DefaultClient, StaticBaseURL{URL: base})
	return p, base
}

const rootBody = `<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/remote.php/webdav/</D:href>
    <D:propstat>
      <D:prop>
        <D:resourcetype><D:collection/></D:resourcetype>
        <D:getetag>"root-etag"</D:getetag>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`

func TestRoots(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PROPFIND", r.Method)
		assert.Equal(t, "0", r.Header.Get("Depth"))
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(207)
		_, _ = w.Write([]byte(rootBody))
	})

	root, err := p.Roots(t.Context())
	require.NoError(t, err)
	assert.Equal(t, ".", root.ItemID)
	assert.Equal(t, TypeRoot, root.Type)
	assert.Equal(t, "Root", root.Name)
	assert.Nil(t, root.ParentIDs)
}

const listingBody = `<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/remote.php/webdav/</D:href>
    <D:propstat>
      <D:prop><D:resourcetype><D:collection/></D:resourcetype></D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/remote.php/webdav/foo.txt</D:href>
    <D:propstat>
      <D:prop>
        <D:getetag>"foo-etag"</D:getetag>
        <D:getcontentlength>1024</D:getcontentlength>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/remote.php/webdav/folder/</D:href>
    <D:propstat>
      <D:prop><D:resourcetype><D:collection/></D:resourcetype></D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`

func TestList(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.Header.Get("Depth"))
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(207)
		_, _ = w.Write([]byte(listingBody))
	})

	result, err := p.List(t.Context(), ".", "")
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "foo.txt", result.Items[0].Name)
	assert.Equal(t, int64(1024), result.Items[0].Metadata[MetaSizeBytes])
	assert.Equal(t, "folder", result.Items[1].Name)
	assert.Equal(t, "folder/", result.Items[1].ItemID)
	assert.Equal(t, TypeFolder, result.Items[1].Type)
}

func TestListRejectsPageToken(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not issue a request")
	})
	_, err := p.List(t.Context(), ".", "some-token")
	require.Error(t, err)
}

func TestLookupFolder(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.Header.Get("Depth"))
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(207)
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/remote.php/webdav/folder/</D:href>
    <D:propstat>
      <D:prop><D:resourcetype><D:collection/></D:resourcetype></D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`))
	})

	item, err := p.Lookup(t.Context(), ".", "folder")
	require.NoError(t, err)
	assert.Equal(t, "folder/", item.ItemID)
	assert.Equal(t, TypeFolder, item.Type)
}

func TestPropfindTranslatesNonMultiStatus(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	})
	_, err := p.Metadata(t.Context(), "missing.txt")
	require.Error(t, err)
}
