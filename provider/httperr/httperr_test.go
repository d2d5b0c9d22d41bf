package httperr_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/opencloud-eu/webdav-provider/provider/errs"
	"github.com/opencloud-eu/webdav-provider/provider/httperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sabreNotFoundBody = `<?xml version="1.0" encoding="utf-8"?>
<d:error xmlns:d="DAV:" xmlns:s="http://sabredav.org/ns">
  <s:exception>Sabre\DAV\Exception\NotFound</s:exception>
  <s:message>File with name /foo.txt could not be located</s:message>
</d:error>`

func TestTranslateNotFoundWithSabreDAVBody(t *testing.T) {
	// S3 from the specification.
	err := httperr.Translate(404, "GET", "Not Found", "application/xml", []byte(sabreNotFoundBody), "foo.txt")
	require.True(t, errs.Is(err, errs.NotExists))
	assert.True(t, strings.HasPrefix(err.Message, `Sabre\DAV\Exception\NotFound: `))
	assert.Equal(t, "foo.txt", err.ItemID)
}

func TestTranslateTable(t *testing.T) {
	for _, tc := range []struct {
		status int
		method string
		kind   errs.Kind
	}{
		{400, "GET", errs.RemoteComms},
		{401, "GET", errs.Permission},
		{403, "PUT", errs.Permission},
		{451, "GET", errs.Permission},
		{404, "GET", errs.NotExists},
		{410, "GET", errs.NotExists},
		{405, "MKCOL", errs.Exists},
		{405, "PUT", errs.Unknown},
		{409, "PUT", errs.Conflict},
		{412, "PUT", errs.Conflict},
		{507, "PUT", errs.Quota},
		{418, "PUT", errs.Unknown},
	} {
		err := httperr.Translate(tc.status, tc.method, "reason", "text/plain", nil, "id")
		assert.Equal(t, tc.kind, err.Kind, "status %d method %s", tc.status, tc.method)
	}
}

func TestTranslateTextPlainBody(t *testing.T) {
	err := httperr.Translate(400, "GET", "Bad Request", "text/plain", []byte(" malformed request \n"), "")
	assert.Equal(t, "malformed request", err.Message)
}

func TestTranslateFallsBackToReason(t *testing.T) {
	err := httperr.Translate(500, "GET", "Internal Server Error", "", nil, "")
	assert.Contains(t, err.Message, "Internal Server Error")
}

func TestTransport(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := httperr.Transport(cause)
	assert.True(t, errs.Is(err, errs.RemoteComms))
	assert.ErrorIs(t, err, cause)
}
