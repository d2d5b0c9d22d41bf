// Package httperr translates completed WebDAV HTTP exchanges into the
// typed error taxonomy of package errs (§4.B, §7 of the specification).
package httperr

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/opencloud-eu/webdav-provider/provider/errs"
)

// MaxErrorBodyBytes is the cap on how much of an error response body the
// core will buffer before giving up and closing the reply (§4.B).
const MaxErrorBodyBytes = 64 * 1024

// sabreDAVNamespace is the XML namespace SabreDAV's error documents use
// for <s:exception> and <s:message>.
const sabreDAVNamespace = "http://sabredav.org/ns"

// Transport translates a transport-level failure (no HTTP status was ever
// received) into a RemoteComms error.
func Transport(err error) *errs.Error {
	return errs.Wrap(errs.RemoteComms, err, "%s", err.Error())
}

// Translate maps a completed, non-success HTTP exchange onto a typed
// error per the table in §4.B. body is the (already capped) response
// body; contentType and reason come straight off the HTTP response.
func Translate(status int, method string, reason string, contentType string, body []byte, itemID string) *errs.Error {
	message := humanMessage(reason, contentType, body)

	switch {
	case status == 400:
		return errs.New(errs.RemoteComms, "%s", message)
	case status == 401 || status == 403 || status == 451:
		return errs.New(errs.Permission, "%s", message)
	case status == 404 || status == 410:
		return errs.New(errs.NotExists, "%s", message).WithItemID(itemID)
	case status == 405 && strings.EqualFold(method, "MKCOL"):
		return errs.New(errs.Exists, "%s", message).WithItemID(itemID)
	case status == 405:
		return errs.New(errs.Unknown, "HTTP %d: %s", status, message)
	case status == 409 || status == 412:
		return errs.New(errs.Conflict, "%s", message)
	case status == 507:
		return errs.New(errs.Quota, "%s", message)
	default:
		return errs.New(errs.Unknown, "HTTP %d: %s", status, message)
	}
}

// humanMessage decodes the message to surface to the caller: the raw body
// for text/plain, the parsed SabreDAV exception/message for application/xml,
// or the HTTP reason phrase as a fallback.
func humanMessage(reason string, contentType string, body []byte) string {
	switch {
	case strings.HasPrefix(contentType, "text/plain"):
		return strings.TrimSpace(string(body))
	case strings.HasPrefix(contentType, "application/xml"), strings.HasPrefix(contentType, "text/xml"):
		if msg, ok := parseSabreDAVError(body); ok {
			return msg
		}
		return reason
	default:
		return reason
	}
}

// parseSabreDAVError extracts "<exception>: <message>" from a SabreDAV
// <d:error> document. It is namespace-prefix agnostic: SabreDAV servers
// are free to bind the http://sabredav.org/ns namespace to any prefix
// (commonly "s", sometimes "sabredav" or none at all).
func parseSabreDAVError(body []byte) (string, bool) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return "", false
	}

	var exception, message string
	for _, el := range doc.FindElements("//*") {
		if el.Space != "" {
			if ns := doc.Root().SelectAttr("xmlns:" + el.Space); ns != nil && ns.Value != sabreDAVNamespace {
				continue
			}
		}
		switch el.Tag {
		case "exception":
			exception = strings.TrimSpace(el.Text())
		case "message":
			message = strings.TrimSpace(el.Text())
		}
	}

	if exception == "" && message == "" {
		return "", false
	}
	if exception != "" && message != "" {
		return fmt.Sprintf("%s: %s", exception, message), true
	}
	if exception != "" {
		return exception, true
	}
	return message, true
}
