// Package itemid implements the bijection between this provider's opaque
// item IDs and absolute URLs on the remote WebDAV server.
//
// An item ID is the path of a resource relative to the base URL of the
// user's root collection: "." for the root, a trailing "/" for folders,
// no trailing slash for files. IDs are always within base: they never
// escape it via ".." and they always round-trip through IDToURL/URLToID.
package itemid

import (
	"net/url"
	"path"
	"strings"

	"github.com/opencloud-eu/webdav-provider/internal/rest"
	"github.com/opencloud-eu/webdav-provider/provider/errs"
)

// Root is the item ID of the base URL itself.
const Root = "."

// IDToURL resolves item ID id against base, returning the absolute URL it
// names. It fails if id does not parse as a URL, or if the resolved URL
// does not have base as a prefix (after normalisation) — i.e. if id tries
// to escape the base via ".." or an absolute URL to a different host.
func IDToURL(id string, base *url.URL) (*url.URL, error) {
	parsed, err := url.Parse(id)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err, "invalid item ID %q", id)
	}

	resolved := base.ResolveReference(parsed)
	trailingSlash := strings.HasSuffix(resolved.Path, "/")
	resolved.Path = path.Clean(resolved.Path)
	if trailingSlash && !strings.HasSuffix(resolved.Path, "/") {
		resolved.Path += "/"
	}

	baseEncoded := base.String()
	resolvedEncoded := resolved.String()
	if !strings.HasPrefix(resolvedEncoded, baseEncoded) {
		return nil, errs.New(errs.InvalidArgument, "invalid item ID %q: escapes base URL", id)
	}
	return resolved, nil
}

// URLToID returns the item ID of u relative to base. It fails if u is not
// within base.
func URLToID(u *url.URL, base *url.URL) (string, error) {
	baseEncoded := base.String()
	uEncoded := u.String()
	if !strings.HasPrefix(uEncoded, baseEncoded) {
		return "", errs.New(errs.RemoteComms, "url %q is outside of base url %q", uEncoded, baseEncoded)
	}
	id := uEncoded[len(baseEncoded):]
	if id == "" {
		id = Root
	}
	return id, nil
}

// MakeChildID builds the item ID of a child named name under parent. name
// must not be "." or "..". The result ends with "/" iff isFolder is true.
func MakeChildID(parent string, name string, isFolder bool) (string, error) {
	if name == "." || name == ".." {
		return "", errs.New(errs.InvalidArgument, "invalid name: %q", name)
	}

	id := parent
	if id == Root {
		id = ""
	} else if id == "" || !strings.HasSuffix(id, "/") {
		id += "/"
	}
	id += rest.URLPathEscape(name)
	if isFolder {
		id += "/"
	}
	return id, nil
}

// IsFolder reports whether id names a folder: the root, or anything
// ending in "/".
func IsFolder(id string) (bool, error) {
	if id == "" {
		return false, errs.New(errs.InvalidArgument, "invalid blank item ID")
	}
	if id == Root {
		return true, nil
	}
	return strings.HasSuffix(id, "/"), nil
}
