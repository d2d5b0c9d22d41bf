package provider

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/opencloud-eu/webdav-provider/internal/pacer"
	"github.com/opencloud-eu/webdav-provider/internal/rest"
	"github.com/opencloud-eu/webdav-provider/provider/api"
	"github.com/opencloud-eu/webdav-provider/provider/errs"
	"github.com/opencloud-eu/webdav-provider/provider/httperr"
	"github.com/opencloud-eu/webdav-provider/provider/itemid"
)

// propfindBody is the fixed PROPFIND request body (§6): every operation
// asks for the same small set of properties, so there is no variance to
// parameterise.
const propfindBody = `<?xml version="1.0" encoding="utf-8" ?>
<D:propfind xmlns:D="DAV:">
  <D:prop>
    <D:getetag/>
    <D:resourcetype/>
    <D:getcontentlength/>
    <D:creationdate/>
    <D:getlastmodified/>
  </D:prop>
</D:propfind>`

// readChunkSize is the buffer size used both here and by the download
// pipeline (§4.F) to read off an HTTP response body.
const readChunkSize = 65536

// depthValue renders depth (0 or 1) as the WebDAV Depth header value.
func depthValue(depth int) string {
	if depth <= 0 {
		return "0"
	}
	return "1"
}

// propfind is the handler base shared by every façade operation that
// reads metadata (§4.D): it issues one PROPFIND, streams the response
// through the Multi-Status parser, and converts each <D:response> into an
// Item. A per-response status other than 0 or 200, or an href that cannot
// be turned into an item ID, aborts the request but continues draining
// the parser so its internal goroutine and pipe are never leaked.
func (p *Provider) propfind(ctx context.Context, base *url.URL, targetID string, depth int) ([]Item, error) {
	p.log.Debug().Str("method", "PROPFIND").Str("item_id", targetID).Msg("submitted")

	target, err := itemid.IDToURL(targetID, base)
	if err != nil {
		p.log.Warn().Str("method", "PROPFIND").Str("item_id", targetID).Err(err).Msg("failed")
		return nil, err
	}

	client := rest.NewClient(p.doer, base)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := p.doPropfind(ctx, client, target, depth)
	if err != nil {
		p.log.Warn().Str("method", "PROPFIND").Str("item_id", targetID).Err(err).Msg("failed")
		return nil, err
	}
	if resp.StatusCode != http.StatusMultiStatus {
		body, _ := rest.ReadBody(resp, httperr.MaxErrorBodyBytes)
		translated := httperr.Translate(resp.StatusCode, "PROPFIND", resp.Status, resp.Header.Get("Content-Type"), body, targetID)
		p.log.Warn().Str("method", "PROPFIND").Str("item_id", targetID).Err(translated).Msg("failed")
		return nil, translated
	}
	defer resp.Body.Close()

	parser := api.NewParser(base)
	feedErr := make(chan error, 1)
	go func() {
		buf := make([]byte, readChunkSize)
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				if ferr := parser.Feed(buf[:n]); ferr != nil {
					parser.Finish()
					feedErr <- ferr
					return
				}
			}
			if rerr == io.EOF {
				parser.Finish()
				feedErr <- nil
				return
			}
			if rerr != nil {
				parser.Finish()
				feedErr <- rerr
				return
			}
		}
	}()

	var (
		items   []Item
		aborted error
	)
	for r := range parser.Responses() {
		if aborted != nil {
			continue
		}
		if r.Status != 0 && r.Status != http.StatusOK {
			aborted = errs.New(errs.RemoteComms, "PROPFIND for %s gave status %d", r.Href, r.Status)
			cancel()
			continue
		}
		item, ierr := makeItem(r.Href, base, r.Properties)
		if ierr != nil {
			aborted = ierr
			cancel()
			continue
		}
		items = append(items, item)
	}

	if err := <-feedErr; err != nil && aborted == nil {
		aborted = httperr.Transport(err)
	}
	if err := parser.Wait(); err != nil && aborted == nil {
		aborted = errs.Wrap(errs.RemoteComms, err, "malformed multistatus response")
	}
	if aborted != nil {
		p.log.Warn().Str("method", "PROPFIND").Str("item_id", targetID).Err(aborted).Msg("failed")
		return nil, aborted
	}
	p.log.Debug().Str("method", "PROPFIND").Str("item_id", targetID).Msg("completed")
	return items, nil
}

func (p *Provider) doPropfind(ctx context.Context, client *rest.Client, target *url.URL, depth int) (*http.Response, error) {
	var resp *http.Response
	err := p.pacer.Call(func() (bool, error) {
		var callErr error
		resp, callErr = client.Call(ctx, &rest.Opts{
			Method: "PROPFIND",
			Path:   target.String(),
			Body:   strings.NewReader(propfindBody),
			ExtraHeaders: map[string]string{
				"Depth":        depthValue(depth),
				"Content-Type": "application/xml; charset=utf-8",
			},
		})
		if callErr != nil {
			retry, rerr := pacer.ShouldRetry(nil, callErr)
			if retry {
				p.log.Debug().Str("method", "PROPFIND").Err(callErr).Msg("retried")
			}
			return retry, rerr
		}
		if pacer.RetryableStatus[resp.StatusCode] {
			_ = resp.Body.Close()
			p.log.Debug().Str("method", "PROPFIND").Int("status", resp.StatusCode).Msg("retried")
			return true, errs.New(errs.RemoteComms, "transient HTTP %d", resp.StatusCode)
		}
		return false, nil
	})
	if err != nil {
		return nil, httperr.Transport(err)
	}
	return resp, nil
}

// makeItem converts one <D:response>'s href and properties into an Item
// (§4.H). The caller is responsible for overriding Type/Name/ParentIDs
// for the distinguished root response.
func makeItem(href string, base *url.URL, properties []api.Property) (Item, error) {
	hrefURL, err := url.Parse(href)
	if err != nil {
		return Item{}, errs.Wrap(errs.RemoteComms, err, "invalid href %q", href)
	}

	id, err := itemid.URLToID(hrefURL, base)
	if err != nil {
		return Item{}, err
	}

	item := Item{
		ItemID:   id,
		Name:     nameFromID(id),
		Type:     TypeFile,
		Metadata: map[string]any{},
	}

	for _, prop := range properties {
		if prop.Status != http.StatusOK {
			continue
		}
		switch {
		case prop.Namespace == "DAV:" && prop.LocalName == "resourcetype":
			if prop.Value == "DAV:collection" {
				item.Type = TypeFolder
			}
		case prop.Namespace == "DAV:" && prop.LocalName == "getetag":
			item.ETag = prop.Value
		case prop.Namespace == "DAV:" && prop.LocalName == "getcontentlength":
			if n, perr := strconv.ParseInt(prop.Value, 10, 64); perr == nil {
				item.Metadata[MetaSizeBytes] = n
			}
		case prop.Namespace == "DAV:" && prop.LocalName == "creationdate":
			if t, perr := time.Parse(time.RFC1123Z, prop.Value); perr == nil {
				item.Metadata[MetaCreationTime] = t.Format(time.RFC3339)
			} else if t, perr := time.Parse(time.RFC1123, prop.Value); perr == nil {
				item.Metadata[MetaCreationTime] = t.Format(time.RFC3339)
			}
		case prop.Namespace == "DAV:" && prop.LocalName == "getlastmodified":
			if t, perr := time.Parse(time.RFC1123Z, prop.Value); perr == nil {
				item.Metadata[MetaLastModifiedTime] = t.Format(time.RFC3339)
			} else if t, perr := time.Parse(time.RFC1123, prop.Value); perr == nil {
				item.Metadata[MetaLastModifiedTime] = t.Format(time.RFC3339)
			}
		}
	}

	if isFolder, ferr := itemid.IsFolder(id); ferr == nil && isFolder && id != itemid.Root {
		item.Type = TypeFolder
	}

	if parentID, ok := parentOf(id); ok {
		item.ParentIDs = []string{parentID}
	}

	return item, nil
}

// nameFromID derives the display name from an item ID's final path
// segment, decoding the percent-escaping itemid.MakeChildID applied.
func nameFromID(id string) string {
	trimmed := strings.TrimSuffix(id, "/")
	idx := strings.LastIndex(trimmed, "/")
	segment := trimmed[idx+1:]
	if decoded, err := url.PathUnescape(segment); err == nil {
		return decoded
	}
	return segment
}

// parentOf returns the parent item ID of id, or false if id is the root
// (which has no parent).
func parentOf(id string) (string, bool) {
	if id == itemid.Root {
		return "", false
	}
	trimmed := strings.TrimSuffix(id, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return itemid.Root, true
	}
	return trimmed[:idx+1], true
}

// samePath reports whether two item IDs name the same server-side
// resource, ignoring the trailing slash that distinguishes a folder ID
// from a file-style guess of the same path. Lookup must guess a
// candidate ID before it knows whether the target is a file or a folder
// (it always guesses file-style, matching the trailing-slash-free
// candidate the original DavProvider::lookup() builds before the PROPFIND
// comes back), so an exact string comparison would spuriously reject a
// correctly-resolved folder.
func samePath(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

// ListResult is the paginated result of List (§4.D). The core never
// splits a listing across multiple pages itself — NextPageToken is
// always empty — but the type exists so a future paginating transport
// does not change the façade signature.
type ListResult struct {
	Items         []Item
	NextPageToken string
}

// Roots returns the single root Item (§4.D, §8 invariant: Roots always
// returns exactly one item whose ID is itemid.Root).
func (p *Provider) Roots(ctx context.Context) (Item, error) {
	base, err := p.resolveBase(ctx)
	if err != nil {
		return Item{}, err
	}
	items, err := p.propfind(ctx, base, itemid.Root, 0)
	if err != nil {
		return Item{}, err
	}
	if len(items) != 1 || items[0].ItemID != itemid.Root {
		return Item{}, errs.New(errs.RemoteComms, "returned data about the wrong item")
	}
	root := items[0]
	root.Type = TypeRoot
	root.Name = "Root"
	root.ParentIDs = nil
	return root, nil
}

// List returns the direct children of the folder named by parentID
// (§4.D). pageToken must be empty: this core never produces a
// non-empty NextPageToken, so a caller-supplied one can never be valid.
func (p *Provider) List(ctx context.Context, parentID string, pageToken string) (ListResult, error) {
	if pageToken != "" {
		return ListResult{}, errs.New(errs.InvalidArgument, "unknown page token %q", pageToken)
	}
	base, err := p.resolveBase(ctx)
	if err != nil {
		return ListResult{}, err
	}
	items, err := p.propfind(ctx, base, parentID, 1)
	if err != nil {
		return ListResult{}, err
	}
	result := make([]Item, 0, len(items))
	for _, item := range items {
		if samePath(item.ItemID, parentID) {
			continue // Depth:1 always echoes the parent itself; the caller asked for its children.
		}
		result = append(result, item)
	}
	return ListResult{Items: result}, nil
}

// Lookup resolves a child name within a folder to its Item (§4.D). It
// guesses a file-style candidate ID (the target may turn out to be a
// folder; samePath absorbs the resulting trailing-slash mismatch) and
// issues a Depth:0 PROPFIND directly against it.
func (p *Provider) Lookup(ctx context.Context, parentID string, name string) (Item, error) {
	candidateID, err := itemid.MakeChildID(parentID, name, false)
	if err != nil {
		return Item{}, err
	}
	base, err := p.resolveBase(ctx)
	if err != nil {
		return Item{}, err
	}
	items, err := p.propfind(ctx, base, candidateID, 0)
	if err != nil {
		return Item{}, err
	}
	if len(items) != 1 || !samePath(items[0].ItemID, candidateID) {
		return Item{}, errs.New(errs.RemoteComms, "returned data about the wrong item").WithItemID(candidateID)
	}
	return items[0], nil
}

// Metadata returns the Item named by id (§4.D).
func (p *Provider) Metadata(ctx context.Context, id string) (Item, error) {
	base, err := p.resolveBase(ctx)
	if err != nil {
		return Item{}, err
	}
	return p.retrieveMetadata(ctx, base, id)
}

// retrieveMetadata is Metadata's handler-base call, reused by the
// mutation handlers to fetch the post-operation Item (§4.E) without
// re-resolving the base URL on every call.
func (p *Provider) retrieveMetadata(ctx context.Context, base *url.URL, id string) (Item, error) {
	items, err := p.propfind(ctx, base, id, 0)
	if err != nil {
		return Item{}, err
	}
	if len(items) != 1 || !samePath(items[0].ItemID, id) {
		return Item{}, errs.New(errs.RemoteComms, "returned data about the wrong item").WithItemID(id)
	}
	return items[0], nil
}
