package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/opencloud-eu/webdav-provider/internal/pacer"
	"github.com/opencloud-eu/webdav-provider/internal/rest"
	"github.com/opencloud-eu/webdav-provider/provider/errs"
	"github.com/opencloud-eu/webdav-provider/provider/httperr"
	"github.com/opencloud-eu/webdav-provider/provider/itemid"
)

// do issues one request through the pacer and translates both transport
// and HTTP-status failures into the typed error taxonomy. success reports
// whether a given status code counts as success for this particular verb
// (§4.E's per-operation status tables differ: MKCOL only accepts 201,
// COPY/MOVE accept 201 or 204, DELETE accepts any 2xx).
func (p *Provider) do(ctx context.Context, client *rest.Client, opts *rest.Opts, itemID string, success func(int) bool) (*http.Response, error) {
	p.log.Debug().Str("method", opts.Method).Str("item_id", itemID).Msg("submitted")

	var resp *http.Response
	err := p.pacer.Call(func() (bool, error) {
		var callErr error
		resp, callErr = client.Call(ctx, opts)
		if callErr != nil {
			retry, rerr := pacer.ShouldRetry(nil, callErr)
			if retry {
				p.log.Debug().Str("method", opts.Method).Str("item_id", itemID).Err(callErr).Msg("retried")
			}
			return retry, rerr
		}
		if pacer.RetryableStatus[resp.StatusCode] {
			_ = resp.Body.Close()
			p.log.Debug().Str("method", opts.Method).Str("item_id", itemID).Int("status", resp.StatusCode).Msg("retried")
			return true, errs.New(errs.RemoteComms, "transient HTTP %d", resp.StatusCode)
		}
		return false, nil
	})
	if err != nil {
		translated := httperr.Transport(err)
		p.log.Warn().Str("method", opts.Method).Str("item_id", itemID).Err(translated).Msg("failed")
		return nil, translated
	}
	if !success(resp.StatusCode) {
		body, _ := rest.ReadBody(resp, httperr.MaxErrorBodyBytes)
		translated := httperr.Translate(resp.StatusCode, opts.Method, resp.Status, resp.Header.Get("Content-Type"), body, itemID)
		p.log.Warn().Str("method", opts.Method).Str("item_id", itemID).Err(translated).Msg("failed")
		return nil, translated
	}
	p.log.Debug().Str("method", opts.Method).Str("item_id", itemID).Msg("completed")
	return resp, nil
}

func is2xx(status int) bool { return status >= 200 && status < 300 }

// CreateFolder creates a new, empty folder named name under parentID and
// returns its Item (§4.E). A pre-existing folder at that path surfaces as
// errs.Exists (see httperr.Translate's MKCOL/405 case).
func (p *Provider) CreateFolder(ctx context.Context, parentID string, name string) (Item, error) {
	childID, err := itemid.MakeChildID(parentID, name, true)
	if err != nil {
		return Item{}, err
	}
	base, err := p.resolveBase(ctx)
	if err != nil {
		return Item{}, err
	}
	target, err := itemid.IDToURL(childID, base)
	if err != nil {
		return Item{}, err
	}

	client := rest.NewClient(p.doer, base)
	resp, err := p.do(ctx, client, &rest.Opts{Method: "MKCOL", Path: target.String()}, childID, func(status int) bool { return status == http.StatusCreated })
	if err != nil {
		return Item{}, err
	}
	resp.Body.Close()

	return p.retrieveMetadata(ctx, base, childID)
}

// Delete removes the item named by id, recursively if it is a folder
// (§4.E). Any 2xx status counts as success; an item the server reports
// as already gone (404 or 410) is surfaced as errs.NotExists.
func (p *Provider) Delete(ctx context.Context, id string) error {
	base, err := p.resolveBase(ctx)
	if err != nil {
		return err
	}
	target, err := itemid.IDToURL(id, base)
	if err != nil {
		return err
	}

	client := rest.NewClient(p.doer, base)
	resp, err := p.do(ctx, client, &rest.Opts{Method: "DELETE", Path: target.String()}, id, is2xx)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Copy duplicates the item named by sourceID as a new child named name
// under destinationParentID, and returns the new Item (§4.E).
func (p *Provider) Copy(ctx context.Context, sourceID string, destinationParentID string, name string) (Item, error) {
	return p.copyOrMove(ctx, "COPY", sourceID, destinationParentID, name)
}

// Move relocates (and optionally renames) the item named by sourceID to
// a new child named name under destinationParentID, and returns the
// updated Item (§4.E).
func (p *Provider) Move(ctx context.Context, sourceID string, destinationParentID string, name string) (Item, error) {
	return p.copyOrMove(ctx, "MOVE", sourceID, destinationParentID, name)
}

func (p *Provider) copyOrMove(ctx context.Context, method string, sourceID string, destinationParentID string, name string) (Item, error) {
	base, err := p.resolveBase(ctx)
	if err != nil {
		return Item{}, err
	}

	isFolder, err := itemid.IsFolder(sourceID)
	if err != nil {
		return Item{}, err
	}
	destID, err := itemid.MakeChildID(destinationParentID, name, isFolder)
	if err != nil {
		return Item{}, err
	}

	sourceURL, err := itemid.IDToURL(sourceID, base)
	if err != nil {
		return Item{}, err
	}
	destURL, err := itemid.IDToURL(destID, base)
	if err != nil {
		return Item{}, err
	}

	headers := map[string]string{
		"Destination": destURL.String(),
		"Overwrite":   "F",
	}
	if p.quirks.SendOCMtime {
		headers["X-OC-Mtime"] = fmt.Sprintf("%d", time.Now().Unix())
	}

	client := rest.NewClient(p.doer, base)
	resp, err := p.do(ctx, client, &rest.Opts{Method: method, Path: sourceURL.String(), ExtraHeaders: headers}, sourceID, func(status int) bool {
		return status == http.StatusCreated || status == http.StatusNoContent
	})
	if err != nil {
		return Item{}, err
	}
	resp.Body.Close()

	return p.retrieveMetadata(ctx, base, destID)
}
