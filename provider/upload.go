package provider

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/opencloud-eu/webdav-provider/internal/rest"
	"github.com/opencloud-eu/webdav-provider/provider/errs"
	"github.com/opencloud-eu/webdav-provider/provider/httperr"
	"github.com/opencloud-eu/webdav-provider/provider/itemid"
	"github.com/rs/zerolog"
)

// UploadHandle drives one PUT request whose body is the local read-end
// pipe the caller writes into (§4.G). Write through the handle as bytes
// become available; Close the handle (io.Closer on the write side) once
// done, then call Result to block for the post-upload metadata fetch.
type UploadHandle struct {
	*io.PipeWriter
	cancel     context.CancelFunc
	result     chan uploadOutcome
	cancelOnce sync.Once
	log        zerolog.Logger
	itemID     string
}

type uploadOutcome struct {
	item Item
	err  error
}

// CreateFile begins an upload of a new (or, with allowOverwrite,
// possibly-existing) file named name under parentID, size bytes long
// (§4.G). Write the content through the returned handle, Close it, then
// call Result for the finished Item.
func (p *Provider) CreateFile(ctx context.Context, parentID string, name string, size int64, contentType string, allowOverwrite bool) (*UploadHandle, error) {
	childID, err := itemid.MakeChildID(parentID, name, false)
	if err != nil {
		return nil, err
	}
	var preconditions map[string]string
	if !allowOverwrite {
		preconditions = map[string]string{"If-None-Match": "*"}
	}
	return p.upload(ctx, childID, size, contentType, preconditions)
}

// Update replaces the content of the file named by id, optionally
// conditioned on old_etag (§4.G).
func (p *Provider) Update(ctx context.Context, id string, size int64, oldETag string) (*UploadHandle, error) {
	var preconditions map[string]string
	if oldETag != "" {
		preconditions = map[string]string{"If-Match": oldETag}
	}
	return p.upload(ctx, id, size, "", preconditions)
}

func (p *Provider) upload(ctx context.Context, id string, size int64, contentType string, preconditions map[string]string) (*UploadHandle, error) {
	p.log.Debug().Str("method", "PUT").Str("item_id", id).Msg("submitted")

	base, err := p.resolveBase(ctx)
	if err != nil {
		p.log.Warn().Str("method", "PUT").Str("item_id", id).Err(err).Msg("failed")
		return nil, err
	}
	target, err := itemid.IDToURL(id, base)
	if err != nil {
		p.log.Warn().Str("method", "PUT").Str("item_id", id).Err(err).Msg("failed")
		return nil, err
	}

	reqCtx, cancel := context.WithCancel(ctx)
	pipeRead, pipeWrite := io.Pipe()

	headers := map[string]string{}
	for k, v := range preconditions {
		headers[k] = v
	}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}
	if p.quirks.SendOCMtime {
		headers["X-OC-Mtime"] = strconv.FormatInt(time.Now().Unix(), 10)
	}

	handle := &UploadHandle{PipeWriter: pipeWrite, cancel: cancel, result: make(chan uploadOutcome, 1), log: p.log, itemID: id}

	client := rest.NewClient(p.doer, base)

	go func() {
		resp, callErr := client.Call(reqCtx, &rest.Opts{
			Method:        "PUT",
			Path:          target.String(),
			Body:          pipeRead,
			ContentLength: &size,
			ExtraHeaders:  headers,
		})
		if callErr != nil {
			_ = pipeRead.CloseWithError(callErr)
			translated := httperr.Transport(callErr)
			p.log.Warn().Str("method", "PUT").Str("item_id", id).Err(translated).Msg("failed")
			handle.result <- uploadOutcome{err: translated}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := rest.ReadBody(resp, httperr.MaxErrorBodyBytes)
			translated := httperr.Translate(resp.StatusCode, "PUT", resp.Status, resp.Header.Get("Content-Type"), body, id)
			p.log.Warn().Str("method", "PUT").Str("item_id", id).Err(translated).Msg("failed")
			handle.result <- uploadOutcome{err: translated}
			return
		}

		item, metaErr := p.retrieveMetadata(reqCtx, base, id)
		if metaErr != nil {
			p.log.Warn().Str("method", "PUT").Str("item_id", id).Err(metaErr).Msg("failed")
		} else {
			p.log.Debug().Str("method", "PUT").Str("item_id", id).Msg("completed")
		}
		handle.result <- uploadOutcome{item: item, err: metaErr}
	}()

	return handle, nil
}

// Cancel aborts the upload: if a post-upload metadata fetch is already
// in progress it is aborted, otherwise the in-flight PUT is aborted.
// Idempotent.
func (h *UploadHandle) Cancel() {
	h.cancelOnce.Do(func() {
		h.log.Debug().Str("method", "PUT").Str("item_id", h.itemID).Msg("cancelled")
		h.cancel()
		_ = h.PipeWriter.CloseWithError(errs.New(errs.Logic, "upload cancelled"))
	})
}

// Result blocks until the upload (and its follow-up metadata fetch)
// completes and returns the resulting Item.
func (h *UploadHandle) Result() (Item, error) {
	outcome := <-h.result
	return outcome.item, outcome.err
}
