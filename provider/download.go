package provider

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/opencloud-eu/webdav-provider/internal/rest"
	"github.com/opencloud-eu/webdav-provider/provider/errs"
	"github.com/opencloud-eu/webdav-provider/provider/httperr"
	"github.com/opencloud-eu/webdav-provider/provider/itemid"
	"github.com/rs/zerolog"
)

// DownloadHandle streams one file's body to a local write-end pipe
// (§4.F). The pipe *is* the flow-control mechanism: io.Pipe's Write
// blocks until the consumer's Read drains it, which is exactly the
// "one-chunk-in-flight" discipline the handler-base algorithm describes,
// so there is no separate bytes_read/bytes_written bookkeeping to
// maintain by hand.
//
// A DownloadHandle is both the local read-end (callers Read from it
// directly) and the eventual-result handle: Finish reports the terminal
// outcome once all bytes have been delivered.
type DownloadHandle struct {
	*io.PipeReader
	cancel     context.CancelFunc
	done       chan struct{}
	err        error
	cancelOnce sync.Once
	log        zerolog.Logger
	itemID     string
}

// Download issues a GET for id, optionally conditioned on matchETag, and
// returns a handle streaming the body (§4.F). matchETag may be empty.
func (p *Provider) Download(ctx context.Context, id string, matchETag string) (*DownloadHandle, error) {
	p.log.Debug().Str("method", "GET").Str("item_id", id).Msg("submitted")

	base, err := p.resolveBase(ctx)
	if err != nil {
		p.log.Warn().Str("method", "GET").Str("item_id", id).Err(err).Msg("failed")
		return nil, err
	}
	target, err := itemid.IDToURL(id, base)
	if err != nil {
		p.log.Warn().Str("method", "GET").Str("item_id", id).Err(err).Msg("failed")
		return nil, err
	}

	reqCtx, cancel := context.WithCancel(ctx)

	headers := map[string]string{}
	if matchETag != "" {
		headers["If-Match"] = matchETag
	}

	client := rest.NewClient(p.doer, base)
	resp, err := client.Call(reqCtx, &rest.Opts{Method: "GET", Path: target.String(), ExtraHeaders: headers})
	if err != nil {
		cancel()
		translated := httperr.Transport(err)
		p.log.Warn().Str("method", "GET").Str("item_id", id).Err(translated).Msg("failed")
		return nil, translated
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := rest.ReadBody(resp, httperr.MaxErrorBodyBytes)
		cancel()
		translated := httperr.Translate(resp.StatusCode, "GET", resp.Status, resp.Header.Get("Content-Type"), body, id)
		p.log.Warn().Str("method", "GET").Str("item_id", id).Err(translated).Msg("failed")
		return nil, translated
	}

	pipeRead, pipeWrite := io.Pipe()
	handle := &DownloadHandle{PipeReader: pipeRead, cancel: cancel, done: make(chan struct{}), log: p.log, itemID: id}

	go func() {
		defer resp.Body.Close()
		buf := make([]byte, readChunkSize)
		for {
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				if _, writeErr := pipeWrite.Write(buf[:n]); writeErr != nil {
					handle.err = errs.Wrap(errs.Resource, writeErr, "local pipe write failed")
					close(handle.done)
					_ = pipeWrite.CloseWithError(handle.err)
					handle.log.Warn().Str("method", "GET").Str("item_id", handle.itemID).Err(handle.err).Msg("failed")
					return
				}
			}
			if readErr == io.EOF {
				close(handle.done)
				_ = pipeWrite.Close()
				handle.log.Debug().Str("method", "GET").Str("item_id", handle.itemID).Msg("completed")
				return
			}
			if readErr != nil {
				handle.err = errs.Wrap(errs.RemoteComms, readErr, "download stream failed")
				close(handle.done)
				_ = pipeWrite.CloseWithError(handle.err)
				handle.log.Warn().Str("method", "GET").Str("item_id", handle.itemID).Err(handle.err).Msg("failed")
				return
			}
		}
	}()

	return handle, nil
}

// Cancel aborts the in-flight GET and closes the local pipe. Idempotent;
// a no-op once the transfer has already finished.
func (h *DownloadHandle) Cancel() {
	h.cancelOnce.Do(func() {
		select {
		case <-h.done:
			return
		default:
		}
		h.log.Debug().Str("method", "GET").Str("item_id", h.itemID).Msg("cancelled")
		h.cancel()
		_ = h.PipeReader.CloseWithError(errs.New(errs.Logic, "download cancelled"))
	})
}

// Finish reports the terminal outcome of the transfer. Calling it before
// all bytes have been delivered to the consumer is a misuse of the
// handle and raises a Logic error, per §4.F.
func (h *DownloadHandle) Finish() error {
	select {
	case <-h.done:
		return h.err
	default:
		return errs.New(errs.Logic, "finish called before all data sent")
	}
}
