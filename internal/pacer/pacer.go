// Package pacer retries transient HTTP failures with exponential backoff.
//
// It plays the same role as the teacher's lib/pacer (rclone's own
// decaying-sleep scheduler, seen wired into every webdav.go request via
// f.pacer.Call(func() (bool, error) {...})): callers submit a function that
// performs one HTTP attempt and reports whether the result deserves a
// retry. Per the dependency-maximisation mandate this is built on
// github.com/cenkalti/backoff (also present in the corpus, cs3org-reva's
// go.mod) instead of reimplementing rclone's bespoke decay calculator.
package pacer

import (
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
)

// Default tuning, matching the teacher's minSleep/maxSleep constants.
const (
	DefaultMinSleep = 10 * time.Millisecond
	DefaultMaxSleep = 2 * time.Second
	DefaultRetries  = 5
)

// RetryableStatus is the set of HTTP status codes worth retrying,
// mirroring the teacher's retryErrorCodes.
var RetryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
	509:                            true, // Bandwidth Limit Exceeded
}

// Pacer retries a fallible operation with exponential backoff and a
// bounded number of attempts.
type Pacer struct {
	minSleep time.Duration
	maxSleep time.Duration
	retries  uint64
}

// New builds a Pacer with the given tuning.
func New(minSleep, maxSleep time.Duration, retries int) *Pacer {
	return &Pacer{minSleep: minSleep, maxSleep: maxSleep, retries: uint64(retries)}
}

// NewDefault builds a Pacer using DefaultMinSleep/DefaultMaxSleep/DefaultRetries.
func NewDefault() *Pacer {
	return New(DefaultMinSleep, DefaultMaxSleep, DefaultRetries)
}

// Call runs fn, retrying with exponential backoff as long as fn reports
// retry == true. fn's own error (if any) is returned once retries are
// exhausted or fn reports retry == false.
func (p *Pacer) Call(fn func() (retry bool, err error)) error {
	b := backoff.WithMaxRetries(p.backOff(), p.retries)
	return backoff.Retry(func() error {
		retry, err := fn()
		if err == nil {
			return nil
		}
		if !retry {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

func (p *Pacer) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.minSleep
	b.MaxInterval = p.maxSleep
	return b
}

// ShouldRetry reports whether resp/err look like a transient failure
// worth retrying: a retryable HTTP status, or a timeout/temporary network
// error. It returns err unchanged as a convenience, mirroring the
// teacher's shouldRetry(resp, err) (bool, error) shape.
func ShouldRetry(resp *http.Response, err error) (bool, error) {
	if err != nil {
		var netErr net.Error
		if asNetError(err, &netErr) && (netErr.Timeout() || isTemporary(netErr)) {
			return true, err
		}
		return false, err
	}
	if resp != nil && RetryableStatus[resp.StatusCode] {
		return true, err
	}
	return false, err
}

func asNetError(err error, target *net.Error) bool {
	for err != nil {
		if ne, ok := err.(net.Error); ok {
			*target = ne
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// isTemporary uses the deprecated-but-still-present Temporary() method
// where available; network errors that don't implement it are treated
// as non-temporary.
func isTemporary(err net.Error) bool {
	type temporary interface{ Temporary() bool }
	if t, ok := any(err).(temporary); ok {
		return t.Temporary()
	}
	return false
}
