package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voiceforge/voiceforge/pkg/audio"
)

// headBytes is how much of a real source is read before it counts as ready.
const headBytes = 64 << 10

// Fetcher prepares a real source and reports its duration.
type Fetcher interface {
	Fetch(ctx context.Context, src string) (time.Duration, error)
}

// LoadError is a classified load failure.
type LoadError struct {
	Code ErrorCode
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("playback: %s: %v", e.Code, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// HTTPFetcher fetches the head of a source over HTTP and derives the
// duration from its content type and length.
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch implements [Fetcher].
func (f HTTPFetcher) Fetch(ctx context.Context, src string) (time.Duration, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return 0, &LoadError{Code: CodeUnsupported, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, &LoadError{Code: contextCode(ctx, CodeNetwork), Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == http.StatusUnavailableForLegalReasons:
		return 0, &LoadError{Code: CodeBlockedByPolicy, Err: fmt.Errorf("GET %s: %s", src, resp.Status)}
	case resp.StatusCode >= 300:
		return 0, &LoadError{Code: CodeNetwork, Err: fmt.Errorf("GET %s: %s", src, resp.Status)}
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !audio.IsAudioContentType(ct) {
		return 0, &LoadError{Code: CodeUnsupported, Err: fmt.Errorf("content type %q", ct)}
	}
	head, err := io.ReadAll(io.LimitReader(resp.Body, headBytes))
	if err != nil {
		return 0, &LoadError{Code: contextCode(ctx, CodeNetwork), Err: err}
	}
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(head)
	}

	d, err := audio.EstimateDuration(ct, head, resp.ContentLength)
	switch {
	case errors.Is(err, audio.ErrUnsupported):
		return 0, &LoadError{Code: CodeUnsupported, Err: err}
	case err != nil:
		return 0, &LoadError{Code: CodeDecode, Err: err}
	case d <= 0:
		return 0, &LoadError{Code: CodeDecode, Err: errors.New("source has no audio")}
	}
	return d, nil
}

// contextCode prefers the context's verdict over a transport error.
func contextCode(ctx context.Context, fallback ErrorCode) ErrorCode {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		return CodeAborted
	default:
		return fallback
	}
}

// classify maps any fetch error to a code.
func classify(ctx context.Context, err error) ErrorCode {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeAborted
	}
	return contextCode(ctx, CodeNetwork)
}
