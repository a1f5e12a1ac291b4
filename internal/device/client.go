package device

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// StatusError is returned when the device answers with a non-2xx status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("device %s returned %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Client calls a camera's HTTP API.
type Client struct {
	base *url.URL
	http *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client. Note that Stream ignores its
// Timeout; use the context to bound a stream instead.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient returns a client for the device at baseURL, e.g.
// "http://esp32-cam2:80". Paths are resolved against it, so a base with a
// path prefix such as a proxy mount also works.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing device URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("device URL %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	c := &Client{base: u, http: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SystemInfo fetches chip and flash details.
func (c *Client) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	var info SystemInfo
	if err := c.getJSON(ctx, PathSystemInfo, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Status fetches the current sensor settings.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.getJSON(ctx, PathStatus, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Capture takes a single still.
func (c *Client) Capture(ctx context.Context) (Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	resp, err := c.get(ctx, PathCapture)
	if err != nil {
		return Frame{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Frame{}, fmt.Errorf("reading capture: %w", err)
	}
	f := Frame{JPEG: data}
	if ts := resp.Header.Get(HeaderTimestamp); ts != "" {
		if f.Timestamp, err = ParseTimestamp(ts); err != nil {
			return Frame{}, err
		}
	}
	return f, nil
}

// Stream opens the MJPEG stream. The caller must Close the reader; canceling
// ctx also ends the stream.
func (c *Client) Stream(ctx context.Context) (*FrameReader, error) {
	resp, err := c.get(ctx, PathStream)
	if err != nil {
		return nil, err
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		return nil, fmt.Errorf("stream: unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	fps, _ := strconv.Atoi(resp.Header.Get("X-Framerate"))
	return &FrameReader{
		body:      resp.Body,
		mr:        multipart.NewReader(resp.Body, params["boundary"]),
		Framerate: fps,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	u := *c.base
	u.Path = c.base.Path + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", u.String(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		return nil, &StatusError{URL: u.String(), Code: resp.StatusCode}
	}
	return resp, nil
}

// FrameReader yields frames from an MJPEG stream.
type FrameReader struct {
	body io.ReadCloser
	mr   *multipart.Reader

	// Framerate is the rate advertised by the device, or 0 if unknown.
	Framerate int
}

// Next returns the next frame, or io.EOF when the stream ends.
func (r *FrameReader) Next() (Frame, error) {
	part, err := r.mr.NextPart()
	if err != nil {
		return Frame{}, err
	}
	defer part.Close()

	if ct := part.Header.Get("Content-Type"); ct != "" && ct != "image/jpeg" {
		return Frame{}, fmt.Errorf("stream part: unexpected content type %q", ct)
	}
	data, err := io.ReadAll(part)
	if err != nil {
		return Frame{}, fmt.Errorf("reading stream part: %w", err)
	}
	f := Frame{JPEG: data}
	if ts := part.Header.Get(HeaderTimestamp); ts != "" {
		if f.Timestamp, err = ParseTimestamp(ts); err != nil {
			return Frame{}, err
		}
	}
	return f, nil
}

// Close ends the stream.
func (r *FrameReader) Close() error {
	return r.body.Close()
}
