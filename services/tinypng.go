package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RemoteCompressor is a lossy compression service reached over HTTP.
type RemoteCompressor interface {
	Shrink(ctx context.Context, png []byte) ([]byte, error)
}

// TinyPNGClient talks to a TinyPNG-compatible proxy: POST {base}/shrink with
// the image, then GET the URL from the Location header.
type TinyPNGClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTinyPNGClient(cfg TinyPNGConfig) *TinyPNGClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TinyPNGClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *TinyPNGClient) Shrink(ctx context.Context, png []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/shrink", bytes.NewReader(png))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteCompressionFailed, err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteCompressionFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, remoteError(resp)
	}
	io.Copy(io.Discard, resp.Body)

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("%w: no Location header in shrink response", ErrRemoteCompressionFailed)
	}
	outputURL, err := c.resolve(location)
	if err != nil {
		return nil, fmt.Errorf("%w: bad Location %q: %v", ErrRemoteCompressionFailed, location, err)
	}
	return c.fetch(ctx, outputURL)
}

func (c *TinyPNGClient) fetch(ctx context.Context, outputURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, outputURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteCompressionFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteCompressionFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, remoteError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteCompressionFailed, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrRemoteCompressionFailed)
	}
	return body, nil
}

// resolve maps a Location header onto the proxy. The upstream API answers
// with absolute api.tinify.com URLs; only the /output/{id} part is kept so the
// download goes through the same base.
func (c *TinyPNGClient) resolve(location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	if i := strings.Index(u.Path, "/output/"); i >= 0 {
		return c.baseURL + u.Path[i:], nil
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

// remoteError reads the API's {"error","message"} body when there is one.
func remoteError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil {
		msg = firstNonEmpty(apiErr.Message, apiErr.Error)
	}
	return &RemoteError{StatusCode: resp.StatusCode, Message: msg}
}
