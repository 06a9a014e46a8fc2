package privfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Client reads files through the broker's unix socket.
type Client struct {
	httpc *http.Client
	key   string
}

// NewClient returns a Client dialing the broker at socket. key is sent as
// X-Rootd-Key when non-empty.
func NewClient(socket, key string) *Client {
	tr := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}
	return &Client{
		httpc: &http.Client{Transport: tr, Timeout: 30 * time.Second},
		key:   key,
	}
}

func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	resp, err := c.get(ctx, "/v1/exists", path)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("broker exists %s: %s", path, resp.Status)
	}

	var body struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("broker exists %s: decode: %w", path, err)
	}
	return body.Exists, nil
}

func (c *Client) ReadAll(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.get(ctx, "/v1/file", path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound:
		return nil, fmt.Errorf("broker read %s: %w", path, fs.ErrNotExist)
	default:
		return nil, fmt.Errorf("broker read %s: %s", path, resp.Status)
	}
}

func (c *Client) get(ctx context.Context, endpoint, path string) (*http.Response, error) {
	// Host is ignored by the unix transport; it only has to parse.
	u := "http://rootd" + endpoint + "?path=" + url.QueryEscape(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.key != "" {
		req.Header.Set("X-Rootd-Key", c.key)
	}
	return c.httpc.Do(req)
}
