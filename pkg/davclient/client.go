// Package davclient is a small WebDAV client covering the operations the
// file manager needs: a login probe, directory listing, upload, folder
// creation, download and delete.
//
// Listings come from standard RFC 4918 PROPFIND multistatus XML. There is
// no retry or conflict handling; failures surface the HTTP status text.
package davclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"
	"time"
)

// Entry types.
const (
	TypeFile      = "file"
	TypeDirectory = "directory"
)

// Entry is one item of a directory listing.
type Entry struct {
	Name     string    `json:"displayName"`
	Type     string    `json:"resourceType"`
	Size     int64     `json:"contentLength"`
	Modified time.Time `json:"lastModified"`
}

// IsDir reports whether the entry is a collection.
func (e Entry) IsDir() bool { return e.Type == TypeDirectory }

// Client talks to a davshare gateway. The zero value is not usable; call
// New.
type Client struct {
	baseURL  string
	username string
	password string
	authz    string // cached Basic header value, set by Login
	http     *http.Client
}

// New creates a client for the WebDAV namespace rooted at baseURL
// (including the mount prefix, e.g. http://host:8080/api).
func New(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// SetHTTPClient overrides the underlying HTTP client, mainly for tests.
func (c *Client) SetHTTPClient(hc *http.Client) { c.http = hc }

// Login probes the server with a depth-1 PROPFIND against the root. On
// success the encoded credential is retained for all subsequent requests.
func (c *Client) Login(ctx context.Context) error {
	resp, err := c.do(ctx, "PROPFIND", "/", nil, propfindHeaders())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusMultiStatus:
		c.authz = "Basic " + basicToken(c.username, c.password)
		return nil
	case http.StatusUnauthorized:
		return fmt.Errorf("login failed: %s", resp.Status)
	default:
		return fmt.Errorf("unexpected response: %s", resp.Status)
	}
}

// List returns the entries of dir, directories first, then by
// case-insensitive name. The collection itself is not included.
func (c *Client) List(ctx context.Context, dir string) ([]Entry, error) {
	dir = cleanPath(dir)
	resp, err := c.do(ctx, "PROPFIND", dir, nil, propfindHeaders())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus && resp.StatusCode != http.StatusOK {
		return nil, statusError("list", resp)
	}

	entries, err := parseMultistatus(resp.Body, dir)
	if err != nil {
		return nil, fmt.Errorf("parsing listing: %w", err)
	}
	sortEntries(entries)
	return entries, nil
}

// Upload reads the local file fully into memory and issues a single PUT to
// the remote path.
func (c *Client) Upload(ctx context.Context, local, remote string) error {
	data, err := os.ReadFile(local)
	if err != nil {
		return err
	}
	return c.Put(ctx, remote, data)
}

// Put writes data to the remote path with one PUT request.
func (c *Client) Put(ctx context.Context, remote string, data []byte) error {
	resp, err := c.do(ctx, http.MethodPut, cleanPath(remote), bytes.NewReader(data), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError("upload", resp)
	}
	return nil
}

// Download fetches the remote file contents.
func (c *Client) Download(ctx context.Context, remote string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, cleanPath(remote), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("download", resp)
	}
	return io.ReadAll(resp.Body)
}

// Mkdir creates a collection via MKCOL.
func (c *Client) Mkdir(ctx context.Context, dir string) error {
	resp, err := c.do(ctx, "MKCOL", cleanPath(dir), nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return statusError("mkdir", resp)
	}
	return nil
}

// Remove deletes a file or directory.
func (c *Client) Remove(ctx context.Context, name string) error {
	resp, err := c.do(ctx, http.MethodDelete, cleanPath(name), nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError("remove", resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, p string, body io.Reader, headers map[string]string) (*http.Response, error) {
	u := c.baseURL + (&url.URL{Path: p}).EscapedPath()
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}

	authz := c.authz
	if authz == "" {
		authz = "Basic " + basicToken(c.username, c.password)
	}
	req.Header.Set("Authorization", authz)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.http.Do(req)
}

func propfindHeaders() map[string]string {
	return map[string]string{
		"Depth":        "1",
		"Content-Type": "application/xml; charset=utf-8",
	}
}

func basicToken(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}

func statusError(op string, resp *http.Response) error {
	return fmt.Errorf("%s failed: server returned %s", op, resp.Status)
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

// sortEntries orders directories before files, then by case-insensitive
// name.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsDir() != b.IsDir() {
			return a.IsDir()
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}
