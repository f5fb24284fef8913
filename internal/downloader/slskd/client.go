// Package slskd is a thin REST client for the slskd Soulseek daemon.
package slskd

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"

	"github.com/slipstream/slskbridge/internal/downloader/transfer"
	"github.com/slipstream/slskbridge/internal/downloader/types"
)

// MinimumVersion is the oldest slskd release whose API this client speaks.
const MinimumVersion = "0.17.0"

const apiPrefix = "/api/v0"

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: unexpected status code: %d, body: %s", e.Method, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: unexpected status code: %d", e.Method, e.URL, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from slskd.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 or 403 from slskd.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden)
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewFromConfig(cfg *types.ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL(),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Type() types.ClientType {
	return types.ClientTypeSlskd
}

func (c *Client) Protocol() types.Protocol {
	return types.ProtocolSoulseek
}

// BaseURL returns the daemon address requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Test checks that slskd is reachable, recent enough, and logged in to the
// Soulseek network.
func (c *Client) Test(ctx context.Context) error {
	app, err := c.Application(ctx)
	if err != nil {
		if IsUnauthorized(err) {
			return errors.Wrap(types.ErrAuthFailed, "slskd rejected the API key")
		}
		return err
	}

	if v := app.Version.Current; v != "" {
		current, err := semver.NewVersion(v)
		if err != nil {
			return errors.Wrapf(err, "failed to parse slskd version %q", v)
		}
		if current.LessThan(semver.MustParse(MinimumVersion)) {
			return errors.Errorf("slskd version %s is below minimum required version %s", v, MinimumVersion)
		}
	}

	if !app.Server.IsConnected || !app.Server.IsLoggedIn {
		return errors.Wrapf(types.ErrNotConnected, "slskd is not logged in to Soulseek (state %q)", app.Server.State)
	}
	return nil
}

// Application returns daemon version and Soulseek server state.
func (c *Client) Application(ctx context.Context) (*Application, error) {
	var app Application
	if err := c.get(ctx, "/application", &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// Options returns the daemon's effective configuration.
func (c *Client) Options(ctx context.Context) (*Options, error) {
	var opts Options
	if err := c.get(ctx, "/options", &opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

// Downloads lists every download transfer grouped by user and directory.
func (c *Client) Downloads(ctx context.Context) ([]transfer.UserTransfers, error) {
	var users []transfer.UserTransfers
	if err := c.get(ctx, "/transfers/downloads", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UserDownloads lists one user's download transfers.
func (c *Client) UserDownloads(ctx context.Context, username string) (*transfer.UserTransfers, error) {
	var user transfer.UserTransfers
	if err := c.get(ctx, "/transfers/downloads/"+url.PathEscape(username), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Download returns a single transfer.
func (c *Client) Download(ctx context.Context, username, id string) (*transfer.Transfer, error) {
	var t transfer.Transfer
	path := fmt.Sprintf("/transfers/downloads/%s/%s", url.PathEscape(username), url.PathEscape(id))
	if err := c.get(ctx, path, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CancelDownload cancels a transfer. With remove set, slskd also forgets the
// transfer and deletes its partial data.
func (c *Client) CancelDownload(ctx context.Context, username, id string, remove bool) error {
	path := fmt.Sprintf("/transfers/downloads/%s/%s?remove=%s",
		url.PathEscape(username), url.PathEscape(id), strconv.FormatBool(remove))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Enqueue asks slskd to download files from a user.
func (c *Client) Enqueue(ctx context.Context, username string, files []EnqueueRequest) error {
	return c.do(ctx, http.MethodPost, "/transfers/downloads/"+url.PathEscape(username), files, nil)
}

// DirectoryExists reports whether a directory exists below the downloads root.
func (c *Client) DirectoryExists(ctx context.Context, directory string) (bool, error) {
	err := c.do(ctx, http.MethodGet, directoryPath(directory), nil, nil)
	switch {
	case err == nil:
		return true, nil
	case IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// DeleteDirectory removes a directory below the downloads root.
func (c *Client) DeleteDirectory(ctx context.Context, directory string) error {
	return c.do(ctx, http.MethodDelete, directoryPath(directory), nil, nil)
}

func directoryPath(directory string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(directory))
	return "/files/downloads/directories/" + url.PathEscape(encoded)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	reqURL := c.baseURL + apiPrefix + path

	var reqBody io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method:     method,
			URL:        path,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(data)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", path)
	}
	return nil
}

// Application is the /application response.
type Application struct {
	Version struct {
		Full              string `json:"full"`
		Current           string `json:"current"`
		Latest            string `json:"latest"`
		IsUpdateAvailable bool   `json:"isUpdateAvailable"`
	} `json:"version"`
	Server struct {
		Address     string `json:"address"`
		State       string `json:"state"`
		IsConnected bool   `json:"isConnected"`
		IsLoggedIn  bool   `json:"isLoggedIn"`
	} `json:"server"`
}

// Options is the subset of the /options response this client reads.
type Options struct {
	Directories struct {
		Downloads  string `json:"downloads"`
		Incomplete string `json:"incomplete"`
	} `json:"directories"`
}

// EnqueueRequest names one file to download.
type EnqueueRequest struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}
