// Package mock provides an in-memory slskd for tests and local development.
package mock

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slipstream/slskbridge/internal/downloader/slskd"
	"github.com/slipstream/slskbridge/internal/downloader/transfer"
	"github.com/slipstream/slskbridge/internal/library/audio"
)

// MockDownloadDir is the simulated downloads directory.
const MockDownloadDir = "/mock/downloads"

// Method names accepted by SetError and Calls.
const (
	MethodTest            = "Test"
	MethodOptions         = "Options"
	MethodDownloads       = "Downloads"
	MethodUserDownloads   = "UserDownloads"
	MethodDownload        = "Download"
	MethodCancelDownload  = "CancelDownload"
	MethodDirectoryExists = "DirectoryExists"
	MethodDeleteDirectory = "DeleteDirectory"
	MethodEnqueue         = "Enqueue"
	MethodSearch          = "Search"
	MethodStartSearch     = "StartSearch"
	MethodDeleteSearch    = "DeleteSearch"
	MethodSearches        = "Searches"
)

// Call records one request made against the mock.
type Call struct {
	Method   string
	Username string
	ID       string
	Remove   bool
}

// Client mimics the parts of the slskd API the downloader uses. Cancelling a
// transfer moves it to "Completed, Cancelled" unless it is marked stuck;
// cancelling with remove drops it from the listing.
type Client struct {
	mu          sync.Mutex
	users       map[string][]transfer.Directory
	options     slskd.Options
	searches    map[string]*slskd.Search
	responses   []slskd.SearchResponse
	directories map[string]bool
	stuck       map[string]bool
	errs        map[string]error
	calls       []Call
}

// New creates an empty mock whose downloads directory is MockDownloadDir.
func New() *Client {
	c := &Client{
		users:       make(map[string][]transfer.Directory),
		searches:    make(map[string]*slskd.Search),
		directories: make(map[string]bool),
		stuck:       make(map[string]bool),
		errs:        make(map[string]error),
	}
	c.options.Directories.Downloads = MockDownloadDir
	return c
}

// NotFound returns the error slskd gives for a missing resource.
func NotFound(url string) error {
	return &slskd.StatusError{Method: http.MethodGet, URL: url, StatusCode: http.StatusNotFound}
}

// SetError makes every later call to method fail with err. A nil err clears it.
func (c *Client) SetError(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.errs, method)
		return
	}
	c.errs[method] = err
}

// SetDownloadsDir changes the directory reported by Options.
func (c *Client) SetDownloadsDir(dir string) {
	c.mu.Lock()
	c.options.Directories.Downloads = dir
	c.mu.Unlock()
}

// AddTransfer places a transfer under a user's directory. The transfer ID is
// generated when empty and returned.
func (c *Client) AddTransfer(username, directory string, t transfer.Transfer) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Username = username
	c.addLocked(username, directory, t)
	return t.ID
}

// AddDirectory marks a directory as present on disk.
func (c *Client) AddDirectory(directory string) {
	c.mu.Lock()
	c.directories[directory] = true
	c.mu.Unlock()
}

// HasDirectory reports whether a directory is still present on disk.
func (c *Client) HasDirectory(directory string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.directories[directory]
}

// AddSearch stores a search result.
func (c *Client) AddSearch(s *slskd.Search) {
	c.mu.Lock()
	c.searches[s.ID] = s
	c.mu.Unlock()
}

// SetSearchResponses sets the responses every later StartSearch collects.
func (c *Client) SetSearchResponses(responses []slskd.SearchResponse) {
	c.mu.Lock()
	c.responses = responses
	c.mu.Unlock()
}

// Stick keeps a transfer from ever settling after cancellation.
func (c *Client) Stick(id string) {
	c.mu.Lock()
	c.stuck[id] = true
	c.mu.Unlock()
}

// Calls returns the recorded calls to method, or every call when method is empty.
func (c *Client) Calls(method string) []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Call
	for _, call := range c.calls {
		if method == "" || call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

// TransferCount returns the number of transfers listed for a user.
func (c *Client) TransferCount(username string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.users[username] {
		n += len(d.Files)
	}
	return n
}

func (c *Client) Test(_ context.Context) error {
	return c.record(Call{Method: MethodTest})
}

func (c *Client) BaseURL() string {
	return "http://mock.slskd"
}

func (c *Client) Options(_ context.Context) (*slskd.Options, error) {
	if err := c.record(Call{Method: MethodOptions}); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	opts := c.options
	return &opts, nil
}

func (c *Client) Downloads(_ context.Context) ([]transfer.UserTransfers, error) {
	if err := c.record(Call{Method: MethodDownloads}); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.users))
	for name := range c.users {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]transfer.UserTransfers, 0, len(names))
	for _, name := range names {
		out = append(out, c.userLocked(name))
	}
	return out, nil
}

func (c *Client) UserDownloads(_ context.Context, username string) (*transfer.UserTransfers, error) {
	if err := c.record(Call{Method: MethodUserDownloads, Username: username}); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.users[username]; !ok {
		return nil, NotFound("/transfers/downloads/" + username)
	}
	u := c.userLocked(username)
	return &u, nil
}

func (c *Client) Download(_ context.Context, username, id string) (*transfer.Transfer, error) {
	if err := c.record(Call{Method: MethodDownload, Username: username, ID: id}); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.findLocked(username, id)
	if t == nil {
		return nil, NotFound("/transfers/downloads/" + username + "/" + id)
	}
	out := *t
	return &out, nil
}

func (c *Client) CancelDownload(_ context.Context, username, id string, remove bool) error {
	if err := c.record(Call{Method: MethodCancelDownload, Username: username, ID: id, Remove: remove}); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.findLocked(username, id)
	if t == nil {
		return NotFound("/transfers/downloads/" + username + "/" + id)
	}
	if remove {
		c.removeLocked(username, id)
		return nil
	}
	if !c.stuck[id] && t.RawState != "Completed, Succeeded" {
		t.RawState = "Completed, Cancelled"
	}
	return nil
}

func (c *Client) DirectoryExists(_ context.Context, directory string) (bool, error) {
	if err := c.record(Call{Method: MethodDirectoryExists, ID: directory}); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.directories[directory], nil
}

func (c *Client) DeleteDirectory(_ context.Context, directory string) error {
	if err := c.record(Call{Method: MethodDeleteDirectory, ID: directory}); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.directories[directory] {
		return NotFound("/files/downloads/directories/" + directory)
	}
	delete(c.directories, directory)
	return nil
}

// Enqueue queues the files under their parent directory in "Queued, Remotely".
func (c *Client) Enqueue(_ context.Context, username string, files []slskd.EnqueueRequest) error {
	if err := c.record(Call{Method: MethodEnqueue, Username: username}); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range files {
		file := audio.NewFile(f.Filename, f.Size)
		c.addLocked(username, file.ParentPath, transfer.Transfer{
			File:           file,
			ID:             uuid.NewString(),
			Username:       username,
			Direction:      "Download",
			RawState:       "Queued, Remotely",
			BytesRemaining: f.Size,
		})
	}
	return nil
}

func (c *Client) Search(_ context.Context, id string, _ bool) (*slskd.Search, error) {
	if err := c.record(Call{Method: MethodSearch, ID: id}); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.searches[id]
	if !ok {
		return nil, NotFound("/searches/" + id)
	}
	out := *s
	return &out, nil
}

// StartSearch completes the search immediately with the configured responses.
func (c *Client) StartSearch(_ context.Context, req *slskd.SearchRequest) (*slskd.Search, error) {
	if err := c.record(Call{Method: MethodStartSearch, ID: req.ID}); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &slskd.Search{
		ID:            req.ID,
		SearchText:    req.SearchText,
		State:         "Completed, TimedOut",
		IsComplete:    true,
		ResponseCount: len(c.responses),
		StartedAt:     transfer.Timestamp{Time: time.Now()},
		Responses:     append([]slskd.SearchResponse(nil), c.responses...),
	}
	c.searches[s.ID] = s
	out := *s
	return &out, nil
}

func (c *Client) DeleteSearch(_ context.Context, id string) error {
	if err := c.record(Call{Method: MethodDeleteSearch, ID: id}); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.searches[id]; !ok {
		return NotFound("/searches/" + id)
	}
	delete(c.searches, id)
	return nil
}

func (c *Client) Searches(context.Context) ([]slskd.Search, error) {
	if err := c.record(Call{Method: MethodSearches}); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]slskd.Search, 0, len(c.searches))
	for _, s := range c.searches {
		cp := *s
		cp.Responses = nil
		out = append(out, cp)
	}
	return out, nil
}

func (c *Client) record(call Call) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return c.errs[call.Method]
}

func (c *Client) addLocked(username, directory string, t transfer.Transfer) {
	dirs := c.users[username]
	for i := range dirs {
		if dirs[i].Directory == directory {
			dirs[i].Files = append(dirs[i].Files, t)
			dirs[i].FileCount = len(dirs[i].Files)
			return
		}
	}
	c.users[username] = append(dirs, transfer.Directory{
		Directory: directory,
		FileCount: 1,
		Files:     []transfer.Transfer{t},
	})
}

func (c *Client) findLocked(username, id string) *transfer.Transfer {
	dirs := c.users[username]
	for i := range dirs {
		for j := range dirs[i].Files {
			if dirs[i].Files[j].ID == id {
				return &dirs[i].Files[j]
			}
		}
	}
	return nil
}

func (c *Client) removeLocked(username, id string) {
	dirs := c.users[username]
	kept := dirs[:0]
	for _, d := range dirs {
		files := d.Files[:0]
		for _, f := range d.Files {
			if f.ID != id {
				files = append(files, f)
			}
		}
		if len(files) == 0 {
			continue
		}
		d.Files = files
		d.FileCount = len(files)
		kept = append(kept, d)
	}
	if len(kept) == 0 {
		delete(c.users, username)
		return
	}
	c.users[username] = kept
}

// userLocked returns a copy of a user's listing so callers cannot mutate it.
func (c *Client) userLocked(username string) transfer.UserTransfers {
	dirs := c.users[username]
	out := transfer.UserTransfers{Username: username, Directories: make([]transfer.Directory, len(dirs))}
	for i, d := range dirs {
		d.Files = append([]transfer.Transfer(nil), d.Files...)
		out.Directories[i] = d
	}
	return out
}
