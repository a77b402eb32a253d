// Package gist stores files in a single GitHub Gist. The gist's files map
// is a flat namespace and every mutation is one PATCH of the document.
package gist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"github.com/sdejongh/remotesync/pkg/logging"
	"github.com/sdejongh/remotesync/pkg/provider"
	"github.com/sdejongh/remotesync/pkg/transport"
)

const (
	// DefaultAPIURL is the public GitHub API
	DefaultAPIURL = "https://api.github.com"
	// DefaultMaxFileSize caps the content materialized for one upload
	DefaultMaxFileSize int64 = 10 * 1024 * 1024
	// largeFileThreshold triggers a warning because gists truncate inline
	// content around this size
	largeFileThreshold int64 = 1024 * 1024

	acceptHeader = "application/vnd.github.v3+json"
	markerFile   = "remotesync.md"
)

// PathPolicy decides how logical paths containing '/' map onto gist filenames
type PathPolicy string

const (
	// PathReject refuses nested paths with ErrInvalidPath
	PathReject PathPolicy = "reject"
	// PathEscape encodes '%' as "%25" and '/' as "%2F"
	PathEscape PathPolicy = "escape"
)

var (
	escaper   = strings.NewReplacer("%", "%25", "/", "%2F")
	unescaper = strings.NewReplacer("%2F", "/", "%25", "%")
)

// Config is the immutable gist provider configuration
type Config struct {
	Token       string
	GistID      string
	APIURL      string
	PathPolicy  PathPolicy
	MaxFileSize int64
}

// Provider implements provider.Provider on top of one gist
type Provider struct {
	provider.Lifecycle

	client *transport.Client
	config Config
	logger logging.Logger

	// a gist PATCH replaces the document revision; writes go one at a time
	writeMu sync.Mutex
}

type gistFile struct {
	Filename  string  `json:"filename,omitempty"`
	Content   *string `json:"content,omitempty"`
	RawURL    string  `json:"raw_url,omitempty"`
	Size      *int64  `json:"size,omitempty"`
	Truncated bool    `json:"truncated,omitempty"`
}

type document struct {
	ID          string               `json:"id"`
	Description string               `json:"description"`
	UpdatedAt   time.Time            `json:"updated_at"`
	Files       map[string]*gistFile `json:"files"`
}

type fileContent struct {
	Content string `json:"content"`
}

type patchRequest struct {
	Files map[string]fileContent `json:"files"`
}

type createRequest struct {
	Description string                 `json:"description"`
	Public      bool                   `json:"public"`
	Files       map[string]fileContent `json:"files"`
}

// New creates a gist provider. The provider is unusable until Connect succeeds.
func New(client *transport.Client, config Config, logger logging.Logger) *Provider {
	if config.APIURL == "" {
		config.APIURL = DefaultAPIURL
	}
	config.APIURL = strings.TrimRight(config.APIURL, "/")
	if config.PathPolicy == "" {
		config.PathPolicy = PathReject
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Provider{
		client: client,
		config: config,
		logger: logger.WithFields(logging.Fields{"provider": "gist"}),
	}
}

func (p *Provider) Name() string { return "gist" }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{ConcurrentWrites: false, Hierarchical: false}
}

// GistID returns the configured gist id, empty when none is set
func (p *Provider) GistID() string {
	return p.config.GistID
}

func (p *Provider) api(ctx context.Context, once bool) *req.Request {
	var r *req.Request
	if once {
		r = p.client.Once(ctx)
	} else {
		r = p.client.Idempotent(ctx)
	}
	r.SetHeader("Accept", acceptHeader)
	if p.config.Token != "" {
		r.SetHeader("Authorization", "token "+p.config.Token)
	}
	return r
}

// Connect validates the token with GET /user
func (p *Provider) Connect(ctx context.Context) error {
	if p.State() == provider.StateClosed {
		return p.Ready("connect", "")
	}
	resp, err := p.api(ctx, false).Get(p.config.APIURL + "/user")
	if err := transport.Check("connect", "", resp, err); err != nil {
		return err
	}
	p.MarkConnected()
	p.logger.Debug(ctx, "Connected", logging.Fields{"gist_id": p.config.GistID})
	return nil
}

// List returns every file of the gist. The path scope is ignored because
// the namespace is flat. Without a gist id the remote is empty.
func (p *Provider) List(ctx context.Context, _ string) ([]provider.RemoteEntry, error) {
	if err := p.Ready("list", ""); err != nil {
		return nil, err
	}
	if p.config.GistID == "" {
		return []provider.RemoteEntry{}, nil
	}

	doc, err := p.fetch(ctx, "list", "")
	if err != nil {
		return nil, err
	}

	entries := make([]provider.RemoteEntry, 0, len(doc.Files))
	for name, f := range doc.Files {
		entry := provider.RemoteEntry{Path: p.logicalPath(name), Size: -1, ModTime: doc.UpdatedAt}
		if f != nil && f.Size != nil {
			entry.Size = *f.Size
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Upload creates or replaces one file with a PATCH of the gist
func (p *Provider) Upload(ctx context.Context, path string, content io.Reader) error {
	if err := p.Ready("upload", path); err != nil {
		return err
	}
	if p.config.GistID == "" {
		return &provider.Error{Op: "upload", Path: path, Kind: provider.ErrMissingGistID}
	}
	name, err := p.fileName("upload", path)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(io.LimitReader(content, p.config.MaxFileSize+1))
	if err != nil {
		return fmt.Errorf("upload %s: read content: %w", path, err)
	}
	if int64(len(data)) > p.config.MaxFileSize {
		return &provider.Error{Op: "upload", Path: path, Kind: provider.ErrUnsupported,
			Err: fmt.Errorf("content exceeds %s", humanize.IBytes(uint64(p.config.MaxFileSize)))}
	}
	if !utf8.Valid(data) {
		return &provider.Error{Op: "upload", Path: path, Kind: provider.ErrUnsupported,
			Err: fmt.Errorf("gist content must be valid UTF-8 text")}
	}
	if int64(len(data)) > largeFileThreshold {
		p.logger.Warn(ctx, "Large gist upload is held in memory", logging.Fields{
			"path": path,
			"size": humanize.IBytes(uint64(len(data))),
		})
	}

	body := patchRequest{Files: map[string]fileContent{name: {Content: string(data)}}}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	resp, err := p.api(ctx, true).SetBodyJsonMarshal(body).Patch(p.gistURL())
	return transport.Check("upload", path, resp, err)
}

// Download returns the file content inline when the gist document carries
// it, otherwise it follows raw_url with one extra request.
func (p *Provider) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := p.Ready("download", path); err != nil {
		return nil, err
	}
	if p.config.GistID == "" {
		return nil, &provider.Error{Op: "download", Path: path, Kind: provider.ErrMissingGistID}
	}
	name, err := p.fileName("download", path)
	if err != nil {
		return nil, err
	}

	doc, err := p.fetch(ctx, "download", path)
	if err != nil {
		return nil, err
	}
	f, ok := doc.Files[name]
	if !ok || f == nil {
		return nil, &provider.Error{Op: "download", Path: path, Kind: provider.ErrNotFound}
	}
	if f.Content != nil && !f.Truncated {
		return io.NopCloser(strings.NewReader(*f.Content)), nil
	}
	if f.RawURL == "" {
		return nil, provider.ProtocolError("download", path, fmt.Errorf("file has neither content nor raw_url"))
	}

	r := p.client.Idempotent(ctx).DisableAutoReadResponse()
	if p.config.Token != "" && p.trustedRawHost(f.RawURL) {
		r.SetHeader("Authorization", "token "+p.config.Token)
	}
	resp, err := r.Get(f.RawURL)
	if err := transport.Check("download", path, resp, err); err != nil {
		return nil, err
	}
	return transport.Body("download", path, resp.Body), nil
}

// Create makes a new gist holding a marker file and returns its id. The
// provider keeps its configured id; callers persist the new one.
func (p *Provider) Create(ctx context.Context, description string, public bool) (string, error) {
	if err := p.Ready("create", ""); err != nil {
		return "", err
	}
	body := createRequest{
		Description: description,
		Public:      public,
		Files: map[string]fileContent{
			markerFile: {Content: "Synced by remotesync.\n"},
		},
	}

	resp, err := p.api(ctx, true).SetBodyJsonMarshal(body).Post(p.config.APIURL + "/gists")
	if err := transport.Check("create", "", resp, err); err != nil {
		return "", err
	}

	var doc document
	if err := json.Unmarshal(resp.Bytes(), &doc); err != nil {
		return "", provider.ProtocolError("create", "", err)
	}
	if doc.ID == "" {
		return "", provider.ProtocolError("create", "", fmt.Errorf("response carries no gist id"))
	}
	p.logger.Info(ctx, "Created gist", logging.Fields{"gist_id": doc.ID, "public": public})
	return doc.ID, nil
}

// Close moves the provider to the closed state. The shared transport is
// owned by the session.
func (p *Provider) Close() error {
	p.MarkClosed()
	return nil
}

func (p *Provider) gistURL() string {
	return p.config.APIURL + "/gists/" + url.PathEscape(p.config.GistID)
}

func (p *Provider) fetch(ctx context.Context, op, path string) (*document, error) {
	resp, err := p.api(ctx, false).Get(p.gistURL())
	if err := transport.Check(op, path, resp, err); err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(resp.Bytes(), &doc); err != nil {
		return nil, provider.ProtocolError(op, path, err)
	}
	if doc.Files == nil {
		return nil, provider.ProtocolError(op, path, fmt.Errorf("gist document has no files map"))
	}
	return &doc, nil
}

// fileName maps a logical path onto a gist filename
func (p *Provider) fileName(op, path string) (string, error) {
	cleaned, err := provider.CleanPath(path)
	if err != nil {
		return "", &provider.Error{Op: op, Path: path, Kind: provider.ErrInvalidPath, Err: errors.Unwrap(err)}
	}
	if !strings.Contains(cleaned, "/") {
		return cleaned, nil
	}
	if p.config.PathPolicy == PathEscape {
		return escaper.Replace(cleaned), nil
	}
	return "", &provider.Error{Op: op, Path: path, Kind: provider.ErrInvalidPath,
		Err: fmt.Errorf("gist filenames cannot contain '/'")}
}

func (p *Provider) logicalPath(name string) string {
	if p.config.PathPolicy == PathEscape {
		return unescaper.Replace(name)
	}
	return name
}

// trustedRawHost reports whether the token may be sent to a raw_url
func (p *Provider) trustedRawHost(raw string) bool {
	rawURL, err := url.Parse(raw)
	if err != nil {
		return false
	}
	apiURL, err := url.Parse(p.config.APIURL)
	if err != nil {
		return false
	}
	host := rawURL.Hostname()
	return host == apiURL.Hostname() || host == "githubusercontent.com" ||
		strings.HasSuffix(host, ".githubusercontent.com")
}
