// Package webdav stores files on a WebDAV server, preserving the logical
// path hierarchy as collections.
package webdav

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/imroc/req/v3"
	"github.com/sdejongh/remotesync/pkg/logging"
	"github.com/sdejongh/remotesync/pkg/provider"
	"github.com/sdejongh/remotesync/pkg/transport"
)

const methodPropfind = "PROPFIND"
const methodMkcol = "MKCOL"

// Config is the immutable WebDAV provider configuration
type Config struct {
	BaseURL string
	User    string
	Pass    string
	// CreateParents issues MKCOL for missing parent collections before PUT
	CreateParents bool
}

// Provider implements provider.Provider against a WebDAV collection
type Provider struct {
	provider.Lifecycle

	client   *transport.Client
	config   Config
	base     string // base URL without trailing slash
	basePath string // decoded path of the base URL without trailing slash
	logger   logging.Logger

	mkcolMu sync.Mutex
	created map[string]bool
}

// New creates a WebDAV provider for the collection at config.BaseURL
func New(client *transport.Client, config Config, logger logging.Logger) (*Provider, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("webdav: base URL is required")
	}
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("webdav: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webdav: unsupported URL scheme %q", u.Scheme)
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	return &Provider{
		client:   client,
		config:   config,
		base:     strings.TrimRight(config.BaseURL, "/"),
		basePath: strings.TrimRight(u.Path, "/"),
		logger:   logger.WithFields(logging.Fields{"provider": "webdav"}),
		created:  make(map[string]bool),
	}, nil
}

func (p *Provider) Name() string { return "webdav" }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{ConcurrentWrites: true, Hierarchical: true}
}

// ResourceURL joins the base URL and a cleaned logical path with exactly
// one '/' between them, escaping each segment.
func (p *Provider) ResourceURL(logical string) string {
	if logical == "" {
		return p.base + "/"
	}
	segments := strings.Split(logical, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return p.base + "/" + strings.Join(segments, "/")
}

func (p *Provider) collectionURL(logical string) string {
	if logical == "" {
		return p.base + "/"
	}
	return p.ResourceURL(logical) + "/"
}

func (p *Provider) request(r *req.Request) *req.Request {
	if p.config.User != "" {
		r.SetBasicAuth(p.config.User, p.config.Pass)
	}
	return r
}

// Connect probes the base collection with PROPFIND Depth 0. Both 200 and
// 207 count as success.
func (p *Provider) Connect(ctx context.Context) error {
	if p.State() == provider.StateClosed {
		return p.Ready("connect", "")
	}
	resp, err := p.request(p.client.Idempotent(ctx)).
		SetHeader("Depth", "0").
		SetHeader("Content-Type", "application/xml; charset=utf-8").
		SetBodyString(propfindBody).
		Send(methodPropfind, p.collectionURL(""))
	if err := transport.CheckStatus("connect", "", resp, err, http.StatusOK, http.StatusMultiStatus); err != nil {
		return err
	}
	p.MarkConnected()
	p.logger.Debug(ctx, "Connected", logging.Fields{"url": p.base})
	return nil
}

// List walks the collection tree under path with PROPFIND Depth 1 per
// level and returns the files it contains, relative to the base URL.
func (p *Provider) List(ctx context.Context, path string) ([]provider.RemoteEntry, error) {
	if err := p.Ready("list", path); err != nil {
		return nil, err
	}
	scope, err := provider.CleanScope(path)
	if err != nil {
		return nil, err
	}

	entries := []provider.RemoteEntry{}
	visited := map[string]bool{}
	queue := []string{scope}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := queue[0]
		queue = queue[1:]
		if visited[dir] {
			continue
		}
		visited[dir] = true

		resources, err := p.propfind(ctx, dir)
		if err != nil {
			return nil, err
		}
		for _, r := range resources {
			rel, ok := p.relative(r.href)
			if !ok || rel == dir || !provider.Within(rel, scope) {
				continue
			}
			if r.collection {
				queue = append(queue, rel)
				continue
			}
			entries = append(entries, provider.RemoteEntry{
				Path:    rel,
				Size:    r.size,
				ETag:    r.etag,
				ModTime: r.modTime,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (p *Provider) propfind(ctx context.Context, dir string) ([]resource, error) {
	resp, err := p.request(p.client.Idempotent(ctx)).
		SetHeader("Depth", "1").
		SetHeader("Content-Type", "application/xml; charset=utf-8").
		SetBodyString(propfindBody).
		Send(methodPropfind, p.collectionURL(dir))
	if err := transport.CheckStatus("list", dir, resp, err, http.StatusOK, http.StatusMultiStatus); err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusOK && !strings.Contains(resp.GetContentType(), "xml") {
		return nil, &provider.Error{Op: "list", Path: dir, StatusCode: resp.StatusCode, Kind: provider.ErrUnsupported,
			Err: fmt.Errorf("server answered PROPFIND with %q", resp.GetContentType())}
	}

	resources, err := parseMultistatus(resp.Bytes())
	if err != nil {
		return nil, provider.ProtocolError("list", dir, err)
	}
	return resources, nil
}

// relative converts an href from a multistatus response into a logical path
func (p *Provider) relative(href string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	hrefPath := strings.TrimRight(u.Path, "/")
	if hrefPath != p.basePath && !strings.HasPrefix(hrefPath, p.basePath+"/") {
		return "", false
	}
	return strings.Trim(strings.TrimPrefix(hrefPath, p.basePath), "/"), true
}

// Upload streams content as the body of a PUT
func (p *Provider) Upload(ctx context.Context, path string, content io.Reader) error {
	if err := p.Ready("upload", path); err != nil {
		return err
	}
	cleaned, err := provider.CleanPath(path)
	if err != nil {
		return err
	}
	if p.config.CreateParents {
		if err := p.ensureParents(ctx, cleaned); err != nil {
			return err
		}
	}

	resp, err := p.request(p.client.Once(ctx)).
		SetBody(content).
		SetHeader("Content-Type", "application/octet-stream").
		Put(p.ResourceURL(cleaned))
	return transport.Check("upload", path, resp, err)
}

// ensureParents creates each missing parent collection of logical, top down.
// 405 means the collection already exists.
func (p *Provider) ensureParents(ctx context.Context, logical string) error {
	segments := strings.Split(logical, "/")
	if len(segments) < 2 {
		return nil
	}

	p.mkcolMu.Lock()
	defer p.mkcolMu.Unlock()

	for i := 1; i < len(segments); i++ {
		dir := strings.Join(segments[:i], "/")
		if p.created[dir] {
			continue
		}
		resp, err := p.request(p.client.Once(ctx)).Send(methodMkcol, p.collectionURL(dir))
		if err := transport.CheckStatus("mkcol", dir, resp, err, http.StatusCreated, http.StatusOK, http.StatusMethodNotAllowed); err != nil {
			return err
		}
		p.created[dir] = true
	}
	return nil
}

// Download issues a GET. The caller closes the returned body.
func (p *Provider) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := p.Ready("download", path); err != nil {
		return nil, err
	}
	cleaned, err := provider.CleanPath(path)
	if err != nil {
		return nil, err
	}

	resp, err := p.request(p.client.Idempotent(ctx)).
		DisableAutoReadResponse().
		Get(p.ResourceURL(cleaned))
	if err := transport.Check("download", path, resp, err); err != nil {
		return nil, err
	}
	return transport.Body("download", path, resp.Body), nil
}

// Close moves the provider to the closed state
func (p *Provider) Close() error {
	p.MarkClosed()
	return nil
}
