// Package session builds everything one sync session needs from a
// configuration: the shared transport, the selected provider and the local
// file source. The session owns their lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sdejongh/remotesync/internal/platform"
	"github.com/sdejongh/remotesync/pkg/config"
	"github.com/sdejongh/remotesync/pkg/logging"
	"github.com/sdejongh/remotesync/pkg/models"
	"github.com/sdejongh/remotesync/pkg/output"
	"github.com/sdejongh/remotesync/pkg/provider"
	"github.com/sdejongh/remotesync/pkg/provider/gist"
	"github.com/sdejongh/remotesync/pkg/provider/webdav"
	"github.com/sdejongh/remotesync/pkg/storage"
	"github.com/sdejongh/remotesync/pkg/sync"
	"github.com/sdejongh/remotesync/pkg/transport"
)

// Session holds the components of one sync session
type Session struct {
	id       string
	config   config.Config
	client   *transport.Client
	provider provider.Provider
	local    storage.Backend
	logger   logging.Logger
	closed   atomic.Bool
}

// New validates cfg and builds the session from it. The local root must
// exist. cfg is copied; later changes do not affect the session.
func New(cfg *config.Config, logger logging.Logger) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	root, err := platform.ResolveRoot(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}
	local, err := storage.NewLocal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open local root: %w", err)
	}

	return NewWithLocal(cfg, local, logger)
}

// NewWithLocal builds a session over an existing local file source
func NewWithLocal(cfg *config.Config, local storage.Backend, logger logging.Logger) (*Session, error) {
	if cfg == nil || local == nil {
		return nil, errors.New("configuration and local backend are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	s := &Session{
		id:     uuid.New().String(),
		config: *cfg,
		local:  local,
	}
	s.config.Sync.Exclude = append([]string(nil), cfg.Sync.Exclude...)
	s.logger = logger.WithFields(logging.Fields{"session_id": s.id, "service": cfg.Service})

	s.client = transport.New(transport.Config{
		ConnectTimeout:  cfg.Transport.ConnectTimeout,
		Timeout:         cfg.Transport.Timeout,
		MaxAttempts:     cfg.Transport.MaxAttempts,
		RetryBackoff:    cfg.Transport.RetryBackoff,
		RetryMaxBackoff: cfg.Transport.RetryMaxBackoff,
	}, s.logger)

	p, err := s.buildProvider()
	if err != nil {
		s.client.Close()
		return nil, err
	}
	s.provider = p

	s.logger.Debug(context.Background(), "Session created", logging.Fields{"provider": p.Name()})
	return s, nil
}

func (s *Session) buildProvider() (provider.Provider, error) {
	switch s.config.Service {
	case config.ServiceGist:
		return gist.New(s.client, gist.Config{
			Token:       s.config.Gist.Token,
			GistID:      s.config.Gist.ID,
			APIURL:      s.config.Gist.APIURL,
			PathPolicy:  gist.PathPolicy(s.config.Gist.PathPolicy),
			MaxFileSize: s.config.Gist.MaxFileSize,
		}, s.logger), nil
	case config.ServiceWebDAV:
		p, err := webdav.New(s.client, webdav.Config{
			BaseURL:       s.config.WebDAV.URL,
			User:          s.config.WebDAV.User,
			Pass:          s.config.WebDAV.Pass,
			CreateParents: s.config.WebDAV.CreateParents,
		}, s.logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown service: %s", s.config.Service)
	}
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// Provider returns the configured remote backend
func (s *Session) Provider() provider.Provider { return s.provider }

// Local returns the local file source
func (s *Session) Local() storage.Backend { return s.local }

// Root returns where the local source is rooted
func (s *Session) Root() string { return s.local.Root() }

// Client returns the shared transport
func (s *Session) Client() *transport.Client { return s.client }

// Gist returns the provider as a gist backend, when the session uses one
func (s *Session) Gist() (*gist.Provider, bool) {
	g, ok := s.provider.(*gist.Provider)
	return g, ok
}

// NewOperation describes a transfer of paths in direction using the
// session's sync settings
func (s *Session) NewOperation(direction models.Direction, paths []string, dryRun bool) *models.SyncOperation {
	return &models.SyncOperation{
		ID:               uuid.New().String(),
		Provider:         s.provider.Name(),
		Direction:        direction,
		RootPath:         s.Root(),
		Paths:            append([]string(nil), paths...),
		ExcludePatterns:  append([]string(nil), s.config.Sync.Exclude...),
		ComparisonMethod: s.config.Sync.Comparison,
		DryRun:           dryRun,
		MaxWorkers:       s.config.Sync.MaxWorkers,
		BandwidthLimit:   s.config.Sync.BandwidthLimit,
		CreatedAt:        time.Now(),
	}
}

// NewEngine creates an orchestrator for operation over the session's
// provider and local source. formatter may be nil.
func (s *Session) NewEngine(formatter output.Formatter, operation *models.SyncOperation) (*sync.Engine, error) {
	if s.closed.Load() {
		return nil, errors.New("session is closed")
	}
	return sync.NewEngine(s.provider, s.local, formatter, s.logger, operation)
}

// Close closes the provider, the local source and the transport. It is
// safe to call more than once.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := errors.Join(
		s.provider.Close(),
		s.local.Close(),
		s.client.Close(),
	)
	s.logger.Debug(context.Background(), "Session closed", nil)
	return err
}
