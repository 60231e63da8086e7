// Package store holds the per-account debrid clients for the lifetime of
// the process, caches resolved download links, and keeps profile and
// torrent snapshots fresh in the background.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"

	"github.com/debridui/debridui/internal/config"
	"github.com/debridui/debridui/internal/logger"
	"github.com/debridui/debridui/internal/utils"
	"github.com/debridui/debridui/pkg/debrid"
	"github.com/debridui/debridui/pkg/debrid/types"
)

const snapshotPageSize = 100

type Store struct {
	clients *xsync.Map[string, types.Client]
	order   []string // account names in config order

	// links caches resolved download links keyed by the provider file link.
	links    *xsync.Map[string, *types.DownloadLink]
	profiles *xsync.Map[string, *types.Profile]
	torrents *xsync.Map[string, []*types.Torrent]

	scheduler gocron.Scheduler
	logger    zerolog.Logger
}

func New(cfg *config.Config) (*Store, error) {
	if err := config.ValidateDebrids(cfg.Debrids); err != nil {
		return nil, err
	}
	s := &Store{
		clients:  xsync.NewMap[string, types.Client](),
		links:    xsync.NewMap[string, *types.DownloadLink](),
		profiles: xsync.NewMap[string, *types.Profile](),
		torrents: xsync.NewMap[string, []*types.Torrent](),
		logger:   logger.New("store"),
	}
	for _, dc := range cfg.Debrids {
		name := dc.Name
		if name == "" {
			name = dc.Provider
		}
		if _, exists := s.clients.Load(name); exists {
			return nil, fmt.Errorf("duplicate account name %q", name)
		}
		client, err := debrid.NewClient(dc)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", name, err)
		}
		s.clients.Store(name, client)
		s.order = append(s.order, name)
	}
	return s, nil
}

// Client returns the client registered under the account name.
func (s *Store) Client(name string) (types.Client, bool) {
	return s.clients.Load(name)
}

// Accounts returns the account names in config order.
func (s *Store) Accounts() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

func (s *Store) Profile(name string) (*types.Profile, bool) {
	return s.profiles.Load(name)
}

// Torrents returns the latest background snapshot of the account's first
// torrent page; ok is false until the first poll completes.
func (s *Store) Torrents(name string) ([]*types.Torrent, bool) {
	return s.torrents.Load(name)
}

// ResolveLink resolves a file node through the account's client, caching by
// the node's provider link. Cached entries are reused for an hour; the
// providers' signed URLs live longer than that.
func (s *Store) ResolveLink(ctx context.Context, name string, node *types.FileNode, resolve bool) (*types.DownloadLink, error) {
	client, ok := s.clients.Load(name)
	if !ok {
		return nil, fmt.Errorf("unknown account %q", name)
	}
	cacheKey := node.Link
	if cacheKey == "" {
		cacheKey = node.ID
	}
	if cached, ok := s.links.Load(cacheKey); ok && time.Since(cached.Generated) < time.Hour {
		return cached, nil
	}
	link, err := client.GetDownloadLink(ctx, node, resolve)
	if err != nil {
		return nil, err
	}
	s.links.Store(cacheKey, link)
	return link, nil
}

// Start schedules the background jobs: profile refresh at the configured
// sync interval, and a torrent snapshot poll per client at the cadence the
// client asks for. Clients with a zero refresh interval are not polled.
func (s *Store) Start(ctx context.Context, syncInterval string) error {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.Local))
	if err != nil {
		return err
	}
	s.scheduler = scheduler

	jd, err := utils.ConvertToJobDef(syncInterval)
	if err != nil {
		return fmt.Errorf("invalid sync interval %q: %w", syncInterval, err)
	}
	if _, err := scheduler.NewJob(jd, gocron.NewTask(func() {
		s.refreshProfiles(ctx)
	}), gocron.WithContext(ctx)); err != nil {
		return err
	}

	for _, name := range s.order {
		client, _ := s.clients.Load(name)
		interval := client.RefreshInterval()
		if interval <= 0 {
			continue
		}
		if _, err := scheduler.NewJob(gocron.DurationJob(interval), gocron.NewTask(func() {
			s.refreshTorrents(ctx, name, client)
		}), gocron.WithContext(ctx)); err != nil {
			return err
		}
	}

	scheduler.Start()
	s.refreshProfiles(ctx)
	return nil
}

func (s *Store) Stop() {
	if s.scheduler != nil {
		_ = s.scheduler.Shutdown()
	}
}

func (s *Store) refreshProfiles(ctx context.Context) {
	s.clients.Range(func(name string, client types.Client) bool {
		profile, err := client.Profile(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Str("account", name).Msg("profile refresh failed")
			return true
		}
		s.profiles.Store(name, profile)
		return true
	})
}

func (s *Store) refreshTorrents(ctx context.Context, name string, client types.Client) {
	torrents, err := client.ListTorrents(ctx, 0, snapshotPageSize)
	if err != nil {
		s.logger.Debug().Err(err).Str("account", name).Msg("torrent snapshot failed")
		return
	}
	s.torrents.Store(name, torrents)
}
