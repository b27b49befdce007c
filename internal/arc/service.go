package arc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Shonas301/plutarch/internal/config"
)

// DefaultSlot holds the key shared by every user other than the primary one.
const DefaultSlot = "_default"

// refreshTimeout bounds one scheduled catalog refresh.
const refreshTimeout = 2 * time.Minute

// Service errors.
var (
	ErrNoKey        = errors.New("no arc api key configured for user")
	ErrInvalidFlags = errors.New("invalid optimize flags")
)

// Service answers stash questions for Discord users. Each key slot gets its
// own client; the catalog is shared between all of them and rebuilt on
// Refresh.
type Service struct {
	appKey  string
	keys    map[string]string
	log     *slog.Logger
	opts    []ClientOption
	public  *Client
	refresh string

	mu      sync.Mutex
	clients map[string]*Client
	catalog *Catalog
	cron    *cron.Cron
}

// NewService builds a service from the arc config section. opts apply to
// every client the service creates; they share one rate limiter.
func NewService(cfg config.ArcConfig, log *slog.Logger, opts ...ClientOption) *Service {
	base := []ClientOption{WithLimiter(NewLimiter(cfg.RatePerMinute))}
	if cfg.BaseURL != "" {
		base = append(base, WithBaseURL(cfg.BaseURL))
	}
	opts = append(base, opts...)

	keys := make(map[string]string)
	if cfg.UserKey != "" && cfg.PrimaryUser != "" {
		keys[strings.ToLower(cfg.PrimaryUser)] = cfg.UserKey
	}
	if cfg.OtherKey != "" {
		keys[DefaultSlot] = cfg.OtherKey
	}

	if log == nil {
		log = slog.Default()
	}
	return &Service{
		appKey:  cfg.AppKey,
		keys:    keys,
		log:     log.With("component", "arc"),
		opts:    opts,
		public:  NewClient(cfg.AppKey, "", opts...),
		refresh: cfg.Refresh,
		clients: make(map[string]*Client),
	}
}

// slot returns the key slot for a Discord user name.
func (s *Service) slot(user string) string {
	u := strings.ToLower(user)
	if _, ok := s.keys[u]; ok {
		return u
	}
	return DefaultSlot
}

// HasKey reports whether user has a key slot with a key in it.
func (s *Service) HasKey(user string) bool {
	return s.keys[s.slot(user)] != ""
}

// Public returns the client that carries only the app key.
func (s *Service) Public() *Client {
	return s.public
}

// ClientFor returns the client keyed to user, or ErrNoKey.
func (s *Service) ClientFor(user string) (*Client, error) {
	slot := s.slot(user)
	key := s.keys[slot]
	if key == "" {
		return nil, ErrNoKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[slot]
	if !ok {
		c = NewClient(s.appKey, key, s.opts...)
		s.clients[slot] = c
	}
	return c, nil
}

// Catalog returns the shared catalog, fetching it on first use.
func (s *Service) Catalog(ctx context.Context) (*Catalog, error) {
	s.mu.Lock()
	cat := s.catalog
	s.mu.Unlock()
	if cat != nil {
		return cat, nil
	}
	return s.loadCatalog(ctx)
}

func (s *Service) loadCatalog(ctx context.Context) (*Catalog, error) {
	s.log.Info("fetching item catalog")
	items, err := s.public.FetchItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch items: %w", err)
	}
	s.log.Info("fetching quest catalog")
	quests, err := s.public.FetchQuests(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch quests: %w", err)
	}
	s.log.Info("building deep recycle table", "items", len(items))
	cat := NewCatalog(items, quests)

	s.mu.Lock()
	s.catalog = cat
	s.mu.Unlock()
	return cat, nil
}

// Refresh drops every cached catalog and fetches a new one.
func (s *Service) Refresh(ctx context.Context) error {
	s.public.InvalidateCache()
	_, err := s.loadCatalog(ctx)
	return err
}

// StartRefresh schedules Refresh with a cron spec such as "@every 6h". An
// empty spec uses the configured one; if that is empty too nothing runs.
func (s *Service) StartRefresh(spec string) error {
	if spec == "" {
		spec = s.refresh
	}
	if spec == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			s.log.Error("catalog refresh failed", "error", err)
			return
		}
		s.log.Info("catalog refreshed")
	})
	if err != nil {
		return fmt.Errorf("schedule refresh %q: %w", spec, err)
	}

	s.mu.Lock()
	if s.cron != nil {
		s.cron.Stop()
	}
	s.cron = c
	s.mu.Unlock()
	c.Start()
	return nil
}

// StopRefresh stops the refresh schedule and waits for a running refresh.
func (s *Service) StopRefresh() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// stashAndCatalog fetches everything an analysis needs for user.
func (s *Service) stashAndCatalog(ctx context.Context, user string) ([]StashItem, *Catalog, error) {
	c, err := s.ClientFor(user)
	if err != nil {
		return nil, nil, err
	}
	cat, err := s.Catalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	stash, err := c.FetchStash(ctx, DefaultStashOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("fetch stash: %w", err)
	}
	return stash, cat, nil
}

// Sell returns the user's sell recommendations.
func (s *Service) Sell(ctx context.Context, user string) ([]Recommendation, error) {
	stash, cat, err := s.stashAndCatalog(ctx, user)
	if err != nil {
		return nil, err
	}
	return AnalyzeSell(stash, cat), nil
}

// Recycle returns the user's recycle recommendations.
func (s *Service) Recycle(ctx context.Context, user string) ([]Recommendation, error) {
	stash, cat, err := s.stashAndCatalog(ctx, user)
	if err != nil {
		return nil, err
	}
	return AnalyzeRecycle(stash, cat), nil
}

// Optimize splits the user's stash into sell, recycle, and hold. Hideout
// and project data are fetched only when params ask for them.
func (s *Service) Optimize(ctx context.Context, user string, params OptimizeParams) (OptimizeResult, error) {
	stash, cat, err := s.stashAndCatalog(ctx, user)
	if err != nil {
		return OptimizeResult{}, err
	}

	view := *cat
	if params.IncludeHideout {
		if view.Hideout, err = s.public.FetchHideout(ctx); err != nil {
			return OptimizeResult{}, fmt.Errorf("fetch hideout: %w", err)
		}
	}
	if params.IncludeProjects {
		if view.Projects, err = s.public.FetchProjects(ctx); err != nil {
			return OptimizeResult{}, fmt.Errorf("fetch projects: %w", err)
		}
	}
	return AnalyzeOptimize(stash, &view, params), nil
}

// Find returns the catalog item matching query and the user's stash items
// that recycle into it. The item is nil when query matches nothing.
func (s *Service) Find(ctx context.Context, user, query string) (*Item, []RecycleSource, error) {
	stash, cat, err := s.stashAndCatalog(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	target, sources := FindRecycleSources(query, stash, cat.Items)
	return target, sources, nil
}

// Profile returns the ArcTracker profile behind the user's key.
func (s *Service) Profile(ctx context.Context, user string) (*UserProfile, error) {
	c, err := s.ClientFor(user)
	if err != nil {
		return nil, err
	}
	return c.FetchProfile(ctx)
}

// ParseOptimizeFlags reads --no-quests, --hideout, --projects, and
// --min-profit N. Unknown words are ignored.
func ParseOptimizeFlags(args []string) (OptimizeParams, error) {
	p := DefaultOptimizeParams()
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--no-quests":
			p.QuestAware = false
		case "--hideout":
			p.IncludeHideout = true
		case "--projects":
			p.IncludeProjects = true
		case "--min-profit":
			if i+1 >= len(args) {
				return p, fmt.Errorf("%w: --min-profit needs a number", ErrInvalidFlags)
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return p, fmt.Errorf("%w: --min-profit %q", ErrInvalidFlags, args[i+1])
			}
			p.MinProfitThreshold = n
			i++
		}
	}
	return p, nil
}
