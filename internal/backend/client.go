package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/supabase-community/gotrue-go"

	"wodbox/internal/config"
	"wodbox/internal/db"
	"wodbox/internal/logger"
)

var ErrNoSession = errors.New("no active session")

const (
	refreshTick   = 30 * time.Second
	refreshMargin = 3 * refreshTick
)

// Deps overrides the collaborators New would otherwise build from config.
type Deps struct {
	API        gotrue.Client
	DB         *sqlx.DB
	Store      SessionStore
	HTTPClient *http.Client
}

// Client is the single connection to the hosted backend: the auth API, the
// database, the persisted session and the auth change feed.
type Client struct {
	cfg   *config.Config
	api   gotrue.Client
	db    *sqlx.DB
	store SessionStore
	http  *http.Client

	mu      sync.RWMutex
	session *Session

	events *dispatcher
	now    func() time.Time

	tick   time.Duration
	margin time.Duration
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var (
	instance *Client
	once     sync.Once
)

// GetClient returns the process-wide client, building it from the
// environment on first use. A bad configuration is fatal.
func GetClient() *Client {
	once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			logger.Fatalf("Failed to load backend configuration: %v", err)
		}

		conn, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("Failed to connect to backend database: %v", err)
		}

		var store SessionStore = NewMemoryStore()
		if cfg.PersistSession {
			store = NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.StorageKey)
		}

		instance = New(cfg, Deps{DB: conn, Store: store})
		if err := instance.Start(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to restore persisted session")
		}
	})
	return instance
}

func New(cfg *config.Config, deps Deps) *Client {
	c := &Client{
		cfg:    cfg,
		api:    deps.API,
		db:     deps.DB,
		store:  deps.Store,
		http:   deps.HTTPClient,
		events: newDispatcher(),
		now:    time.Now,
		tick:   refreshTick,
		margin: refreshMargin,
	}
	if c.api == nil {
		c.api = gotrue.New("", cfg.BackendAnonKey).WithCustomGoTrueURL(c.authURL())
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	return c
}

func (c *Client) authURL() string {
	return strings.TrimRight(c.cfg.BackendURL, "/") + "/auth/v1"
}

// Start restores the persisted session, announces it as INITIAL_SESSION and
// begins refreshing tokens when configured to.
func (c *Client) Start(ctx context.Context) error {
	var restoreErr error

	if c.cfg.PersistSession {
		sess, err := c.store.Load(ctx)
		if err != nil {
			restoreErr = err
		}
		if sess != nil && sess.ExpiresIn(c.now()) < c.margin {
			refreshed, err := c.exchangeRefreshToken(sess.RefreshToken)
			switch {
			case err != nil && rejected(err):
				logger.WithError(err).Info("Persisted session was rejected, discarding it")
				_ = c.store.Clear(ctx)
				sess = nil
			case err != nil:
				logger.WithError(err).Warn("Persisted session could not be refreshed, keeping it")
				restoreErr = err
			default:
				sess = refreshed
				if err := c.store.Save(ctx, sess); err != nil {
					restoreErr = err
				}
			}
		}
		c.mu.Lock()
		c.session = sess
		c.mu.Unlock()
	}

	c.events.emit(AuthChange{Event: EventInitialSession, Session: c.currentSession()})

	if c.cfg.AutoRefreshToken {
		loopCtx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.wg.Add(1)
		go c.autoRefresh(loopCtx)
	}

	return restoreErr
}

func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.events.close()

	if rs, ok := c.store.(*RedisStore); ok {
		_ = rs.Close()
	}
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// DB exposes the raw handle for queries that must bypass the claims
// transaction, such as health checks.
func (c *Client) DB() *sqlx.DB {
	return c.db
}

// OnAuthStateChange registers fn for every subsequent auth change and
// returns a function that removes it.
func (c *Client) OnAuthStateChange(fn func(AuthChange)) func() {
	return c.events.subscribe(fn)
}

func (c *Client) currentSession() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	cp := *c.session
	return &cp
}

func (c *Client) setSession(ctx context.Context, sess *Session) error {
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	if !c.cfg.PersistSession {
		return nil
	}
	if sess == nil {
		return c.store.Clear(ctx)
	}
	return c.store.Save(ctx, sess)
}
