package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/alokdon2/CollabCanvas-sub000/internal/app"
	"github.com/alokdon2/CollabCanvas-sub000/internal/config"
	"github.com/alokdon2/CollabCanvas-sub000/internal/export"
	"github.com/alokdon2/CollabCanvas-sub000/internal/history"
	"github.com/alokdon2/CollabCanvas-sub000/internal/localstore"
	"github.com/alokdon2/CollabCanvas-sub000/internal/localsync"
	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
	"github.com/alokdon2/CollabCanvas-sub000/internal/pubsub"
	"github.com/alokdon2/CollabCanvas-sub000/internal/search"
	"github.com/alokdon2/CollabCanvas-sub000/internal/store"
)

// runtime holds every store and service one process needs.
type runtime struct {
	cfg config.Config

	db       *sql.DB
	feed     *pubsub.Feed
	localDB  *localstore.Store
	remoteDB *store.RemoteStore
	meili    *search.Meili

	local     store.Adapter
	remote    store.Remote
	search    *search.Service
	history   *history.Service
	publisher *export.Publisher
	sync      *localsync.Coordinator
}

func openRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			rt.close()
		}
	}()

	localDB, err := localstore.Open(cfg.LocalDir)
	if err != nil {
		return nil, err
	}
	rt.localDB = localDB

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolConfig{MaxOpen: cfg.DBMaxConns})
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		rt.db = db
		if err := store.ApplyMigrations(ctx, db); err != nil {
			return nil, fmt.Errorf("migrations failed: %w", err)
		}

		var feed store.ChangeFeed
		if strings.TrimSpace(cfg.RedisURL) != "" {
			rt.feed, err = pubsub.NewFeed(cfg.RedisURL)
			if err != nil {
				return nil, fmt.Errorf("redis connection failed: %w", err)
			}
			feed = rt.feed
		} else {
			log.Printf("canvas: REDIS_URL not set, remote sessions will not see other clients' saves")
		}
		rt.remoteDB = store.NewRemoteStore(store.NewPostgresStore(db), feed)
	}

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		rt.meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	var remoteSearch search.Searcher
	if rt.db != nil {
		remoteSearch = search.NewPgFTS(rt.db)
	}
	rt.search = search.NewService(rt.meili, remoteSearch, search.NewScan(rt.listLocal))

	if strings.TrimSpace(cfg.HistoryDir) != "" {
		rt.history = history.New(cfg.HistoryDir)
	}
	localHooks, remoteHooks := rt.writeHooks()

	policy := store.RetryPolicy{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay, MaxDelay: cfg.RetryMaxDelay}
	rt.local = store.WithHooks(rt.localDB, localHooks)
	if rt.remoteDB != nil {
		rt.remote = store.WithHooks(store.WithRetry(rt.remoteDB, policy), remoteHooks).(store.Remote)
		rt.sync = localsync.NewCoordinator(rt.local, rt.remote)
	}

	rt.publisher, err = export.NewPublisher(export.PublisherConfig{
		Endpoint:  cfg.ExportEndpoint,
		AccessKey: cfg.ExportAccessKey,
		SecretKey: cfg.ExportSecretKey,
		Bucket:    cfg.ExportBucket,
		UseSSL:    cfg.ExportUseSSL,
	})
	if err != nil {
		return nil, err
	}

	ok = true
	return rt, nil
}

// listOwned lists one owner's projects: the device-local ones for the
// empty owner, otherwise their remote ones.
func (rt *runtime) listOwned(ctx context.Context, ownerID string) ([]project.Project, error) {
	if ownerID == "" || rt.remoteDB == nil {
		return store.ListRecent(ctx, rt.localDB)
	}
	return store.ListRecent(ctx, rt.remoteDB.ForOwner(ownerID))
}

// listLocal lists the device-local projects for the search scan. Remote
// owners are searched in Postgres instead.
func (rt *runtime) listLocal(ctx context.Context, _ string) ([]project.Project, error) {
	return store.ListRecent(ctx, rt.localDB)
}

// writeHooks returns the write hooks for the local and remote adapters.
// Both keep the search index current; only remote saves reach history.
func (rt *runtime) writeHooks() (local, remote store.Hooks) {
	local = rt.search.Hooks()
	remote = store.Hooks{
		AfterUpsert: slices.Clone(local.AfterUpsert),
		AfterDelete: slices.Clone(local.AfterDelete),
	}
	if rt.history != nil {
		historyHooks := rt.history.Hooks()
		remote.AfterUpsert = append(remote.AfterUpsert, historyHooks.AfterUpsert...)
		remote.AfterDelete = append(remote.AfterDelete, historyHooks.AfterDelete...)
	}
	return local, remote
}

// adapterFor picks the store a user works against.
func (rt *runtime) adapterFor(userID string) store.Adapter {
	if userID != "" && rt.remote != nil {
		return rt.remote
	}
	return rt.local
}

func (rt *runtime) exporter(userID string) *export.Service {
	var versions export.Versions
	if rt.history != nil {
		versions = rt.history
	}
	return export.NewService(rt.adapterFor(userID), versions, rt.publisher)
}

func (rt *runtime) ping(ctx context.Context) error {
	if rt.remoteDB != nil {
		if err := rt.remoteDB.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if rt.feed != nil {
		if err := rt.feed.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// service builds the workspace service over the runtime's stores.
func (rt *runtime) service() *app.Service {
	opts := app.Options{
		Local:    rt.local,
		Search:   rt.search,
		Ping:     rt.ping,
		Debounce: rt.cfg.Debounce,
		Timeout:  rt.cfg.AdapterTimeout,
		Export:   rt.exporter(""),
	}
	if rt.remote != nil {
		opts.Remote = rt.remote
		opts.Sync = rt.sync
		opts.ListOwned = func(ctx context.Context, ownerID string) ([]project.Project, error) {
			return rt.remoteDB.ForOwner(ownerID).GetAll(ctx)
		}
	}
	if rt.history != nil {
		opts.History = rt.history
	}
	return app.NewService(opts)
}

func (rt *runtime) close() {
	if rt.meili != nil {
		rt.meili.Close()
	}
	if rt.feed != nil {
		if err := rt.feed.Close(); err != nil {
			log.Printf("canvas: close redis: %v", err)
		}
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			log.Printf("canvas: close database: %v", err)
		}
	}
	if rt.localDB != nil {
		if err := rt.localDB.Close(); err != nil {
			log.Printf("canvas: close local store: %v", err)
		}
	}
}
