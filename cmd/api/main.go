package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"gatehouse.io/internal/attachment"
	"gatehouse.io/internal/auth"
	"gatehouse.io/internal/cache"
	"gatehouse.io/internal/directory"
	"gatehouse.io/internal/httpapi"
	"gatehouse.io/internal/obs"
	"gatehouse.io/internal/policy"
	"gatehouse.io/internal/store/pg"
	"gatehouse.io/internal/stream"
	"gatehouse.io/internal/visit"
	"gatehouse.io/internal/visitor"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	deps := httpapi.Deps{
		Stream:  stream.New(),
		Version: version,
	}

	// Redis-backed public view cache; optional.
	var views *cache.VisitViews
	if addr := os.Getenv("GATEHOUSE_REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		views = cache.NewVisitViews(client, 5*time.Minute)
		deps.Views = views
	}

	// Postgres when a DSN is set, in-memory stores otherwise.
	var store *pg.Store
	if dsn := os.Getenv("GATEHOUSE_PG_DSN"); dsn != "" {
		var err error
		store, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store.SetViewInvalidator(views)
		deps.Visits = store
		deps.Visitors = store
		deps.Directory = store
		deps.Policy = store
		deps.Attachments = store
		deps.Admins = store
		deps.Exporter = store
		deps.Ready = httpapi.ReadyProbe{DB: store.DB()}
	} else {
		log.Println("GATEHOUSE_PG_DSN not set, using in-memory stores")
		deps.Visits = visit.NewInMemory(visit.WithViewInvalidator(views))
		deps.Visitors = visitor.NewInMemoryRegistry()
		deps.Directory = directory.NewInMemoryStore()
		deps.Policy = policy.NewInMemoryStore()
		deps.Attachments = attachment.NewInMemoryStore()
		deps.Admins = auth.NewInMemoryAdmins()
	}

	// Attachment bytes go to S3 when a bucket is configured, local disk
	// otherwise.
	if bucket := os.Getenv("GATEHOUSE_S3_BUCKET"); bucket != "" {
		blobs, err := attachment.NewS3Storage(context.Background(), bucket)
		if err != nil {
			log.Fatalf("s3 storage: %v", err)
		}
		deps.Blobs = blobs
	} else {
		dir := os.Getenv("GATEHOUSE_BLOB_DIR")
		if dir == "" {
			dir = "data/attachments"
		}
		blobs, err := attachment.NewDiskStorage(dir)
		if err != nil {
			log.Fatalf("disk storage: %v", err)
		}
		deps.Blobs = blobs
	}

	api := httpapi.New(deps)

	// Auto-cancel sweeper; re-reads config every tick so policy edits apply
	// without a restart.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	sweeper := visit.NewSweeper(deps.Visits, func(ctx context.Context) ([]visit.AutoCancelRule, error) {
		configs, err := deps.Policy.ListConfigs(ctx)
		if err != nil {
			return nil, err
		}
		rules := make([]visit.AutoCancelRule, 0, len(configs))
		for _, cfg := range configs {
			if cfg.AutoCancelIncompleteAfterHr <= 0 {
				continue
			}
			rules = append(rules, visit.AutoCancelRule{
				OrganizationID: cfg.OrganizationID,
				After:          time.Duration(cfg.AutoCancelIncompleteAfterHr) * time.Hour,
			})
		}
		return rules, nil
	}, sweepInterval())
	go sweeper.Run(sweepCtx)

	addr := os.Getenv("GATEHOUSE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// No WriteTimeout: the event stream endpoint holds connections open.
		IdleTimeout: 60 * time.Second,
	}

	log.Printf("Starting gatehouse-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}

func sweepInterval() time.Duration {
	if raw := os.Getenv("GATEHOUSE_SWEEP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
		log.Printf("ignoring invalid GATEHOUSE_SWEEP_INTERVAL %q", raw)
	}
	return 5 * time.Minute
}
