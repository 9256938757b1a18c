package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"greenwallet/internal/crypto"
	"greenwallet/internal/dashboard"
	"greenwallet/internal/identity"
	"greenwallet/internal/platform/config"
	"greenwallet/internal/platform/httpserver"
	"greenwallet/internal/platform/logger"
	"greenwallet/internal/platform/metrics"
	platformredis "greenwallet/internal/platform/redis"
	"greenwallet/internal/remoteconfig"
	"greenwallet/internal/strippen"
	httptransport "greenwallet/internal/transport/http"
	"greenwallet/internal/usersettings"
	"greenwallet/internal/wallet"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var store wallet.Store
	if cfg.DatabaseDSN != "" {
		db, err := sql.Open("postgres", cfg.DatabaseDSN)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := wallet.NewPostgresStore(db, wallet.WithPostgresGracePeriod(cfg.EventGroupGracePeriod))
		if err := pg.Migrate(ctx); err != nil {
			log.Error("migrate database", "error", err)
			os.Exit(1)
		}
		store = pg
		log.Info("using postgres wallet store")
	} else {
		store = wallet.NewInMemoryStore(wallet.WithGracePeriod(cfg.EventGroupGracePeriod))
		log.Info("using in-memory wallet store")
	}

	var settings usersettings.Store
	redisClient, err := platformredis.Connect(ctx, cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		settings, err = usersettings.NewRedisStore(redisClient)
		if err != nil {
			log.Error("redis settings store", "error", err)
			os.Exit(1)
		}
		log.Info("using redis settings store")
	} else {
		settings = usersettings.NewInMemoryStore()
	}

	checker := identity.NewChecker(log)
	ingester, err := wallet.NewIngester(store, checker, log)
	if err != nil {
		log.Error("wire ingester", "error", err)
		os.Exit(1)
	}
	reconciler, err := wallet.NewReconciler(store, log)
	if err != nil {
		log.Error("wire reconciler", "error", err)
		os.Exit(1)
	}

	var fetcher remoteconfig.Fetcher
	if cfg.ConfigURL != "" {
		fetcher, err = remoteconfig.NewHTTPFetcher(cfg.ConfigURL)
		if err != nil {
			log.Error("wire config fetcher", "error", err)
			os.Exit(1)
		}
	} else {
		fetcher = remoteconfig.StaticFetcher{Snapshot: remoteconfig.Default()}
	}
	configManager, err := remoteconfig.NewManager(fetcher, log)
	if err != nil {
		log.Error("wire config manager", "error", err)
		os.Exit(1)
	}
	if _, err := configManager.Update(ctx); err != nil {
		log.Warn("initial config fetch failed, using defaults", "error", err)
	}

	cryptoManager, err := crypto.NewJWTManager([]byte(cfg.JWTSigningKey))
	if err != nil {
		log.Error("wire crypto manager", "error", err)
		os.Exit(1)
	}
	converter, err := crypto.NewConverter(cryptoManager, log)
	if err != nil {
		log.Error("wire credential converter", "error", err)
		os.Exit(1)
	}

	loader, err := strippen.NewHTTPLoader(cfg.SignerURL, log)
	if err != nil {
		log.Error("wire signer loader", "error", err)
		os.Exit(1)
	}
	refresher, err := strippen.NewRefresher(
		store,
		loader,
		converter,
		settings,
		func() time.Duration { return configManager.Snapshot().RenewalWindow() },
		log,
		strippen.WithExchangeTimeout(cfg.ExchangeTimeout),
	)
	if err != nil {
		log.Error("wire refresher", "error", err)
		os.Exit(1)
	}

	aggregator := dashboard.NewAggregator(store, configManager, refresher, settings, log,
		dashboard.WithAppVersion(cfg.AppVersion))
	defer aggregator.Close()

	handler := httptransport.NewHandler(store, ingester, reconciler, refresher, aggregator,
		settings, cryptoManager, m, log)
	router := httptransport.NewRouter(handler)
	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting greenwallet", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Background expiry sweep. Keeps stored data consistent even when no
	// dashboard read triggers a sweep.
	group.Go(func() error {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				now := time.Now()
				removed, err := store.RemoveExpiredGreenCards(ctx, now)
				if err != nil {
					log.Error("green card sweep failed", "error", err)
				} else if len(removed) > 0 {
					m.GreenCardsExpired.Add(float64(len(removed)))
					log.Info("expired green cards removed", "count", len(removed))
				}
				if err := store.ExpireEventGroups(ctx, now); err != nil {
					log.Error("event group sweep failed", "error", err)
				} else {
					m.EventGroupsExpired.Inc()
				}
				if _, err := configManager.Update(ctx); err != nil {
					log.Warn("config refresh failed", "error", err)
				}
			}
		}
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
