// Command notifyhub runs the notification delivery engine: the HTTP API and
// live sessions, the dispatch queue workers and the periodic maintenance
// tasks, in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifyhub/pkg/config"
	"github.com/dmitrymomot/notifyhub/pkg/dispatch"
	"github.com/dmitrymomot/notifyhub/pkg/email"
	"github.com/dmitrymomot/notifyhub/pkg/httpserver"
	"github.com/dmitrymomot/notifyhub/pkg/logger"
	"github.com/dmitrymomot/notifyhub/pkg/mongo"
	"github.com/dmitrymomot/notifyhub/pkg/notification"
	"github.com/dmitrymomot/notifyhub/pkg/pg"
	"github.com/dmitrymomot/notifyhub/pkg/preference"
	"github.com/dmitrymomot/notifyhub/pkg/presence"
	"github.com/dmitrymomot/notifyhub/pkg/pushsub"
	"github.com/dmitrymomot/notifyhub/pkg/queue"
	"github.com/dmitrymomot/notifyhub/pkg/ratelimit"
	"github.com/dmitrymomot/notifyhub/pkg/redis"
)

type appConfig struct {
	Env              string   `env:"APP_ENV" envDefault:"development"`
	APIKey           string   `env:"NOTIFYHUB_API_KEY"`                            // producers' key for POST /v1/notifications; empty disables it
	RealtimeFallback bool     `env:"DISPATCH_REALTIME_FALLBACK" envDefault:"true"` // queue in-app delivery for offline recipients
	UsersTable       string   `env:"RECIPIENTS_TABLE" envDefault:"users"`
	DevRecipients    []string `env:"DEV_RECIPIENTS" envSeparator:","` // id:email pairs used without Postgres
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("notifyhub stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		appCfg   appConfig
		httpCfg  httpserver.Config
		pgCfg    pg.Config
		mongoCfg mongo.Config
		redisCfg redis.Config
		queueCfg queue.Config
		notifCfg notification.Config
		prefCfg  preference.Config
		pushCfg  pushsub.Config
		presCfg  presence.Config
		mailCfg  email.Config
		rateCfg  ratelimit.Config
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&pgCfg)
	config.MustLoad(&mongoCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&queueCfg)
	config.MustLoad(&notifCfg)
	config.MustLoad(&prefCfg)
	config.MustLoad(&pushCfg)
	config.MustLoad(&presCfg)
	config.MustLoad(&mailCfg)
	config.MustLoad(&rateCfg)

	log := logger.New(
		logger.WithEnvironment(appCfg.Env, "notifyhub"),
		logger.WithContextExtractors(httpserver.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	var checks []httpserver.Check

	// Notification store, user directory and job queue storage.
	var (
		notifStorage notification.Storage
		recipients   notification.Recipients
		jobs         queue.Storage
	)
	if pgCfg.Enabled() {
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool, notification.Migrations, pgCfg, log); err != nil {
			return err
		}
		queueMigrations := pgCfg
		queueMigrations.MigrationsTable += "_queue"
		if err := pg.Migrate(ctx, pool, queue.Migrations, queueMigrations, log); err != nil {
			return err
		}
		notifStorage = notification.NewPostgresStorage(pool)
		recipients = notification.NewPostgresRecipients(pool, appCfg.UsersTable)
		jobs = queue.NewPostgresStorage(pool, queueCfg)
		checks = append(checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})
	} else {
		log.Warn("PG_CONN_URL is not set, notifications and queued jobs are kept in memory")
		notifStorage = notification.NewMemoryStorage()
		jobs = queue.NewMemoryStorageFromConfig(queueCfg)
		dir, err := devRecipients(appCfg.DevRecipients)
		if err != nil {
			return err
		}
		recipients = dir
	}

	// Preference documents.
	var prefStore preference.Store = preference.NewMemoryStore()
	if mongoCfg.Enabled() {
		db, err := mongo.NewWithDatabase(ctx, mongoCfg)
		if err != nil {
			return err
		}
		defer func() { _ = db.Client().Disconnect(context.Background()) }()
		prefStore = preference.NewMongoStore(db.Collection(prefCfg.Collection),
			preference.WithStoreDefaults(prefCfg.Defaults()),
		)
		checks = append(checks, httpserver.Check{Name: "mongodb", Fn: mongo.Healthcheck(db.Client())})
	} else {
		log.Warn("MONGODB_URL is not set, preferences are kept in memory")
	}
	prefStore = preference.NewCachedStore(prefStore, prefCfg.CacheSize, prefCfg.CacheTTL)
	prefService := preference.NewService(prefStore, prefCfg)
	policy := preference.NewEngine(prefStore,
		preference.WithEngineLogger(log),
		preference.WithLocation(prefCfg.Location()),
		preference.WithDefaults(prefCfg.Defaults()),
	)

	// Push subscriptions, senders and shared rate limit buckets.
	var (
		subStore   pushsub.Store = pushsub.NewMemoryStore()
		rateStore  ratelimit.Store
		rateMemory *ratelimit.MemoryStore
	)
	if redisCfg.Enabled() {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		subStore = pushsub.NewRedisStore(client, redisCfg.KeyPrefix)
		rateStore = ratelimit.NewRedisStore(client, redisCfg.KeyPrefix)
		checks = append(checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
	} else {
		log.Warn("REDIS_URL is not set, push subscriptions are kept in memory")
		rateMemory = ratelimit.NewMemoryStore()
		rateStore = rateMemory
	}
	limiter, err := ratelimit.NewLimiter(rateStore, rateCfg)
	if err != nil {
		return err
	}
	if pushCfg.VAPIDPublicKey == "" || pushCfg.VAPIDPrivateKey == "" {
		pub, priv, err := pushsub.GenerateVAPIDKeys()
		if err != nil {
			return fmt.Errorf("generate vapid keys: %w", err)
		}
		pushCfg.VAPIDPublicKey, pushCfg.VAPIDPrivateKey = pub, priv
		log.Warn("VAPID keys are not set, generated an ephemeral pair; browsers must re-subscribe after restart",
			slog.String("public_key", pub),
		)
	}
	var fcm pushsub.Sender
	if pushCfg.FirebaseCredentialsFile != "" {
		s, err := pushsub.NewFCMSender(ctx, pushCfg.FirebaseCredentialsFile)
		if err != nil {
			return err
		}
		fcm = s
	}
	webPush := pushsub.NewWebPushSender(pushCfg)
	pushManager, err := pushsub.NewManager(subStore, pushsub.NewRouterSender(webPush, fcm),
		pushsub.WithManagerLogger(log),
		pushsub.WithManagerConfig(pushCfg),
	)
	if err != nil {
		return err
	}

	// Email.
	var mailer email.EmailSender
	if mailCfg.PostmarkEnabled() {
		mailer, err = email.NewPostmarkClient(mailCfg)
		if err != nil {
			return err
		}
	} else {
		log.Warn("Postmark tokens are not set, emails are written to disk", slog.String("dir", mailCfg.DevDir))
		mailer = email.NewDevSender(mailCfg.DevDir, email.WithDevFrom(mailCfg.SenderEmail))
	}

	// Live sessions.
	hub := presence.NewHub(
		presence.WithHubLogger(log),
		presence.WithHeartbeat(presCfg.HeartbeatInterval, presCfg.HeartbeatTimeout),
	)
	defer hub.Close()
	auth, err := presence.NewJWTAuthenticator(presCfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("presence authenticator: %w", err)
	}

	notifications := notification.NewService(notifStorage, recipients,
		notification.WithPublisher(hub),
		notification.WithLogger(log),
	)
	ws, err := presence.NewWebSocketHandler(hub, auth, presCfg,
		presence.WithHandlerLogger(log),
		presence.WithClientHandler(dispatch.NewClientActions(notifications)),
	)
	if err != nil {
		return err
	}

	// Queue.
	dispatcher, err := queue.NewDispatcher(jobs, queueCfg, log)
	if err != nil {
		return err
	}
	enqueuer, err := queue.NewEnqueuer(jobs, queue.WithConfig(queueCfg), queue.WithNotify(dispatcher.Wake))
	if err != nil {
		return err
	}

	maintenance := queue.NewRouter()
	maintenance.RegisterFunc("notifications.purge", notifications.RetentionTask(notifCfg))
	maintenance.RegisterFunc("push.sweep", pushManager.SweepTask())

	if err := errors.Join(
		dispatcher.Handle(dispatch.QueueRealtime, dispatch.RealtimeHandler(hub)),
		dispatcher.Handle(dispatch.QueuePush, dispatch.PushHandler(pushManager, log)),
		dispatcher.Handle(dispatch.QueueEmail, dispatch.EmailHandler(mailer, recipients, mailCfg.AppURL, log)),
		dispatcher.Handle(queue.MaintenanceChannel, maintenance, queue.WithConcurrency(1)),
	); err != nil {
		return err
	}

	scheduler, err := queue.NewScheduler(enqueuer, jobs, queue.WithSchedulerLogger(log))
	if err != nil {
		return err
	}
	purgeAt, err := queue.ParseDaily(notifCfg.PurgeAt)
	if err != nil {
		return fmt.Errorf("NOTIFICATION_PURGE_AT: %w", err)
	}
	if err := errors.Join(
		scheduler.AddTask("notifications.purge", purgeAt),
		scheduler.AddTask("push.sweep", queue.Every(pushCfg.SweepInterval)),
	); err != nil {
		return err
	}

	orchestrator, err := dispatch.NewOrchestrator(notifications, enqueuer,
		dispatch.WithPolicy(policy),
		dispatch.WithPresence(hub),
		dispatch.WithRealtimeFallback(appCfg.RealtimeFallback),
		dispatch.WithLogger(log),
	)
	if err != nil {
		return err
	}

	// HTTP.
	r := chi.NewRouter()
	r.Use(httpserver.RequestID, middleware.Recoverer)
	r.Get("/healthz", httpserver.Health(log, 0, checks...))
	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiter, ratelimit.ClientIP(rateCfg.TrustProxy), log))
		r.Handle("/ws", ws)
		(&api{
			apiKey:        appCfg.APIKey,
			auth:          auth,
			orchestrator:  orchestrator,
			notifications: notifications,
			preferences:   prefService,
			push:          pushManager,
			vapidKey:      webPush.PublicKey(),
			logger:        log,
		}).routes(r)
	})
	if appCfg.APIKey == "" {
		log.Warn("NOTIFYHUB_API_KEY is not set, notification creation over HTTP is disabled")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(dispatcher.Run(ctx))
	g.Go(scheduler.Run(ctx))
	g.Go(hub.Run(ctx))
	g.Go(httpserver.New(httpCfg, r, httpserver.WithLogger(log)).Run(ctx))
	if rateMemory != nil {
		g.Go(rateMemory.Cleanup(ctx, time.Minute, time.Hour))
	}

	log.Info("notifyhub started",
		slog.String("addr", httpCfg.Addr),
		slog.Any("channels", dispatcher.Channels()),
		slog.Any("tasks", scheduler.Tasks()),
	)
	return g.Wait()
}

// devRecipients parses DEV_RECIPIENTS entries of the form id or id:email.
func devRecipients(entries []string) (*notification.MemoryRecipients, error) {
	dir := notification.NewMemoryRecipients()
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		id, addr, _ := strings.Cut(e, ":")
		if id == "" {
			return nil, fmt.Errorf("DEV_RECIPIENTS: empty user id in %q", e)
		}
		dir.Add(notification.Recipient{ID: id, Email: addr})
	}
	return dir, nil
}
