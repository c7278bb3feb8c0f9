package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/api"
	"github.com/lalith-99/cdpcore/internal/campaign"
	"github.com/lalith-99/cdpcore/internal/config"
	"github.com/lalith-99/cdpcore/internal/db"
	"github.com/lalith-99/cdpcore/internal/mailer"
	"github.com/lalith-99/cdpcore/internal/middleware"
	"github.com/lalith-99/cdpcore/internal/observ"
	"github.com/lalith-99/cdpcore/internal/queue"
	"github.com/lalith-99/cdpcore/internal/repository"
	"github.com/lalith-99/cdpcore/internal/repository/memory"
	"github.com/lalith-99/cdpcore/internal/repository/postgres"
	"github.com/lalith-99/cdpcore/internal/rules"
	"github.com/lalith-99/cdpcore/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// stores is the set of repositories one storage backend provides.
type stores struct {
	companies repository.CompanyRepository
	operators repository.OperatorRepository
	profiles  repository.ProfileRepository
	events    repository.EventRepository
	tags      repository.TagRepository
	assocs    repository.ProfileTagRepository
	lists     repository.ListRepository
	campaigns repository.CampaignRepository
	rules     repository.RuleRepository
	health    api.HealthChecker
	close     func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		m := memory.New()
		return &stores{
			companies: m.Companies(),
			operators: m.Operators(),
			profiles:  m.Profiles(),
			events:    m.Events(),
			tags:      m.Tags(),
			assocs:    m.ProfileTags(),
			lists:     m.Lists(),
			campaigns: m.Campaigns(),
			rules:     m.Rules(),
			close:     func() {},
		}, nil
	}

	database, err := db.New(ctx, cfg.DatabaseURL, db.PoolSettings{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	pool := database.Pool()
	return &stores{
		companies: postgres.NewCompanyStore(pool),
		operators: postgres.NewOperatorStore(pool),
		profiles:  postgres.NewProfileStore(pool),
		events:    postgres.NewEventStore(pool),
		tags:      postgres.NewTagStore(pool),
		assocs:    postgres.NewProfileTagStore(pool),
		lists:     postgres.NewListStore(pool),
		campaigns: postgres.NewCampaignStore(pool),
		rules:     postgres.NewRuleStore(pool),
		health:    database,
		close:     database.Close,
	}, nil
}

// openQueue picks the job transport. Redis lets several server processes
// share one queue and one set of run locks; inline keeps everything in
// this process.
func openQueue(ctx context.Context, cfg *config.Config, logger *zap.Logger) (queue.Queue, queue.Locker, func(), error) {
	if cfg.Queue == config.QueueInline {
		logger.Info("using inline job queue")
		return queue.NewInlineQueue(256), queue.NewLocalLocker(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("queue", cfg.QueueName))
	return queue.NewRedisQueue(rdb, cfg.QueueName), queue.NewRedisLocker(rdb), func() { _ = rdb.Close() }, nil
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Cancelled on SIGINT/SIGTERM; every background loop watches it.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observ.InitTracing(ctx, logger, cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	jobs, locker, closeQueue, err := openQueue(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeQueue()

	// Services.
	refresher := service.NewRefresher(st.tags, st.assocs, st.lists, logger)
	ruleSvc := service.NewRuleService(st.rules, st.tags, st.assocs, rules.NewEngine(), refresher, logger)
	identitySvc := service.NewIdentityService(st.profiles, st.events, st.lists, st.assocs,
		service.NewBinder(st.events, logger), ruleSvc, refresher, logger)
	tagSvc := service.NewTagService(st.tags, st.assocs, st.lists, st.rules, st.profiles, refresher, logger)
	listSvc := service.NewListService(st.lists, st.tags, st.assocs, st.profiles, refresher, logger)
	campaignSvc := service.NewCampaignService(st.campaigns, st.lists, jobs, logger)

	// Send pipeline.
	processor := campaign.NewProcessor(st.campaigns, listSvc,
		mailer.NewLogSender(logger, cfg.MailerFailureRate), cfg.SendBatchSize, logger)
	dispatcher := queue.NewDispatcher(jobs, locker, processor.Handle, cfg.RunLockTTL, logger)
	sweeper := campaign.NewSweeper(st.campaigns, jobs, cfg.SweepInterval, logger)

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		dispatcher.Run(ctx)
	}()
	go sweeper.Start(ctx)

	// HTTP.
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.Metrics())

	api.NewRouter(r, api.Handlers{
		Auth:      api.NewAuthHandler(st.operators, st.companies, cfg.JWTSecret, cfg.TokenTTL, logger),
		Track:     api.NewTrackHandler(identitySvc, logger),
		Profiles:  api.NewProfileHandler(identitySvc, tagSvc, logger),
		Tags:      api.NewTagHandler(tagSvc, logger),
		Lists:     api.NewListHandler(listSvc, logger),
		Campaigns: api.NewCampaignHandler(campaignSvc, cfg.AllowedOrigins, logger),
		Rules:     api.NewRuleHandler(ruleSvc, logger),
		Ops:       api.NewOpsHandler(st.health, sweeper, logger),
	}, api.RouterConfig{
		JWTSecret:     cfg.JWTSecret,
		InternalToken: cfg.InternalToken,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(r, "cdpcore"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting cdpcore",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("storage", cfg.Storage),
			zap.String("queue", cfg.Queue),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	// In-flight sends finish before the stores close.
	stop()
	<-dispatched
	logger.Info("shutdown complete")
	return nil
}
