package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/outlive-sh/outlive/internal/adapter/bountysources"
	"github.com/outlive-sh/outlive/internal/adapter/discord"
	olhttp "github.com/outlive-sh/outlive/internal/adapter/http"
	"github.com/outlive-sh/outlive/internal/adapter/jupiter"
	"github.com/outlive-sh/outlive/internal/adapter/llm"
	olnats "github.com/outlive-sh/outlive/internal/adapter/nats"
	"github.com/outlive-sh/outlive/internal/adapter/otel"
	"github.com/outlive-sh/outlive/internal/adapter/postgres"
	"github.com/outlive-sh/outlive/internal/adapter/ristretto"
	"github.com/outlive-sh/outlive/internal/adapter/solana"
	"github.com/outlive-sh/outlive/internal/adapter/ws"
	"github.com/outlive-sh/outlive/internal/config"
	"github.com/outlive-sh/outlive/internal/domain"
	"github.com/outlive-sh/outlive/internal/domain/survival"
	"github.com/outlive-sh/outlive/internal/logger"
	"github.com/outlive-sh/outlive/internal/port/bountysource"
	"github.com/outlive-sh/outlive/internal/port/notifier"
	"github.com/outlive-sh/outlive/internal/resilience"
	"github.com/outlive-sh/outlive/internal/service"
)

const cacheSize = 64 << 20 // 64 MB

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(); err != nil {
			slog.Error("migrate failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return err
	}
	slog.Info("migrations applied")
	return nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"agent", cfg.Agent.ID,
		"network", cfg.Agent.Network,
		"port", cfg.Server.Port,
	)

	shutdownTracer := otel.InitTracer(cfg.Logging.Service)
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Identity ---

	loader := &solana.FileLoader{Path: cfg.Agent.WalletPath}
	w, err := loader.LoadWallet()
	if err != nil {
		if errors.Is(err, domain.ErrNoWallet) {
			return fmt.Errorf("no wallet at %s; create a keypair before starting the agent: %w", cfg.Agent.WalletPath, err)
		}
		return fmt.Errorf("wallet: %w", err)
	}
	slog.Info("wallet loaded", "public_key", w.PublicKey)

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	store := postgres.NewStore(pool)
	slog.Info("postgres connected")

	queue, err := olnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	sourceCache, err := ristretto.New(cacheSize)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer sourceCache.Close()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Chain and reasoning clients ---

	chain := solana.NewClient(cfg.Solana.RPCURL)
	balances := solana.NewBalanceProvider(chain, cfg.Solana.USDCTokenAccount)
	transferrer := solana.NewTransferrer(chain)

	swapBreaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	trader := jupiter.NewClient(cfg.Jupiter.URL, swapBreaker, chain)

	reasoner := llm.NewClient(cfg.LLM.URL, cfg.LLM.APIKey)
	reasoner.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	// --- Bounty sources ---

	sources := []bountysource.Source{
		bountysources.NewGitHub(cfg.Sources.GitHub.URL, cfg.Sources.GitHub.Token, cfg.Sources.GitHub.Query, sourceCache),
	}
	if cfg.Sources.Workboard.URL != "" {
		sources = append(sources, bountysources.NewWorkboard(cfg.Sources.Workboard.URL, cfg.Sources.Workboard.APIKey, sourceCache))
	}

	// --- Services ---

	hub := ws.NewHub()
	defense := service.NewDefenseService()
	contexts := service.NewContextService(*cfg, store, balances, chain, w)
	evaluator := service.NewEvaluatorService(store)
	runner := service.NewReasoningStepRunner(reasoner, cfg.LLM.PrimaryModel, cfg.LLM.MaxTokens)
	executor := service.NewExecutorService(runner)
	scraper := service.NewScraperService(store, sources)
	monitor := service.NewMonitorService(store, sources, balances, w, cfg.Monitor.InterCallDelay, cfg.Monitor.PaymentTolerance)

	tools := service.NewToolService(service.ToolDeps{
		Store:       store,
		Balances:    balances,
		Wallet:      w,
		Transferrer: transferrer,
		Trader:      trader,
		Scraper:     scraper,
		Evaluator:   evaluator,
		Executor:    executor,
		Monitor:     monitor,
		WorkDir:     mustWorkDir(),
		NativeMint:  "So11111111111111111111111111111111111111112",
		StableMint:  cfg.Solana.USDCMint,
		SlippageBps: cfg.Jupiter.SlippageBps,
	})

	loop := service.NewLoopService(*cfg, contexts, defense, reasoner, tools, store, queue)
	loop.SetBroadcaster(hub)
	loop.SetMetrics(metrics)

	heartbeat := service.NewHeartbeatService(*cfg, store, scraper, monitor, evaluator, queue)
	heartbeat.SetBroadcaster(hub)
	heartbeat.SetMetrics(metrics)

	// --- Notifications ---

	var notifiers []notifier.Notifier
	if cfg.Notify.DiscordWebhook != "" {
		notifiers = append(notifiers, discord.NewNotifier(cfg.Notify.DiscordWebhook))
	}
	if len(notifiers) > 0 {
		notifications := service.NewNotificationService(notifiers, nil)
		cancelNotify, err := notifications.StartSubscribers(ctx, queue)
		if err != nil {
			return fmt.Errorf("notifications: %w", err)
		}
		defer cancelNotify()
	}

	// --- HTTP ---

	handlers := &olhttp.Handlers{
		Loop:     loop,
		Tools:    tools,
		Scraper:  scraper,
		Contexts: contexts,
		Store:    store,
	}

	r := chi.NewRouter()
	r.Use(olhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(olhttp.Logger)
	r.Use(olhttp.SecurityHeaders)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	olhttp.MountRoutes(r, handlers, hub)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// --- Run until signalled ---

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(loop.Run(gctx))
	})

	tierOf := func(ctx context.Context) survival.Tier {
		bal, err := balances.GetBalance(ctx, w)
		if err != nil {
			return survival.TierCritical
		}
		return survival.TierFor(bal.Stable, cfg.Survival.Thresholds)
	}
	g.Go(func() error {
		return ignoreCanceled(heartbeat.Run(gctx, tierOf))
	})

	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// mustWorkDir resolves the scratch directory for file and shell tools.
func mustWorkDir() string {
	dir := os.Getenv("OUTLIVE_WORKDIR")
	if dir == "" {
		dir = "work"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("work dir create failed", "dir", dir, "error", err)
	}
	return dir
}
