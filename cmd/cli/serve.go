package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"telecloud/internal/auth"
	"telecloud/internal/config"
	"telecloud/internal/handler"
	"telecloud/internal/ingest"
	"telecloud/internal/preview"
	"telecloud/internal/proxy"
	"telecloud/internal/ratelimit"
	"telecloud/internal/repository"
	"telecloud/internal/resolver"
	"telecloud/internal/service"
	"telecloud/internal/service/s3"
	"telecloud/internal/service/telegram"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the gRPC ingest service and the bot poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			skip, _ := cmd.Flags().GetBool("skip-migrations")
			return runServe(cmd.Context(), cfg, !skip)
		},
	}

	cmd.Flags().Bool("skip-migrations", false, "Do not apply migrations on startup")

	return cmd
}

func connectWithRetry(ctx context.Context, dsn string, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error

	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.ConnectContext(ctx, "postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Warn().Err(err).Int("attempt", i+1).Int("max_attempts", maxAttempts).Msg("failed to connect to database")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxAttempts, err)
}

// remoteStore is what the selected provider offers the rest of the system.
type remoteStore interface {
	resolver.Provider
	service.RemoteDeleter
}

func newRemoteStore(ctx context.Context, cfg *config.Config) (remoteStore, error) {
	switch cfg.Storage.Provider {
	case config.ProviderS3:
		return s3.NewClient(ctx, cfg.S3, cfg.Storage.PresignTTL)
	default:
		client := &http.Client{Timeout: cfg.Storage.UpstreamTimeout}
		provider, err := telegram.NewProvider(cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint, client)
		if err != nil {
			return nil, err
		}
		if cfg.Telegram.FileEndpoint != "" {
			provider.WithFileEndpoint(cfg.Telegram.FileEndpoint)
		}
		return provider, nil
	}
}

// newUpstreamClient builds the client used to relay bytes. It has no overall
// timeout since a stream can run for as long as the viewer watches.
func newUpstreamClient(cfg *config.Config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Storage.UpstreamTimeout
	transport.MaxIdleConnsPerHost = 32

	return &http.Client{Transport: transport}
}

func runServe(ctx context.Context, cfg *config.Config, migrateOnStart bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := connectWithRetry(ctx, cfg.Database.GetDSN(), 5, 5*time.Second)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrateOnStart {
		if err := runMigrations(cfg); err != nil {
			return err
		}
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := newRemoteStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to init %s provider: %w", cfg.Storage.Provider, err)
	}

	var resolverOpts []resolver.Option
	if cfg.Redis.Addr != "" {
		rdb := ratelimit.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, resolves are not limited until it is back")
		}
		resolverOpts = append(resolverOpts, resolver.WithLimiter(
			ratelimit.NewLimiter(rdb, cfg.Redis.ResolveLimit, cfg.Redis.ResolveWindow),
		))
	}

	fileRepo := repository.NewFileRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	shareRepo := repository.NewShareRepository(db)

	folderService := service.NewFolderService(folderRepo, fileRepo)
	fileService := service.NewFileService(fileRepo, folderRepo)
	shareService := service.NewShareService(shareRepo, folderService, fileService)
	cleaner := service.NewRemoteCleaner(store)

	streamer := proxy.NewStreamer(
		resolver.New(store, resolverOpts...),
		proxy.New(newUpstreamClient(cfg)),
	)

	handlers := &handler.Handlers{
		Folders: handler.NewFolderHandler(folderService, shareService, cleaner),
		Files:   handler.NewFileHandler(fileService, shareService, streamer, cleaner),
		Shares:  handler.NewShareHandler(shareService, streamer),
		Preview: preview.NewHandler(fileService, streamer),
	}
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Range"},
		ExposedHeaders:   []string{"Content-Disposition", "Content-Range", "Accept-Ranges", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	handlers.Mount(r, verifier.RequireStorage)

	grpcServer := grpc.NewServer()
	handler.RegisterIngestServer(grpcServer, handler.NewIngestHandler(fileService))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 3)

	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC: %w", err)
	}
	go func() {
		log.Info().Str("port", cfg.Server.GRPCPort).Msg("starting gRPC server")
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("provider", cfg.Storage.Provider).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	if cfg.Telegram.Ingest && cfg.Telegram.BotToken != "" {
		bot, err := ingest.NewBotClient(cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint)
		if err != nil {
			return err
		}
		go func() {
			if err := ingest.NewPoller(bot, fileService).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("telegram ingest: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down servers")
	case err = <-errCh:
		log.Error().Err(err).Msg("server failed, shutting down")
	}

	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("HTTP server forced to shutdown")
	}
	grpcServer.GracefulStop()

	log.Info().Msg("server exited properly")
	return err
}
