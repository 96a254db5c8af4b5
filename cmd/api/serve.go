package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harentsoaR/clinic-api/internal/config"
	"github.com/harentsoaR/clinic-api/internal/handlers"
	"github.com/harentsoaR/clinic-api/internal/metrics"
	"github.com/harentsoaR/clinic-api/internal/middleware"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/services"
	"github.com/harentsoaR/clinic-api/internal/storage"
	"github.com/harentsoaR/clinic-api/internal/store"
	"github.com/harentsoaR/clinic-api/internal/store/memory"
	"github.com/harentsoaR/clinic-api/internal/tracing"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, log)
		},
	}
}

// repositories bundles the three stores behind the service interfaces.
type repositories struct {
	users        userStore
	patients     patientStore
	appointments services.AppointmentRepository
	disconnect   func(context.Context) error
}

type userStore interface {
	services.UserRepository
	middleware.UserResolver
}

type patientStore interface {
	services.PatientRepository
	services.PatientLookup
}

func openRepositories(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return &repositories{
			users:        memory.NewUsers(),
			patients:     memory.NewPatients(),
			appointments: memory.NewAppointments(),
			disconnect:   func(context.Context) error { return nil },
		}, nil
	}

	client, db, err := connectMongo(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &repositories{
		users:        store.NewUserStore(db),
		patients:     store.NewPatientStore(db),
		appointments: store.NewAppointmentStore(db),
		disconnect:   client.Disconnect,
	}, nil
}

func runServer(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    !cfg.IsProduction(),
	})
	if err != nil {
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	repos, err := openRepositories(connectCtx, cfg, log)
	cancel()
	if err != nil {
		return err
	}

	files, err := storage.NewLocalFileStore(cfg.UploadDir)
	if err != nil {
		return err
	}
	log.Debug().Str("upload_dir", files.Dir()).Msg("attachment storage ready")

	var m *metrics.Collector
	if cfg.MetricsEnabled {
		m = metrics.NewCollector()
	}

	var notifier services.Notifier = services.NoopNotifier{}
	var sms *services.SMSNotifier
	if cfg.TextbeltAPIKey != "" {
		sms = services.NewSMSNotifier(cfg.TextbeltAPIKey, log)
		notifier = sms
	} else {
		log.Info().Msg("TEXTBELT_API_KEY not set, SMS notifications disabled")
	}

	bypass := make([]models.Role, len(cfg.OwnershipBypassRoles))
	for i, r := range cfg.OwnershipBypassRoles {
		bypass[i] = models.Role(r)
	}

	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTExpires)
	h := handlers.NewHandler(handlers.Deps{
		Credentials: services.NewCredentials(repos.users, utils.NewHasher(cfg.BcryptCost), log),
		Tokens:      tokens,
		Patients:    services.NewPatients(repos.patients, files, log),
		Appointments: services.NewAppointments(repos.appointments, repos.patients, services.AppointmentPolicy{
			ListScope:       cfg.AppointmentListScope,
			OwnershipBypass: bypass,
		}, notifier, log),
		Metrics:        m,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Log:            log,
	})
	guard := middleware.NewGuard(tokens, repos.users, m, log)
	router := handlers.NewRouter(h, guard, handlers.RouterConfig{
		Production:        cfg.IsProduction(),
		CORSOrigins:       cfg.CORSOrigins,
		AuthRatePerMinute: cfg.AuthRateLimitPerMinute,
		Metrics:           m,
		Log:               log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Str("store", cfg.StoreDriver).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var serveErr error
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("server error")
	}
	signal.Stop(quit)

	stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(stopCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if sms != nil {
		sms.Wait()
	}
	if err := repos.disconnect(stopCtx); err != nil {
		log.Error().Err(err).Msg("closing store")
	}
	if err := shutdownTracing(stopCtx); err != nil {
		log.Error().Err(err).Msg("flushing traces")
	}
	log.Info().Msg("server stopped")
	return serveErr
}
