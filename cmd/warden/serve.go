// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/memory"
	authpg "github.com/holomush/warden/internal/auth/postgres"
	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/logging"
	"github.com/holomush/warden/internal/middleware"
	"github.com/holomush/warden/internal/notify"
	"github.com/holomush/warden/internal/observability"
	"github.com/holomush/warden/internal/store"
	"github.com/holomush/warden/internal/token"
	"github.com/holomush/warden/internal/web"
	"github.com/holomush/warden/pkg/errutil"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API and observability servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err //nolint:wrapcheck // config errors carry codes
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// app is the assembled service graph.
type app struct {
	api     http.Handler
	obs     *observability.Server
	resets  *auth.ForgotPasswordService
	pool    *pgxpool.Pool
	logger  *slog.Logger
	cfg     *config.Config
	channel notify.Channel
}

// buildApp wires every component from cfg. The observability registry is
// always created so components can register metrics even when the
// observability listener is disabled.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	codec, err := token.NewCodec(cfg.JWT.Secret, cfg.JWT.Algorithm, token.WithIssuer(cfg.JWT.Issuer))
	if err != nil {
		return nil, err //nolint:wrapcheck // codec errors carry codes
	}

	users, resetRepo, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	a.obs = observability.NewServer(cfg.Metrics.Addr, func() bool { return true }, logger)
	reg := a.obs.Registry()

	channel, err := buildNotifier(cfg, logger, reg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.channel = channel

	hasher := auth.NewArgon2idHasher()
	accounts, err := auth.NewAuthService(auth.ServiceConfig{
		Users:       users,
		Hasher:      hasher,
		Tokens:      codec,
		AccessTTL:   cfg.JWT.AccessTTL,
		RememberTTL: cfg.JWT.RememberTTL,
		Logger:      logger,
	})
	if err != nil {
		a.close()
		return nil, err //nolint:wrapcheck // constructor errors carry codes
	}

	a.resets, err = auth.NewForgotPasswordService(auth.ForgotPasswordConfig{
		Users:           users,
		Resets:          resetRepo,
		Hasher:          hasher,
		Tokens:          codec,
		Notifier:        channel,
		ResetTTL:        cfg.Reset.TTL,
		DispatchTimeout: cfg.Reset.DispatchTimeout,
		MaxInFlight:     cfg.Reset.MaxInFlight,
		Logger:          logger,
	})
	if err != nil {
		a.close()
		return nil, err //nolint:wrapcheck // constructor errors carry codes
	}

	patterns := cfg.Auth.Exempt
	if len(patterns) == 0 {
		patterns = middleware.DefaultExemptions()
	}
	exempt, err := middleware.NewExemptionSet(patterns)
	if err != nil {
		a.close()
		return nil, err //nolint:wrapcheck // pattern errors carry codes
	}
	authn, err := middleware.NewAuthenticator(codec, exempt,
		middleware.WithLogger(logger),
		middleware.WithMetrics(middleware.NewMetrics(reg)),
	)
	if err != nil {
		a.close()
		return nil, err //nolint:wrapcheck // constructor errors carry codes
	}

	handler, err := web.NewHandler(accounts, a.resets, logger)
	if err != nil {
		a.close()
		return nil, err //nolint:wrapcheck // constructor errors carry codes
	}
	a.api = web.NewAPI(handler, authn, logger, a.obs.Metrics())
	return a, nil
}

func (a *app) openStore(ctx context.Context) (auth.UserDirectory, auth.ResetRepository, error) {
	if a.cfg.Store != config.StorePostgres {
		a.logger.Warn("using in-memory store; accounts are lost on restart")
		return memory.NewUserDirectory(), memory.NewResetRepository(), nil
	}

	pool, err := store.Connect(ctx, a.cfg.Database.URL, store.PoolConfig{
		MaxConns:       a.cfg.Database.MaxConns,
		ConnectRetries: a.cfg.Database.ConnectRetries,
		ConnectBackoff: a.cfg.Database.ConnectBackoff,
	})
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // store errors carry codes
	}
	a.pool = pool
	a.logger.Info("connected to database")
	return authpg.NewUserDirectory(pool), authpg.NewResetRepository(pool), nil
}

// buildNotifier fans out to every configured channel.
func buildNotifier(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (notify.Channel, error) {
	var channels []notify.Channel
	for _, name := range cfg.Notify.Channels {
		switch name {
		case config.ChannelLog:
			channels = append(channels, notify.NewLogChannel(logger, cfg.Reset.URL))
		case config.ChannelEmail:
			e := cfg.Notify.Email
			ch, err := notify.NewEmailChannel(notify.EmailConfig{
				Host:     e.Host,
				Port:     e.Port,
				Username: e.Username,
				Password: e.Password,
				From:     e.From,
				Subject:  e.Subject,
				TLS:      e.TLS,
				ResetURL: cfg.Reset.URL,
				Timeout:  e.Timeout,
			}, logger)
			if err != nil {
				return nil, err //nolint:wrapcheck // channel errors carry codes
			}
			channels = append(channels, ch)
		case config.ChannelSMS:
			s := cfg.Notify.SMS
			ch, err := notify.NewSMSChannel(notify.SMSConfig{
				BaseURL:    s.BaseURL,
				AccountSID: s.AccountSID,
				AuthToken:  s.AuthToken,
				From:       s.From,
				ResetURL:   cfg.Reset.URL,
				Timeout:    s.Timeout,
				Retries:    s.Retries,
			}, nil, logger)
			if err != nil {
				return nil, err //nolint:wrapcheck // channel errors carry codes
			}
			channels = append(channels, ch)
		default:
			return nil, oops.Code("CONFIG_INVALID").With("channel", name).Errorf("unknown notification channel %q", name)
		}
	}
	return notify.NewMultiChannel(channels,
		notify.WithChannelTimeout(cfg.Notify.ChannelTimeout),
		notify.WithMetrics(notify.NewMetrics(reg)),
		notify.WithLogger(logger),
	), nil
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// purgeLoop removes expired reset records every interval until ctx ends.
func (a *app) purgeLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.resets.PurgeExpired(ctx)
			if err != nil {
				errutil.LogErrorContext(ctx, a.logger, "purge expired resets failed", err)
				continue
			}
			if n > 0 {
				a.logger.Info("purged expired resets", "count", n)
			}
		}
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := logging.SetDefault(logging.Options{
		Service: "warden",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		errutil.LogError(logger, "startup failed", err)
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Metrics.Addr != "" {
		obsErr, err := a.obs.Start()
		if err != nil {
			return err //nolint:wrapcheck // observability errors carry context
		}
		go monitorServerErrors(ctx, cancel, obsErr, "observability", logger)
	}

	api := web.NewServer(web.ServerConfig{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, a.api, logger)
	apiErr, err := api.Start()
	if err != nil {
		return err //nolint:wrapcheck // server errors carry codes
	}
	go monitorServerErrors(ctx, cancel, apiErr, "api", logger)
	go a.purgeLoop(ctx, cfg.Reset.PurgeInterval)

	logger.Info("warden ready",
		"addr", api.Addr(),
		"store", cfg.Store,
		"channels", cfg.Notify.Channels,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := api.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	// Outstanding reset dispatches hold their own timeouts.
	a.resets.Wait()
	if err := a.obs.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels ctx when a server reports a serve failure.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
