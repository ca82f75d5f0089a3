package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mkalinin/classhub/internal/db"
	"github.com/mkalinin/classhub/internal/handlers"
	"github.com/mkalinin/classhub/internal/logger"
	"github.com/mkalinin/classhub/internal/models"
	"github.com/mkalinin/classhub/internal/notification"
	"github.com/mkalinin/classhub/internal/repository/postgres"
	"github.com/mkalinin/classhub/internal/service/auth"
	"github.com/mkalinin/classhub/internal/service/course"
	"github.com/mkalinin/classhub/internal/service/institution"
	"github.com/mkalinin/classhub/internal/service/token"
	"github.com/mkalinin/classhub/internal/service/twofactor"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	dispatcher *notification.Dispatcher
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger := logger.New(c.Environment, c.LogLevel)

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize token machinery
	signer, err := token.NewSigner(token.SignerConfig{
		SecretKey: c.SecretKey,
		Issuer:    c.TokenIssuer,
		TTL: map[models.TokenMode]time.Duration{
			models.TokenModeAccess:       c.AccessTTL,
			models.TokenModeRefresh:      c.RefreshTTL,
			models.TokenModeActivation:   c.ActivationTTL,
			models.TokenModeResetPwd:     c.ResetPwdTTL,
			models.TokenModeReset2FA:     c.Reset2FATTL,
			models.TokenModeConfirmEmail: c.ConfirmEmailTTL,
			models.TokenModeCourseJoin:   c.CourseJoinTTL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token signer. Err: %w", err)
	}

	tokenManager, err := token.NewManager(signer, storage.Token())
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	// Initialize outgoing mail
	sink, err := notification.NewSMTPSink(notification.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating smtp sink. Err: %w", err)
	}
	dispatcher := notification.NewDispatcher(sink, storage.Outbox(), logger)

	// Initialize services
	tfa := twofactor.NewEngine(c.TokenIssuer)

	authService, err := auth.NewService(auth.Config{BaseURL: c.BaseURL}, tokenManager, tfa, storage, dispatcher, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	courseService := course.NewService(storage, tokenManager, dispatcher, logger, c.BaseURL)
	institutionService := institution.NewService(storage)

	mux := handlers.NewRouter(
		authService,
		courseService,
		institutionService,
		logger,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		dispatcher: dispatcher,
	}, nil
}

// Run starts the mail dispatcher and http server and closes both
// gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	dispatcherStopped := s.dispatcher.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-dispatcherStopped

	return err
}
