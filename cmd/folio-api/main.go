package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/folioworks/folio/backend/internal/analytics"
	"github.com/folioworks/folio/backend/internal/auth"
	"github.com/folioworks/folio/backend/internal/config"
	"github.com/folioworks/folio/backend/internal/contact"
	"github.com/folioworks/folio/backend/internal/database"
	"github.com/folioworks/folio/backend/internal/feedback"
	"github.com/folioworks/folio/backend/internal/logging"
	"github.com/folioworks/folio/backend/internal/notification"
	"github.com/folioworks/folio/backend/internal/server"
	"github.com/folioworks/folio/backend/internal/stats"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "folio-api",
		Short: "Portfolio backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")
	cmd.PersistentFlags().String("admin-username", "", "Admin login username (overrides env)")
	cmd.PersistentFlags().String("admin-password", "", "Admin login password (overrides env)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Admin token TTL in minutes")
	cmd.PersistentFlags().String("cv-file-path", defaults.GetString("cv.file_path"), "Path to the downloadable CV file")
	cmd.PersistentFlags().String("cv-file-name", defaults.GetString("cv.file_name"), "File name presented on CV download")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.admin_username", "admin-username")
	bindFlag(cmd, "auth.admin_password", "admin-password")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "cv.file_path", "cv-file-path")
	bindFlag(cmd, "cv.file_name", "cv-file-name")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	// Local development keeps secrets in a .env file; a missing file
	// is expected in production.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "folio-auth",
		Audience:      "folio-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	contactService, err := contact.NewService(contact.ServiceConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	feedbackService, err := feedback.NewService(feedback.ServiceConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	analyticsService, err := analytics.NewService(analytics.ServiceConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	overviewService := stats.NewOverviewService(stats.OverviewServiceConfig{
		Contacts:     contactService,
		Feedback:     feedbackService,
		Analytics:    analyticsService,
		RecentLimit:  appConfig.RecentLimit,
		QueryTimeout: appConfig.QueryTimeout,
		Logger:       logger,
	})

	notificationService, err := notification.NewService(notification.ServiceConfig{
		Database:  db,
		Contacts:  contactService,
		Analytics: analyticsService,
		IDs:       notification.NewUUIDProvider(),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Credentials: auth.Credentials{
			Username: appConfig.AdminUsername,
			Password: appConfig.AdminPassword,
		},
		TokenIssuer:   tokenIssuer,
		Verifier:      tokenIssuer,
		Contacts:      contactService,
		Feedback:      feedbackService,
		Analytics:     analyticsService,
		Overview:      overviewService,
		Notifications: notificationService,
		Events:        server.NewEventDispatcher(),
		CVFilePath:    appConfig.CVFilePath,
		CVFileName:    appConfig.CVFileName,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
