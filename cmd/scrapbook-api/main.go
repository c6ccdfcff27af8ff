package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercrane/scrapbook/internal/config"
	"github.com/papercrane/scrapbook/internal/database"
	"github.com/papercrane/scrapbook/internal/enrich"
	"github.com/papercrane/scrapbook/internal/logging"
	"github.com/papercrane/scrapbook/internal/scrapbook"
	"github.com/papercrane/scrapbook/internal/server"
	"github.com/papercrane/scrapbook/internal/storage"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scrapbook-api",
		Short: "Scrapbook media backend service",
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
	cmd.PersistentFlags().String("s3-bucket", defaults.GetString("s3.bucket"), "S3 bucket for image blobs")
	cmd.PersistentFlags().String("s3-region", defaults.GetString("s3.region"), "S3 region")
	cmd.PersistentFlags().String("s3-endpoint", defaults.GetString("s3.endpoint"), "Custom S3 endpoint (MinIO etc.)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "s3.bucket", "s3-bucket")
	bindFlag(cmd, "s3.region", "s3-region")
	bindFlag(cmd, "s3.endpoint", "s3-endpoint")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
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

	imageStore, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:          appConfig.S3Bucket,
		Region:          appConfig.S3Region,
		Endpoint:        appConfig.S3Endpoint,
		AccessKeyID:     appConfig.S3AccessKeyID,
		SecretAccessKey: appConfig.S3SecretAccessKey,
	}, logger)
	if err != nil {
		return err
	}

	cardService, err := scrapbook.NewService(scrapbook.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: scrapbook.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	enricher, err := buildEnricher(appConfig, imageStore, logger)
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Cards:    cardService,
		Images:   imageStore,
		Enricher: enricher,
		Logger:   logger,
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

// buildEnricher returns nil when the model providers are not configured;
// the server then creates cards without descriptions or stickers.
func buildEnricher(appConfig config.AppConfig, imageStore *storage.S3Store, logger *zap.Logger) (server.Enricher, error) {
	if !appConfig.EnrichmentEnabled() {
		logger.Info("enrichment disabled, provider keys not configured")
		return nil, nil
	}

	analyzer, err := enrich.NewAnthropicAnalyzer(appConfig.AnthropicAPIKey, appConfig.AnthropicModel)
	if err != nil {
		return nil, err
	}
	generator, err := enrich.NewOpenAIStickerGenerator(appConfig.OpenAIAPIKey)
	if err != nil {
		return nil, err
	}
	pipeline, err := enrich.NewPipeline(enrich.PipelineConfig{
		Analyzer:  analyzer,
		Generator: generator,
		Uploader:  imageStore,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return pipeline, nil
}
