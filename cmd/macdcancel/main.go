package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mmeshcher/macd-cancel/internal/config"
	"github.com/mmeshcher/macd-cancel/internal/handler"
	"github.com/mmeshcher/macd-cancel/internal/logger"
	"github.com/mmeshcher/macd-cancel/internal/models"
	"github.com/mmeshcher/macd-cancel/internal/parameters"
	"github.com/mmeshcher/macd-cancel/internal/repository"
	"github.com/mmeshcher/macd-cancel/internal/service"
	"github.com/mmeshcher/macd-cancel/internal/ticketing"
	"github.com/mmeshcher/macd-cancel/internal/tracer"
)

func main() {
	dotenvErr := godotenv.Load()

	cfg, err := config.ParseFlags()
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("Configuration error", zap.Error(err))
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("Failed to create logger", zap.Error(err))
	}
	defer log.Sync()

	if dotenvErr != nil {
		log.Debug("No .env file loaded", zap.Error(dotenvErr))
	}

	log.Info("Configuration loaded",
		zap.String("run_mode", cfg.RunMode),
		zap.String("parameter_name", cfg.ParameterName),
		zap.String("parameters_file", cfg.ParametersFile),
		zap.String("ssm_region", cfg.SSMRegion),
	)

	ctx := context.Background()

	shutdown := tracer.Init(ctx, tracer.Config{Enabled: cfg.OtelEnabled, Endpoint: cfg.OtelEndpoint}, log)
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}()

	params := parameters.NewCache(parameterSource(ctx, cfg, log), log)
	processor := service.NewCancellationService(repository.NewPostgresOpener(cfg.DBConnectTimeout), log)

	notifiers := func(ctx context.Context, p *parameters.Parameters) handler.Notifier {
		creds := ticketing.LoadCredentials(p.Environment(), log)
		client := ticketing.NewClient(ticketing.ClientConfig{
			BaseURL:   cfg.KayakoBaseURL,
			ShimURL:   cfg.KayakoShimURL,
			RetryWait: cfg.KayakoRetryWait,
		}, creds, log)
		return ticketing.NewGateway(ctx, client, log)
	}

	h := handler.NewHandler(params, processor, notifiers, log)

	if cfg.RunMode == config.RunModeHTTP {
		log.Info("Server starting", zap.String("address", cfg.ServerAddress))
		if err := http.ListenAndServe(cfg.ServerAddress, h.SetupRouter()); err != nil {
			log.Fatal("Server stopped", zap.Error(err))
		}
		return
	}

	log.Info("Starting lambda handler")
	lambda.Start(func(ctx context.Context, raw json.RawMessage) (models.Response, error) {
		resp := h.Handle(ctx, handler.DecodeEvent(raw))
		if err := tracer.Flush(ctx); err != nil {
			log.Warn("Failed to flush spans", zap.Error(err))
		}
		return resp, nil
	})
}

// parameterSource picks the local file when configured and SSM otherwise. A
// source that cannot be built is logged and left nil, so every invocation
// reports the failure.
func parameterSource(ctx context.Context, cfg *config.Config, log *zap.Logger) parameters.Source {
	if cfg.ParametersFile != "" {
		return parameters.FileSource{Path: cfg.ParametersFile}
	}

	src, err := parameters.NewSSMSource(ctx, cfg.SSMRegion, cfg.ParameterName)
	if err != nil {
		log.Error("Failed to create SSM client", zap.Error(err))
		return nil
	}
	return src
}
