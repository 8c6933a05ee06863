package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"tenant-guardian/backend/internal/ai"
	"tenant-guardian/backend/internal/api"
	"tenant-guardian/backend/internal/config"
	"tenant-guardian/backend/internal/i18n"
	"tenant-guardian/backend/internal/state"
	"tenant-guardian/backend/internal/store"
)

func main() {
	cfg := config.Load()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.WithError(err).Warn("invalid LOG_LEVEL; using info")
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logrus.Fatalf("create data directory: %v", err)
		}
	}
	db, err := store.Open(cfg.DBPath, cfg.LogLevel != "debug")
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	kv, err := stateBackend(ctx, cfg, db)
	if err != nil {
		logrus.Fatalf("state backend: %v", err)
	}
	appState, err := state.Load(ctx, kv, state.Credentials{Email: cfg.DemoEmail, Password: cfg.DemoPassword})
	if err != nil {
		logrus.Fatalf("load state: %v", err)
	}

	var (
		model         ai.Model
		analysisModel string
		chatModel     string
	)
	client, err := ai.NewClient(ai.Config{
		APIKey:            cfg.Gemini.APIKey,
		Model:             cfg.Gemini.Model,
		ChatModel:         cfg.Gemini.ChatModel,
		BaseURL:           cfg.Gemini.BaseURL,
		Timeout:           cfg.Gemini.Timeout,
		RequestsPerSecond: cfg.Gemini.RequestsPerSecond,
	})
	switch {
	case err == nil:
		model = client
		analysisModel, chatModel = client.Models()
		logrus.WithFields(logrus.Fields{
			"model":      analysisModel,
			"chat_model": chatModel,
			"rps":        cfg.Gemini.RequestsPerSecond,
		}).Info("gemini client enabled")
	case errors.Is(err, ai.ErrDisabled):
		logrus.Warn("GEMINI_API_KEY not set - analysis and chat disabled")
	default:
		logrus.Fatalf("ai client: %v", err)
	}

	catalog, err := i18n.Load()
	if err != nil {
		logrus.Fatalf("load strings: %v", err)
	}

	server, err := api.NewServer(api.Config{
		Service:        ai.NewService(model),
		State:          appState,
		History:        db,
		Catalog:        catalog,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		AnalysisModel:  analysisModel,
		ChatModel:      chatModel,
	})
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	logrus.Infof("starting tenant-guardian backend on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}

func stateBackend(ctx context.Context, cfg *config.Config, db *store.Database) (state.KV, error) {
	switch cfg.StateBackend {
	case config.BackendRedis:
		kv := state.NewRedisKV(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), "tenant-guardian:", 0)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := kv.Ping(pingCtx); err != nil {
			return nil, err
		}
		logrus.WithField("addr", cfg.Redis.Addr).Info("state stored in redis")
		return kv, nil
	case config.BackendMemory:
		logrus.Warn("state kept in memory; sign-in and profile reset on restart")
		return state.NewMemoryKV(), nil
	default:
		return db, nil
	}
}
