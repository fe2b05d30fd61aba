package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/PabloGalante/ryokai-gateway/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/ryokai-gateway/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/ryokai-gateway/internal/adapters/storage/memory"
	sqlitestore "github.com/PabloGalante/ryokai-gateway/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/ryokai-gateway/internal/app/agentflow"
	"github.com/PabloGalante/ryokai-gateway/internal/app/conversation"
	"github.com/PabloGalante/ryokai-gateway/internal/config"
	"github.com/PabloGalante/ryokai-gateway/internal/domain"
	"github.com/PabloGalante/ryokai-gateway/internal/observability"
)

// openStore picks the KV backend. The returned close func is never nil.
func openStore(ctx context.Context, cfg *config.Config) (domain.KVStore, func() error, error) {
	log := observability.Logger()

	switch cfg.StorageBackend {
	case config.StorageFirestore:
		log.Info("using firestore storage", zap.String("project", cfg.GCPProjectID))
		store, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("init firestore store: %w", err)
		}
		return store, store.Close, nil

	case config.StorageSQLite:
		log.Info("using sqlite storage", zap.String("path", cfg.SQLitePath))
		store, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("init sqlite store: %w", err)
		}
		return store, store.Close, nil

	default:
		log.Info("using in-memory storage")
		return memstore.NewStore(), func() error { return nil }, nil
	}
}

func newBackends(cfg *config.Config) domain.BackendFactory {
	if cfg.UseMockLLM {
		observability.Logger().Info("using mock LLM backend")
		return llm.NewMockFactory()
	}
	observability.Logger().Info("using genai backend", zap.String("gateway_model", cfg.Models.Gateway))
	return llm.NewGenAIFactory(llm.Models{
		Text:  cfg.Models.Step,
		Image: cfg.Models.Image,
		Video: cfg.Models.Video,
	})
}

func serviceOptions(cfg *config.Config, background bool) conversation.Options {
	return conversation.Options{
		Flow: agentflow.Config{
			GatewayModel:  cfg.Models.Gateway,
			StepModel:     cfg.Models.Step,
			FastStepModel: cfg.Models.FastStep,
			MaxAttempts:   cfg.Retry.MaxAttempts,
			BaseDelay:     cfg.Retry.BaseDelay,
			Pacing: agentflow.Pacing{
				StepPause: cfg.Pacing.StepPause,
				FastPause: cfg.Pacing.FastPause,
			},
			ChainLead:         cfg.Pacing.ChainLead,
			VideoPollInterval: cfg.Pacing.VideoPollInterval,
			VideoMaxPolls:     cfg.Pacing.VideoMaxPolls,
		},
		PersonaSummaryCap: cfg.Persona.SummaryCap,
		InitialCredential: cfg.APIKey,
		Background:        background,
		RunTimeout:        cfg.Pacing.RunTimeout,
	}
}
