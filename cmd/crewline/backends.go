package main

import (
	"context"
	"fmt"
	"log"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/crewline/internal/agent"
	"github.com/ShayCichocki/crewline/internal/api"
	"github.com/ShayCichocki/crewline/internal/checkpoint"
	"github.com/ShayCichocki/crewline/internal/config"
	"github.com/ShayCichocki/crewline/internal/crew"
	"github.com/ShayCichocki/crewline/internal/memory"
	"github.com/ShayCichocki/crewline/internal/state"
)

func noopClose() error { return nil }

// newExecutor builds the turn executor chain. Dry runs answer every turn
// locally and return a nil tracker.
func newExecutor(cfg *config.Config, dryRun bool) (agent.TurnExecutor, *api.TokenTracker, error) {
	var (
		base    agent.TurnExecutor = agent.EchoExecutor{}
		tracker *api.TokenTracker
	)

	if !dryRun {
		var apiKey string
		if config.RequiresAPIKey(cfg) {
			key, err := config.GetAPIKey(cfg)
			if err != nil {
				return nil, nil, err
			}
			apiKey = key
		}

		client, err := api.NewClient(api.ClientConfig{
			Model:         anthropic.Model(cfg.Anthropic.Model),
			APIKey:        apiKey,
			UseAWSBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create API client: %w", err)
		}
		base = agent.NewAnthropicExecutor(client)
		tracker = client.Tracker()
	}

	var breaker *agent.CircuitBreaker
	if cfg.Breaker.FailureThreshold > 0 {
		breaker = agent.NewCircuitBreaker(cfg.Breaker.FailureThreshold, cfg.Breaker.RecoveryTimeout)
	}

	var policy *agent.RetryPolicy
	if cfg.Retry.MaxAttempts > 1 {
		policy = &agent.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Delay:       cfg.Retry.Delay,
			Backoff:     cfg.Retry.Backoff,
			OnRetry: func(err error, attempt int) {
				log.Printf("[retry] attempt %d failed: %v", attempt, err)
			},
		}
	}

	return agent.Chain(base, cfg.Engine.TurnTimeout, breaker, policy), tracker, nil
}

// newMemory builds the shared memory store for c. The returned close
// function is always safe to call.
func newMemory(ctx context.Context, cfg *config.Config, c *crew.Crew) (memory.Store, func() error, error) {
	switch cfg.Memory.Backend {
	case "", "local":
		return memory.NewMapStore(), noopClose, nil
	case "log":
		convLog := memory.NewSliceLog(cfg.Memory.ConversationID)
		return memory.NewRemoteStore(convLog, memory.WithRemoteLogger(log.Printf)), noopClose, nil
	case "redis":
		convLog := memory.NewRedisLog(cfg.Memory.RedisAddr, cfg.Memory.RedisPassword, cfg.Memory.RedisDB, cfg.Memory.ConversationID)
		if err := convLog.Init(ctx, c.ID); err != nil {
			convLog.Close()
			return nil, noopClose, fmt.Errorf("init redis memory at %s: %w", cfg.Memory.RedisAddr, err)
		}
		store := memory.NewRemoteStore(convLog, memory.WithRemoteLogger(log.Printf))
		return store, convLog.Close, nil
	default:
		return nil, noopClose, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
}

// newCheckpointStorage opens the configured checkpoint backend. The returned
// close function is always safe to call.
func newCheckpointStorage(cfg *config.Config) (checkpoint.Storage, func() error, error) {
	switch cfg.Checkpoint.Backend {
	case "", "file":
		return checkpoint.NewFileStorage(cfg.Checkpoint.Dir), noopClose, nil
	case "sqlite":
		db, err := state.OpenWithDriver(cfg.Checkpoint.Driver, cfg.Checkpoint.DBPath)
		if err != nil {
			return nil, noopClose, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, noopClose, fmt.Errorf("migrate %s: %w", cfg.Checkpoint.DBPath, err)
		}
		return state.NewCheckpointStorage(db), db.Close, nil
	case "redis":
		s := checkpoint.NewRedisStorage(
			cfg.Memory.RedisAddr,
			cfg.Memory.RedisPassword,
			cfg.Memory.RedisDB,
			checkpoint.WithRedisPrefix(cfg.Checkpoint.RedisPrefix),
		)
		return s, s.Close, nil
	default:
		return nil, noopClose, fmt.Errorf("unknown checkpoint backend %q", cfg.Checkpoint.Backend)
	}
}
