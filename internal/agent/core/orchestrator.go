package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/medassist/medassist/config"
	"github.com/medassist/medassist/internal/agent/telemetry"
	"github.com/medassist/medassist/internal/cache"
	"github.com/medassist/medassist/internal/lang"
	"github.com/medassist/medassist/tools"
)

// Orchestrator owns the whole query pipeline: tool selection, plan
// execution and response normalization. All collaborators are injected at
// construction; there is no process-global state.
type Orchestrator struct {
	cfg        *config.Config
	logger     *log.Logger
	telemetry  *telemetry.Telemetry
	planner    *Planner
	normalizer *Normalizer
	tools      []tools.Tool
	cache      cache.Cache
	cacheTTL   time.Duration
}

// NewOrchestrator wires the pipeline from configuration and injected
// collaborators.
func NewOrchestrator(cfg *config.Config, registered []tools.Tool, tr Translator, tele *telemetry.Telemetry, store cache.Cache) *Orchestrator {
	if store == nil {
		store = cache.Noop{}
	}
	target := lang.Language(cfg.Translation.TargetLanguage)
	if target == "" {
		target = lang.Chinese
	}
	return &Orchestrator{
		cfg:        cfg,
		logger:     log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
		telemetry:  tele,
		planner:    NewPlanner(cfg.Planner, registered, tele),
		normalizer: NewNormalizer(tr, target, cfg.Translation.Terms),
		tools:      registered,
		cache:      store,
		cacheTTL:   cfg.Storage.Redis.TTL,
	}
}

// Answer routes one query through selection, execution and normalization.
// Every recoverable condition terminates in a string answer; the error is
// non-nil only for caller-driven cancellation before any work happened.
func (o *Orchestrator) Answer(ctx context.Context, query string) (Result, error) {
	start := time.Now()
	result := Result{ID: uuid.New().String(), Query: query}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	key := answerKey(query)
	if cached, ok := o.cache.Get(ctx, key); ok {
		o.logger.Printf("cache hit for query %s", result.ID)
		result.Answer = cached
		result.FromCache = true
		result.Elapsed = time.Since(start)
		o.telemetry.RecordQueryEvent(telemetry.QueryEvent{ID: result.ID, Duration: result.Elapsed, CacheHit: true})
		return result, nil
	}

	plan := o.planner.Select(query)
	result.ToolsUsed = plan.Names()
	o.logger.Printf("query %s plan: %v", result.ID, result.ToolsUsed)

	combined := o.planner.Execute(ctx, query, plan)
	result.Answer = o.normalizer.Normalize(ctx, combined)
	result.Elapsed = time.Since(start)

	o.telemetry.RecordQueryEvent(telemetry.QueryEvent{
		ID:       result.ID,
		Tools:    result.ToolsUsed,
		Duration: result.Elapsed,
	})

	o.cache.Set(ctx, key, result.Answer, o.cacheTTL)
	return result, nil
}

// Close releases tool-owned network sessions and the cache connection.
func (o *Orchestrator) Close() {
	for _, t := range o.tools {
		if c, ok := t.(tools.Closer); ok {
			c.Close()
		}
	}
	if err := o.cache.Close(); err != nil {
		o.logger.Printf("closing cache: %v", err)
	}
}

func answerKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "answer:" + hex.EncodeToString(sum[:])
}
