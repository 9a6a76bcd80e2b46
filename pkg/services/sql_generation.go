package services

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/audit"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/retry"
	sqlpkg "github.com/ekaya-inc/ekaya-sqlgen/pkg/sql"
)

var errEmptyCompletion = errors.New("model returned no usable SQL")

// SQLGenerationConfig holds the call budget for model invocations.
type SQLGenerationConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	CallTimeout       time.Duration
	MinResponseTokens int
	MaxResponseTokens int
	RAGTopK           int
}

// DefaultSQLGenerationConfig returns 3 attempts with 1s/2s backoff capped at
// 4s, a 30s per-call timeout and a 256..1024 token response budget.
func DefaultSQLGenerationConfig() SQLGenerationConfig {
	return SQLGenerationConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Second,
		MaxBackoff:        4 * time.Second,
		CallTimeout:       30 * time.Second,
		MinResponseTokens: 256,
		MaxResponseTokens: 1024,
		RAGTopK:           DefaultRAGTopK,
	}
}

// SQLGenerationService turns natural-language requests into read-only SQL.
type SQLGenerationService interface {
	// GenerateSQL always returns a non-empty statement. When neither the
	// model nor the heuristics produce one, the result is models.PlaceholderSQL.
	GenerateSQL(ctx context.Context, req *models.SQLGenerationRequest) *models.SQLGenerationResult
}

type sqlGenerationService struct {
	metadata  MetadataSearchService
	rag       RAGService
	heuristic RuleBasedSQLGenerator
	client    llm.LLMClient
	recorder  llm.CallRecorder
	auditor   *audit.SecurityAuditor
	cfg       SQLGenerationConfig
	logger    *zap.Logger
}

// NewSQLGenerationService creates the generation orchestrator. client may be
// nil, in which case every request is served by the heuristics. A nil
// recorder discards call records.
func NewSQLGenerationService(
	metadata MetadataSearchService,
	rag RAGService,
	heuristic RuleBasedSQLGenerator,
	client llm.LLMClient,
	recorder llm.CallRecorder,
	cfg SQLGenerationConfig,
	logger *zap.Logger,
) SQLGenerationService {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MinResponseTokens <= 0 {
		cfg.MinResponseTokens = 256
	}
	if cfg.MaxResponseTokens < cfg.MinResponseTokens {
		cfg.MaxResponseTokens = cfg.MinResponseTokens
	}
	if cfg.RAGTopK <= 0 {
		cfg.RAGTopK = DefaultRAGTopK
	}
	if recorder == nil {
		recorder = llm.NopCallRecorder{}
	}
	return &sqlGenerationService{
		metadata:  metadata,
		rag:       rag,
		heuristic: heuristic,
		client:    client,
		recorder:  recorder,
		auditor:   audit.NewSecurityAuditor(logger),
		cfg:       cfg,
		logger:    logger.Named("sql-generation"),
	}
}

var _ SQLGenerationService = (*sqlGenerationService)(nil)

func (s *sqlGenerationService) GenerateSQL(ctx context.Context, req *models.SQLGenerationRequest) *models.SQLGenerationResult {
	result := &models.SQLGenerationResult{}

	metadataContext, documentContext := s.fetchContexts(ctx, req)
	result.MetadataContextLen = utf8.RuneCountInString(metadataContext)
	result.RAGContextLen = utf8.RuneCountInString(documentContext)
	result.UsedRAG = documentContext != ""

	injectionFlagged := false
	if hit := sqlpkg.CheckTextForInjection("context", req.UserContext); hit != nil {
		injectionFlagged = true
		s.auditor.LogInjectionAttempt(ctx, req.ConversationID, audit.SQLInjectionDetails{
			Field:       hit.Field,
			Fragment:    hit.Fragment,
			Fingerprint: hit.Fingerprint,
		})
	}

	prompt := prompts.BuildSQLGenerationPrompt(prompts.SQLGenerationInput{
		Query:            req.Query,
		UserContext:      req.UserContext,
		ReferenceContext: prompts.CombineContexts(metadataContext, documentContext),
	})

	s.logger.Debug("Generating SQL",
		zap.String("query", logging.TruncateForLog(req.Query)),
		zap.Int("metadata_context_len", result.MetadataContextLen),
		zap.Int("rag_context_len", result.RAGContextLen),
		zap.Bool("llm_configured", s.client != nil))

	if s.client != nil {
		call := &models.LLMCall{
			ID:               uuid.New(),
			ConversationID:   req.ConversationID,
			Model:            s.client.GetModel(),
			Endpoint:         s.client.GetEndpoint(),
			UsedRAG:          result.UsedRAG,
			UsedMetadata:     metadataContext != "",
			InjectionFlagged: injectionFlagged,
		}
		sql := s.callModel(ctx, prompt, call)
		result.Attempts = call.Attempts
		s.recorder.Record(call)

		if sql != "" {
			result.SQL = sql
			result.Strategy = models.StrategyLLM
			s.checkReadOnly(ctx, req.ConversationID, sql)
			return result
		}
	}

	if sql := s.heuristic.Generate(ctx, req.Query); sql != "" {
		result.SQL = sql
		result.Strategy = models.StrategyHeuristic
		s.logger.Info("Served SQL from heuristics", zap.String("sql", logging.TruncateForLog(sql)))
		return result
	}

	result.SQL = models.PlaceholderSQL
	result.Strategy = models.StrategyPlaceholder
	s.logger.Info("No SQL could be derived; returning placeholder",
		zap.String("query", logging.TruncateForLog(req.Query)))
	return result
}

// fetchContexts loads schema context and, when requested, document context
// in parallel. Neither fetch can fail.
func (s *sqlGenerationService) fetchContexts(ctx context.Context, req *models.SQLGenerationRequest) (string, string) {
	var metadataContext string
	documentContext := req.RAGContext

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		metadataContext = s.metadata.GroupedContext(gctx, req.Query, DefaultMetadataContextTopK)
		return nil
	})
	if req.UseRAG && documentContext == "" && s.rag != nil {
		g.Go(func() error {
			documentContext = s.rag.Context(gctx, req.Query, s.cfg.RAGTopK)
			return nil
		})
	}
	_ = g.Wait()

	return metadataContext, documentContext
}

// callModel runs the bounded retry loop and fills in the call record.
// It returns the sanitized statement, or "" when the model produced nothing usable.
func (s *sqlGenerationService) callModel(ctx context.Context, prompt string, call *models.LLMCall) string {
	start := time.Now()
	maxTokens := s.responseBudget(prompt)

	retryCfg := &retry.Config{
		MaxRetries:   s.cfg.MaxRetries,
		InitialDelay: s.cfg.InitialBackoff,
		MaxDelay:     s.cfg.MaxBackoff,
		Multiplier:   2.0,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			s.logger.Warn("SQL generation attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.String("error", logging.SanitizeError(err)))
		},
	}

	raw, err := retry.DoWithResult(ctx, retryCfg, func() (string, error) {
		call.Attempts++

		callCtx := ctx
		if s.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
			defer cancel()
		}

		resp, err := s.client.GenerateResponse(callCtx, prompt, prompts.SQLGenerationSystemMessage, 0, maxTokens)
		if err != nil {
			if ctx.Err() != nil {
				return "", retry.Permanent(err)
			}
			return "", err
		}
		call.PromptTokens += resp.PromptTokens
		call.CompletionTokens += resp.CompletionTokens
		call.TotalTokens += resp.TotalTokens
		return resp.Content, nil
	})
	call.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		call.Status = models.LLMCallStatusError
		call.ErrorMessage = logging.SanitizeError(err)
		s.logger.Warn("SQL generation failed after retries; using heuristics",
			zap.Int("attempts", call.Attempts),
			zap.String("error", call.ErrorMessage))
		return ""
	}

	sql := sqlpkg.SanitizeCompletion(raw)
	if sql == "" {
		call.Status = models.LLMCallStatusDegraded
		call.ErrorMessage = errEmptyCompletion.Error()
		s.logger.Warn("Model output contained no SQL; using heuristics",
			zap.Int("attempts", call.Attempts),
			zap.String("raw", logging.TruncateForLog(raw)))
		return ""
	}

	call.Status = models.LLMCallStatusSuccess
	s.logger.Info("Generated SQL",
		zap.Int("attempts", call.Attempts),
		zap.Int("total_tokens", call.TotalTokens),
		zap.Int64("duration_ms", call.DurationMs))
	return sql
}

// responseBudget scales the completion limit with prompt length.
func (s *sqlGenerationService) responseBudget(prompt string) int {
	n := utf8.RuneCountInString(prompt) / 2
	return min(max(n, s.cfg.MinResponseTokens), s.cfg.MaxResponseTokens)
}

func (s *sqlGenerationService) checkReadOnly(ctx context.Context, conversationID *uuid.UUID, sql string) {
	if res := sqlpkg.ValidateReadOnly(sql); res.Error != nil {
		s.auditor.LogUnsafeGeneratedSQL(ctx, conversationID, audit.UnsafeSQLDetails{
			SQL:    sql,
			Reason: res.Error.Error(),
			Model:  s.client.GetModel(),
		})
	}
}
