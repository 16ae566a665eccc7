// Package assistant is the orchestration core: it owns the source registry,
// the chat history and the retrieval/generation pipeline, and exposes the
// operations the HTTP handlers and the interactive CLI both call.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/Corona-HomeLab/FinSight/internal/ai"
	"github.com/Corona-HomeLab/FinSight/internal/chunker"
	"github.com/Corona-HomeLab/FinSight/internal/loader"
	"github.com/Corona-HomeLab/FinSight/internal/model"
	apperr "github.com/Corona-HomeLab/FinSight/internal/pkg/errors"
	"github.com/Corona-HomeLab/FinSight/internal/registry"
	"github.com/Corona-HomeLab/FinSight/internal/router"
	"github.com/Corona-HomeLab/FinSight/internal/vecstore"
)

const (
	// NoContextReply is returned without calling the model when routing or
	// retrieval produces nothing to ground an answer on.
	NoContextReply = "I don't have any relevant information to answer that question. Try adding a data source or rephrasing."
	// ApologyReply is returned when generation fails after all attempts.
	ApologyReply = "I'm sorry, I wasn't able to generate an answer right now. Please try again."
)

type Options struct {
	TopK           int
	HistoryLimit   int
	FetchTimeout   time.Duration
	GenTimeout     time.Duration
	GenMaxAttempts int
}

func (o *Options) applyDefaults() {
	if o.TopK <= 0 {
		o.TopK = 4
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 30 * time.Second
	}
	if o.GenTimeout <= 0 {
		o.GenTimeout = 60 * time.Second
	}
	if o.GenMaxAttempts <= 0 {
		o.GenMaxAttempts = 3
	}
}

type Assistant struct {
	registry  *registry.Registry
	loader    *loader.Loader
	chunker   *chunker.Chunker
	router    *router.Router
	store     vecstore.Store
	generator ai.IGenerator
	history   *History
	opts      Options
}

func New(reg *registry.Registry, ld *loader.Loader, ck *chunker.Chunker, rt *router.Router,
	store vecstore.Store, generator ai.IGenerator, opts Options) *Assistant {
	opts.applyDefaults()
	return &Assistant{
		registry:  reg,
		loader:    ld,
		chunker:   ck,
		router:    rt,
		store:     store,
		generator: generator,
		history:   NewHistory(opts.HistoryLimit),
		opts:      opts,
	}
}

// AddSource registers the source, then fetches, chunks and indexes its data.
// The registry record persists even if ingestion fails, so a later refresh
// can retry; ingestion failures are reported to the caller.
func (a *Assistant) AddSource(ctx context.Context, sourceID string, input registry.AddInput) (model.SourceConfig, error) {
	src, err := a.registry.Add(ctx, sourceID, input)
	if err != nil {
		return model.SourceConfig{}, err
	}
	if err := a.ingest(ctx, src); err != nil {
		return src, err
	}
	if stored, ok := a.registry.Get(src.SourceID); ok {
		src = stored
	}
	return src, nil
}

func (a *Assistant) ingest(ctx context.Context, src model.SourceConfig) error {
	fetchCtx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	defer cancel()
	docs, err := a.loader.Load(fetchCtx, src)
	if err != nil {
		return err
	}
	chunks := a.chunker.Chunk(src, docs)
	ids, err := a.store.AddDocuments(ctx, chunks, src.Namespace)
	if err != nil {
		return fmt.Errorf("%w: index source %s: %w", apperr.ErrIndex, src.SourceID, err)
	}
	if err := a.registry.SetDocumentIDs(ctx, src.SourceID, ids); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("source indexed",
		zap.String("source_id", src.SourceID),
		zap.String("namespace", src.Namespace),
		zap.Int("chunks", len(ids)),
	)
	return nil
}

// RemoveSource deletes the registry record and the source's namespace from
// the vector store. A missing record is a no-op; a vector store failure after
// the record is gone is reported so the caller knows stale chunks remain
// until the next refresh.
func (a *Assistant) RemoveSource(ctx context.Context, sourceID string) error {
	src, ok := a.registry.Get(sourceID)
	if err := a.registry.Remove(ctx, sourceID); err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := a.store.DeleteNamespace(ctx, src.Namespace); err != nil {
		return fmt.Errorf("%w: delete namespace %s: %w", apperr.ErrIndex, src.Namespace, err)
	}
	return nil
}

func (a *Assistant) ListSources() []model.SourceConfig {
	return a.registry.List()
}

func (a *Assistant) History() []model.ChatTurn {
	return a.history.Turns()
}

// Refresh re-ingests every active source: drop the namespace, fetch again,
// re-chunk, re-index. A failing source is logged and skipped so one broken
// upstream cannot block the rest; the first error is returned after the full
// pass.
func (a *Assistant) Refresh(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	var firstErr error
	for _, src := range sortedSources(a.registry.ActiveSources()) {
		if err := a.store.DeleteNamespace(ctx, src.Namespace); err != nil {
			logger.Error("refresh: clear namespace failed",
				zap.String("source_id", src.SourceID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := a.ingest(ctx, src); err != nil {
			logger.Error("refresh: re-ingest failed",
				zap.String("source_id", src.SourceID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Chat answers one question. Routing picks the namespaces, retrieval gathers
// the top chunks per namespace, and the model answers over that context plus
// the chat history. Questions that produce no context short-circuit to
// NoContextReply without touching the model, and failed generations return
// ApologyReply; neither is recorded in the history.
func (a *Assistant) Chat(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: question is required", apperr.ErrValidation)
	}
	logger := logutil.GetLogger(ctx)

	decision := a.router.Select(question, a.registry.ActiveSources())
	if len(decision.Namespaces) == 0 {
		logger.Info("no namespace matched question")
		return NoContextReply, nil
	}

	docs := a.retrieve(ctx, question, decision)
	if len(docs) == 0 {
		logger.Info("retrieval returned no chunks",
			zap.Strings("namespaces", decision.Namespaces))
		return NoContextReply, nil
	}

	prompt := buildPrompt(renderContext(docs), question, a.history.Turns())
	answer, err := a.generate(ctx, prompt)
	if err != nil {
		logger.Error("answer generation failed", zap.Error(err))
		return ApologyReply, nil
	}

	a.history.Append(model.ChatTurn{Question: question, Answer: answer})
	return answer, nil
}

// retrieve runs one similarity search per routed namespace. A failing
// namespace is logged and skipped; answering from the namespaces that did
// respond beats failing the whole question.
func (a *Assistant) retrieve(ctx context.Context, question string, decision router.Decision) []model.Document {
	logger := logutil.GetLogger(ctx)
	var filter map[string]string
	if decision.Username != "" {
		filter = map[string]string{
			model.MetaType:     model.TypeTransaction,
			model.MetaUsername: decision.Username,
		}
	}
	var docs []model.Document
	for _, namespace := range decision.Namespaces {
		found, err := a.store.SimilaritySearch(ctx, question, a.opts.TopK, namespace, filter)
		if err != nil {
			logger.Error("similarity search failed",
				zap.String("namespace", namespace), zap.Error(err))
			continue
		}
		docs = append(docs, found...)
	}
	return docs
}

// generate calls the model with a per-attempt timeout, retrying only
// timeout-shaped failures.
func (a *Assistant) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= a.opts.GenMaxAttempts; attempt++ {
		genCtx, cancel := context.WithTimeout(ctx, a.opts.GenTimeout)
		answer, err := a.generator.Generate(genCtx, prompt)
		cancel()
		if err == nil {
			return strings.TrimSpace(answer), nil
		}
		lastErr = err
		if !isTimeout(err) {
			break
		}
		logutil.GetLogger(ctx).Warn("generation timed out, retrying",
			zap.Int("attempt", attempt), zap.Error(err))
	}
	return "", fmt.Errorf("%w: %w", apperr.ErrGeneration, lastErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sortedSources(sources map[string]model.SourceConfig) []model.SourceConfig {
	ids := make([]string, 0, len(sources))
	for id := range sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]model.SourceConfig, 0, len(ids))
	for _, id := range ids {
		out = append(out, sources[id])
	}
	return out
}
