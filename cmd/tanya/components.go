package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/answer"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/evaluate"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/ingest"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/retrieve"
	"github.com/hyperjump/tanya/internal/session"
	"github.com/hyperjump/tanya/internal/vectorstore"
)

// Components holds initialized services.
type Components struct {
	Embedder     embedding.Embedder
	Store        *vectorstore.Store
	KeywordIndex keyword.Index
	Pipeline     *ingest.Pipeline
	Retriever    *retrieve.Retriever
	Synthesizer  *answer.Synthesizer
	Session      *session.Service
	Evaluator    *evaluate.Evaluator
}

// Close releases all resources.
func (c *Components) Close() {
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// componentOptions selects which optional parts initializeComponents builds.
type componentOptions struct {
	// generator builds the synthesizer, session and evaluator; it needs the API credential.
	generator bool
	// keyword opens the Bleve index at storage.keyword_index_path when configured.
	keyword bool
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts componentOptions) (*Components, error) {
	c := &Components{}

	// Resolve the generator first so a missing credential fails before anything is opened.
	var generator answer.Generator
	if opts.generator {
		g, err := answer.NewGenerator(cfg.Generation)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize generator: %w", err)
		}
		generator = g
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	store, err := vectorstore.Open(ctx, cfg.Storage.IndexPath, vectorstore.Options{
		ModelID:    embedder.ModelID(),
		Dimensions: embedder.Dimensions(),
		Logger:     logger,
	})
	if err != nil {
		c.Close()
		if errors.Is(err, vectorstore.ErrModelMismatch) {
			return nil, fmt.Errorf("%w (use the embedding model the index was built with, or point storage.index_path at a new directory)", err)
		}
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	c.Store = store
	logger.Info("vector index opened",
		zap.String("path", cfg.Storage.IndexPath),
		zap.String("model_id", store.ModelID()),
		zap.Int("entries", store.Count()),
	)

	pipelineOpts := []ingest.PipelineOption{
		ingest.WithLogger(logger),
		ingest.WithChunking(cfg.Ingest.ChunkSize, cfg.Ingest.Overlap()),
	}
	if opts.keyword && cfg.Storage.KeywordIndexPath != "" {
		kw, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
		}
		c.KeywordIndex = kw
		pipelineOpts = append(pipelineOpts, ingest.WithKeywordIndex(kw))
	}

	c.Pipeline, err = ingest.NewPipeline(extract.NewExtractor(), embedder, store, pipelineOpts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Retriever = retrieve.NewRetriever(embedder, store, retrieve.WithLogger(logger))

	if generator != nil {
		c.Synthesizer = answer.NewSynthesizer(generator, cfg.Generation.Model,
			answer.WithTemperature(cfg.Generation.SamplingTemperature()),
			answer.WithTimeout(time.Duration(cfg.Generation.TimeoutSeconds)*time.Second),
			answer.WithCredentialEnv(cfg.Generation.APIKeyEnv),
			answer.WithLogger(logger),
		)
		c.Session = session.NewService(c.Retriever, c.Synthesizer,
			session.WithTopK(cfg.Retrieval.DefaultTopK, cfg.Retrieval.MaxTopK),
			session.WithHistory(session.NewHistory(cfg.History.Size)),
			session.WithLogger(logger),
		)
		c.Evaluator = evaluate.NewEvaluator(c.Retriever, c.Synthesizer,
			evaluate.WithTopK(cfg.Evaluation.TopK),
			evaluate.WithMaxCases(cfg.Evaluation.MaxCases),
			evaluate.WithThreshold(cfg.Evaluation.PassThreshold()),
			evaluate.WithLogger(logger),
		)
	}
	return c, nil
}
