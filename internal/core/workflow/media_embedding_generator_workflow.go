// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements the
// embedding pipeline and the background job that feeds it.
//
// Logic Flow:
//  1. On every tick the batch asks its MediaSource for persisted media with
//     scenes that have no embeddings yet. Only those scenes are returned.
//  2. Every scene with a script becomes one task on an ants worker pool.
//  3. A task runs the embedding pipeline (generate, persist) on a fresh
//     context seeded with the Media and the Scene.
//  4. The tick's span reports whether any scene failed. Failed scenes are
//     picked up again on a later tick.
package workflow

import (
	goctx "context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// MediaEmbeddingWorkflow embeds one scene and writes the embedding.
type MediaEmbeddingWorkflow struct {
	cor.BaseCommand
	chain cor.Chain
}

func (m *MediaEmbeddingWorkflow) Execute(context cor.Context) error {
	return m.chain.Execute(context)
}

// GetCommands returns the steps in execution order.
func (m *MediaEmbeddingWorkflow) GetCommands() []cor.Command {
	return m.chain.GetCommands()
}

// NewMediaEmbeddingWorkflow assembles the embedding pipeline. The context
// must hold the Media and the Scene to embed.
func NewMediaEmbeddingWorkflow(config *cloud.Config, c Collaborators) *MediaEmbeddingWorkflow {
	out := cor.NewBaseChain("media-embedding-pipeline")
	out.AddCommand(commands.NewSceneEmbeddingGenerator("generate-scene-embedding", c.Embedder, c.EmbeddingModel, commands.SceneKey, commands.MediaKey, commands.SceneEmbeddingKey))
	out.AddCommand(commands.NewEmbeddingPersistToBigQuery(
		"write-embedding-to-bigquery",
		c.Tables,
		config.BigQueryDataSource.DatasetName,
		config.BigQueryDataSource.EmbeddingTable,
		commands.SceneEmbeddingKey))
	return &MediaEmbeddingWorkflow{BaseCommand: *cor.NewBaseCommand("media-embedding-pipeline"), chain: out}
}

// MediaSource finds the media the batch still has to embed. The returned
// records carry only the scenes without an embedding row.
type MediaSource interface {
	FindUnembedded(ctx goctx.Context) ([]*model.Media, error)
}

// BatchResult counts the scenes of one batch run.
type BatchResult struct {
	Media     int
	Succeeded int
	Failed    int
}

// EmbeddingBatch periodically embeds the scenes of newly persisted media.
type EmbeddingBatch struct {
	source   MediaSource
	pipeline cor.Command
	poolSize int
	interval time.Duration
}

// NewEmbeddingBatch creates the batch job from the embedding_batch section of
// config.
func NewEmbeddingBatch(config *cloud.Config, source MediaSource, pipeline cor.Command) *EmbeddingBatch {
	poolSize := config.EmbeddingBatch.PoolSize
	if poolSize < 1 {
		poolSize = 1
	}
	return &EmbeddingBatch{
		source:   source,
		pipeline: pipeline,
		poolSize: poolSize,
		interval: config.EmbeddingBatch.Interval(),
	}
}

// Start runs the batch on every interval until ctx is cancelled. It returns
// immediately; the loop runs on its own goroutine.
func (b *EmbeddingBatch) Start(ctx goctx.Context) {
	tracer := otel.Tracer("embedding-batch")
	ticker := time.NewTicker(b.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				traceCtx, span := tracer.Start(ctx, "media-embeddings")
				result, err := b.RunOnce(traceCtx)
				span.SetAttributes(
					attribute.Int("media", result.Media),
					attribute.Int("succeeded", result.Succeeded),
					attribute.Int("failed", result.Failed),
				)
				if err != nil || result.Failed > 0 {
					span.SetStatus(codes.Error, "failed to execute embedding chain")
				} else {
					span.SetStatus(codes.Ok, "executed embeddings")
				}
				span.End()
			case <-ctx.Done():
				slog.Info("embedding batch stopped")
				return
			}
		}
	}()
}

// RunOnce embeds every scene of the media returned by the source and waits
// for all of them. Scenes without a script are skipped.
func (b *EmbeddingBatch) RunOnce(ctx goctx.Context) (BatchResult, error) {
	var result BatchResult

	media, err := b.source.FindUnembedded(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to find media without embeddings: %w", err)
	}
	result.Media = len(media)
	if len(media) == 0 {
		return result, nil
	}

	pool, err := ants.NewPool(b.poolSize, ants.WithPanicHandler(func(p interface{}) {
		slog.ErrorContext(ctx, "embedding task panicked", "panic", p)
	}))
	if err != nil {
		return result, fmt.Errorf("failed to create embedding pool: %w", err)
	}
	defer pool.Release()

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		failed    atomic.Int64
	)
	for _, m := range media {
		for _, scene := range m.Scenes {
			if scene == nil || scene.Script == "" {
				continue
			}
			wg.Add(1)
			task := func() {
				defer wg.Done()
				if b.embedScene(ctx, m, scene) {
					succeeded.Add(1)
				} else {
					failed.Add(1)
				}
			}
			if err := pool.Submit(task); err != nil {
				wg.Done()
				failed.Add(1)
				slog.ErrorContext(ctx, "failed to submit embedding task", "media_id", m.Id, "sequence", scene.SequenceNumber, "error", err)
			}
		}
	}
	wg.Wait()

	result.Succeeded = int(succeeded.Load())
	result.Failed = int(failed.Load())
	slog.InfoContext(ctx, "embedding batch finished", "media", result.Media, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

func (b *EmbeddingBatch) embedScene(ctx goctx.Context, media *model.Media, scene *model.Scene) bool {
	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(ctx)
	commands.MediaKey.Set(chainCtx, media)
	commands.SceneKey.Set(chainCtx, scene)

	_ = b.pipeline.Execute(chainCtx)
	if chainCtx.HasErrors() {
		for step, err := range chainCtx.GetErrors() {
			slog.ErrorContext(ctx, "scene embedding failed", "media_id", media.Id, "sequence", scene.SequenceNumber, "step", step, "error", err)
		}
		return false
	}
	return true
}
