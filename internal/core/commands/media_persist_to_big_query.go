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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// commands that write the pipeline's results to BigQuery.
//
// Rows are streamed with an insert id (the media id, or media id and scene
// sequence for embeddings), so BigQuery drops the duplicate when a redelivered
// notification writes the same record again. Re-processing writes a new
// version of a record on purpose, so its rows are keyed by id and creation
// time instead. Readers pick the newest row per id, which gives
// update-by-id semantics to re-processing.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// MediaPersistToBigQuery writes the Media to the media table.
type MediaPersistToBigQuery struct {
	cor.BaseCommand
	tables   cloud.TableStore
	dataset  string // The name of the BigQuery dataset.
	table    string // The name of the target table within the dataset.
	mediaKey cor.Key[*model.Media]
	perRun   bool // Key rows by MediaRunInsertID instead of the media id.
}

// NewMediaPersistToBigQuery is the constructor for the media writer.
func NewMediaPersistToBigQuery(name string, tables cloud.TableStore, dataset string, table string, mediaKey cor.Key[*model.Media]) *MediaPersistToBigQuery {
	return &MediaPersistToBigQuery{BaseCommand: *cor.NewBaseCommand(name), tables: tables, dataset: dataset, table: table, mediaKey: mediaKey}
}

// WithRunInsertID keys every written row by MediaRunInsertID, so a later run
// for the same media is never dropped as a duplicate of an earlier one.
func (s *MediaPersistToBigQuery) WithRunInsertID() *MediaPersistToBigQuery {
	s.perRun = true
	return s
}

func (s *MediaPersistToBigQuery) IsExecutable(context cor.Context) bool {
	return s.mediaKey.Present(context)
}

func (s *MediaPersistToBigQuery) Execute(context cor.Context) error {
	media, ok := s.mediaKey.Get(context)
	if !ok || media == nil {
		return fmt.Errorf("missing media under %q", s.mediaKey.Name())
	}

	insertID := media.Id
	if s.perRun {
		insertID = MediaRunInsertID(media)
	}
	row := &bigquery.StructSaver{Struct: media, InsertID: insertID}
	if err := s.tables.Inserter(s.dataset, s.table).Put(context.GetContext(), row); err != nil {
		return fmt.Errorf("bigquery insert failed for media %s (title %q): %w", media.Id, media.Title, errors.Join(cloud.RowErrors(err)...))
	}

	slog.InfoContext(context.GetContext(), "persisted media", "id", media.Id, "title", media.Title, "scenes", len(media.Scenes))
	return nil
}

// EmbeddingPersistToBigQuery writes a SceneEmbedding to the embedding table.
type EmbeddingPersistToBigQuery struct {
	cor.BaseCommand
	tables       cloud.TableStore
	dataset      string
	table        string
	embeddingKey cor.Key[*model.SceneEmbedding]
}

func NewEmbeddingPersistToBigQuery(name string, tables cloud.TableStore, dataset string, table string, embeddingKey cor.Key[*model.SceneEmbedding]) *EmbeddingPersistToBigQuery {
	return &EmbeddingPersistToBigQuery{BaseCommand: *cor.NewBaseCommand(name), tables: tables, dataset: dataset, table: table, embeddingKey: embeddingKey}
}

func (s *EmbeddingPersistToBigQuery) IsExecutable(context cor.Context) bool {
	return s.embeddingKey.Present(context)
}

func (s *EmbeddingPersistToBigQuery) Execute(context cor.Context) error {
	embedding, ok := s.embeddingKey.Get(context)
	if !ok || embedding == nil {
		return fmt.Errorf("missing scene embedding under %q", s.embeddingKey.Name())
	}

	row := &bigquery.StructSaver{Struct: embedding, InsertID: EmbeddingInsertID(embedding)}
	if err := s.tables.Inserter(s.dataset, s.table).Put(context.GetContext(), row); err != nil {
		return fmt.Errorf("bigquery insert failed for embedding of media %s sequence %d: %w", embedding.MediaId, embedding.SequenceNumber, errors.Join(cloud.RowErrors(err)...))
	}

	slog.DebugContext(context.GetContext(), "persisted scene embedding", "media_id", embedding.MediaId, "sequence", embedding.SequenceNumber)
	return nil
}

// MediaRunInsertID returns the insert id of one run's version of a media row.
func MediaRunInsertID(media *model.Media) string {
	return fmt.Sprintf("%s/%s", media.Id, media.CreateDate.UTC().Format(time.RFC3339Nano))
}

// EmbeddingInsertID returns the streaming insert id of an embedding row.
func EmbeddingInsertID(e *model.SceneEmbedding) string {
	return fmt.Sprintf("%s/%d", e.MediaId, e.SequenceNumber)
}
