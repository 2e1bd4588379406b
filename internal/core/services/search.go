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

// Package services contains the business logic for interacting with data sources.
// This file, `search.go`, defines the SearchService, which is responsible for
// handling the core semantic search functionality. It takes a natural language
// query, converts it into a vector embedding using a generative AI model, and
// then uses that vector to find the most similar scenes in a SceneIndex.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"google.golang.org/api/iterator"
	"google.golang.org/genai"
)

// Result count bounds of FindScenes. A configured limit can only lower
// MaxResultCount.
const (
	DefaultResultCount = 5
	MaxResultCount     = 20
)

// ErrInvalidResultCount is returned when the requested number of results is
// outside 1..Limit().
var ErrInvalidResultCount = errors.New("result count out of range")

// SceneIndex is the vector search collaborator: the k stored scene vectors
// closest to vector.
type SceneIndex interface {
	Nearest(ctx context.Context, vector []float64, k int) ([]*model.SceneMatchResult, error)
}

// SearchService finds scenes that match a text query.
type SearchService struct {
	EmbeddingModel cloud.EmbeddingModel // Turns the query text into a vector.
	ModelName      string               // The name of the embedding model.
	Index          SceneIndex           // Finds the nearest stored scene vectors.
	MaxResults     int                  // Configured upper bound of k; MaxResultCount when not positive.
}

// Limit returns the largest result count FindScenes accepts.
func (s *SearchService) Limit() int {
	if s.MaxResults > 0 && s.MaxResults < MaxResultCount {
		return s.MaxResults
	}
	return MaxResultCount
}

// NewSearchService creates the service backed by the BigQuery embeddings
// table.
func NewSearchService(config *cloud.Config, clients *cloud.ServiceClients) (*SearchService, error) {
	key := config.EmbeddingBatch.EmbeddingModel
	embedder, ok := clients.EmbeddingModels[key]
	if !ok || embedder == nil {
		return nil, fmt.Errorf("embedding model %q is not configured", key)
	}
	return &SearchService{
		EmbeddingModel: embedder,
		ModelName:      config.EmbeddingModels[key].Model,
		Index: &BigQuerySceneIndex{
			Client: clients.BiqQueryClient,
			Table:  cloud.GetFQN(clients.BiqQueryClient, config.BigQueryDataSource.DatasetName, config.BigQueryDataSource.EmbeddingTable),
		},
		MaxResults: config.Search.MaxResultCount,
	}, nil
}

// FindScenes embeds query and returns at most maxResults scenes in
// non-decreasing distance. The result is never nil.
//
// Inputs:
//   - ctx: The context for the request, used for cancellation, deadlines, and tracing.
//   - query: The natural language search string (e.g., "a scene with a car chase").
//   - maxResults: The 'k' of the k-nearest-neighbor search, 1..Limit().
//
// Outputs:
//   - []*model.SceneMatchResult: The matching scenes, closest first.
//   - error: ErrInvalidResultCount, or an embedding or index failure.
func (s *SearchService) FindScenes(ctx context.Context, query string, maxResults int) ([]*model.SceneMatchResult, error) {
	if limit := s.Limit(); maxResults <= 0 || maxResults > limit {
		return nil, fmt.Errorf("%w: got %d, want 1..%d", ErrInvalidResultCount, maxResults, limit)
	}

	contents := []*genai.Content{genai.NewContentFromText(query, genai.RoleUser)}
	resp, err := s.EmbeddingModel.EmbedContent(ctx, s.ModelName, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("embedding model returned no vector for the query")
	}
	vector := make([]float64, 0, len(resp.Embeddings[0].Values))
	for _, v := range resp.Embeddings[0].Values {
		vector = append(vector, float64(v))
	}

	matches, err := s.Index.Nearest(ctx, vector, maxResults)
	if err != nil {
		return nil, err
	}

	out := make([]*model.SceneMatchResult, 0, len(matches))
	for _, m := range matches {
		if m != nil {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

// BigQuerySceneIndex runs VECTOR_SEARCH over the embeddings table.
type BigQuerySceneIndex struct {
	Client *bigquery.Client
	Table  string // Quoted, fully qualified table name.
}

func (b *BigQuerySceneIndex) Nearest(ctx context.Context, vector []float64, k int) ([]*model.SceneMatchResult, error) {
	q := b.Client.Query(fmt.Sprintf(QrySequenceKnn, b.Table, k))
	q.Parameters = []bigquery.QueryParameter{{Name: "embedding", Value: vector}}

	itr, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read from BigQuery: %w", err)
	}
	out := make([]*model.SceneMatchResult, 0, k)
	for {
		r := &model.SceneMatchResult{}
		err := itr.Next(r)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate results: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}
