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

// Package services_test contains the test suite for the services package.
package services_test

import (
	"context"
	"encoding/hex"
	"errors"
	"net/url"
	"testing"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/services"
	test "github.com/jaycherian/gcp-go-media-pipeline/internal/testutil"
	"github.com/zeebo/assert"
)

func searchService(index *test.FakeSceneIndex) (*services.SearchService, *test.FakeEmbeddingModel) {
	embedder := &test.FakeEmbeddingModel{Vector: []float32{0.5, 1}}
	return &services.SearchService{EmbeddingModel: embedder, ModelName: "text-embedding-test", Index: index}, embedder
}

func TestFindScenesOrdersByDistance(t *testing.T) {
	index := &test.FakeSceneIndex{Matches: []*model.SceneMatchResult{
		{MediaId: "b", SequenceNumber: 2, Distance: 0.7},
		{MediaId: "a", SequenceNumber: 1, Distance: 0.1},
		{MediaId: "c", SequenceNumber: 5, Distance: 0.7},
		{MediaId: "d", SequenceNumber: 3, Distance: 0.3},
		{MediaId: "e", SequenceNumber: 4, Distance: 1.2},
		{MediaId: "f", SequenceNumber: 6, Distance: 0.2},
	}}
	search, embedder := searchService(index)

	out, err := search.FindScenes(context.Background(), "Scenes with a lighthouse", services.DefaultResultCount)
	assert.NoError(t, err)
	assert.Equal(t, len(out), 5)
	for i := 1; i < len(out); i++ {
		assert.That(t, out[i-1].Distance <= out[i].Distance)
	}
	assert.Equal(t, out[0].MediaId, "a")
	assert.Equal(t, index.LastK, 5)
	assert.DeepEqual(t, index.LastVec, []float64{0.5, 1})
	assert.DeepEqual(t, embedder.Texts, []string{"Scenes with a lighthouse"})
	assert.DeepEqual(t, embedder.Models, []string{"text-embedding-test"})
}

func TestFindScenesKeepsIndexOrderForTies(t *testing.T) {
	index := &test.FakeSceneIndex{Matches: []*model.SceneMatchResult{
		{MediaId: "x", Distance: 0.4},
		{MediaId: "y", Distance: 0.4},
	}}
	search, _ := searchService(index)

	out, err := search.FindScenes(context.Background(), "q", 2)
	assert.NoError(t, err)
	assert.Equal(t, out[0].MediaId, "x")
	assert.Equal(t, out[1].MediaId, "y")
}

func TestFindScenesEmptyIsNotNil(t *testing.T) {
	search, _ := searchService(&test.FakeSceneIndex{})

	out, err := search.FindScenes(context.Background(), "nothing matches", 5)
	assert.NoError(t, err)
	assert.NotNil(t, out)
	assert.Equal(t, len(out), 0)
}

func TestFindScenesValidatesCount(t *testing.T) {
	index := &test.FakeSceneIndex{}
	search, embedder := searchService(index)

	for _, k := range []int{0, -1, services.MaxResultCount + 1} {
		_, err := search.FindScenes(context.Background(), "q", k)
		assert.That(t, errors.Is(err, services.ErrInvalidResultCount))
	}
	assert.Equal(t, len(embedder.Texts), 0)

	_, err := search.FindScenes(context.Background(), "q", services.MaxResultCount)
	assert.NoError(t, err)
}

func TestFindScenesHonorsConfiguredLimit(t *testing.T) {
	search, _ := searchService(&test.FakeSceneIndex{})
	search.MaxResults = 3
	assert.Equal(t, search.Limit(), 3)

	_, err := search.FindScenes(context.Background(), "q", 4)
	assert.That(t, errors.Is(err, services.ErrInvalidResultCount))
	_, err = search.FindScenes(context.Background(), "q", 3)
	assert.NoError(t, err)

	// a configured limit never raises the hard bound
	search.MaxResults = 50
	assert.Equal(t, search.Limit(), services.MaxResultCount)
}

func TestPendingScenes(t *testing.T) {
	partial := &model.Media{Id: "a", Scenes: []*model.Scene{
		{SequenceNumber: 1, Script: "one"},
		{SequenceNumber: 2, Script: "two"},
		{SequenceNumber: 3},
	}}
	done := &model.Media{Id: "b", Scenes: []*model.Scene{{SequenceNumber: 1, Script: "one"}}}
	fresh := &model.Media{Id: "c", Scenes: []*model.Scene{{SequenceNumber: 1, Script: "one"}}}

	out := services.PendingScenes([]*model.Media{partial, done, fresh}, map[string]map[int]bool{
		"a": {1: true},
		"b": {1: true},
	})

	assert.Equal(t, len(out), 2)
	assert.Equal(t, out[0].Id, "a")
	assert.Equal(t, len(out[0].Scenes), 1)
	assert.Equal(t, out[0].Scenes[0].SequenceNumber, 2)
	assert.Equal(t, out[1].Id, "c")
	assert.Equal(t, len(out[1].Scenes), 1)
}

func TestFindScenesPropagatesFailures(t *testing.T) {
	search, embedder := searchService(&test.FakeSceneIndex{})
	embedder.Err = test.ErrFake
	_, err := search.FindScenes(context.Background(), "q", 5)
	assert.That(t, errors.Is(err, test.ErrFake))

	search, _ = searchService(&test.FakeSceneIndex{Err: test.ErrFake})
	_, err = search.FindScenes(context.Background(), "q", 5)
	assert.That(t, errors.Is(err, test.ErrFake))
}

func TestSignedURLRejectsMalformedReference(t *testing.T) {
	signed := false
	media := &services.MediaService{
		SignerEmail: "signer@test-project.iam.gserviceaccount.com",
		Signer: func(context.Context, []byte) ([]byte, error) {
			signed = true
			return []byte("sig"), nil
		},
	}

	for _, ref := range []string{"bucket/object.mp4", "gs://bucket", "gs:///object.mp4", "://bucket/object.mp4"} {
		_, err := media.GenerateSignedURL(context.Background(), ref, 0)
		assert.That(t, errors.Is(err, cloud.ErrMalformedObjectURL))
	}
	assert.That(t, !signed)
}

func TestSignedURLUsesSignerServiceAccount(t *testing.T) {
	var payload []byte
	media := &services.MediaService{
		SignerEmail: "signer@test-project.iam.gserviceaccount.com",
		Signer: func(_ context.Context, b []byte) ([]byte, error) {
			payload = b
			return []byte("signature"), nil
		},
	}

	signed, err := media.GenerateSignedURL(context.Background(), "gs://media_low_res_resources/clips/trailer.mp4", 0)
	assert.NoError(t, err)
	assert.That(t, len(payload) > 0)

	u, err := url.Parse(signed)
	assert.NoError(t, err)
	assert.Equal(t, u.Path, "/media_low_res_resources/clips/trailer.mp4")
	query := u.Query()
	assert.Equal(t, query.Get("X-Goog-Algorithm"), "GOOG4-RSA-SHA256")
	assert.Equal(t, query.Get("X-Goog-Expires"), "900")
	assert.Equal(t, query.Get("X-Goog-Signature"), hex.EncodeToString([]byte("signature")))
}
