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
// first step of the embedding pipeline.
//
// Logic Flow:
//  1. Reads the Scene and its Media from the context.
//  2. Sends the scene script to the embedding model.
//  3. Flattens the returned vectors into a SceneEmbedding stamped with the
//     media id, the scene sequence and the model name.
//  4. Fails when the model returns no values, so an empty vector is never
//     persisted.
package commands

import (
	"errors"
	"fmt"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"google.golang.org/genai"
)

// ErrEmptyEmbedding is returned when the embedding model answers without a
// vector.
var ErrEmptyEmbedding = errors.New("embedding model returned no vector")

// SceneEmbeddingGenerator embeds the script of one Scene and stores the
// resulting SceneEmbedding, stamped with the model name.
type SceneEmbeddingGenerator struct {
	cor.BaseCommand
	model     cloud.EmbeddingModel
	modelName string
	sceneKey  cor.Key[*model.Scene]
	mediaKey  cor.Key[*model.Media]
	outKey    cor.Key[*model.SceneEmbedding]
}

func NewSceneEmbeddingGenerator(
	name string,
	embeddingModel cloud.EmbeddingModel,
	modelName string,
	sceneKey cor.Key[*model.Scene],
	mediaKey cor.Key[*model.Media],
	outKey cor.Key[*model.SceneEmbedding]) *SceneEmbeddingGenerator {

	return &SceneEmbeddingGenerator{
		BaseCommand: *cor.NewBaseCommand(name),
		model:       embeddingModel,
		modelName:   modelName,
		sceneKey:    sceneKey,
		mediaKey:    mediaKey,
		outKey:      outKey,
	}
}

func (g *SceneEmbeddingGenerator) IsExecutable(context cor.Context) bool {
	return g.sceneKey.Present(context) && g.mediaKey.Present(context)
}

func (g *SceneEmbeddingGenerator) Execute(context cor.Context) error {
	scene, ok := g.sceneKey.Get(context)
	if !ok || scene == nil {
		return fmt.Errorf("missing scene under %q", g.sceneKey.Name())
	}
	media, ok := g.mediaKey.Get(context)
	if !ok || media == nil {
		return fmt.Errorf("missing media under %q", g.mediaKey.Name())
	}

	contents := []*genai.Content{genai.NewContentFromText(scene.Script, genai.RoleUser)}
	resp, err := g.model.EmbedContent(context.GetContext(), g.modelName, contents, nil)
	if err != nil {
		return fmt.Errorf("failed to embed scene %d of %s: %w", scene.SequenceNumber, media.Id, err)
	}

	out := model.NewSceneEmbedding(media.Id, scene.SequenceNumber, g.modelName)
	if resp != nil {
		for _, e := range resp.Embeddings {
			if e == nil {
				continue
			}
			for _, v := range e.Values {
				out.Embeddings = append(out.Embeddings, float64(v))
			}
		}
	}
	if len(out.Embeddings) == 0 {
		return fmt.Errorf("scene %d of %s: %w", scene.SequenceNumber, media.Id, ErrEmptyEmbedding)
	}

	g.outKey.Set(context, out)
	return nil
}
