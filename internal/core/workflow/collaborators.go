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
// combining commands into the pipelines the listeners and the CLI run.
// This file holds what every assembler shares: the collaborator bundle and
// the context seeders.
package workflow

import (
	"fmt"
	"text/template"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// Collaborators are the external systems a pipeline talks to. Assemblers only
// wire them into commands; nothing is called until a pipeline runs.
type Collaborators struct {
	Objects        cloud.ObjectStore
	Tables         cloud.TableStore
	Agent          cloud.GenerativeModel
	Embedder       cloud.EmbeddingModel
	EmbeddingModel string // Model name sent with every embedding request.
}

// NewCollaborators picks the collaborators out of the service clients.
//
// Inputs:
//   - config: The application configuration; selects the embedding model.
//   - clients: The initialized service clients.
//   - agentModelName: The key of the generative model in clients.AgentModels.
//
// Outputs:
//   - Collaborators: The bundle handed to the assemblers.
//   - error: Non-nil when a referenced model is not configured.
func NewCollaborators(config *cloud.Config, clients *cloud.ServiceClients, agentModelName string) (Collaborators, error) {
	agent, ok := clients.AgentModels[agentModelName]
	if !ok || agent == nil {
		return Collaborators{}, fmt.Errorf("agent model %q is not configured", agentModelName)
	}
	embedKey := config.EmbeddingBatch.EmbeddingModel
	embedder, ok := clients.EmbeddingModels[embedKey]
	if !ok || embedder == nil {
		return Collaborators{}, fmt.Errorf("embedding model %q is not configured", embedKey)
	}
	return Collaborators{
		Objects:        clients.Objects,
		Tables:         clients.Tables,
		Agent:          agent,
		Embedder:       embedder,
		EmbeddingModel: config.EmbeddingModels[embedKey].Model,
	}, nil
}

// SeedTrigger stores the raw notification for the trigger reader.
func SeedTrigger(ctx cor.Context, data []byte) error {
	commands.TriggerMessageKey.Set(ctx, string(data))
	return nil
}

// SeedResize returns the seeder of the resize pipeline, which has no trigger
// reader of its own: the notification names the source object and the name
// the resized copy is written under.
func SeedResize(scheme string) cloud.SeedFunc {
	return func(ctx cor.Context, data []byte) error {
		obj, err := commands.ParseTrigger(string(data))
		if err != nil {
			return err
		}
		source := model.NewMedia(obj.Name)
		source.MediaUrl = cloud.NewObjectURL(scheme, obj.Bucket, obj.Name)

		commands.SourceMediaKey.Set(ctx, source)
		commands.ResizedFileNameKey.Set(ctx, obj.Name)
		commands.GCSObjectKey.Set(ctx, obj)
		return nil
	}
}

func parseTemplate(name string, text string) (*template.Template, error) {
	t, err := template.New(name).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return t, nil
}
