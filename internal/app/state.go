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

// Package app assembles the application from its configuration. Both the
// server and the command line tool start here, so the construction order is
// the same everywhere:
//
//  1. cloud.ServiceClients (every client connection).
//  2. The services over those clients (media lookups, similarity search).
//  3. The workflow collaborators and the workflows built from them.
//  4. The optional processed-event ledger.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/services"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/workflow"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/ledger"
)

// Defaults of the configuration environment when the caller sets none.
const (
	DefaultConfigPrefix  = "configs"
	DefaultConfigRuntime = "local"
)

// Workflows are the assembled pipelines.
type Workflows struct {
	Ingestion      *workflow.MediaReaderWorkflow
	Reader         *workflow.MediaReaderWorkflow
	Resize         *workflow.MediaResizeWorkflow
	Embedding      *workflow.MediaEmbeddingWorkflow
	EmbeddingBatch *workflow.EmbeddingBatch
}

// State holds the shared components for the application.
type State struct {
	Config        *cloud.Config
	Cloud         *cloud.ServiceClients
	MediaService  *services.MediaService
	SearchService *services.SearchService
	Workflows     Workflows
	Ledger        *ledger.Ledger // nil when disabled
}

// LoadConfig loads the TOML configuration. GCP_CONFIG_PREFIX and GCP_RUNTIME
// default to "configs" and "local".
func LoadConfig() (*cloud.Config, error) {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err := os.Setenv(cloud.EnvConfigFilePrefix, DefaultConfigPrefix); err != nil {
			return nil, err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		if err := os.Setenv(cloud.EnvConfigRuntime, DefaultConfigRuntime); err != nil {
			return nil, err
		}
	}
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// NewState connects to Google Cloud and assembles services and workflows.
// Nothing is listening or scheduled yet when it returns.
func NewState(ctx context.Context, config *cloud.Config) (state *State, err error) {
	clients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return nil, err
	}
	state = &State{Config: config, Cloud: clients}
	defer func() {
		if err != nil {
			state.Close()
			state = nil
		}
	}()

	state.MediaService = services.NewMediaService(config, clients)
	if state.SearchService, err = services.NewSearchService(config, clients); err != nil {
		return state, err
	}

	collaborators, err := workflow.NewCollaborators(config, clients, cloud.DefaultAgentModel)
	if err != nil {
		return state, err
	}
	if state.Workflows, err = NewWorkflows(config, collaborators, state.MediaService); err != nil {
		return state, err
	}

	state.Ledger, err = ledger.Open(config.Ledger)
	if errors.Is(err, ledger.ErrDisabled) {
		slog.InfoContext(ctx, "processed-event ledger disabled")
		err = nil
	}
	if err != nil {
		return state, fmt.Errorf("unable to open ledger: %w", err)
	}
	return state, nil
}

// NewWorkflows assembles every pipeline over collaborators. source feeds the
// embedding batch job.
func NewWorkflows(config *cloud.Config, collaborators workflow.Collaborators, source workflow.MediaSource) (Workflows, error) {
	ingestion, err := workflow.NewMediaIngestionWorkflow(config, collaborators)
	if err != nil {
		return Workflows{}, err
	}
	reader, err := workflow.NewMediaReaderWorkflow(config, collaborators)
	if err != nil {
		return Workflows{}, err
	}
	embedding := workflow.NewMediaEmbeddingWorkflow(config, collaborators)
	return Workflows{
		Ingestion:      ingestion,
		Reader:         reader,
		Resize:         workflow.NewMediaResizeWorkflow(config, collaborators),
		Embedding:      embedding,
		EmbeddingBatch: workflow.NewEmbeddingBatch(config, source, embedding),
	}, nil
}

// AttachListeners binds each configured subscription to its workflow:
// original uploads are resized, resized files are ingested and reprocess
// requests re-analyze a stored file. Listeners of unknown names are left
// without a command and never start.
//
// Only the upload listeners deduplicate through the ledger. A reprocess
// request names an object that has not changed since its last run, so every
// request must run.
func (s *State) AttachListeners() {
	scheme := s.Config.Storage.ObjectURLScheme
	for name, listener := range s.Cloud.PubSubListeners {
		dedupe := true
		switch name {
		case cloud.HiResTopic:
			listener.SetCommand(s.Workflows.Resize, workflow.SeedResize(scheme))
		case cloud.LowResTopic:
			listener.SetCommand(s.Workflows.Ingestion, workflow.SeedTrigger)
		case cloud.ReprocessTopic:
			listener.SetCommand(s.Workflows.Reader, workflow.SeedTrigger)
			dedupe = false
		default:
			slog.Warn("no workflow for subscription", "listener", name)
			continue
		}
		if dedupe && s.Ledger != nil {
			listener.SetLedger(s.Ledger)
		}
	}
}

// Listen starts every listener with a command until ctx is cancelled.
func (s *State) Listen(ctx context.Context) {
	for _, listener := range s.Cloud.PubSubListeners {
		listener.Listen(ctx)
	}
}

// Close releases the ledger and the client connections.
func (s *State) Close() {
	if s.Ledger != nil {
		if err := s.Ledger.Close(); err != nil {
			slog.Warn("unable to close ledger", "error", err)
		}
	}
	if s.Cloud != nil {
		s.Cloud.Close()
	}
}
