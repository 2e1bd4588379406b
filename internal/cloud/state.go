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

// Package cloud provides components for interacting with Google Cloud services.
// This file is the dependency injection container of the application: it
// builds every client needed to reach Google Cloud once, at startup, and
// bundles them in ServiceClients, which is then handed explicitly to the
// services, the workflow assemblers and the HTTP handlers.
//
// Initialization order:
//  1. Storage, Pub/Sub, GenAI, BigQuery and IAM credentials clients.
//  2. Adapters over those clients (ObjectStore, TableStore).
//  3. Named Pub/Sub listeners, embedding models and agent models from config.
//
// Any failure is returned before a single listener or workflow exists.
package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/genai"
)

// ServiceClients holds the initialized Google Cloud clients and the wrappers
// built on top of them.
type ServiceClients struct {
	StorageClient   *storage.Client
	PubsubClient    *pubsub.Client
	GenAIClient     *genai.Client
	BiqQueryClient  *bigquery.Client
	IAMClient       *credentials.IamCredentialsClient
	Objects         ObjectStore
	Tables          TableStore
	PubSubListeners map[string]*PubSubListener               // Keyed by the logical subscription name from config.
	EmbeddingModels map[string]*QuotaAwareEmbeddingModel     // Keyed by the logical model name from config.
	AgentModels     map[string]*QuotaAwareGenerativeAIModel // Keyed by the logical model name from config.
}

// Close releases every client connection that has one.
func (c *ServiceClients) Close() {
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.BiqQueryClient != nil {
		_ = c.BiqQueryClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
}

// NewCloudServiceClients initializes all Google Cloud clients required by
// config. On error the clients created so far are closed.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	cloud = &ServiceClients{
		PubSubListeners: make(map[string]*PubSubListener),
		EmbeddingModels: make(map[string]*QuotaAwareEmbeddingModel),
		AgentModels:     make(map[string]*QuotaAwareGenerativeAIModel),
	}
	defer func() {
		if err != nil {
			cloud.Close()
			cloud = nil
		}
	}()

	if cloud.StorageClient, err = storage.NewClient(ctx); err != nil {
		return cloud, fmt.Errorf("storage client: %w", err)
	}
	if cloud.PubsubClient, err = pubsub.NewClient(ctx, config.Application.GoogleProjectId); err != nil {
		return cloud, fmt.Errorf("pubsub client: %w", err)
	}
	cloud.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{
		Project:  config.Application.GoogleProjectId,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return cloud, fmt.Errorf("genai client: %w", err)
	}
	if cloud.BiqQueryClient, err = bigquery.NewClient(ctx, config.Application.GoogleProjectId); err != nil {
		return cloud, fmt.Errorf("bigquery client: %w", err)
	}
	if cloud.IAMClient, err = credentials.NewIamCredentialsClient(ctx); err != nil {
		return cloud, fmt.Errorf("iam credentials client: %w", err)
	}
	slog.InfoContext(ctx, "cloud clients initialized",
		"project", config.Application.GoogleProjectId,
		"location", config.Application.GoogleLocation)

	cloud.Objects = NewGCSObjectStore(cloud.StorageClient)
	cloud.Tables = NewBigQueryTables(cloud.BiqQueryClient)

	// Commands are attached once the workflows are assembled.
	for subKey, values := range config.TopicSubscriptions {
		cloud.PubSubListeners[subKey] = NewPubSubListener(cloud.PubsubClient, subKey, values)
	}

	for embKey, values := range config.EmbeddingModels {
		cloud.EmbeddingModels[embKey] = NewQuotaAwareEmbeddingModel(cloud.GenAIClient.Models, values.MaxRequestsPerMinute)
	}

	for amKey, values := range config.AgentModels {
		cloud.AgentModels[amKey] = NewQuotaAwareModel(NewGenerateContentConfig(values), values.Model, cloud.GenAIClient.Models, values.RateLimit)
	}
	return cloud, nil
}

// NewGenerateContentConfig turns an agent model's TOML settings into the
// request configuration sent with every call.
func NewGenerateContentConfig(values VertexAiLLMModel) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](values.Temperature),
		TopP:             genai.Ptr[float32](values.TopP),
		TopK:             genai.Ptr[float32](values.TopK),
		MaxOutputTokens:  values.MaxTokens,
		SafetySettings:   DefaultSafetySettings,
		ResponseMIMEType: values.OutputFormat,
		Tools:            []*genai.Tool{},
	}
	if values.SystemInstructions != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}}
	}
	if values.EnableGoogle {
		config.Tools = append(config.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	return config
}
