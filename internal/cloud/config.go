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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files. It provides a structured way to manage settings
// for the Google Cloud services, AI models, Pub/Sub subscriptions, prompt
// templates and the pipeline itself.
//
// Structs:
//   - BigQueryDataSource: Configuration for BigQuery dataset and tables.
//   - PromptTemplates: Holds the text templates for prompts sent to GenAI models.
//   - VertexAiEmbeddingModel: Configuration for a Vertex AI embedding model.
//   - VertexAiLLMModel: Configuration for a Vertex AI Large Language Model (LLM).
//   - TopicSubscription: Configuration for a single Pub/Sub topic subscription.
//   - Storage: Configuration for Google Cloud Storage buckets.
//   - Pipeline, Search, EmbeddingBatch, Ledger: Orchestration settings.
//   - Category: Defines a media category and its associated LLM overrides.
//   - Config: The top-level struct that aggregates all other configuration structs.
package cloud

import (
	"time"

	"google.golang.org/genai"
)

// Logical names used as keys in the configuration maps.
const (
	HiResTopic         = "HiResTopic"  // uploads of original files, drives the resize workflow
	LowResTopic        = "LowResTopic" // resized files, drives the ingestion workflow
	ReprocessTopic     = "ReprocessTopic"
	DefaultAgentModel  = "creative-flash"
	DefaultEmbedModel  = "multi-lingual"
	DefaultFFMpegPath  = "ffmpeg"
	DefaultTargetWidth = "240"
)

// DefaultSafetySettings leaves every harm category unblocked. The pipeline
// summarizes films and trailers whose content would otherwise trip the filters.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// BigQueryDataSource represents the configuration for a BigQuery data source.
type BigQueryDataSource struct {
	DatasetName    string `toml:"dataset"`         // The name of the BigQuery dataset.
	MediaTable     string `toml:"media_table"`     // The table holding Media rows.
	EmbeddingTable string `toml:"embedding_table"` // The table holding SceneEmbedding rows.
}

// PromptTemplates holds the text/template sources of the prompts.
type PromptTemplates struct {
	SummaryPrompt string `toml:"summary"` // The template for generating summaries.
	ScenePrompt   string `toml:"scene"`   // The template for generating scene scripts.
}

// VertexAiEmbeddingModel represents the configuration for a Vertex AI embedding model.
type VertexAiEmbeddingModel struct {
	Model                string `toml:"model"`                   // The name of the Vertex AI embedding model.
	MaxRequestsPerMinute int    `toml:"max_requests_per_minute"` // The maximum number of requests allowed per minute.
}

// VertexAiLLMModel represents the configuration for a Vertex AI large language model (LLM).
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // The name of the Vertex AI LLM.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the LLM.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter for the LLM.
	TopP               float32 `toml:"top_p"`               // The top_p parameter for the LLM.
	TopK               float32 `toml:"top_k"`               // The top_k parameter for the LLM.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of tokens for the LLM output.
	OutputFormat       string  `toml:"output_format"`       // The desired output MIME type for the LLM.
	EnableGoogle       bool    `toml:"enable_google"`       // Whether to enable Google Search grounding for the LLM.
	RateLimit          int     `toml:"rate_limit"`          // The rate limit for the LLM in requests per second.
}

// TopicSubscription represents the configuration for a Pub/Sub topic subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The name of the dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // Upper bound on how long a message is leased while its workflow runs.
	MaxOutstanding   int    `toml:"max_outstanding"`    // Maximum number of messages processed concurrently.
}

// Storage represents the configuration for storage buckets.
type Storage struct {
	HiResInputBucket   string `toml:"high_res_input_bucket"` // The bucket receiving original uploads.
	LowResOutputBucket string `toml:"low_res_output_bucket"` // The bucket receiving resized files.
	GCSFuseMountPoint  string `toml:"gcs_fuse_mount_point"`  // The mount point for GCS FUSE.
	ObjectURLScheme    string `toml:"object_url_scheme"`     // Scheme used for source URLs, "gs://" by default.
}

// Pipeline holds the settings of the transcoding steps.
type Pipeline struct {
	FFMpegCommand  string `toml:"ffmpeg_command"`   // Path or name of the ffmpeg binary.
	TargetWidth    string `toml:"target_width"`     // Width of resized output in pixels.
	TempFilePrefix string `toml:"temp_file_prefix"` // Prefix of downloaded temp files.
}

// Search holds the limits of the similarity search and signed URL settings.
type Search struct {
	DefaultResultCount int `toml:"default_result_count"`
	MaxResultCount     int `toml:"max_result_count"`
	SignedURLMinutes   int `toml:"signed_url_minutes"`
}

// EmbeddingBatch configures the background job that embeds new scenes.
type EmbeddingBatch struct {
	Enabled         bool   `toml:"enabled"`
	IntervalSeconds int    `toml:"interval_seconds"`
	PoolSize        int    `toml:"pool_size"`
	EmbeddingModel  string `toml:"embedding_model"` // Key into EmbeddingModels.
}

// Interval returns the polling period of the batch job.
func (e EmbeddingBatch) Interval() time.Duration {
	if e.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(e.IntervalSeconds) * time.Second
}

// Ledger configures the processed-event ledger. An empty Path with InMemory
// false disables it.
type Ledger struct {
	Path       string `toml:"path"`
	InMemory   bool   `toml:"in_memory"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// Category defines a specific type of media and allows for overriding LLM behaviors
// such as system instructions or prompt templates for that category.
type Category struct {
	Name               string `toml:"name"`                // The user-friendly name of the category (e.g., "Trailer").
	Definition         string `toml:"definition"`          // A short description of what the category represents.
	SystemInstructions string `toml:"system_instructions"` // Optional override for LLM system instructions for this category.
	Summary            string `toml:"summary"`             // Optional override for the summary prompt template.
	Scene              string `toml:"scene"`               // Optional override for the scene extraction prompt template.
}

// Config represents the overall configuration for the application, loaded from TOML files.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`                         // The name of the application.
		GoogleProjectId           string `toml:"google_project_id"`            // The Google Cloud project ID.
		GoogleLocation            string `toml:"location"`                     // The Google Cloud location.
		ThreadPoolSize            int    `toml:"thread_pool_size"`             // The size of the worker pool for per-scene model calls.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"` // The service account email used for signing GCS URLs.
		HTTPPort                  string `toml:"http_port"`                    // Listening port of the HTTP façade.
	} `toml:"application"`
	Storage            Storage                           `toml:"storage"`
	BigQueryDataSource BigQueryDataSource                `toml:"big_query_data_source"`
	PromptTemplates    PromptTemplates                   `toml:"prompt_templates"`
	Pipeline           Pipeline                          `toml:"pipeline"`
	Search             Search                            `toml:"search"`
	EmbeddingBatch     EmbeddingBatch                    `toml:"embedding_batch"`
	Ledger             Ledger                            `toml:"ledger"`
	TopicSubscriptions map[string]TopicSubscription      `toml:"topic_subscriptions"` // Keyed by a logical name (e.g., "HiResTopic").
	EmbeddingModels    map[string]VertexAiEmbeddingModel `toml:"embedding_models"`    // Keyed by a logical name (e.g., "multi-lingual").
	AgentModels        map[string]VertexAiLLMModel       `toml:"agent_models"`        // Keyed by a logical name (e.g., "creative-flash").
	Categories         map[string]Category               `toml:"categories"`          // Keyed by a logical name (e.g., "trailer").
}

// NewConfig creates a Config with initialized maps and the defaults that the
// TOML files may override.
func NewConfig() *Config {
	c := &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		EmbeddingModels:    make(map[string]VertexAiEmbeddingModel),
		AgentModels:        make(map[string]VertexAiLLMModel),
		Categories:         make(map[string]Category),
	}
	c.Application.ThreadPoolSize = 4
	c.Application.HTTPPort = "8080"
	c.Storage.ObjectURLScheme = DefaultObjectURLScheme
	c.BigQueryDataSource = BigQueryDataSource{
		DatasetName:    "media_ds",
		MediaTable:     "media",
		EmbeddingTable: "scene_embeddings",
	}
	c.Pipeline = Pipeline{
		FFMpegCommand:  DefaultFFMpegPath,
		TargetWidth:    DefaultTargetWidth,
		TempFilePrefix: "media-download-",
	}
	c.Search = Search{DefaultResultCount: 5, MaxResultCount: 20, SignedURLMinutes: 15}
	c.EmbeddingBatch = EmbeddingBatch{IntervalSeconds: 60, PoolSize: 4, EmbeddingModel: DefaultEmbedModel}
	c.Ledger.TTLSeconds = 7 * 24 * 60 * 60
	return c
}
