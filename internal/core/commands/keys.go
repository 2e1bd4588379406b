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

// Package commands provides the concrete implementations of the cor.Command
// interface: the step library the workflows are assembled from.
package commands

import (
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// Context keys shared by the workflows. The names are stable: seeders, steps
// and callers that inspect a finished context all use them.
var (
	TriggerMessageKey     = cor.Key[string]("trigger_message")
	MediaKey              = cor.Key[*model.Media]("media")
	GCSObjectKey          = cor.Key[*cloud.GCSObject]("gcs_object")
	TempFilePathKey       = cor.Key[string]("temp_file_path")
	TranscodedFilePathKey = cor.Key[string]("transcoded_file_path")
	SummaryJsonKey        = cor.Key[string]("summary_json")
	MediaSummaryKey       = cor.Key[*model.MediaSummary]("media_summary")
	SceneKey              = cor.Key[*model.Scene]("scene")
	SceneEmbeddingKey     = cor.Key[*model.SceneEmbedding]("scene_embedding")
	SourceMediaKey        = cor.Key[*model.Media]("source_media")
	OriginalTempPathKey   = cor.Key[string]("original_temp_path")
	ResizedTempPathKey    = cor.Key[string]("resized_temp_path")
	ResizedFileNameKey    = cor.Key[string]("resized_file_name")
)
