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

// Package test provides utility functions and mock data to support the application's
// test suite: GCS notification payloads, a ready-made test configuration and
// environment setup for the configuration loader.
package test

import (
	"fmt"
	"os"
	"testing"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
)

// Buckets and object used by the notification fixtures.
const (
	TestHighResBucket = "media_high_res_resources"
	TestLowResBucket  = "media_low_res_resources"
	TestObjectName    = "test-trailer-001.mp4"
	TestGeneration    = "1728615848664286"
)

// HandleErr fails the test when err is not nil.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// GetTestMessageText returns the JSON of a GCS object-finalize notification
// for bucket/name.
func GetTestMessageText(bucket string, name string) string {
	return fmt.Sprintf(`{
  "kind": "storage#object",
  "id": "%[1]s/%[2]s/%[3]s",
  "selfLink": "https://www.googleapis.com/storage/v1/b/%[1]s/o/%[2]s",
  "name": "%[2]s",
  "bucket": "%[1]s",
  "generation": "%[3]s",
  "metageneration": "1",
  "contentType": "video/mp4",
  "timeCreated": "2024-10-11T03:04:08.672Z",
  "updated": "2024-10-11T03:04:08.672Z",
  "storageClass": "STANDARD",
  "size": "259348037",
  "md5Hash": "67c1rAU+1RYZzK5zp8iBkA==",
  "mediaLink": "https://storage.googleapis.com/download/storage/v1/b/%[1]s/o/%[2]s?generation=%[3]s&alt=media",
  "metadata": { "touch": "18" },
  "crc32c": "IYeSTw==",
  "etag": "CN658+yrhYkDEAE="
}`, bucket, name, TestGeneration)
}

// GetTestHighResMessageText returns a notification for a file finalized in the
// high-resolution bucket, which triggers the resize workflow.
func GetTestHighResMessageText() string {
	return GetTestMessageText(TestHighResBucket, TestObjectName)
}

// GetTestLowResMessageText returns a notification for a file finalized in the
// low-resolution bucket, which triggers the ingestion workflow.
func GetTestLowResMessageText() string {
	return GetTestMessageText(TestLowResBucket, TestObjectName)
}

// SetupOS points the configuration loader at dir with the "test" runtime.
func SetupOS(dir string) (err error) {
	if err = os.Setenv(cloud.EnvConfigFilePrefix, dir); err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// Prompt templates used by unit tests. They reference every template
// parameter the commands provide.
const (
	TestSummaryPrompt = `Summarize {{ .MEDIA_URL }} as JSON. Categories: {{ .CATEGORIES }}. Example: {{ .EXAMPLE_JSON }}`
	TestScenePrompt   = `Script scene {{ .SEQUENCE }} of {{ .MEDIA_URL }} from {{ .TIME_START }} to {{ .TIME_END }}. Summary: {{ .SUMMARY_DOCUMENT }}. Example: {{ .EXAMPLE_JSON }}`
)

// GetConfig returns a configuration for unit tests: the defaults of
// cloud.NewConfig with test buckets, prompts and a single category.
func GetConfig() *cloud.Config {
	config := cloud.NewConfig()
	config.Application.Name = "media-pipeline-test"
	config.Application.GoogleProjectId = "test-project"
	config.Application.GoogleLocation = "us-central1"
	config.Application.ThreadPoolSize = 2
	config.Storage.HiResInputBucket = TestHighResBucket
	config.Storage.LowResOutputBucket = TestLowResBucket
	config.PromptTemplates.SummaryPrompt = TestSummaryPrompt
	config.PromptTemplates.ScenePrompt = TestScenePrompt
	config.Categories["trailer"] = cloud.Category{Name: "Trailer", Definition: "A short promotional cut of a film."}
	config.EmbeddingModels[cloud.DefaultEmbedModel] = cloud.VertexAiEmbeddingModel{Model: "text-embedding-test"}
	return config
}
