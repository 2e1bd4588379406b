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


package commands_test

import (
	"testing"
	"text/template"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	test "github.com/jaycherian/gcp-go-media-pipeline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepLibrary() map[string]cor.Command {
	config := test.GetConfig()
	objects := test.NewFakeObjectStore()
	tables := test.NewFakeTables()
	agent := test.NewTextModel("{}")
	embedder := &test.FakeEmbeddingModel{Vector: []float32{1}}
	tmpl := template.Must(template.New("prompt").Parse("prompt"))

	return map[string]cor.Command{
		"trigger":    commands.NewMediaTriggerReader("trigger", "", commands.TriggerMessageKey, commands.MediaKey),
		"download":   commands.NewGCSToTempFile("download", objects, "gate-", commands.MediaKey, commands.TempFilePathKey),
		"transcode":  commands.NewFFMpegCommand("transcode", "ffmpeg", "", commands.TempFilePathKey, commands.TranscodedFilePathKey),
		"summarize":  commands.NewMediaSummaryCreator("summarize", config, agent, tmpl, commands.MediaKey, commands.SummaryJsonKey),
		"parse":      commands.NewMediaSummaryJsonToStruct("parse", commands.SummaryJsonKey, commands.MediaSummaryKey),
		"assemble":   commands.NewMediaAssembly("assemble", commands.MediaKey, commands.MediaSummaryKey),
		"extract":    commands.NewSceneExtractor("extract", agent, tmpl, 1, commands.MediaKey),
		"embed":      commands.NewSceneEmbeddingGenerator("embed", embedder, "m", commands.SceneKey, commands.MediaKey, commands.SceneEmbeddingKey),
		"persist":    commands.NewMediaPersistToBigQuery("persist", tables, "media_ds", "media", commands.MediaKey),
		"persist-em": commands.NewEmbeddingPersistToBigQuery("persist-em", tables, "media_ds", "scene_embeddings", commands.SceneEmbeddingKey),
		"upload":     commands.NewGCSFileUpload("upload", objects, test.TestLowResBucket, commands.TranscodedFilePathKey, commands.ResizedFileNameKey),
	}
}

func TestStepsAreSkippedWithoutInput(t *testing.T) {
	for name, step := range stepLibrary() {
		t.Run(name, func(t *testing.T) {
			ctx := run(t, step, nil)
			assert.False(t, step.IsExecutable(ctx))
			assert.False(t, ctx.HasErrors(), "%v", ctx.GetErrors())
		})
	}
}

func TestStepsFailOnEmptyInput(t *testing.T) {
	// the key is present but holds an unusable value
	seeds := map[string]func(cor.Context){
		"trigger":   func(c cor.Context) { commands.TriggerMessageKey.Set(c, "") },
		"download":  func(c cor.Context) { commands.MediaKey.Set(c, (*model.Media)(nil)) },
		"transcode": func(c cor.Context) { commands.TempFilePathKey.Set(c, "") },
		"parse":     func(c cor.Context) { commands.SummaryJsonKey.Set(c, "") },
		"persist":   func(c cor.Context) { commands.MediaKey.Set(c, (*model.Media)(nil)) },
		"upload":    func(c cor.Context) { commands.TranscodedFilePathKey.Set(c, "") },
	}
	library := stepLibrary()
	for name, seed := range seeds {
		t.Run(name, func(t *testing.T) {
			step := library[name]
			ctx := run(t, step, seed)
			require.Len(t, ctx.GetErrors(), 1)
			assert.Contains(t, ctx.GetErrors(), name)
		})
	}
}

func TestAssemblyNeedsMediaAndSummary(t *testing.T) {
	assemble := stepLibrary()["assemble"]
	ctx := cor.NewBaseContext()
	commands.MediaKey.Set(ctx, sourceMedia())
	assert.False(t, assemble.IsExecutable(ctx))

	commands.MediaSummaryKey.Set(ctx, model.GetExampleSummary())
	assert.True(t, assemble.IsExecutable(ctx))
}
