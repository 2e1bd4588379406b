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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	test "github.com/jaycherian/gcp-go-media-pipeline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes a single command the way a workflow would and returns the
// context, which the test closes on cleanup.
func run(t *testing.T, command cor.Command, seed func(cor.Context)) cor.Context {
	t.Helper()
	chain := cor.NewBaseChain(t.Name())
	chain.AddCommand(command)
	ctx := cor.NewBaseContext()
	if seed != nil {
		seed(ctx)
	}
	_ = chain.Execute(ctx)
	t.Cleanup(ctx.Close)
	return ctx
}

func TestTriggerReaderBuildsMediaFromNotification(t *testing.T) {
	reader := commands.NewMediaTriggerReader("trigger", "storage://", commands.TriggerMessageKey, commands.MediaKey)

	ctx := run(t, reader, func(c cor.Context) {
		commands.TriggerMessageKey.Set(c, `{"name":"movie1.mp4","bucket":"bkt"}`)
	})
	require.False(t, ctx.HasErrors(), "%v", ctx.GetErrors())

	media, ok := commands.MediaKey.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "storage://bkt/movie1.mp4", media.MediaUrl)
	assert.Equal(t, model.MediaIdFor("movie1.mp4"), media.Id)

	obj, ok := commands.GCSObjectKey.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "bkt", obj.Bucket)
	assert.Equal(t, "movie1.mp4", obj.Name)
}

func TestTriggerReaderIdDependsOnlyOnName(t *testing.T) {
	reader := commands.NewMediaTriggerReader("trigger", "", commands.TriggerMessageKey, commands.MediaKey)

	first := run(t, reader, func(c cor.Context) {
		commands.TriggerMessageKey.Set(c, test.GetTestMessageText(test.TestHighResBucket, test.TestObjectName))
	})
	second := run(t, reader, func(c cor.Context) {
		commands.TriggerMessageKey.Set(c, test.GetTestMessageText(test.TestLowResBucket, test.TestObjectName))
	})

	a, _ := commands.MediaKey.Get(first)
	b, _ := commands.MediaKey.Get(second)
	assert.Equal(t, a.Id, b.Id)
	assert.Equal(t, "gs://"+test.TestLowResBucket+"/"+test.TestObjectName, b.MediaUrl)
}

func TestTriggerReaderRejectsBadPayloads(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":       "not json",
		"missing bucket": `{"name":"movie1.mp4"}`,
		"missing name":   `{"bucket":"bkt"}`,
	} {
		t.Run(name, func(t *testing.T) {
			reader := commands.NewMediaTriggerReader("trigger", "", commands.TriggerMessageKey, commands.MediaKey)
			ctx := run(t, reader, func(c cor.Context) { commands.TriggerMessageKey.Set(c, payload) })

			require.Len(t, ctx.GetErrors(), 1)
			assert.Contains(t, ctx.GetErrors(), "trigger")
			assert.False(t, commands.MediaKey.Present(ctx))
		})
	}
}

func TestDownloaderCopiesObjectToTempFile(t *testing.T) {
	objects := test.NewFakeObjectStore()
	objects.Put("bkt", "clips/movie1.mp4", []byte("video bytes"))

	media := model.NewMedia("movie1.mp4")
	media.MediaUrl = "gs://bkt/clips/movie1.mp4"

	download := commands.NewGCSToTempFile("download", objects, "media-download-", commands.MediaKey, commands.TempFilePathKey)
	ctx := run(t, download, func(c cor.Context) { commands.MediaKey.Set(c, media) })
	require.False(t, ctx.HasErrors(), "%v", ctx.GetErrors())

	path, ok := commands.TempFilePathKey.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, ".mp4", filepath.Ext(path))
	assert.Contains(t, ctx.GetTempFiles(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "video bytes", string(data))
}

func TestDownloaderRejectsMalformedURL(t *testing.T) {
	media := model.NewMedia("movie1.mp4")
	media.MediaUrl = "bkt-without-scheme"

	download := commands.NewGCSToTempFile("download", test.NewFakeObjectStore(), "media-download-", commands.MediaKey, commands.TempFilePathKey)
	ctx := run(t, download, func(c cor.Context) { commands.MediaKey.Set(c, media) })

	require.Len(t, ctx.GetErrors(), 1)
	assert.True(t, errors.Is(ctx.GetErrors()["download"], cloud.ErrMalformedObjectURL))
	assert.Empty(t, ctx.GetTempFiles())
}

func TestDownloaderFailsOnMissingObject(t *testing.T) {
	media := model.NewMedia("movie1.mp4")
	media.MediaUrl = "gs://bkt/movie1.mp4"

	download := commands.NewGCSToTempFile("download", test.NewFakeObjectStore(), "media-download-", commands.MediaKey, commands.TempFilePathKey)
	ctx := run(t, download, func(c cor.Context) { commands.MediaKey.Set(c, media) })

	require.Len(t, ctx.GetErrors(), 1)
	assert.True(t, errors.Is(ctx.GetErrors()["download"], storage.ErrObjectNotExist))
	assert.False(t, commands.TempFilePathKey.Present(ctx))
}
