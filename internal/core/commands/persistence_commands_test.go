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
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	test "github.com/jaycherian/gcp-go-media-pipeline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistMediaUsesIdAsInsertId(t *testing.T) {
	tables := test.NewFakeTables()
	media := assembledMedia()

	persist := commands.NewMediaPersistToBigQuery("persist", tables, "media_ds", "media", commands.MediaKey)
	ctx := run(t, persist, func(c cor.Context) { commands.MediaKey.Set(c, media) })
	require.False(t, ctx.HasErrors(), "%v", ctx.GetErrors())

	inserter := tables.Table("media_ds", "media")
	require.Equal(t, 1, inserter.RowCount())
	row, ok := inserter.Rows[0].(*bigquery.StructSaver)
	require.True(t, ok)
	assert.Equal(t, media.Id, row.InsertID)
	assert.Same(t, media, row.Struct)
}

func TestPersistMediaRunInsertIdDiffersPerRun(t *testing.T) {
	tables := test.NewFakeTables()
	persist := commands.NewMediaPersistToBigQuery("persist", tables, "media_ds", "media", commands.MediaKey).WithRunInsertID()

	first := assembledMedia()
	second := assembledMedia()
	second.CreateDate = first.CreateDate.Add(time.Second)
	for _, media := range []*model.Media{first, second} {
		ctx := run(t, persist, func(c cor.Context) { commands.MediaKey.Set(c, media) })
		require.False(t, ctx.HasErrors(), "%v", ctx.GetErrors())
	}

	rows := tables.Table("media_ds", "media").Rows
	require.Len(t, rows, 2)
	firstID := rows[0].(*bigquery.StructSaver).InsertID
	secondID := rows[1].(*bigquery.StructSaver).InsertID
	assert.Equal(t, commands.MediaRunInsertID(first), firstID)
	assert.True(t, strings.HasPrefix(firstID, first.Id+"/"))
	assert.NotEqual(t, firstID, secondID)
}

func TestPersistMediaErrorNamesIdAndTitle(t *testing.T) {
	tables := test.NewFakeTables()
	tables.Table("media_ds", "media").Err = bigquery.PutMultiError{
		{InsertID: "row-1", RowIndex: 0, Errors: bigquery.MultiError{errors.New("no such field: rating")}},
	}
	media := assembledMedia()

	persist := commands.NewMediaPersistToBigQuery("persist", tables, "media_ds", "media", commands.MediaKey)
	ctx := run(t, persist, func(c cor.Context) { commands.MediaKey.Set(c, media) })

	require.Len(t, ctx.GetErrors(), 1)
	err := ctx.GetErrors()["persist"]
	assert.ErrorContains(t, err, media.Id)
	assert.ErrorContains(t, err, media.Title)
	assert.ErrorContains(t, err, "no such field: rating")
}

func TestPersistEmbedding(t *testing.T) {
	tables := test.NewFakeTables()
	embedding := model.NewSceneEmbedding("media-1", 4, "m")
	embedding.Embeddings = []float64{1, 2}

	persist := commands.NewEmbeddingPersistToBigQuery("persist-embedding", tables, "media_ds", "scene_embeddings", commands.SceneEmbeddingKey)
	ctx := run(t, persist, func(c cor.Context) { commands.SceneEmbeddingKey.Set(c, embedding) })
	require.False(t, ctx.HasErrors(), "%v", ctx.GetErrors())

	row := tables.Table("media_ds", "scene_embeddings").Rows[0].(*bigquery.StructSaver)
	assert.Equal(t, "media-1/4", row.InsertID)
}

func TestPersistEmbeddingErrorNamesIdAndSequence(t *testing.T) {
	tables := test.NewFakeTables()
	tables.Table("media_ds", "scene_embeddings").Err = test.ErrFake
	embedding := model.NewSceneEmbedding("media-1", 4, "m")

	persist := commands.NewEmbeddingPersistToBigQuery("persist-embedding", tables, "media_ds", "scene_embeddings", commands.SceneEmbeddingKey)
	ctx := run(t, persist, func(c cor.Context) { commands.SceneEmbeddingKey.Set(c, embedding) })

	err := ctx.GetErrors()["persist-embedding"]
	require.Error(t, err)
	assert.ErrorContains(t, err, "media-1")
	assert.ErrorContains(t, err, "sequence 4")
	assert.True(t, errors.Is(err, test.ErrFake))
}

func writeLocal(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestUploaderUsesDestinationName(t *testing.T) {
	objects := test.NewFakeObjectStore()
	path := writeLocal(t, "ffmpeg-output-123.mp4", []byte("small video"))

	upload := commands.NewGCSFileUpload("upload", objects, test.TestLowResBucket, commands.ResizedTempPathKey, commands.ResizedFileNameKey)
	ctx := run(t, upload, func(c cor.Context) {
		commands.ResizedTempPathKey.Set(c, path)
		commands.ResizedFileNameKey.Set(c, test.TestObjectName)
	})
	require.False(t, ctx.HasErrors(), "%v", ctx.GetErrors())

	data, ok := objects.Object(test.TestLowResBucket, test.TestObjectName)
	require.True(t, ok)
	assert.Equal(t, "small video", string(data))
}

func TestUploaderFallsBackToBaseName(t *testing.T) {
	objects := test.NewFakeObjectStore()
	png := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 32)...)
	path := writeLocal(t, "poster.png", png)

	upload := commands.NewGCSFileUpload("upload", objects, test.TestLowResBucket, commands.ResizedTempPathKey, commands.ResizedFileNameKey)
	ctx := run(t, upload, func(c cor.Context) { commands.ResizedTempPathKey.Set(c, path) })
	require.False(t, ctx.HasErrors(), "%v", ctx.GetErrors())

	_, ok := objects.Object(test.TestLowResBucket, "poster.png")
	assert.True(t, ok)
	assert.Equal(t, "image/png", objects.ContentType(test.TestLowResBucket, "poster.png"))
}

func TestUploaderReportsCommitFailure(t *testing.T) {
	objects := test.NewFakeObjectStore()
	objects.WriteErr = test.ErrFake
	path := writeLocal(t, "out.mp4", []byte("x"))

	upload := commands.NewGCSFileUpload("upload", objects, test.TestLowResBucket, commands.ResizedTempPathKey, commands.ResizedFileNameKey)
	ctx := run(t, upload, func(c cor.Context) { commands.ResizedTempPathKey.Set(c, path) })

	assert.True(t, errors.Is(ctx.GetErrors()["upload"], test.ErrFake))
}

func TestCleanupRemovesFilesAndNeverFails(t *testing.T) {
	first := writeLocal(t, "a.mp4", []byte("a"))
	second := filepath.Join(t.TempDir(), "already-gone.mp4")

	cleanup := commands.NewMediaCleanup("cleanup", commands.TempFilePathKey, commands.TranscodedFilePathKey, commands.ResizedTempPathKey)
	ctx := run(t, cleanup, func(c cor.Context) {
		commands.TempFilePathKey.Set(c, first)
		commands.TranscodedFilePathKey.Set(c, second)
	})

	assert.False(t, ctx.HasErrors())
	_, err := os.Stat(first)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCleanupRequiresKeys(t *testing.T) {
	assert.Panics(t, func() { commands.NewMediaCleanup("cleanup") })
}
