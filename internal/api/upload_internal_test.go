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


package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	test "github.com/jaycherian/gcp-go-media-pipeline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreObjectDiscardsPartialUpload(t *testing.T) {
	objects := test.NewFakeObjectStore()
	h := &Handlers{Objects: objects, UploadBucket: test.TestHighResBucket}

	broken := errors.New("connection reset")
	src := io.MultiReader(bytes.NewReader(bytes.Repeat([]byte("v"), 1024)), iotest.ErrReader(broken))

	written, err := h.storeObject(context.Background(), "clip.mp4", src)
	assert.ErrorIs(t, err, broken)
	assert.Equal(t, int64(1024), written)

	_, ok := objects.Object(test.TestHighResBucket, "clip.mp4")
	assert.False(t, ok)
}

func TestStoreObjectCommitsCompleteUpload(t *testing.T) {
	objects := test.NewFakeObjectStore()
	h := &Handlers{Objects: objects, UploadBucket: test.TestHighResBucket}

	written, err := h.storeObject(context.Background(), "notes.txt", bytes.NewReader([]byte("plain text")))
	require.NoError(t, err)
	assert.Equal(t, int64(10), written)

	data, ok := objects.Object(test.TestHighResBucket, "notes.txt")
	require.True(t, ok)
	assert.Equal(t, "plain text", string(data))
	assert.Equal(t, "application/octet-stream", objects.ContentType(test.TestHighResBucket, "notes.txt"))
}
