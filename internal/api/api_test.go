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

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/api"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/services"
	test "github.com/jaycherian/gcp-go-media-pipeline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// catalog is an in-memory MediaReader.
type catalog struct {
	media   map[string]*model.Media
	expires time.Duration
}

func (c *catalog) Get(_ context.Context, id string) (*model.Media, error) {
	m, ok := c.media[id]
	if !ok {
		return nil, fmt.Errorf("media %s: %w", id, services.ErrNotFound)
	}
	out := *m
	return &out, nil
}

func (c *catalog) GetScene(_ context.Context, id string, sequence int) (*model.Scene, error) {
	m, ok := c.media[id]
	if !ok {
		return nil, fmt.Errorf("media %s: %w", id, services.ErrNotFound)
	}
	s := m.SceneBySequence(sequence)
	if s == nil {
		return nil, fmt.Errorf("scene %d of %s: %w", sequence, id, services.ErrNotFound)
	}
	return s, nil
}

func (c *catalog) GenerateSignedURL(_ context.Context, objectURL string, expires time.Duration) (string, error) {
	bucket, object, err := cloud.ParseObjectURL(objectURL)
	if err != nil {
		return "", err
	}
	c.expires = expires
	return "https://storage.googleapis.com/" + bucket + "/" + object + "?X-Goog-Signature=abc", nil
}

func media(id string, url string, scenes ...int) *model.Media {
	m := &model.Media{Id: id, Title: "title " + id, MediaUrl: url}
	for _, seq := range scenes {
		m.Scenes = append(m.Scenes, &model.Scene{SequenceNumber: seq, Script: fmt.Sprintf("script %d", seq)})
	}
	return m
}

type harness struct {
	router  *gin.Engine
	index   *test.FakeSceneIndex
	objects *test.FakeObjectStore
	catalog *catalog
}

func newHarness() *harness {
	h := &harness{
		index:   &test.FakeSceneIndex{},
		objects: test.NewFakeObjectStore(),
		catalog: &catalog{media: map[string]*model.Media{
			"m1":  media("m1", "gs://low/m1.mp4", 1, 2, 3),
			"m2":  media("m2", "gs://low/m2.mp4", 1),
			"bad": media("bad", "not-a-url"),
		}},
	}
	search := &services.SearchService{
		EmbeddingModel: &test.FakeEmbeddingModel{Vector: []float32{1, 0}},
		ModelName:      "text-embedding-test",
		Index:          h.index,
	}
	config := test.GetConfig()
	config.Storage.HiResInputBucket = test.TestHighResBucket
	h.router = api.NewRouter(api.NewHandlers(config, search, h.catalog, h.objects))
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) get(path string) *httptest.ResponseRecorder {
	return h.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func TestStatus(t *testing.T) {
	rec := newHarness().get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSearchGroupsScenesByMedia(t *testing.T) {
	h := newHarness()
	h.index.Matches = []*model.SceneMatchResult{
		{MediaId: "m1", SequenceNumber: 3, Distance: 0.3},
		{MediaId: "m1", SequenceNumber: 2, Distance: 0.1},
		{MediaId: "m2", SequenceNumber: 1, Distance: 0.2},
	}

	rec := h.get("/api/v1/media?s=lighthouse&count=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []*model.Media
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "m1", out[0].Id)
	require.Len(t, out[0].Scenes, 2)
	assert.Equal(t, 2, out[0].Scenes[0].SequenceNumber)
	assert.Equal(t, 3, out[0].Scenes[1].SequenceNumber)
	assert.Equal(t, "m2", out[1].Id)
	assert.Equal(t, 3, h.index.LastK)
}

func TestSearchDefaultsAndValidation(t *testing.T) {
	h := newHarness()

	rec := h.get("/api/v1/media?s=anything")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, services.DefaultResultCount, h.index.LastK)

	assert.Equal(t, http.StatusBadRequest, h.get("/api/v1/media").Code)
	assert.Equal(t, http.StatusBadRequest, h.get("/api/v1/media?s=x&count=many").Code)
	assert.Equal(t, http.StatusBadRequest, h.get("/api/v1/media?s=x&count=0").Code)
	assert.Equal(t, http.StatusBadRequest, h.get("/api/v1/media?s=x&count=21").Code)
}

func TestSearchFailure(t *testing.T) {
	h := newHarness()
	h.index.Err = test.ErrFake
	assert.Equal(t, http.StatusInternalServerError, h.get("/api/v1/media?s=x").Code)
}

func TestGetMediaAndScene(t *testing.T) {
	h := newHarness()

	rec := h.get("/api/v1/media/m2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"title m2"`)

	assert.Equal(t, http.StatusNotFound, h.get("/api/v1/media/missing").Code)

	rec = h.get("/api/v1/media/m1/scenes/2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"script":"script 2"`)

	assert.Equal(t, http.StatusNotFound, h.get("/api/v1/media/m1/scenes/9").Code)
	assert.Equal(t, http.StatusBadRequest, h.get("/api/v1/media/m1/scenes/two").Code)
}

func TestStream(t *testing.T) {
	h := newHarness()

	rec := h.get("/api/v1/media/m1/stream")
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "https://storage.googleapis.com/low/m1.mp4?X-Goog-Signature=abc", out["url"])
	assert.Equal(t, 15*time.Minute, h.catalog.expires)

	assert.Equal(t, http.StatusUnprocessableEntity, h.get("/api/v1/media/bad/stream").Code)
	assert.Equal(t, http.StatusNotFound, h.get("/api/v1/media/missing/stream").Code)
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for name, data := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestUploadStreamsToInputBucket(t *testing.T) {
	h := newHarness()
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 600)...)
	body, contentType := multipartBody(t, map[string][]byte{
		"poster.png":   png,
		"../notes.txt": []byte("hello"),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := h.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Uploaded successfully 2 files.", rec.Body.String())

	stored, ok := h.objects.Object(test.TestHighResBucket, "poster.png")
	require.True(t, ok)
	assert.Equal(t, png, stored)
	assert.Equal(t, "image/png", h.objects.ContentType(test.TestHighResBucket, "poster.png"))

	stored, ok = h.objects.Object(test.TestHighResBucket, "notes.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", string(stored))
	assert.Equal(t, "application/octet-stream", h.objects.ContentType(test.TestHighResBucket, "notes.txt"))

	rec = h.get("/api/v1/stats")
	assert.JSONEq(t, fmt.Sprintf(`{"searches":0,"streams":0,"uploads":2,"uploaded_bytes":%d}`, len(png)+5), rec.Body.String())
}

func TestUploadFailures(t *testing.T) {
	h := newHarness()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", bytes.NewBufferString("plain"))
	req.Header.Set("Content-Type", "text/plain")
	assert.Equal(t, http.StatusBadRequest, h.do(req).Code)

	body, contentType := multipartBody(t, map[string][]byte{})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	assert.Equal(t, http.StatusBadRequest, h.do(req).Code)

	h.objects.WriteErr = test.ErrFake
	body, contentType = multipartBody(t, map[string][]byte{"clip.mp4": []byte("data")})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	assert.Equal(t, http.StatusInternalServerError, h.do(req).Code)
}
