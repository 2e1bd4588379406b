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

// Package api is the HTTP façade of the pipeline. It exposes the similarity
// search, media lookups, signed streaming URLs and uploads of new originals
// to the high resolution bucket, using gin.
//
// Routes:
//   - GET  /                                     status
//   - GET  /api/v1/media?s=<query>&count=<k>      search, grouped by media
//   - GET  /api/v1/media/:id                      media record
//   - GET  /api/v1/media/:id/stream               signed URL of the media file
//   - GET  /api/v1/media/:id/scenes/:scene_id     one scene
//   - POST /api/v1/uploads                        multipart "files" upload
//   - GET  /api/v1/stats                          request counters
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// SceneFinder runs the similarity search. *services.SearchService satisfies it.
type SceneFinder interface {
	FindScenes(ctx context.Context, query string, maxResults int) ([]*model.SceneMatchResult, error)
}

// MediaReader reads persisted media. *services.MediaService satisfies it.
type MediaReader interface {
	Get(ctx context.Context, id string) (*model.Media, error)
	GetScene(ctx context.Context, id string, sceneSequence int) (*model.Scene, error)
	GenerateSignedURL(ctx context.Context, objectURL string, expires time.Duration) (string, error)
}

// Handlers holds the collaborators of the HTTP routes.
type Handlers struct {
	Name            string
	Search          SceneFinder
	Media           MediaReader
	Objects         cloud.ObjectStore
	UploadBucket    string
	DefaultCount    int
	SignedURLExpiry time.Duration
	stats           *Stats
}

// NewHandlers wires the handlers from config.
func NewHandlers(config *cloud.Config, search SceneFinder, media MediaReader, objects cloud.ObjectStore) *Handlers {
	return &Handlers{
		Name:            config.Application.Name,
		Search:          search,
		Media:           media,
		Objects:         objects,
		UploadBucket:    config.Storage.HiResInputBucket,
		DefaultCount:    config.Search.DefaultResultCount,
		SignedURLExpiry: time.Duration(config.Search.SignedURLMinutes) * time.Minute,
	}
}

// NewRouter builds the gin engine with tracing, CORS and every route.
func NewRouter(h *Handlers) *gin.Engine {
	if h.stats == nil {
		h.stats = &Stats{}
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(h.serviceName()))
	// the web client is served from another origin during development
	r.Use(cors.Default())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "name": h.serviceName()})
	})

	apiV1 := r.Group("/api/v1")
	{
		h.MediaRouter(apiV1)
		h.FileUpload(apiV1)
		h.Dashboard(apiV1)
	}
	return r
}

func (h *Handlers) serviceName() string {
	if h.Name == "" {
		return "media-pipeline"
	}
	return h.Name
}
