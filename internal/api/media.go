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
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/services"
)

// MediaRouter sets up the routes for media searching and retrieval.
func (h *Handlers) MediaRouter(r *gin.RouterGroup) {
	media := r.Group("/media")
	{
		media.GET("", h.search)
		media.GET("/:id", h.getMedia)
		media.GET("/:id/stream", h.stream)
		media.GET("/:id/scenes/:scene_id", h.getScene)
	}
}

// search answers with the media of the matched scenes, in the order of their
// best match. Each media carries only its matched scenes.
func (h *Handlers) search(c *gin.Context) {
	query := c.Query("s")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter s"})
		return
	}
	count := h.DefaultCount
	if count <= 0 {
		count = services.DefaultResultCount
	}
	if raw, ok := c.GetQuery("count"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "count must be a number"})
			return
		}
		count = n
	}
	h.stats.Searches.Add(1)

	matches, err := h.Search.FindScenes(c.Request.Context(), query, count)
	if errors.Is(err, services.ErrInvalidResultCount) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "error finding scenes", "query", query, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	results := make([]*model.Media, 0)
	byId := make(map[string]*model.Media)
	for _, match := range matches {
		med, ok := byId[match.MediaId]
		if !ok {
			m, err := h.Media.Get(c.Request.Context(), match.MediaId)
			if err != nil {
				slog.ErrorContext(c.Request.Context(), "error getting media", "media_id", match.MediaId, "error", err)
				c.Status(http.StatusInternalServerError)
				return
			}
			m.Scenes = make([]*model.Scene, 0)
			byId[match.MediaId] = m
			results = append(results, m)
			med = m
		}
		scene, err := h.Media.GetScene(c.Request.Context(), match.MediaId, match.SequenceNumber)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "error getting scene", "media_id", match.MediaId, "sequence", match.SequenceNumber, "error", err)
			c.Status(http.StatusInternalServerError)
			return
		}
		med.Scenes = append(med.Scenes, scene)
	}
	c.JSON(http.StatusOK, results)
}

func (h *Handlers) getMedia(c *gin.Context) {
	out, err := h.Media.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// stream answers with a signed URL of the media file.
func (h *Handlers) stream(c *gin.Context) {
	media, err := h.Media.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeLookupError(c, err)
		return
	}
	signedURL, err := h.Media.GenerateSignedURL(c.Request.Context(), media.MediaUrl, h.SignedURLExpiry)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "unable to sign media url", "media_id", media.Id, "url", media.MediaUrl, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, cloud.ErrMalformedObjectURL) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": "could not generate streaming url"})
		return
	}
	h.stats.Streams.Add(1)
	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

func (h *Handlers) getScene(c *gin.Context) {
	sceneID, err := strconv.Atoi(c.Param("scene_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scene_id must be a number"})
		return
	}
	out, err := h.Media.GetScene(c.Request.Context(), c.Param("id"), sceneID)
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	slog.ErrorContext(c.Request.Context(), "lookup failed", "path", c.FullPath(), "error", err)
	c.Status(http.StatusInternalServerError)
}
