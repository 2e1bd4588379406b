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
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// Stats counts the requests served since start.
type Stats struct {
	Searches      atomic.Int64
	Streams       atomic.Int64
	Uploads       atomic.Int64
	UploadedBytes atomic.Int64
}

// Dashboard exposes the counters under /stats.
func (h *Handlers) Dashboard(r *gin.RouterGroup) {
	stats := r.Group("/stats")
	{
		stats.GET("", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"searches":       h.stats.Searches.Load(),
				"streams":        h.stats.Streams.Load(),
				"uploads":        h.stats.Uploads.Load(),
				"uploaded_bytes": h.stats.UploadedBytes.Load(),
			})
		})
	}
}
