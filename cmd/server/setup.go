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

package main

import (
	"context"
	"net/http"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/api"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/app"
)

// SetupListeners attaches the workflows to their subscriptions and starts
// receiving. The listeners stop when ctx is cancelled.
//
// Inputs:
//   - ctx: The application's root context, used to manage the lifecycle of the listeners.
//   - state: The assembled application.
func SetupListeners(ctx context.Context, state *app.State) {
	state.AttachListeners()
	state.Listen(ctx)
}

// NewHTTPServer creates the HTTP server of the search API on the configured port.
func NewHTTPServer(state *app.State) *http.Server {
	handlers := api.NewHandlers(state.Config, state.SearchService, state.MediaService, state.Cloud.Objects)
	return &http.Server{
		Addr:    ":" + state.Config.Application.HTTPPort,
		Handler: api.NewRouter(handlers),
	}
}
