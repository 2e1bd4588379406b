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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements the
// workflow that makes a low-resolution copy of a newly uploaded file.
//
// Logic Flow:
//  1. The listener seeds the context with SeedResize: the source Media and
//     the object name of the copy.
//  2. The original is downloaded to a temp file.
//  3. ffmpeg scales it to the configured width.
//  4. The result is uploaded to the low-resolution bucket under the original
//     name, which in turn triggers the ingestion workflow.
//  5. Both local files are removed.
package workflow

import (
	"strings"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
)

// MediaResizeWorkflow resizes an uploaded file and stores the copy.
type MediaResizeWorkflow struct {
	cor.BaseCommand
	chain cor.Chain // The underlying chain of commands to be executed.
}

func (m *MediaResizeWorkflow) Execute(context cor.Context) error {
	return m.chain.Execute(context)
}

// GetCommands returns the steps in execution order.
func (m *MediaResizeWorkflow) GetCommands() []cor.Command {
	return m.chain.GetCommands()
}

// NewMediaResizeWorkflow is the constructor for the MediaResizeWorkflow. An
// empty ffmpeg command or width in config falls back to the defaults.
func NewMediaResizeWorkflow(config *cloud.Config, c Collaborators) *MediaResizeWorkflow {
	ffmpegCommand := strings.TrimSpace(config.Pipeline.FFMpegCommand)
	if ffmpegCommand == "" {
		ffmpegCommand = cloud.DefaultFFMpegPath
	}
	width := strings.TrimSpace(config.Pipeline.TargetWidth)
	if width == "" {
		width = cloud.DefaultTargetWidth
	}

	out := cor.NewBaseChain("media-resize-workflow")
	out.AddCommand(commands.NewGCSToTempFile("gcs-to-temp-file", c.Objects, config.Pipeline.TempFilePrefix, commands.SourceMediaKey, commands.OriginalTempPathKey))
	out.AddCommand(commands.NewFFMpegCommand("video-resize", ffmpegCommand, width, commands.OriginalTempPathKey, commands.ResizedTempPathKey))
	out.AddCommand(commands.NewGCSFileUpload("gcs-file-upload", c.Objects, config.Storage.LowResOutputBucket, commands.ResizedTempPathKey, commands.ResizedFileNameKey))
	out.AddCommand(commands.NewMediaCleanup("cleanup-file-system", commands.OriginalTempPathKey, commands.ResizedTempPathKey))

	return &MediaResizeWorkflow{BaseCommand: *cor.NewBaseCommand("media-resize-workflow"), chain: out}
}
