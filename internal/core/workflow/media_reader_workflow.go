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
// media analysis workflows.
//
// Two variants are assembled from the same steps:
//   - Ingestion: a new file arrived. It is downloaded and transcoded before the
//     model analyzes the stored object, and the local copies are removed at
//     the end.
//   - Reader (re-processing): the file is already stored and valid, so the
//     analysis runs directly against the stored object and the record is
//     written again.
package workflow

import (
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
)

// MediaReaderWorkflow orchestrates the analysis of a media file. It is a
// cor.Command, so listeners run it like any other step; its failures land in
// the run's context under the name of the step that failed.
type MediaReaderWorkflow struct {
	cor.BaseCommand
	chain cor.Chain // The underlying chain of commands to be executed.
}

// Execute runs the underlying chain.
func (m *MediaReaderWorkflow) Execute(context cor.Context) error {
	return m.chain.Execute(context)
}

// GetCommands returns the steps in execution order.
func (m *MediaReaderWorkflow) GetCommands() []cor.Command {
	return m.chain.GetCommands()
}

// NewMediaIngestionWorkflow assembles the full ingestion pipeline:
// trigger, download, transcode, summarize, parse, assemble, scene scripts,
// persist and cleanup of the two local files.
//
// Inputs:
//   - config: The application's overall configuration.
//   - c: The external collaborators.
//
// Returns:
//   - The workflow, or an error when a prompt template does not parse.
func NewMediaIngestionWorkflow(config *cloud.Config, c Collaborators) (*MediaReaderWorkflow, error) {
	return newMediaReaderWorkflow("media-ingestion-pipeline", config, c, true)
}

// NewMediaReaderWorkflow assembles the re-processing pipeline: trigger,
// summarize, parse, assemble and persist.
func NewMediaReaderWorkflow(config *cloud.Config, c Collaborators) (*MediaReaderWorkflow, error) {
	return newMediaReaderWorkflow("media-reader-pipeline", config, c, false)
}

func newMediaReaderWorkflow(name string, config *cloud.Config, c Collaborators, ingest bool) (*MediaReaderWorkflow, error) {
	summaryTemplate, err := parseTemplate("summary-template", config.PromptTemplates.SummaryPrompt)
	if err != nil {
		return nil, err
	}
	sceneTemplate, err := parseTemplate("scene-template", config.PromptTemplates.ScenePrompt)
	if err != nil {
		return nil, err
	}

	out := cor.NewBaseChain(name)
	out.AddCommand(commands.NewMediaTriggerReader("media-trigger-reader", config.Storage.ObjectURLScheme, commands.TriggerMessageKey, commands.MediaKey))

	if ingest {
		out.AddCommand(commands.NewGCSToTempFile("gcs-to-temp-file", c.Objects, config.Pipeline.TempFilePrefix, commands.MediaKey, commands.TempFilePathKey))
		out.AddCommand(commands.NewFFMpegCommand("media-transcode", config.Pipeline.FFMpegCommand, "", commands.TempFilePathKey, commands.TranscodedFilePathKey))
	}

	out.AddCommand(commands.NewMediaSummaryCreator("generate-media-summary", config, c.Agent, summaryTemplate, commands.MediaKey, commands.SummaryJsonKey))
	out.AddCommand(commands.NewMediaSummaryJsonToStruct("convert-media-summary", commands.SummaryJsonKey, commands.MediaSummaryKey))
	out.AddCommand(commands.NewMediaAssembly("assemble-media", commands.MediaKey, commands.MediaSummaryKey))

	if ingest {
		out.AddCommand(commands.NewSceneExtractor("extract-media-scenes", c.Agent, sceneTemplate, config.Application.ThreadPoolSize, commands.MediaKey))
	}

	persist := commands.NewMediaPersistToBigQuery(
		"write-to-bigquery",
		c.Tables,
		config.BigQueryDataSource.DatasetName,
		config.BigQueryDataSource.MediaTable,
		commands.MediaKey)
	if !ingest {
		persist.WithRunInsertID()
	}
	out.AddCommand(persist)

	if ingest {
		out.AddCommand(commands.NewMediaCleanup("cleanup-file-system", commands.TempFilePathKey, commands.TranscodedFilePathKey))
	}

	return &MediaReaderWorkflow{BaseCommand: *cor.NewBaseCommand(name), chain: out}, nil
}
