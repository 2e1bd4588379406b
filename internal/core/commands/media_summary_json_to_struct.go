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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// parser that turns the summarizer's raw JSON into a MediaSummary.
//
// Logic Flow:
//  1. Reads the JSON text from the context.
//  2. Unmarshals it into a model.MediaSummary.
//  3. Validates the result against the summary schema (required fields,
//     HH:MM:SS timestamps) so malformed model output stops the run here
//     instead of producing empty rows downstream.
//  4. Stores the summary for MediaAssembly.
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// MediaSummaryJsonToStruct parses a JSON string into a MediaSummary struct.
type MediaSummaryJsonToStruct struct {
	cor.BaseCommand
	inKey  cor.Key[string]
	outKey cor.Key[*model.MediaSummary]
}

// NewMediaSummaryJsonToStruct is the constructor for the parser.
//
// Inputs:
//   - name: A string name for this command instance.
//   - inKey: The context key holding the JSON text.
//   - outKey: The context key where the resulting struct will be stored.
func NewMediaSummaryJsonToStruct(name string, inKey cor.Key[string], outKey cor.Key[*model.MediaSummary]) *MediaSummaryJsonToStruct {
	return &MediaSummaryJsonToStruct{BaseCommand: *cor.NewBaseCommand(name), inKey: inKey, outKey: outKey}
}

func (s *MediaSummaryJsonToStruct) IsExecutable(context cor.Context) bool {
	return s.inKey.Present(context)
}

func (s *MediaSummaryJsonToStruct) Execute(context cor.Context) error {
	in, ok := s.inKey.Get(context)
	if !ok {
		return fmt.Errorf("missing summary JSON under %q", s.inKey.Name())
	}

	doc := &model.MediaSummary{}
	if err := json.Unmarshal([]byte(in), doc); err != nil {
		return fmt.Errorf("failed to unmarshal media summary JSON: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	s.outKey.Set(context, doc)
	return nil
}
