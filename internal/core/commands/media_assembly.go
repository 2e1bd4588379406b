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
// assembler that turns a parsed summary into the Media record.
//
// Logic Flow:
//  1. Reads the Media created by the trigger reader and the parsed summary.
//  2. Copies the summary's descriptive fields onto the Media.
//  3. Creates one Scene per summary timestamp, numbered from 1 in order.
//  4. Stores the Media back under its key for the scene extractor.
package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// MediaAssembly merges a MediaSummary into the Media created by the trigger
// reader and derives one Scene per summary timestamp, numbered from 1.
type MediaAssembly struct {
	cor.BaseCommand
	mediaKey   cor.Key[*model.Media]
	summaryKey cor.Key[*model.MediaSummary]
}

func NewMediaAssembly(name string, mediaKey cor.Key[*model.Media], summaryKey cor.Key[*model.MediaSummary]) *MediaAssembly {
	return &MediaAssembly{BaseCommand: *cor.NewBaseCommand(name), mediaKey: mediaKey, summaryKey: summaryKey}
}

// IsExecutable requires both the Media and its summary.
func (m *MediaAssembly) IsExecutable(context cor.Context) bool {
	return m.mediaKey.Present(context) && m.summaryKey.Present(context)
}

func (m *MediaAssembly) Execute(context cor.Context) error {
	media, ok := m.mediaKey.Get(context)
	if !ok || media == nil {
		return fmt.Errorf("missing media under %q", m.mediaKey.Name())
	}
	summary, ok := m.summaryKey.Get(context)
	if !ok || summary == nil {
		return fmt.Errorf("missing media summary under %q", m.summaryKey.Name())
	}

	Merge(media, summary)
	m.mediaKey.Set(context, media)
	return nil
}

// Merge copies the summary's fields onto media. The source URL is only
// replaced when the summary carries one. Existing scenes are replaced.
func Merge(media *model.Media, summary *model.MediaSummary) {
	media.Title = summary.Title
	media.Category = summary.Category
	media.Summary = summary.Summary
	media.LengthInSeconds = summary.LengthInSeconds
	media.Director = summary.Director
	media.ReleaseYear = summary.ReleaseYear
	media.Genre = summary.Genre
	media.Rating = summary.Rating
	media.Cast = append(media.Cast[:0], summary.Cast...)
	if summary.MediaUrl != "" {
		media.MediaUrl = summary.MediaUrl
	}

	media.Scenes = make([]*model.Scene, 0, len(summary.SceneTimeStamps))
	for i, ts := range summary.SceneTimeStamps {
		media.Scenes = append(media.Scenes, &model.Scene{
			SequenceNumber: i + 1,
			Start:          ts.Start,
			End:            ts.End,
		})
	}
}
