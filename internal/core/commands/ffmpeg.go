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
// transcoder, a wrapper around the external `ffmpeg` tool.
//
// Two modes are supported:
//   - Transcode: re-encodes the input as H.264/AAC MP4 (ingestion workflow).
//   - Resize: scales the input to a target width, keeping the aspect ratio
//     and an even height (resize workflow).
//
// The output goes to a new run-unique temp file whose path is stored in the
// context. The input type is sniffed first so files that are clearly not
// audio or video fail fast instead of inside ffmpeg.
package commands

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
)

const (
	TempFilePrefix  = "ffmpeg-output-"
	maxStderrInErr  = 2048
	outputExtension = ".mp4"
)

// FFMpegCommand runs ffmpeg on the file under inKey and stores the output
// path under outKey.
type FFMpegCommand struct {
	cor.BaseCommand
	commandPath string // The path to the FFmpeg executable (e.g., "/usr/bin/ffmpeg").
	targetWidth string // Output width in pixels; empty means transcode without scaling.
	inKey       cor.Key[string]
	outKey      cor.Key[string]
}

// NewFFMpegCommand creates a transcoder. An empty targetWidth transcodes, any
// other value resizes to that width.
func NewFFMpegCommand(name string, commandPath string, targetWidth string, inKey cor.Key[string], outKey cor.Key[string]) *FFMpegCommand {
	return &FFMpegCommand{
		BaseCommand: *cor.NewBaseCommand(name),
		commandPath: commandPath,
		targetWidth: targetWidth,
		inKey:       inKey,
		outKey:      outKey,
	}
}

// Args returns the ffmpeg arguments for in and out.
func (c *FFMpegCommand) Args(in string, out string) []string {
	if c.targetWidth != "" {
		return []string{
			"-analyzeduration", "0", "-probesize", "5000000", "-y", "-hide_banner",
			"-i", in,
			"-filter:v", fmt.Sprintf("scale=w=%s:h=trunc(ow/a/2)*2", c.targetWidth),
			"-f", "mp4", out,
		}
	}
	return []string{
		"-y", "-hide_banner",
		"-i", in,
		"-vcodec", "libx264", "-acodec", "aac", "-strict", "-2",
		out,
	}
}

// IsExecutable requires an input path. An empty path is a failure of
// Execute, not a skip.
func (c *FFMpegCommand) IsExecutable(context cor.Context) bool {
	return c.inKey.Present(context)
}

func (c *FFMpegCommand) Execute(context cor.Context) error {
	in, ok := c.inKey.Get(context)
	if !ok || in == "" {
		return fmt.Errorf("missing input file under %q", c.inKey.Name())
	}
	if _, err := os.Stat(in); err != nil {
		return fmt.Errorf("input file %s: %w", in, err)
	}
	if kind, err := filetype.MatchFile(in); err == nil && kind != filetype.Unknown &&
		kind.MIME.Type != "video" && kind.MIME.Type != "audio" {
		return fmt.Errorf("input file %s is %s, not audio or video", in, kind.MIME.Value)
	}

	path, err := exec.LookPath(c.commandPath)
	if err != nil {
		return fmt.Errorf("ffmpeg not available at %q: %w", c.commandPath, err)
	}

	tempFile, err := os.CreateTemp("", TempFilePrefix+"*"+outputExtension)
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}
	_ = tempFile.Close()
	context.AddTempFile(tempFile.Name())

	var stderr bytes.Buffer
	cmd := exec.CommandContext(context.GetContext(), path, c.Args(in, tempFile.Name())...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("ffmpeg exited with code %d: %s", exitErr.ExitCode(), tail(stderr.String(), maxStderrInErr))
		}
		return fmt.Errorf("error running ffmpeg: %w", err)
	}

	slog.InfoContext(context.GetContext(), "transcoded file", "input", in, "output", tempFile.Name(), "width", c.targetWidth)
	c.outKey.Set(context, tempFile.Name())
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
