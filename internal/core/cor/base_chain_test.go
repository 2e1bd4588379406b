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

package cor_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyCommand counts invocations and optionally fails or writes a marker value.
type spyCommand struct {
	cor.BaseCommand
	executable bool
	err        error
	calls      int
	writes     string
}

func newSpy(name string, executable bool, err error) *spyCommand {
	return &spyCommand{BaseCommand: *cor.NewBaseCommand(name), executable: executable, err: err}
}

func (s *spyCommand) IsExecutable(_ cor.Context) bool {
	return s.executable
}

func (s *spyCommand) Execute(ctx cor.Context) error {
	s.calls++
	if s.writes != "" {
		ctx.Add(s.writes, s.GetName())
	}
	return s.err
}

func TestChainHaltsOnFirstFailure(t *testing.T) {
	first := newSpy("first", true, nil)
	second := newSpy("second", true, errors.New("boom"))
	third := newSpy("third", true, nil)
	third.writes = "side-effect"

	chain := cor.NewBaseChain("halting")
	chain.AddCommand(first).AddCommand(second).AddCommand(third)

	ctx := cor.NewBaseContext()
	assert.NoError(t, chain.Execute(ctx))

	assert.True(t, ctx.HasErrors())
	require.Len(t, ctx.GetErrors(), 1)
	assert.EqualError(t, ctx.GetErrors()["second"], "boom")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 0, third.calls)
	assert.Nil(t, ctx.Get("side-effect"))
}

func TestChainSkipsIneligibleCommands(t *testing.T) {
	gated := newSpy("gated", false, errors.New("must never run"))
	after := newSpy("after", true, nil)
	after.writes = "after-ran"

	chain := cor.NewBaseChain("gating")
	chain.AddCommand(gated).AddCommand(after)

	ctx := cor.NewBaseContext()
	_ = chain.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Empty(t, ctx.GetErrors())
	assert.Equal(t, 0, gated.calls)
	assert.Equal(t, 1, after.calls)
	assert.Equal(t, "after", ctx.Get("after-ran"))
}

func TestChainDoesNotRunWhenContextAlreadyFailed(t *testing.T) {
	only := newSpy("only", true, nil)
	chain := cor.NewBaseChain("pre-failed")
	chain.AddCommand(only)

	ctx := cor.NewBaseContext()
	ctx.AddError("upstream", errors.New("earlier failure"))
	_ = chain.Execute(ctx)

	assert.Equal(t, 0, only.calls)
	assert.Len(t, ctx.GetErrors(), 1)
}

func TestNestedChainRecordsFailureOnce(t *testing.T) {
	failing := newSpy("inner-step", true, errors.New("inner failure"))
	inner := cor.NewBaseChain("inner")
	inner.AddCommand(failing)

	trailing := newSpy("outer-trailing", true, nil)
	outer := cor.NewBaseChain("outer")
	outer.AddCommand(inner).AddCommand(trailing)

	ctx := cor.NewBaseContext()
	_ = outer.Execute(ctx)

	require.Len(t, ctx.GetErrors(), 1)
	assert.Contains(t, ctx.GetErrors(), "inner-step")
	assert.Equal(t, 0, trailing.calls)
}

func TestChainRestoresGoContext(t *testing.T) {
	chain := cor.NewBaseChain("restore")
	chain.AddCommand(newSpy("noop", true, nil))

	ctx := cor.NewBaseContext()
	before := ctx.GetContext()
	_ = chain.Execute(ctx)
	assert.Equal(t, before, ctx.GetContext())
}

func TestChainKeepsCommandOrder(t *testing.T) {
	chain := cor.NewBaseChain("ordered")
	chain.AddCommand(newSpy("a", true, nil)).AddCommand(newSpy("b", true, nil)).AddCommand(newSpy("c", true, nil))

	var names []string
	for _, c := range chain.GetCommands() {
		names = append(names, c.GetName())
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestTypedKeys(t *testing.T) {
	type payload struct{ Value int }
	key := cor.Key[*payload]("payload")
	other := cor.Key[string]("payload")

	ctx := cor.NewBaseContext()
	assert.False(t, key.Present(ctx))

	key.Set(ctx, &payload{Value: 7})
	got, ok := key.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, 7, got.Value)
	assert.Equal(t, "payload", key.Name())

	// same name, different type
	_, ok = other.Get(ctx)
	assert.False(t, ok)

	other.Set(ctx, "overwritten")
	assert.False(t, key.Present(ctx))
	assert.True(t, other.Present(ctx))
}

func TestContextCloseRemovesTrackedFiles(t *testing.T) {
	dir := t.TempDir()
	kept := filepath.Join(dir, "leftover.mp4")
	require.NoError(t, os.WriteFile(kept, []byte("data"), 0o600))
	gone := filepath.Join(dir, "already-removed.mp4")

	ctx := cor.NewBaseContext()
	ctx.AddTempFile(kept)
	ctx.AddTempFile(gone)
	ctx.Close()

	_, err := os.Stat(kept)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Empty(t, ctx.GetTempFiles())
}

func TestContextErrorLastWriteWins(t *testing.T) {
	ctx := cor.NewBaseContext()
	ctx.AddError("step", errors.New("first"))
	ctx.AddError("step", errors.New("second"))
	require.Len(t, ctx.GetErrors(), 1)
	assert.EqualError(t, ctx.GetErrors()["step"], "second")
}
