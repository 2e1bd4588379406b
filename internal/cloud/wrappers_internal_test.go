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

package cloud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestWithRetryRecoversFromTransientFailure(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), newLimiter(rate.Inf, 0), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("unavailable")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	cause := errors.New("quota exceeded")
	calls := 0
	err := withRetry(context.Background(), newLimiter(rate.Inf, 0), 2, time.Millisecond, func() error {
		calls++
		return cause
	})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, newLimiter(rate.Inf, 0), 5, time.Hour, func() error {
		calls++
		cancel()
		return errors.New("unavailable")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryBackoff(t *testing.T) {
	b := retryBackoff(time.Second)
	assert.Equal(t, time.Second, b.Initial)
	assert.Equal(t, 16*time.Second, b.Max)
	assert.Equal(t, 2.0, b.Multiplier)

	for i := 0; i < 10; i++ {
		assert.LessOrEqual(t, b.Pause(), 16*time.Second)
	}
	assert.Equal(t, DefaultRetryDelay, retryBackoff(0).Initial)
}

func TestNewLimiter(t *testing.T) {
	assert.Equal(t, rate.Inf, newLimiter(0, 0).Limit())
	l := newLimiter(rate.Limit(5), 0)
	assert.Equal(t, 1, l.Burst())
}
