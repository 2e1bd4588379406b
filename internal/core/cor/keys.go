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

package cor

// Key names a Context entry and binds it to the Go type stored under it.
// Reads and writes through a Key are checked at compile time while the
// underlying storage stays the plain string-keyed map, so the same name can
// be shared by commands that were configured independently.
//
//	var MediaKey = cor.Key[*model.Media]("media")
//	media, ok := MediaKey.Get(ctx)
type Key[T any] string

// Name returns the string key.
func (k Key[T]) Name() string {
	return string(k)
}

// Get returns the value stored under the key. The boolean is false when the
// key is absent or holds a value of a different type.
func (k Key[T]) Get(c Context) (value T, ok bool) {
	value, ok = c.Get(string(k)).(T)
	return value, ok
}

// Set stores value under the key, overwriting any previous value.
func (k Key[T]) Set(c Context, value T) {
	c.Add(string(k), value)
}

// Present reports whether the key holds a value of type T.
func (k Key[T]) Present(c Context) bool {
	_, ok := k.Get(c)
	return ok
}
