// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package storage provides the vector-store abstraction layer for ragfence.
//
// This package defines the ChunkRepository interface that decouples the
// ingestion pipeline and query engine from the storage implementation.
// Three backends implement it:
//
//   - storage/badger: embedded local store, filter evaluated in-process
//   - storage/qdrant: remote Qdrant collection over its REST API, filter
//     translated to Qdrant's native filter language
//   - storage/sqlite: SQLite file, filter translated to a WHERE clause
//
// # Access filtering
//
// Search accepts an optional *core.AccessFilter. A nil filter means the
// search runs unfiltered. A non-nil filter that a backend cannot express
// in its native filter form fails with ErrUnsupportedFilter; backends
// must never silently fall back to an unfiltered search.
//
// # Constructor Return Type Pattern
//
// Public constructors return the storage.ChunkRepository interface to
// enforce abstraction and keep backends swappable. Internal constructors
// may return concrete types within their implementation package.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
