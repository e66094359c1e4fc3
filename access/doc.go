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


// Package access implements the role-aware access-control layer that
// sits between a query and the vector store.
//
// The package has two independent sides that meet only through the
// chunk metadata schema:
//
//   - At ingestion time, a Tagger attaches access tags and an optional
//     strict required role to every chunk of a document.
//   - At query time, Resolve derives the user's authorized-tag set from
//     their direct tags and the role mapping, and BuildFilter turns the
//     user context into a core.AccessFilter handed to the store.
//
// A chunk with no tags and no required role is public: it is matched by
// every filter. A query with no role and no tags builds no filter at
// all and runs unfiltered; this bypass is intentional (admin/testing
// mode), not a fallback. Store backends that cannot express a built
// filter must fail the query rather than relax it.
//
// All functions here are pure transformations over immutable inputs;
// there is no shared state and concurrent queries need no locking.
package access
