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

// Package manager is the entry point for searches.
//
// A Manager routes each query to the domain whose centroid is closest to
// the query embedding, unless the request names a domain, and runs that
// domain's agent. When the mean of the top three scores falls below the
// collaboration threshold the domain's neighbors are searched as well,
// concurrently, and their results are merged in tagged with
// "neighbor:<domain id>".
//
// Progress is streamed as started, searching, complete or error events.
package manager
