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

// Package search runs the layered search of a single domain.
//
// An Agent owns one domain and answers queries over its member nodes in
// five stages:
//   - exact: citation (제17조, 제17조의2 제1항) or literal match on path and title
//   - vector: nearest members in the node embedding index
//   - relationship: members at either end of the nearest containment edges
//     in the relationship embedding index, whatever the edge's content type
//   - graph_expansion: RNE and INE grown from the strong vector and
//     relationship hits
//   - rerank: candidates keep their best score and every stage that found
//     them, ordered by score then node id
//
// Vector and relationship run concurrently. A failing relationship or
// expansion stage is skipped and recorded in Stats; a failing member read or
// vector search fails the search. Canceling between stages returns what has
// been merged so far with Stats.Partial set.
//
// Progress is reported through a Sink as searching events.
package search
