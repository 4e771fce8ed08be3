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

// Package cluster partitions leaf node embeddings into domains.
//
// The Clusterer tries every cluster count k from MinK up to
// min(MaxK, n/PointsPerCluster), runs the configured Algorithm for each on a
// worker pool, and keeps the k with the best Scorer result. Ties go to the
// smaller k. The default evaluator is k-means++ with a mean silhouette score
// under cosine distance.
//
// Domain centroids are the exact mean of member vectors, not the final
// k-means centers, so they match what a later recomputation would produce.
//
//	clusterer, err := cluster.NewClusterer()
//	domains, err := clusterer.Cluster(ctx, vectors)
//	cluster.LinkNeighbors(domains, 3)
package cluster
