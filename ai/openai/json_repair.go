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

package openai

import "regexp"

var (
	// `{name":` -> `{"name":`
	halfQuotedKey = regexp.MustCompile(`([{,]\s*)([A-Za-z_]+)":`)
	// `{name:` -> `{"name":`
	bareKey = regexp.MustCompile(`([{,]\s*)([A-Za-z_]+)\s*:`)
)

// repairJSON quotes object keys that small models tend to emit without
// their opening quote or without quotes at all. Label responses are flat
// objects, so keys are only looked for right after '{' or ','.
func repairJSON(s string) string {
	s = halfQuotedKey.ReplaceAllString(s, `$1"$2":`)
	return bareKey.ReplaceAllString(s, `$1"$2":`)
}
