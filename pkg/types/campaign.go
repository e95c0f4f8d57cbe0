/*
 Copyright 2025 Revisiond Authors.

 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package types

import (
	"sort"
	"strings"
)

// CampaignKeys partitions otherwise-identical record ID spaces. The zero
// value is the single global namespace. Keys are persisted in canonical
// form and compared as an opaque value, never interpreted.
type CampaignKeys map[string]string

// Canonical returns a deterministic encoding of the key set: entries
// sorted by column name, joined as "k=v" with "&". Empty set encodes to "".
func (c CampaignKeys) Canonical() string {
	if len(c) == 0 {
		return ""
	}
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + c[name]
	}
	return strings.Join(parts, "&")
}

func (c CampaignKeys) IsGlobal() bool {
	return len(c) == 0
}
