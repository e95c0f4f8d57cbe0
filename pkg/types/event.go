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

import "time"

// Event is the structured payload published for record and revision
// lifecycle actions.
type Event struct {
	Id         string    `json:"id"`
	Type       string    `json:"type"`
	Source     string    `json:"source"`
	Time       time.Time `json:"time"`
	RecordType string    `json:"record_type"`
	Campaign   string    `json:"campaign"`
	RecordID   int64     `json:"record_id"`
	Revision   int64     `json:"revision,omitempty"`
	ActorID    int64     `json:"actor_id"`
	ActorName  string    `json:"actor_name"`
}
