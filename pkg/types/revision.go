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

// RecordInfo identifies one revisionable record. The ID is unique within
// (record type, campaign keys).
type RecordInfo struct {
	ID       int64
	Type     string
	Campaign string
}

// RevisionInfo is one versioned snapshot's metadata. Number is assigned by
// the durable store and strictly increases per record; Pretty is the
// human-facing 1..n counter within the record. Owner and Comments are the
// only fields amendable after creation.
type RevisionInfo struct {
	Number    int64
	RecordID  int64
	Type      string
	Campaign  string
	Label     string
	State     string
	OwnerID   int64
	OwnerName string
	Pretty    int64
	Comments  string
	CreatedAt time.Time
}
