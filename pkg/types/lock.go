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

// Lock is the durable advisory mutual-exclusion row over one
// (path, item primary) pair. At most one active lock exists per pair;
// expired rows are treated as absent and purged lazily.
type Lock struct {
	ID            int64
	Path          string
	ItemPrimary   string
	OwnerID       int64
	OwnerName     string
	LockedAt      time.Time
	LockedUntil   time.Time
	LastActivity  time.Time
	Released      bool
	ForcedRelease bool
	Properties    map[string]string
}

// Active reports whether the lock still excludes other users at now.
// A released lock stays active through its grace window: the released
// flag never shortens LockedUntil, it only documents the state.
func (l *Lock) Active(now time.Time) bool {
	return now.Before(l.LockedUntil)
}

type UnlockRequest struct {
	ID            int64
	LockID        int64
	RequesterID   int64
	RequesterName string
	Message       string
	RequestedAt   time.Time
}

// LockStatus is the protocol-facing view of one lock lookup.
type LockStatus struct {
	Locked         bool
	LockID         int64
	OwnerID        int64
	OwnerName      string
	LockedUntil    time.Time
	Released       bool
	ForcedRelease  bool
	UnlockRequests []UnlockRequest
}
