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

package revision

import (
	"context"

	"github.com/basefold/revisiond/pkg/types"
)

// Record wraps one logical entity and delegates all versioned data
// access to its Storage. Accessors read and mutate the active revision;
// mutations are buffered until Save.
type Record struct {
	id         int64
	collection *Collection
	storage    *Storage
	disposed   bool
}

func (r *Record) ID() int64 {
	return r.id
}

func (r *Record) Type() string {
	return r.collection.typ.Name
}

func (r *Record) Storage() *Storage {
	return r.storage
}

func (r *Record) Label() string {
	if info := r.storage.CurrentInfo(); info != nil {
		return info.Label
	}
	return ""
}

func (r *Record) SetLabel(label string) {
	if info := r.storage.CurrentInfo(); info != nil {
		info.Label = label
		r.storage.MarkRowDirty()
	}
}

func (r *Record) State() string {
	if info := r.storage.CurrentInfo(); info != nil {
		return info.State
	}
	return ""
}

func (r *Record) SetState(state string) {
	if info := r.storage.CurrentInfo(); info != nil {
		info.State = state
		r.storage.MarkRowDirty()
	}
}

func (r *Record) Comments() string {
	if info := r.storage.CurrentInfo(); info != nil {
		return info.Comments
	}
	return ""
}

func (r *Record) SetComments(comments string) {
	if info := r.storage.CurrentInfo(); info != nil {
		info.Comments = comments
		r.storage.MarkRowDirty()
	}
}

// Pretty returns the human-facing counter of the active revision.
func (r *Record) Pretty() int64 {
	if info := r.storage.CurrentInfo(); info != nil {
		return info.Pretty
	}
	return 0
}

// Save commits all buffered changes of the active revision: the row,
// regular keys and data keys.
func (r *Record) Save(ctx context.Context) error {
	if r.disposed {
		return types.ErrDisposed
	}
	return r.storage.Flush(ctx)
}

// IsLockable reports whether this record participates in screen
// locking, per its type descriptor.
func (r *Record) IsLockable() bool {
	return r.collection.typ.Lockable
}

// LockPath is the resource path the lock manager keys this record's
// edit sessions on.
func (r *Record) LockPath() string {
	return "records." + r.collection.typ.Name
}

// LockPrimary returns the record's ID as the lock item primary.
func (r *Record) LockPrimary() interface{} {
	return r.id
}

func (r *Record) dispose() {
	if r.disposed {
		return
	}
	r.storage.Dispose()
	r.disposed = true
}
