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

import "errors"

var (
	ErrNotFound         = errors.New("no record")
	ErrRevisionNotFound = errors.New("revision does not exist")
	ErrConflict         = errors.New("operation conflict")
	ErrNoTransaction    = errors.New("no transaction active")
	ErrDisposed         = errors.New("operation on disposed instance")

	// Invariant violations: misuse of the revision API, always fatal.
	ErrCannotSetKeyUnknownRevision = errors.New("cannot set key on unknown revision")
	ErrCannotRemovePriorRevision   = errors.New("only the latest revision can be removed")
	ErrCannotRemoveLastRevision    = errors.New("cannot remove the last remaining revision")
	ErrCannotDeleteRecordDirectly  = errors.New("records must be deleted via destroy")
	ErrCopyConsumed                = errors.New("revision copy already processed")

	// Configuration errors: programmer mistakes, never retried.
	ErrMissingLabel         = errors.New("revision label is required")
	ErrNotLockable          = errors.New("record is not lockable")
	ErrLockPrimaryUnhandled = errors.New("unhandled lock primary type")
)
