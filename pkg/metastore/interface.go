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

package metastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/basefold/revisiond/pkg/types"
)

type Meta interface {
	RecordStore
	RevisionStore
	LockStore
}

// PartCopier duplicates auxiliary rows belonging to a revision. It runs
// inside the copy transaction, after the target base row exists, so
// foreign keys on the new revision number are already valid.
type PartCopier func(tx *gorm.DB, sourceRev, targetRev int64) error

// RecordStore owns the record ID space and the current-revision pointer
// index. Every query is scoped by (record type, canonical campaign keys).
type RecordStore interface {
	CreateRecord(ctx context.Context, rev *types.RevisionInfo, keys map[string]string) (int64, error)
	GetRecord(ctx context.Context, rtype, campaign string, id int64) (*types.RecordInfo, error)
	DestroyRecord(ctx context.Context, rtype, campaign string, id int64) error

	GetCurrentRevision(ctx context.Context, rtype, campaign string, id int64) (int64, error)
	SetCurrentRevision(ctx context.Context, rtype, campaign string, id, revision int64) error
	GetRecordIDByRevision(ctx context.Context, rtype, campaign string, revision int64) (int64, error)
}

type RevisionStore interface {
	ListRevisions(ctx context.Context, rtype, campaign string, recordID int64) ([]*types.RevisionInfo, error)
	GetRevision(ctx context.Context, rtype, campaign string, recordID, number int64) (*types.RevisionInfo, error)
	GetLatestRevision(ctx context.Context, rtype, campaign string, recordID int64) (*types.RevisionInfo, error)

	CopyRevision(ctx context.Context, source *types.RevisionInfo, owner types.Actor, comments string, parts ...PartCopier) (int64, error)
	OverwriteRevision(ctx context.Context, source, target *types.RevisionInfo, parts ...PartCopier) error
	UpdateRevision(ctx context.Context, rev *types.RevisionInfo) error
	UpdateRevisionAmendable(ctx context.Context, rtype, campaign string, number int64, owner types.Actor, comments string) error
	DeleteRevision(ctx context.Context, rtype, campaign string, recordID, number int64) error
	ReplaceRevision(ctx context.Context, target *types.RevisionInfo, keys, data map[string]string, source int64) error

	GetRevisionKeys(ctx context.Context, revision int64) (map[string]string, error)
	WriteRevisionKeys(ctx context.Context, revision int64, keys map[string]string) error
	DeleteRevisionKeys(ctx context.Context, revision int64, names []string) error

	GetRevisionData(ctx context.Context, revision int64) (map[string]string, error)
	WriteRevisionData(ctx context.Context, revision int64, data map[string]string) error
	DeleteRevisionData(ctx context.Context, revision int64, names []string) error
}

type LockStore interface {
	GetActiveLock(ctx context.Context, path, itemPrimary string) (*types.Lock, error)
	GetLockByID(ctx context.Context, id int64) (*types.Lock, error)
	SaveLock(ctx context.Context, lock *types.Lock) error
	DeleteLock(ctx context.Context, id int64) error
	ListLocksByOwner(ctx context.Context, ownerID int64) ([]*types.Lock, error)
	DeleteExpiredLocks(ctx context.Context, olderThan time.Time) (int64, error)

	ListUnlockRequests(ctx context.Context, lockID int64) ([]*types.UnlockRequest, error)
	GetUnlockRequest(ctx context.Context, lockID, requesterID int64) (*types.UnlockRequest, error)
	SaveUnlockRequest(ctx context.Context, req *types.UnlockRequest) error
	DeleteUnlockRequests(ctx context.Context, lockID int64) error
}
