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
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/basefold/revisiond/config"
	"github.com/basefold/revisiond/pkg/metastore/db"
	"github.com/basefold/revisiond/pkg/types"
)

// sqliteMetaStore serializes all access with a single mutex. SQLite only
// supports one writer at a time, and the shared in-memory database used
// in tests is not safe for concurrent use through one connection.
type sqliteMetaStore struct {
	dbStore *sqlMetaStore
	mux     sync.Mutex
}

var _ Meta = &sqliteMetaStore{}

func newSqliteMetaStore(meta config.Meta) (*sqliteMetaStore, error) {
	dbObj, err := gorm.Open(sqlite.Open(meta.Path), &gorm.Config{Logger: db.NewDbLogger()})
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite failed")
	}
	dbConn, err := dbObj.DB()
	if err != nil {
		return nil, err
	}
	dbConn.SetMaxIdleConns(1)
	dbConn.SetMaxOpenConns(1)
	dbConn.SetConnMaxLifetime(time.Hour)

	dbStore, err := buildSqlMetaStore(dbObj)
	if err != nil {
		return nil, err
	}
	return &sqliteMetaStore{dbStore: dbStore}, nil
}

func (s *sqliteMetaStore) CreateRecord(ctx context.Context, rev *types.RevisionInfo, keys map[string]string) (int64, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.CreateRecord(ctx, rev, keys)
}

func (s *sqliteMetaStore) GetRecord(ctx context.Context, rtype, campaign string, id int64) (*types.RecordInfo, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.GetRecord(ctx, rtype, campaign, id)
}

func (s *sqliteMetaStore) DestroyRecord(ctx context.Context, rtype, campaign string, id int64) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.DestroyRecord(ctx, rtype, campaign, id)
}

func (s *sqliteMetaStore) GetCurrentRevision(ctx context.Context, rtype, campaign string, id int64) (int64, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.GetCurrentRevision(ctx, rtype, campaign, id)
}

func (s *sqliteMetaStore) SetCurrentRevision(ctx context.Context, rtype, campaign string, id, revision int64) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.SetCurrentRevision(ctx, rtype, campaign, id, revision)
}

func (s *sqliteMetaStore) GetRecordIDByRevision(ctx context.Context, rtype, campaign string, revision int64) (int64, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.GetRecordIDByRevision(ctx, rtype, campaign, revision)
}

func (s *sqliteMetaStore) ListRevisions(ctx context.Context, rtype, campaign string, recordID int64) ([]*types.RevisionInfo, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.ListRevisions(ctx, rtype, campaign, recordID)
}

func (s *sqliteMetaStore) GetRevision(ctx context.Context, rtype, campaign string, recordID, number int64) (*types.RevisionInfo, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.GetRevision(ctx, rtype, campaign, recordID, number)
}

func (s *sqliteMetaStore) GetLatestRevision(ctx context.Context, rtype, campaign string, recordID int64) (*types.RevisionInfo, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.GetLatestRevision(ctx, rtype, campaign, recordID)
}

func (s *sqliteMetaStore) CopyRevision(ctx context.Context, source *types.RevisionInfo, owner types.Actor, comments string, parts ...PartCopier) (int64, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.CopyRevision(ctx, source, owner, comments, parts...)
}

func (s *sqliteMetaStore) OverwriteRevision(ctx context.Context, source, target *types.RevisionInfo, parts ...PartCopier) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.OverwriteRevision(ctx, source, target, parts...)
}

func (s *sqliteMetaStore) UpdateRevision(ctx context.Context, rev *types.RevisionInfo) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.UpdateRevision(ctx, rev)
}

func (s *sqliteMetaStore) UpdateRevisionAmendable(ctx context.Context, rtype, campaign string, number int64, owner types.Actor, comments string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.UpdateRevisionAmendable(ctx, rtype, campaign, number, owner, comments)
}

func (s *sqliteMetaStore) DeleteRevision(ctx context.Context, rtype, campaign string, recordID, number int64) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.DeleteRevision(ctx, rtype, campaign, recordID, number)
}

func (s *sqliteMetaStore) ReplaceRevision(ctx context.Context, target *types.RevisionInfo, keys, data map[string]string, source int64) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.ReplaceRevision(ctx, target, keys, data, source)
}

func (s *sqliteMetaStore) GetRevisionKeys(ctx context.Context, revision int64) (map[string]string, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.GetRevisionKeys(ctx, revision)
}

func (s *sqliteMetaStore) WriteRevisionKeys(ctx context.Context, revision int64, keys map[string]string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.WriteRevisionKeys(ctx, revision, keys)
}

func (s *sqliteMetaStore) DeleteRevisionKeys(ctx context.Context, revision int64, names []string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.DeleteRevisionKeys(ctx, revision, names)
}

func (s *sqliteMetaStore) GetRevisionData(ctx context.Context, revision int64) (map[string]string, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.GetRevisionData(ctx, revision)
}

func (s *sqliteMetaStore) WriteRevisionData(ctx context.Context, revision int64, data map[string]string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.WriteRevisionData(ctx, revision, data)
}

func (s *sqliteMetaStore) DeleteRevisionData(ctx context.Context, revision int64, names []string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.DeleteRevisionData(ctx, revision, names)
}

func (s *sqliteMetaStore) GetActiveLock(ctx context.Context, path, itemPrimary string) (*types.Lock, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.GetActiveLock(ctx, path, itemPrimary)
}

func (s *sqliteMetaStore) GetLockByID(ctx context.Context, id int64) (*types.Lock, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.GetLockByID(ctx, id)
}

func (s *sqliteMetaStore) SaveLock(ctx context.Context, lock *types.Lock) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.SaveLock(ctx, lock)
}

func (s *sqliteMetaStore) DeleteLock(ctx context.Context, id int64) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.DeleteLock(ctx, id)
}

func (s *sqliteMetaStore) ListLocksByOwner(ctx context.Context, ownerID int64) ([]*types.Lock, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.ListLocksByOwner(ctx, ownerID)
}

func (s *sqliteMetaStore) DeleteExpiredLocks(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.DeleteExpiredLocks(ctx, olderThan)
}

func (s *sqliteMetaStore) ListUnlockRequests(ctx context.Context, lockID int64) ([]*types.UnlockRequest, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.ListUnlockRequests(ctx, lockID)
}

func (s *sqliteMetaStore) GetUnlockRequest(ctx context.Context, lockID, requesterID int64) (*types.UnlockRequest, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.GetUnlockRequest(ctx, lockID, requesterID)
}

func (s *sqliteMetaStore) SaveUnlockRequest(ctx context.Context, req *types.UnlockRequest) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.SaveUnlockRequest(ctx, req)
}

func (s *sqliteMetaStore) DeleteUnlockRequests(ctx context.Context, lockID int64) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.DeleteUnlockRequests(ctx, lockID)
}
