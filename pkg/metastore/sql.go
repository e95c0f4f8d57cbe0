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

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/basefold/revisiond/config"
	"github.com/basefold/revisiond/pkg/metastore/db"
	"github.com/basefold/revisiond/pkg/types"
	"github.com/basefold/revisiond/utils/logger"
)

type sqlMetaStore struct {
	*gorm.DB
	logger *zap.SugaredLogger
}

var _ Meta = &sqlMetaStore{}

func buildSqlMetaStore(dbObj *gorm.DB) (*sqlMetaStore, error) {
	if err := db.Migrate(dbObj); err != nil {
		return nil, err
	}
	s := &sqlMetaStore{DB: dbObj, logger: logger.NewLogger("metastore")}
	if err := s.ensureSystemInfo(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func newPostgresMetaStore(meta config.Meta) (*sqlMetaStore, error) {
	dbObj, err := gorm.Open(postgres.Open(meta.DSN), &gorm.Config{Logger: db.NewDbLogger()})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres failed")
	}
	dbConn, err := dbObj.DB()
	if err != nil {
		return nil, err
	}
	dbConn.SetMaxIdleConns(5)
	dbConn.SetMaxOpenConns(50)
	dbConn.SetConnMaxLifetime(time.Hour)
	if err = dbConn.Ping(); err != nil {
		return nil, err
	}
	return buildSqlMetaStore(dbObj)
}

func (s *sqlMetaStore) ensureSystemInfo(ctx context.Context) error {
	info := &db.SystemInfo{}
	res := s.WithContext(ctx).First(info)
	if res.Error == gorm.ErrRecordNotFound {
		info.StoreID = uuid.New().String()
		info.RecordSeq = 0
		res = s.WithContext(ctx).Create(info)
		if res.Error != nil {
			return res.Error
		}
		s.logger.Infow("init store", "storeID", info.StoreID)
		return nil
	}
	return res.Error
}

// nextRecordID allocates the next record ID from the system counter row,
// locked FOR UPDATE for the duration of the caller's transaction.
func nextRecordID(tx *gorm.DB) (int64, error) {
	if err := db.RequireTx(tx); err != nil {
		return 0, err
	}
	info := &db.SystemInfo{}
	res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(info)
	if res.Error != nil {
		return 0, db.SqlError2Error(res.Error)
	}
	info.RecordSeq += 1
	res = tx.Save(info)
	if res.Error != nil {
		return 0, db.SqlError2Error(res.Error)
	}
	return info.RecordSeq, nil
}

func (s *sqlMetaStore) CreateRecord(ctx context.Context, rev *types.RevisionInfo, keys map[string]string) (int64, error) {
	defer logOperationLatency("create_record", time.Now())
	var recordID int64
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := nextRecordID(tx)
		if err != nil {
			return err
		}
		nowAt := time.Now()
		if err = tx.Create(&db.Record{ID: id, RType: rev.Type, Campaign: rev.Campaign, CreatedAt: nowAt.UnixNano()}).Error; err != nil {
			return err
		}

		rev.RecordID = id
		rev.Pretty = 1
		if rev.CreatedAt.IsZero() {
			rev.CreatedAt = nowAt
		}
		revMod := &db.Revision{}
		revMod.Update(rev)
		revMod.Number = 0
		if err = tx.Create(revMod).Error; err != nil {
			return err
		}
		rev.Number = revMod.Number

		if err = writeRevisionKeys(tx, revMod.Number, keys); err != nil {
			return err
		}

		cur := &db.CurrentRevision{RType: rev.Type, Campaign: rev.Campaign, RecordID: id, Revision: revMod.Number}
		if err = tx.Create(cur).Error; err != nil {
			return err
		}
		recordID = id
		return nil
	})
	if err != nil {
		logOperationError("create_record", err)
		return 0, db.SqlError2Error(err)
	}
	return recordID, nil
}

func (s *sqlMetaStore) GetRecord(ctx context.Context, rtype, campaign string, id int64) (*types.RecordInfo, error) {
	defer logOperationLatency("get_record", time.Now())
	rec := &db.Record{}
	res := db.Scoped(s.WithContext(ctx), rtype, campaign).First(rec, "id = ?", id)
	if res.Error != nil {
		logOperationError("get_record", res.Error)
		return nil, db.SqlError2Error(res.Error)
	}
	return &types.RecordInfo{ID: rec.ID, Type: rec.RType, Campaign: rec.Campaign}, nil
}

func (s *sqlMetaStore) DestroyRecord(ctx context.Context, rtype, campaign string, id int64) error {
	defer logOperationLatency("destroy_record", time.Now())
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := &db.Record{}
		res := db.Scoped(tx, rtype, campaign).First(rec, "id = ?", id)
		if res.Error != nil {
			return db.SqlError2Error(res.Error)
		}

		var numbers []int64
		res = db.Scoped(tx.Model(&db.Revision{}), rtype, campaign).Where("record_id = ?", id).Pluck("number", &numbers)
		if res.Error != nil {
			return res.Error
		}
		if len(numbers) > 0 {
			if err := tx.Where("revision IN ?", numbers).Delete(&db.RevisionKey{}).Error; err != nil {
				return err
			}
			if err := tx.Where("revision IN ?", numbers).Delete(&db.RevisionData{}).Error; err != nil {
				return err
			}
		}
		if err := db.Scoped(tx, rtype, campaign).Where("record_id = ?", id).Delete(&db.Revision{}).Error; err != nil {
			return err
		}
		if err := db.Scoped(tx, rtype, campaign).Where("record_id = ?", id).Delete(&db.CurrentRevision{}).Error; err != nil {
			return err
		}
		return tx.Delete(rec).Error
	})
	if err != nil {
		logOperationError("destroy_record", err)
		return db.SqlError2Error(err)
	}
	return nil
}

func (s *sqlMetaStore) GetCurrentRevision(ctx context.Context, rtype, campaign string, id int64) (int64, error) {
	defer logOperationLatency("get_current_revision", time.Now())
	cur := &db.CurrentRevision{}
	res := db.Scoped(s.WithContext(ctx), rtype, campaign).First(cur, "record_id = ?", id)
	if res.Error != nil {
		logOperationError("get_current_revision", res.Error)
		return 0, db.SqlError2Error(res.Error)
	}
	return cur.Revision, nil
}

func (s *sqlMetaStore) SetCurrentRevision(ctx context.Context, rtype, campaign string, id, revision int64) error {
	defer logOperationLatency("set_current_revision", time.Now())
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rev := &db.Revision{}
		res := db.Scoped(tx, rtype, campaign).Where("record_id = ?", id).First(rev, "number = ?", revision)
		if res.Error != nil {
			return db.SqlError2Error(res.Error)
		}

		cur := &db.CurrentRevision{}
		res = db.Scoped(tx, rtype, campaign).First(cur, "record_id = ?", id)
		if res.Error != nil {
			if res.Error != gorm.ErrRecordNotFound {
				return res.Error
			}
			cur = &db.CurrentRevision{RType: rtype, Campaign: campaign, RecordID: id, Revision: revision}
			return tx.Create(cur).Error
		}
		cur.Revision = revision
		return tx.Save(cur).Error
	})
	if err != nil {
		logOperationError("set_current_revision", err)
		return db.SqlError2Error(err)
	}
	return nil
}

func (s *sqlMetaStore) GetRecordIDByRevision(ctx context.Context, rtype, campaign string, revision int64) (int64, error) {
	defer logOperationLatency("get_record_id_by_revision", time.Now())
	rev := &db.Revision{}
	res := db.Scoped(s.WithContext(ctx), rtype, campaign).First(rev, "number = ?", revision)
	if res.Error != nil {
		logOperationError("get_record_id_by_revision", res.Error)
		return 0, db.SqlError2Error(res.Error)
	}
	return rev.RecordID, nil
}

func (s *sqlMetaStore) ListRevisions(ctx context.Context, rtype, campaign string, recordID int64) ([]*types.RevisionInfo, error) {
	defer logOperationLatency("list_revisions", time.Now())
	var revs []db.Revision
	res := db.Scoped(s.WithContext(ctx), rtype, campaign).Where("record_id = ?", recordID).Order("number").Find(&revs)
	if res.Error != nil {
		logOperationError("list_revisions", res.Error)
		return nil, db.SqlError2Error(res.Error)
	}
	result := make([]*types.RevisionInfo, len(revs))
	for i := range revs {
		result[i] = revs[i].ToInfo()
	}
	return result, nil
}

func (s *sqlMetaStore) GetRevision(ctx context.Context, rtype, campaign string, recordID, number int64) (*types.RevisionInfo, error) {
	defer logOperationLatency("get_revision", time.Now())
	rev := &db.Revision{}
	res := db.Scoped(s.WithContext(ctx), rtype, campaign).Where("record_id = ?", recordID).First(rev, "number = ?", number)
	if res.Error != nil {
		logOperationError("get_revision", res.Error)
		return nil, db.SqlError2Error(res.Error)
	}
	return rev.ToInfo(), nil
}

func (s *sqlMetaStore) GetLatestRevision(ctx context.Context, rtype, campaign string, recordID int64) (*types.RevisionInfo, error) {
	defer logOperationLatency("get_latest_revision", time.Now())
	rev := &db.Revision{}
	res := db.Scoped(s.WithContext(ctx), rtype, campaign).Where("record_id = ?", recordID).Order("number DESC").First(rev)
	if res.Error != nil {
		logOperationError("get_latest_revision", res.Error)
		return nil, db.SqlError2Error(res.Error)
	}
	return rev.ToInfo(), nil
}

func (s *sqlMetaStore) CopyRevision(ctx context.Context, source *types.RevisionInfo, owner types.Actor, comments string, parts ...PartCopier) (int64, error) {
	defer logOperationLatency("copy_revision", time.Now())
	var newNumber int64
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src := &db.Revision{}
		res := db.Scoped(tx, source.Type, source.Campaign).First(src, "number = ?", source.Number)
		if res.Error != nil {
			return db.SqlError2Error(res.Error)
		}

		var maxPretty int64
		res = db.Scoped(tx.Model(&db.Revision{}), src.RType, src.Campaign).
			Where("record_id = ?", src.RecordID).
			Select("COALESCE(MAX(pretty), 0)").Scan(&maxPretty)
		if res.Error != nil {
			return res.Error
		}

		// Base row first: part copiers reference the new number.
		target := &db.Revision{
			RecordID:  src.RecordID,
			RType:     src.RType,
			Campaign:  src.Campaign,
			Label:     src.Label,
			State:     src.State,
			OwnerID:   owner.ID,
			OwnerName: owner.Name,
			Pretty:    maxPretty + 1,
			Comments:  comments,
			CreatedAt: time.Now().UnixNano(),
		}
		if err := tx.Create(target).Error; err != nil {
			return err
		}

		if err := copyKeyRows(tx, src.Number, target.Number); err != nil {
			return err
		}
		if err := copyDataRows(tx, src.Number, target.Number); err != nil {
			return err
		}
		for _, part := range parts {
			if err := part(tx, src.Number, target.Number); err != nil {
				return err
			}
		}
		newNumber = target.Number
		return nil
	})
	if err != nil {
		logOperationError("copy_revision", err)
		return 0, db.SqlError2Error(err)
	}
	return newNumber, nil
}

func (s *sqlMetaStore) OverwriteRevision(ctx context.Context, source, target *types.RevisionInfo, parts ...PartCopier) error {
	defer logOperationLatency("overwrite_revision", time.Now())
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src := &db.Revision{}
		res := db.Scoped(tx, source.Type, source.Campaign).First(src, "number = ?", source.Number)
		if res.Error != nil {
			return db.SqlError2Error(res.Error)
		}
		dst := &db.Revision{}
		res = db.Scoped(tx, target.Type, target.Campaign).First(dst, "number = ?", target.Number)
		if res.Error != nil {
			return db.SqlError2Error(res.Error)
		}

		dst.Label = src.Label
		dst.State = src.State
		dst.Comments = src.Comments
		if err := tx.Save(dst).Error; err != nil {
			return err
		}

		if err := tx.Where("revision = ?", dst.Number).Delete(&db.RevisionKey{}).Error; err != nil {
			return err
		}
		if err := tx.Where("revision = ?", dst.Number).Delete(&db.RevisionData{}).Error; err != nil {
			return err
		}
		if err := copyKeyRows(tx, src.Number, dst.Number); err != nil {
			return err
		}
		if err := copyDataRows(tx, src.Number, dst.Number); err != nil {
			return err
		}
		for _, part := range parts {
			if err := part(tx, src.Number, dst.Number); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logOperationError("overwrite_revision", err)
		return db.SqlError2Error(err)
	}
	return nil
}

func (s *sqlMetaStore) UpdateRevision(ctx context.Context, rev *types.RevisionInfo) error {
	defer logOperationLatency("update_revision", time.Now())
	mod := &db.Revision{}
	res := db.Scoped(s.WithContext(ctx), rev.Type, rev.Campaign).First(mod, "number = ?", rev.Number)
	if res.Error != nil {
		logOperationError("update_revision", res.Error)
		return db.SqlError2Error(res.Error)
	}
	mod.Label = rev.Label
	mod.State = rev.State
	mod.OwnerID = rev.OwnerID
	mod.OwnerName = rev.OwnerName
	mod.Comments = rev.Comments
	res = s.WithContext(ctx).Save(mod)
	if res.Error != nil {
		logOperationError("update_revision", res.Error)
		return db.SqlError2Error(res.Error)
	}
	return nil
}

func (s *sqlMetaStore) UpdateRevisionAmendable(ctx context.Context, rtype, campaign string, number int64, owner types.Actor, comments string) error {
	defer logOperationLatency("update_revision_amendable", time.Now())
	res := db.Scoped(s.WithContext(ctx).Model(&db.Revision{}), rtype, campaign).
		Where("number = ?", number).
		Updates(map[string]interface{}{
			"owner_id":   owner.ID,
			"owner_name": owner.Name,
			"comments":   comments,
		})
	if res.Error != nil {
		logOperationError("update_revision_amendable", res.Error)
		return db.SqlError2Error(res.Error)
	}
	if res.RowsAffected == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (s *sqlMetaStore) DeleteRevision(ctx context.Context, rtype, campaign string, recordID, number int64) error {
	defer logOperationLatency("delete_revision", time.Now())
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := db.Scoped(tx, rtype, campaign).Where("record_id = ? AND number = ?", recordID, number).Delete(&db.Revision{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ErrNotFound
		}
		if err := tx.Where("revision = ?", number).Delete(&db.RevisionKey{}).Error; err != nil {
			return err
		}
		if err := tx.Where("revision = ?", number).Delete(&db.RevisionData{}).Error; err != nil {
			return err
		}
		return repointCurrentRevision(tx, rtype, campaign, recordID, number, 0)
	})
	if err != nil {
		logOperationError("delete_revision", err)
		return db.SqlError2Error(err)
	}
	return nil
}

func (s *sqlMetaStore) ReplaceRevision(ctx context.Context, target *types.RevisionInfo, keys, data map[string]string, source int64) error {
	defer logOperationLatency("replace_revision", time.Now())
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mod := &db.Revision{}
		res := db.Scoped(tx, target.Type, target.Campaign).First(mod, "number = ?", target.Number)
		if res.Error != nil {
			return db.SqlError2Error(res.Error)
		}
		mod.Label = target.Label
		mod.State = target.State
		mod.OwnerID = target.OwnerID
		mod.OwnerName = target.OwnerName
		mod.Comments = target.Comments
		if err := tx.Save(mod).Error; err != nil {
			return err
		}

		if err := tx.Where("revision = ?", target.Number).Delete(&db.RevisionKey{}).Error; err != nil {
			return err
		}
		if err := writeRevisionKeys(tx, target.Number, keys); err != nil {
			return err
		}
		if data != nil {
			if err := tx.Where("revision = ?", target.Number).Delete(&db.RevisionData{}).Error; err != nil {
				return err
			}
			if err := writeRevisionData(tx, target.Number, data); err != nil {
				return err
			}
		}

		res = db.Scoped(tx, target.Type, target.Campaign).Where("number = ?", source).Delete(&db.Revision{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ErrNotFound
		}
		if err := tx.Where("revision = ?", source).Delete(&db.RevisionKey{}).Error; err != nil {
			return err
		}
		if err := tx.Where("revision = ?", source).Delete(&db.RevisionData{}).Error; err != nil {
			return err
		}
		return repointCurrentRevision(tx, target.Type, target.Campaign, target.RecordID, source, target.Number)
	})
	if err != nil {
		logOperationError("replace_revision", err)
		return db.SqlError2Error(err)
	}
	return nil
}

func (s *sqlMetaStore) GetRevisionKeys(ctx context.Context, revision int64) (map[string]string, error) {
	defer logOperationLatency("get_revision_keys", time.Now())
	var rows []db.RevisionKey
	res := s.WithContext(ctx).Where("revision = ?", revision).Find(&rows)
	if res.Error != nil {
		logOperationError("get_revision_keys", res.Error)
		return nil, db.SqlError2Error(res.Error)
	}
	result := make(map[string]string, len(rows))
	for _, row := range rows {
		result[row.Name] = row.Value
	}
	return result, nil
}

func (s *sqlMetaStore) WriteRevisionKeys(ctx context.Context, revision int64, keys map[string]string) error {
	defer logOperationLatency("write_revision_keys", time.Now())
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return writeRevisionKeys(tx, revision, keys)
	})
	if err != nil {
		logOperationError("write_revision_keys", err)
		return db.SqlError2Error(err)
	}
	return nil
}

func (s *sqlMetaStore) DeleteRevisionKeys(ctx context.Context, revision int64, names []string) error {
	defer logOperationLatency("delete_revision_keys", time.Now())
	if len(names) == 0 {
		return nil
	}
	res := s.WithContext(ctx).Where("revision = ? AND name IN ?", revision, names).Delete(&db.RevisionKey{})
	if res.Error != nil {
		logOperationError("delete_revision_keys", res.Error)
		return db.SqlError2Error(res.Error)
	}
	return nil
}

func (s *sqlMetaStore) GetRevisionData(ctx context.Context, revision int64) (map[string]string, error) {
	defer logOperationLatency("get_revision_data", time.Now())
	var rows []db.RevisionData
	res := s.WithContext(ctx).Where("revision = ?", revision).Find(&rows)
	if res.Error != nil {
		logOperationError("get_revision_data", res.Error)
		return nil, db.SqlError2Error(res.Error)
	}
	result := make(map[string]string, len(rows))
	for _, row := range rows {
		result[row.Name] = row.Value
	}
	return result, nil
}

func (s *sqlMetaStore) WriteRevisionData(ctx context.Context, revision int64, data map[string]string) error {
	defer logOperationLatency("write_revision_data", time.Now())
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return writeRevisionData(tx, revision, data)
	})
	if err != nil {
		logOperationError("write_revision_data", err)
		return db.SqlError2Error(err)
	}
	return nil
}

func (s *sqlMetaStore) DeleteRevisionData(ctx context.Context, revision int64, names []string) error {
	defer logOperationLatency("delete_revision_data", time.Now())
	if len(names) == 0 {
		return nil
	}
	res := s.WithContext(ctx).Where("revision = ? AND name IN ?", revision, names).Delete(&db.RevisionData{})
	if res.Error != nil {
		logOperationError("delete_revision_data", res.Error)
		return db.SqlError2Error(res.Error)
	}
	return nil
}

func (s *sqlMetaStore) GetActiveLock(ctx context.Context, path, itemPrimary string) (*types.Lock, error) {
	defer logOperationLatency("get_active_lock", time.Now())
	mod := &db.Lock{}
	res := s.WithContext(ctx).Where("path = ? AND item_primary = ?", path, itemPrimary).Order("id DESC").First(mod)
	if res.Error != nil {
		logOperationError("get_active_lock", res.Error)
		return nil, db.SqlError2Error(res.Error)
	}
	return mod.ToLock(), nil
}

func (s *sqlMetaStore) GetLockByID(ctx context.Context, id int64) (*types.Lock, error) {
	defer logOperationLatency("get_lock", time.Now())
	mod := &db.Lock{}
	res := s.WithContext(ctx).First(mod, "id = ?", id)
	if res.Error != nil {
		logOperationError("get_lock", res.Error)
		return nil, db.SqlError2Error(res.Error)
	}
	return mod.ToLock(), nil
}

func (s *sqlMetaStore) SaveLock(ctx context.Context, lock *types.Lock) error {
	defer logOperationLatency("save_lock", time.Now())
	mod := &db.Lock{}
	mod.Update(lock)
	var res *gorm.DB
	if lock.ID == 0 {
		res = s.WithContext(ctx).Create(mod)
		lock.ID = mod.ID
	} else {
		res = s.WithContext(ctx).Save(mod)
	}
	if res.Error != nil {
		logOperationError("save_lock", res.Error)
		return db.SqlError2Error(res.Error)
	}
	return nil
}

func (s *sqlMetaStore) DeleteLock(ctx context.Context, id int64) error {
	defer logOperationLatency("delete_lock", time.Now())
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lock_id = ?", id).Delete(&db.LockUnlockRequest{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Lock{ID: id}).Error
	})
	if err != nil {
		logOperationError("delete_lock", err)
		return db.SqlError2Error(err)
	}
	return nil
}

func (s *sqlMetaStore) ListLocksByOwner(ctx context.Context, ownerID int64) ([]*types.Lock, error) {
	defer logOperationLatency("list_locks_by_owner", time.Now())
	var mods []db.Lock
	res := s.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id").Find(&mods)
	if res.Error != nil {
		logOperationError("list_locks_by_owner", res.Error)
		return nil, db.SqlError2Error(res.Error)
	}
	result := make([]*types.Lock, len(mods))
	for i := range mods {
		result[i] = mods[i].ToLock()
	}
	return result, nil
}

func (s *sqlMetaStore) DeleteExpiredLocks(ctx context.Context, olderThan time.Time) (int64, error) {
	defer logOperationLatency("delete_expired_locks", time.Now())
	var deleted int64
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		res := tx.Model(&db.Lock{}).Where("locked_until < ?", olderThan.UnixNano()).Pluck("id", &ids)
		if res.Error != nil {
			return res.Error
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("lock_id IN ?", ids).Delete(&db.LockUnlockRequest{}).Error; err != nil {
			return err
		}
		res = tx.Where("id IN ?", ids).Delete(&db.Lock{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		logOperationError("delete_expired_locks", err)
		return 0, db.SqlError2Error(err)
	}
	return deleted, nil
}

func (s *sqlMetaStore) ListUnlockRequests(ctx context.Context, lockID int64) ([]*types.UnlockRequest, error) {
	defer logOperationLatency("list_unlock_requests", time.Now())
	var mods []db.LockUnlockRequest
	res := s.WithContext(ctx).Where("lock_id = ?", lockID).Order("requested_at").Find(&mods)
	if res.Error != nil {
		logOperationError("list_unlock_requests", res.Error)
		return nil, db.SqlError2Error(res.Error)
	}
	result := make([]*types.UnlockRequest, len(mods))
	for i := range mods {
		result[i] = mods[i].ToRequest()
	}
	return result, nil
}

func (s *sqlMetaStore) GetUnlockRequest(ctx context.Context, lockID, requesterID int64) (*types.UnlockRequest, error) {
	defer logOperationLatency("get_unlock_request", time.Now())
	mod := &db.LockUnlockRequest{}
	res := s.WithContext(ctx).Where("lock_id = ? AND requester_id = ?", lockID, requesterID).First(mod)
	if res.Error != nil {
		logOperationError("get_unlock_request", res.Error)
		return nil, db.SqlError2Error(res.Error)
	}
	return mod.ToRequest(), nil
}

func (s *sqlMetaStore) SaveUnlockRequest(ctx context.Context, req *types.UnlockRequest) error {
	defer logOperationLatency("save_unlock_request", time.Now())
	mod := &db.LockUnlockRequest{
		ID:            req.ID,
		LockID:        req.LockID,
		RequesterID:   req.RequesterID,
		RequesterName: req.RequesterName,
		Message:       req.Message,
		RequestedAt:   req.RequestedAt.UnixNano(),
	}
	var res *gorm.DB
	if req.ID == 0 {
		res = s.WithContext(ctx).Create(mod)
		req.ID = mod.ID
	} else {
		res = s.WithContext(ctx).Save(mod)
	}
	if res.Error != nil {
		logOperationError("save_unlock_request", res.Error)
		return db.SqlError2Error(res.Error)
	}
	return nil
}

func (s *sqlMetaStore) DeleteUnlockRequests(ctx context.Context, lockID int64) error {
	defer logOperationLatency("delete_unlock_requests", time.Now())
	res := s.WithContext(ctx).Where("lock_id = ?", lockID).Delete(&db.LockUnlockRequest{})
	if res.Error != nil {
		logOperationError("delete_unlock_requests", res.Error)
		return db.SqlError2Error(res.Error)
	}
	return nil
}

func writeRevisionKeys(tx *gorm.DB, revision int64, keys map[string]string) error {
	if err := db.RequireTx(tx); err != nil {
		return err
	}
	for name, value := range keys {
		row := &db.RevisionKey{}
		res := tx.Where("revision = ? AND name = ?", revision, name).First(row)
		if res.Error != nil {
			if res.Error != gorm.ErrRecordNotFound {
				return res.Error
			}
			if err := tx.Create(&db.RevisionKey{Revision: revision, Name: name, Value: value}).Error; err != nil {
				return err
			}
			continue
		}
		row.Value = value
		if err := tx.Save(row).Error; err != nil {
			return err
		}
	}
	return nil
}

func writeRevisionData(tx *gorm.DB, revision int64, data map[string]string) error {
	if err := db.RequireTx(tx); err != nil {
		return err
	}
	for name, value := range data {
		row := &db.RevisionData{}
		res := tx.Where("revision = ? AND name = ?", revision, name).First(row)
		if res.Error != nil {
			if res.Error != gorm.ErrRecordNotFound {
				return res.Error
			}
			if err := tx.Create(&db.RevisionData{Revision: revision, Name: name, Value: value}).Error; err != nil {
				return err
			}
			continue
		}
		row.Value = value
		if err := tx.Save(row).Error; err != nil {
			return err
		}
	}
	return nil
}

// repointCurrentRevision keeps the pointer index valid when a revision
// row goes away: a pointer sitting on the deleted number moves to
// successor, or to the record's new latest revision when successor is
// zero, within the same transaction.
func repointCurrentRevision(tx *gorm.DB, rtype, campaign string, recordID, deleted, successor int64) error {
	if err := db.RequireTx(tx); err != nil {
		return err
	}
	cur := &db.CurrentRevision{}
	res := db.Scoped(tx, rtype, campaign).First(cur, "record_id = ?", recordID)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return nil
		}
		return res.Error
	}
	if cur.Revision != deleted {
		return nil
	}
	if successor == 0 {
		latest := &db.Revision{}
		res = db.Scoped(tx, rtype, campaign).Where("record_id = ?", recordID).Order("number DESC").First(latest)
		if res.Error != nil {
			if res.Error == gorm.ErrRecordNotFound {
				return tx.Delete(cur).Error
			}
			return res.Error
		}
		successor = latest.Number
	}
	cur.Revision = successor
	return tx.Save(cur).Error
}

func copyKeyRows(tx *gorm.DB, sourceRev, targetRev int64) error {
	var rows []db.RevisionKey
	if err := tx.Where("revision = ?", sourceRev).Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		if err := tx.Create(&db.RevisionKey{Revision: targetRev, Name: row.Name, Value: row.Value}).Error; err != nil {
			return err
		}
	}
	return nil
}

func copyDataRows(tx *gorm.DB, sourceRev, targetRev int64) error {
	var rows []db.RevisionData
	if err := tx.Where("revision = ?", sourceRev).Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		if err := tx.Create(&db.RevisionData{Revision: targetRev, Name: row.Name, Value: row.Value}).Error; err != nil {
			return err
		}
	}
	return nil
}
