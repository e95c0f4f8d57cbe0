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

package db

import (
	"encoding/json"
	"time"

	"github.com/basefold/revisiond/pkg/types"
)

type SystemInfo struct {
	StoreID   string `gorm:"column:store_id;primaryKey"`
	RecordSeq int64  `gorm:"column:record_seq"`
}

func (i SystemInfo) TableName() string {
	return "system_info"
}

// Record is the ID row of one revisionable record. All versioned data
// lives in revision rows; this row only anchors the identity.
type Record struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	RType     string `gorm:"column:rtype;index:rec_rtype"`
	Campaign  string `gorm:"column:campaign;index:rec_campaign"`
	CreatedAt int64  `gorm:"column:created_at"`
}

func (r Record) TableName() string {
	return "record"
}

// Revision numbers come from the store's auto-increment sequence, so they
// strictly increase and a number resolves to exactly one record within a
// (rtype, campaign) scope.
type Revision struct {
	Number    int64  `gorm:"column:number;primaryKey;autoIncrement"`
	RecordID  int64  `gorm:"column:record_id;index:rev_record"`
	RType     string `gorm:"column:rtype;index:rev_rtype"`
	Campaign  string `gorm:"column:campaign;index:rev_campaign"`
	Label     string `gorm:"column:label"`
	State     string `gorm:"column:state"`
	OwnerID   int64  `gorm:"column:owner_id"`
	OwnerName string `gorm:"column:owner_name"`
	Pretty    int64  `gorm:"column:pretty"`
	Comments  string `gorm:"column:comments"`
	CreatedAt int64  `gorm:"column:created_at"`
}

func (r Revision) TableName() string {
	return "revision"
}

func (r *Revision) Update(info *types.RevisionInfo) {
	r.Number = info.Number
	r.RecordID = info.RecordID
	r.RType = info.Type
	r.Campaign = info.Campaign
	r.Label = info.Label
	r.State = info.State
	r.OwnerID = info.OwnerID
	r.OwnerName = info.OwnerName
	r.Pretty = info.Pretty
	r.Comments = info.Comments
	r.CreatedAt = info.CreatedAt.UnixNano()
}

func (r *Revision) ToInfo() *types.RevisionInfo {
	return &types.RevisionInfo{
		Number:    r.Number,
		RecordID:  r.RecordID,
		Type:      r.RType,
		Campaign:  r.Campaign,
		Label:     r.Label,
		State:     r.State,
		OwnerID:   r.OwnerID,
		OwnerName: r.OwnerName,
		Pretty:    r.Pretty,
		Comments:  r.Comments,
		CreatedAt: time.Unix(0, r.CreatedAt),
	}
}

// RevisionKey is a regular key/value of one revision, loaded together
// with the revision row.
type RevisionKey struct {
	ID       int64  `gorm:"column:id;autoIncrement"`
	Revision int64  `gorm:"column:revision;index:rk_revision"`
	Name     string `gorm:"column:name;index:rk_name"`
	Value    string `gorm:"column:value"`
}

func (k RevisionKey) TableName() string {
	return "revision_key"
}

// RevisionData is a lazily loaded payload key. Stored names are bounded
// at 64 bytes; longer logical names are hashed by the caller before they
// reach this table.
type RevisionData struct {
	ID       int64  `gorm:"column:id;autoIncrement"`
	Revision int64  `gorm:"column:revision;index:rd_revision"`
	Name     string `gorm:"column:name;size:64;index:rd_name"`
	Value    string `gorm:"column:value"`
}

func (d RevisionData) TableName() string {
	return "revision_data"
}

// CurrentRevision is the durable current-revision pointer index, the
// upsert target keyed by (rtype, campaign, record).
type CurrentRevision struct {
	ID       int64  `gorm:"column:id;autoIncrement"`
	RType    string `gorm:"column:rtype;index:cur_rtype"`
	Campaign string `gorm:"column:campaign;index:cur_campaign"`
	RecordID int64  `gorm:"column:record_id;index:cur_record"`
	Revision int64  `gorm:"column:revision"`
}

func (c CurrentRevision) TableName() string {
	return "current_revision"
}

type Lock struct {
	ID            int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Path          string `gorm:"column:path;index:lock_path"`
	ItemPrimary   string `gorm:"column:item_primary;index:lock_primary"`
	OwnerID       int64  `gorm:"column:owner_id;index:lock_owner"`
	OwnerName     string `gorm:"column:owner_name"`
	LockedAt      int64  `gorm:"column:locked_at"`
	LockedUntil   int64  `gorm:"column:locked_until;index:lock_until"`
	LastActivity  int64  `gorm:"column:last_activity"`
	Released      bool   `gorm:"column:released"`
	ForcedRelease bool   `gorm:"column:forced_release"`
	Properties    string `gorm:"column:properties"`
}

func (l Lock) TableName() string {
	return "screen_lock"
}

func (l *Lock) Update(lock *types.Lock) {
	l.ID = lock.ID
	l.Path = lock.Path
	l.ItemPrimary = lock.ItemPrimary
	l.OwnerID = lock.OwnerID
	l.OwnerName = lock.OwnerName
	l.LockedAt = lock.LockedAt.UnixNano()
	l.LockedUntil = lock.LockedUntil.UnixNano()
	l.LastActivity = lock.LastActivity.UnixNano()
	l.Released = lock.Released
	l.ForcedRelease = lock.ForcedRelease
	l.Properties = ""
	if len(lock.Properties) > 0 {
		raw, err := json.Marshal(lock.Properties)
		if err == nil {
			l.Properties = string(raw)
		}
	}
}

func (l *Lock) ToLock() *types.Lock {
	result := &types.Lock{
		ID:            l.ID,
		Path:          l.Path,
		ItemPrimary:   l.ItemPrimary,
		OwnerID:       l.OwnerID,
		OwnerName:     l.OwnerName,
		LockedAt:      time.Unix(0, l.LockedAt),
		LockedUntil:   time.Unix(0, l.LockedUntil),
		LastActivity:  time.Unix(0, l.LastActivity),
		Released:      l.Released,
		ForcedRelease: l.ForcedRelease,
	}
	if l.Properties != "" {
		_ = json.Unmarshal([]byte(l.Properties), &result.Properties)
	}
	return result
}

type LockUnlockRequest struct {
	ID            int64  `gorm:"column:id;primaryKey;autoIncrement"`
	LockID        int64  `gorm:"column:lock_id;index:ulr_lock"`
	RequesterID   int64  `gorm:"column:requester_id;index:ulr_requester"`
	RequesterName string `gorm:"column:requester_name"`
	Message       string `gorm:"column:message"`
	RequestedAt   int64  `gorm:"column:requested_at"`
}

func (r LockUnlockRequest) TableName() string {
	return "screen_lock_unlock_request"
}

func (r *LockUnlockRequest) ToRequest() *types.UnlockRequest {
	return &types.UnlockRequest{
		ID:            r.ID,
		LockID:        r.LockID,
		RequesterID:   r.RequesterID,
		RequesterName: r.RequesterName,
		Message:       r.Message,
		RequestedAt:   time.Unix(0, r.RequestedAt),
	}
}
