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
	"errors"

	"go.uber.org/zap"

	"github.com/basefold/revisiond/pkg/events"
	"github.com/basefold/revisiond/pkg/metastore"
	"github.com/basefold/revisiond/pkg/types"
	"github.com/basefold/revisiond/utils"
	"github.com/basefold/revisiond/utils/logger"
)

// dataNameLimit mirrors the size bound of the revision_data name column.
const dataNameLimit = 64

// Disposable is anything torn down together with the revision it is
// scoped to.
type Disposable interface {
	Dispose()
}

// KeyLoader supplies a value for a key absent from the revision row,
// before caller and global defaults are consulted.
type KeyLoader func(ctx context.Context, recordID, revision int64, name string) (string, bool)

// Storage is the per-record in-memory half of the versioning engine. It
// tracks loaded revisions, the active selection and buffered key writes,
// and delegates durability to the metastore. One Storage serves one
// logical request; it is not safe for concurrent use.
type Storage struct {
	recordID    int64
	rtype       string
	campaign    string
	hasDataKeys bool

	meta metastore.Meta

	revisions map[int64]*types.RevisionInfo
	keys      map[int64]map[string]string
	dirtyKeys map[int64]map[string]string
	cleared   map[int64]map[string]struct{}

	data      map[int64]map[string]string
	dirtyData map[int64]map[string]string
	dataNames map[string]string

	selected int64
	locked   bool
	rowDirty bool
	disposed bool

	keyLoaders map[string]KeyLoader
	defaults   map[string]string
	parts      []metastore.PartCopier

	// children indexes disposables per (revision, key); walked on
	// removal and dispose instead of a tree of object references.
	children map[int64]map[string]Disposable

	logger *zap.SugaredLogger
}

func NewStorage(meta metastore.Meta, rtype, campaign string, recordID int64, hasDataKeys bool) *Storage {
	return &Storage{
		recordID:    recordID,
		rtype:       rtype,
		campaign:    campaign,
		hasDataKeys: hasDataKeys,
		meta:        meta,
		revisions:   map[int64]*types.RevisionInfo{},
		keys:        map[int64]map[string]string{},
		dirtyKeys:   map[int64]map[string]string{},
		cleared:     map[int64]map[string]struct{}{},
		data:        map[int64]map[string]string{},
		dirtyData:   map[int64]map[string]string{},
		dataNames:   map[string]string{},
		keyLoaders:  map[string]KeyLoader{},
		defaults:    map[string]string{},
		children:    map[int64]map[string]Disposable{},
		logger:      logger.NewLogger("revisionStorage").With("record", recordID),
	}
}

func (s *Storage) RecordID() int64 {
	return s.recordID
}

func (s *Storage) Selected() int64 {
	return s.selected
}

// AddRevision registers bookkeeping for a revision that was just created
// durably and announces it on the bus.
func (s *Storage) AddRevision(rev *types.RevisionInfo, actor types.Actor) error {
	if s.disposed {
		return types.ErrDisposed
	}
	s.revisions[rev.Number] = rev
	events.Publish(events.TopicRevisionAdded, events.BuildRevisionEvent(events.ActionTypeAdd, rev, actor))
	return nil
}

// SelectRevision makes number the active revision, loading it if needed.
// A no-op while the storage is locked or when number is already active.
func (s *Storage) SelectRevision(ctx context.Context, number int64) error {
	if s.disposed {
		return types.ErrDisposed
	}
	if s.locked || s.selected == number {
		return nil
	}
	if _, ok := s.revisions[number]; !ok {
		if err := s.loadRevision(ctx, number); err != nil {
			return err
		}
	}
	s.selected = number
	return nil
}

func (s *Storage) loadRevision(ctx context.Context, number int64) error {
	rev, err := s.meta.GetRevision(ctx, s.rtype, s.campaign, s.recordID, number)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.ErrRevisionNotFound
		}
		return err
	}
	keys, err := s.meta.GetRevisionKeys(ctx, number)
	if err != nil {
		return err
	}
	s.revisions[number] = rev
	s.keys[number] = keys
	return nil
}

// CurrentInfo returns the active revision's metadata, nil when nothing
// is selected.
func (s *Storage) CurrentInfo() *types.RevisionInfo {
	if s.selected == 0 {
		return nil
	}
	return s.revisions[s.selected]
}

// MarkRowDirty flags the active revision row for write-back on the next
// Flush. Used by the record accessors mutating label, state or comments.
func (s *Storage) MarkRowDirty() {
	s.rowDirty = true
}

// GetKey reads name from the active revision. Fallback order: buffered
// write, loaded value, registered key loader, caller default, global
// default, empty string.
func (s *Storage) GetKey(ctx context.Context, name string, defaults ...string) (string, error) {
	if s.disposed {
		return "", types.ErrDisposed
	}
	if s.selected != 0 {
		if _, gone := s.cleared[s.selected][name]; !gone {
			if v, ok := s.dirtyKeys[s.selected][name]; ok {
				return v, nil
			}
			if v, ok := s.keys[s.selected][name]; ok {
				return v, nil
			}
			if loader, ok := s.keyLoaders[name]; ok {
				if v, ok := loader(ctx, s.recordID, s.selected, name); ok {
					return v, nil
				}
			}
		}
	}
	if len(defaults) > 0 {
		return defaults[0], nil
	}
	if v, ok := s.defaults[name]; ok {
		return v, nil
	}
	return "", nil
}

func (s *Storage) SetKey(ctx context.Context, name, value string) error {
	if s.disposed {
		return types.ErrDisposed
	}
	if s.selected == 0 {
		return types.ErrCannotSetKeyUnknownRevision
	}
	if _, ok := s.revisions[s.selected]; !ok {
		return types.ErrCannotSetKeyUnknownRevision
	}
	if s.dirtyKeys[s.selected] == nil {
		s.dirtyKeys[s.selected] = map[string]string{}
	}
	s.dirtyKeys[s.selected][name] = value
	delete(s.cleared[s.selected], name)
	return nil
}

func (s *Storage) HasKey(ctx context.Context, name string) (bool, error) {
	if s.disposed {
		return false, types.ErrDisposed
	}
	if s.selected == 0 {
		return false, nil
	}
	if _, gone := s.cleared[s.selected][name]; gone {
		return false, nil
	}
	if _, ok := s.dirtyKeys[s.selected][name]; ok {
		return true, nil
	}
	_, ok := s.keys[s.selected][name]
	return ok, nil
}

func (s *Storage) ClearKey(ctx context.Context, name string) error {
	if s.disposed {
		return types.ErrDisposed
	}
	if s.selected == 0 {
		return types.ErrCannotSetKeyUnknownRevision
	}
	if s.cleared[s.selected] == nil {
		s.cleared[s.selected] = map[string]struct{}{}
	}
	s.cleared[s.selected][name] = struct{}{}
	delete(s.dirtyKeys[s.selected], name)
	return nil
}

// storedDataName maps a logical data key name to its stored form. Names
// over the column bound are replaced by their hash; the mapping lives
// here so the logical name round-trips within this storage's lifetime.
func (s *Storage) storedDataName(name string) string {
	if stored, ok := s.dataNames[name]; ok {
		return stored
	}
	stored := name
	if len(name) > dataNameLimit {
		stored = utils.Sha256Hex(name)[:dataNameLimit]
	}
	s.dataNames[name] = stored
	return stored
}

// GetDataKey reads a lazily loaded payload key. Record types without
// data keys fall straight through to the defaults.
func (s *Storage) GetDataKey(ctx context.Context, name string, defaults ...string) (string, error) {
	if s.disposed {
		return "", types.ErrDisposed
	}
	if !s.hasDataKeys || s.selected == 0 {
		if len(defaults) > 0 {
			return defaults[0], nil
		}
		if v, ok := s.defaults[name]; ok {
			return v, nil
		}
		return "", nil
	}
	stored := s.storedDataName(name)
	if v, ok := s.dirtyData[s.selected][stored]; ok {
		return v, nil
	}
	if err := s.loadDataKeys(ctx, s.selected); err != nil {
		return "", err
	}
	if v, ok := s.data[s.selected][stored]; ok {
		return v, nil
	}
	if len(defaults) > 0 {
		return defaults[0], nil
	}
	if v, ok := s.defaults[name]; ok {
		return v, nil
	}
	return "", nil
}

func (s *Storage) SetDataKey(ctx context.Context, name, value string) error {
	if s.disposed {
		return types.ErrDisposed
	}
	if !s.hasDataKeys {
		return nil
	}
	if s.selected == 0 {
		return types.ErrCannotSetKeyUnknownRevision
	}
	if s.dirtyData[s.selected] == nil {
		s.dirtyData[s.selected] = map[string]string{}
	}
	s.dirtyData[s.selected][s.storedDataName(name)] = value
	return nil
}

func (s *Storage) loadDataKeys(ctx context.Context, number int64) error {
	if _, ok := s.data[number]; ok {
		return nil
	}
	data, err := s.meta.GetRevisionData(ctx, number)
	if err != nil {
		return err
	}
	s.data[number] = data
	return nil
}

// WriteDataKeys flushes the buffered data-key writes of the active
// revision in one bulk write-back.
func (s *Storage) WriteDataKeys(ctx context.Context) error {
	if s.disposed {
		return types.ErrDisposed
	}
	if s.selected == 0 || len(s.dirtyData[s.selected]) == 0 {
		return nil
	}
	if err := s.meta.WriteRevisionData(ctx, s.selected, s.dirtyData[s.selected]); err != nil {
		return err
	}
	if s.data[s.selected] == nil {
		s.data[s.selected] = map[string]string{}
	}
	for name, value := range s.dirtyData[s.selected] {
		s.data[s.selected][name] = value
	}
	delete(s.dirtyData, s.selected)
	return nil
}

// Flush commits the active revision's buffered state: the row when its
// amendable fields changed, regular keys, cleared keys and data keys.
func (s *Storage) Flush(ctx context.Context) error {
	if s.disposed {
		return types.ErrDisposed
	}
	if s.selected == 0 {
		return nil
	}
	if s.rowDirty {
		if err := s.meta.UpdateRevision(ctx, s.revisions[s.selected]); err != nil {
			return err
		}
		s.rowDirty = false
	}
	if len(s.dirtyKeys[s.selected]) > 0 {
		if err := s.meta.WriteRevisionKeys(ctx, s.selected, s.dirtyKeys[s.selected]); err != nil {
			return err
		}
		if s.keys[s.selected] == nil {
			s.keys[s.selected] = map[string]string{}
		}
		for name, value := range s.dirtyKeys[s.selected] {
			s.keys[s.selected][name] = value
		}
		delete(s.dirtyKeys, s.selected)
	}
	if len(s.cleared[s.selected]) > 0 {
		names := make([]string, 0, len(s.cleared[s.selected]))
		for name := range s.cleared[s.selected] {
			names = append(names, name)
		}
		if err := s.meta.DeleteRevisionKeys(ctx, s.selected, names); err != nil {
			return err
		}
		for _, name := range names {
			delete(s.keys[s.selected], name)
		}
		delete(s.cleared, s.selected)
	}
	return s.WriteDataKeys(ctx)
}

// AddByCopy branches a new revision off source: the copy op duplicates
// the durable rows, the result is verified and selected, then owner and
// comments are re-stamped in case a part copier touched them.
func (s *Storage) AddByCopy(ctx context.Context, source int64, owner types.Actor, comments string) (int64, error) {
	if s.disposed {
		return 0, types.ErrDisposed
	}
	if err := s.SelectRevision(ctx, source); err != nil {
		return 0, err
	}
	srcInfo, ok := s.revisions[source]
	if !ok {
		return 0, types.ErrRevisionNotFound
	}

	op := NewCopy(s.meta, srcInfo, owner, comments, s.parts...)
	number, err := op.Process(ctx)
	if err != nil {
		return 0, err
	}

	rev, err := s.meta.GetRevision(ctx, s.rtype, s.campaign, s.recordID, number)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return 0, types.ErrRevisionNotFound
		}
		return 0, err
	}
	if err = s.meta.UpdateRevisionAmendable(ctx, s.rtype, s.campaign, number, owner, comments); err != nil {
		return 0, err
	}
	rev.OwnerID = owner.ID
	rev.OwnerName = owner.Name
	rev.Comments = comments

	if err = s.AddRevision(rev, owner); err != nil {
		return 0, err
	}
	keys, err := s.meta.GetRevisionKeys(ctx, number)
	if err != nil {
		return 0, err
	}
	s.keys[number] = keys
	if err = s.SelectRevision(ctx, number); err != nil {
		return 0, err
	}
	s.logger.Infow("revision branched", "source", source, "revision", number)
	return number, nil
}

// RemoveRevision purges the current latest revision. Earlier revisions
// and the last remaining one are protected; children scoped to the
// removed revision are disposed first and the selection moves to the
// new latest.
func (s *Storage) RemoveRevision(ctx context.Context, number int64) error {
	if s.disposed {
		return types.ErrDisposed
	}
	all, err := s.meta.ListRevisions(ctx, s.rtype, s.campaign, s.recordID)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return types.ErrRevisionNotFound
	}
	latest := all[len(all)-1].Number
	if number != latest {
		return types.ErrCannotRemovePriorRevision
	}
	if len(all) == 1 {
		return types.ErrCannotRemoveLastRevision
	}

	s.disposeChildren(number)
	removed := all[len(all)-1]
	if err = s.meta.DeleteRevision(ctx, s.rtype, s.campaign, s.recordID, number); err != nil {
		return err
	}
	delete(s.revisions, number)
	delete(s.keys, number)
	delete(s.dirtyKeys, number)
	delete(s.cleared, number)
	delete(s.data, number)
	delete(s.dirtyData, number)

	events.Publish(events.TopicRevisionRemoved, events.BuildRevisionEvent(events.ActionTypeRemove, removed, types.GetActor(ctx)))

	newLatest := all[len(all)-2].Number
	if s.selected == number {
		s.selected = 0
	}
	return s.SelectRevision(ctx, newLatest)
}

// ReplaceRevision squashes source into target: target takes source's
// content, then source is deleted. Both must exist.
func (s *Storage) ReplaceRevision(ctx context.Context, target, source int64) error {
	if s.disposed {
		return types.ErrDisposed
	}
	if err := s.SelectRevision(ctx, source); err != nil {
		return err
	}
	srcInfo := s.revisions[source]
	targetInfo, err := s.meta.GetRevision(ctx, s.rtype, s.campaign, s.recordID, target)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.ErrRevisionNotFound
		}
		return err
	}

	keys, err := s.meta.GetRevisionKeys(ctx, source)
	if err != nil {
		return err
	}
	var data map[string]string
	if s.hasDataKeys {
		if data, err = s.meta.GetRevisionData(ctx, source); err != nil {
			return err
		}
	}

	targetInfo.Label = srcInfo.Label
	targetInfo.State = srcInfo.State
	targetInfo.OwnerID = srcInfo.OwnerID
	targetInfo.OwnerName = srcInfo.OwnerName
	targetInfo.Comments = srcInfo.Comments
	if err = s.meta.ReplaceRevision(ctx, targetInfo, keys, data, source); err != nil {
		return err
	}

	s.disposeChildren(source)
	delete(s.revisions, source)
	delete(s.keys, source)
	delete(s.dirtyKeys, source)
	delete(s.cleared, source)
	delete(s.data, source)
	delete(s.dirtyData, source)

	s.revisions[target] = targetInfo
	s.keys[target] = keys
	if data != nil {
		s.data[target] = data
	}
	s.selected = 0
	return s.SelectRevision(ctx, target)
}

// CopyTo overwrites other's active revision with this storage's active
// revision content.
func (s *Storage) CopyTo(ctx context.Context, other *Storage) error {
	if s.disposed || other.disposed {
		return types.ErrDisposed
	}
	src := s.CurrentInfo()
	dst := other.CurrentInfo()
	if src == nil || dst == nil {
		return types.ErrRevisionNotFound
	}
	if err := s.meta.OverwriteRevision(ctx, src, dst, s.parts...); err != nil {
		return err
	}
	// Drop other's cached state so it reloads the overwritten content.
	target := dst.Number
	delete(other.revisions, target)
	delete(other.keys, target)
	delete(other.dirtyKeys, target)
	delete(other.cleared, target)
	delete(other.data, target)
	delete(other.dirtyData, target)
	other.selected = 0
	return other.SelectRevision(ctx, target)
}

// Lock suppresses selection changes while a multi-step operation is in
// flight. Not related to the screen lock manager.
func (s *Storage) Lock() {
	s.locked = true
}

func (s *Storage) Unlock() {
	s.locked = false
}

func (s *Storage) IsLocked() bool {
	return s.locked
}

func (s *Storage) RegisterKeyLoader(name string, loader KeyLoader) {
	s.keyLoaders[name] = loader
}

func (s *Storage) SetGlobalDefault(name, value string) {
	s.defaults[name] = value
}

// RegisterPartCopier adds an extension part duplicated on every copy of
// this record's revisions.
func (s *Storage) RegisterPartCopier(part metastore.PartCopier) {
	s.parts = append(s.parts, part)
}

// AdoptChild indexes a disposable under (revision, key). It is disposed
// together with the revision.
func (s *Storage) AdoptChild(revision int64, key string, child Disposable) {
	if s.children[revision] == nil {
		s.children[revision] = map[string]Disposable{}
	}
	if old, ok := s.children[revision][key]; ok {
		old.Dispose()
	}
	s.children[revision][key] = child
}

func (s *Storage) disposeChildren(revision int64) {
	for _, child := range s.children[revision] {
		child.Dispose()
	}
	delete(s.children, revision)
}

func (s *Storage) Dispose() {
	if s.disposed {
		return
	}
	for revision := range s.children {
		s.disposeChildren(revision)
	}
	s.revisions = nil
	s.keys = nil
	s.dirtyKeys = nil
	s.cleared = nil
	s.data = nil
	s.dirtyData = nil
	s.selected = 0
	s.disposed = true
}

func (s *Storage) IsDisposed() bool {
	return s.disposed
}
