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

	"github.com/bluele/gcache"
	"go.uber.org/zap"

	"github.com/basefold/revisiond/pkg/events"
	"github.com/basefold/revisiond/pkg/metastore"
	"github.com/basefold/revisiond/pkg/types"
	"github.com/basefold/revisiond/utils/logger"
)

const defaultCacheSize = 1 << 10

// StateHandler supplies the state assigned to revision 1 of a freshly
// created record. The state name is opaque to the engine.
type StateHandler interface {
	InitialState() string
}

type staticStates struct {
	initial string
}

func (s staticStates) InitialState() string {
	return s.initial
}

// StaticStates is a StateHandler with a fixed initial state.
func StaticStates(initial string) StateHandler {
	return staticStates{initial: initial}
}

// Type describes one record type: its name, state handler, whether its
// revisions carry lazy data keys, whether instances participate in
// screen locking, and the destroy policy hook.
type Type struct {
	Name        string
	States      StateHandler
	HasDataKeys bool
	Lockable    bool
	CanDestroy  func(ctx context.Context, rec *Record) bool
}

func (t *Type) initialState() string {
	if t.States == nil {
		return ""
	}
	return t.States.InitialState()
}

// Collection owns the ID space of one record type within one campaign
// key set. Live Record instances are exclusively owned by the
// collection's cache until unloaded or reset.
type Collection struct {
	typ      *Type
	campaign types.CampaignKeys
	enc      string
	meta     metastore.Meta
	cache    gcache.Cache
	logger   *zap.SugaredLogger
}

func NewCollection(typ *Type, campaign types.CampaignKeys, meta metastore.Meta, cacheSize int) *Collection {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	c := &Collection{
		typ:      typ,
		campaign: campaign,
		enc:      campaign.Canonical(),
		meta:     meta,
		logger:   logger.NewLogger("collection").With("rtype", typ.Name),
	}
	c.cache = gcache.New(cacheSize).LFU().
		EvictedFunc(func(_, value interface{}) {
			value.(*Record).dispose()
		}).Build()
	return c
}

func (c *Collection) Type() *Type {
	return c.typ
}

func (c *Collection) CampaignKeys() types.CampaignKeys {
	return c.campaign
}

func (c *Collection) newRecord(id int64) *Record {
	return &Record{
		id:         id,
		collection: c,
		storage:    NewStorage(c.meta, c.typ.Name, c.enc, id, c.typ.HasDataKeys),
	}
}

// CreateNewRevisionable creates a brand-new record: ID row, revision 1
// with the type's initial state, current pointer at revision 1, all in
// one store transaction. The label is required.
func (c *Collection) CreateNewRevisionable(ctx context.Context, label string, keys map[string]string) (*Record, error) {
	if label == "" {
		return nil, types.ErrMissingLabel
	}
	actor := types.GetActor(ctx)
	rev := &types.RevisionInfo{
		Type:      c.typ.Name,
		Campaign:  c.enc,
		Label:     label,
		State:     c.typ.initialState(),
		OwnerID:   actor.ID,
		OwnerName: actor.Name,
	}
	id, err := c.meta.CreateRecord(ctx, rev, keys)
	if err != nil {
		return nil, err
	}

	rec := c.newRecord(id)
	if err = rec.storage.AddRevision(rev, actor); err != nil {
		return nil, err
	}
	loaded := make(map[string]string, len(keys))
	for name, value := range keys {
		loaded[name] = value
	}
	rec.storage.keys[rev.Number] = loaded
	if err = rec.storage.SelectRevision(ctx, rev.Number); err != nil {
		return nil, err
	}

	events.Publish(events.TopicRecordCreated,
		events.BuildRecordEvent(events.ActionTypeCreate, &types.RecordInfo{ID: id, Type: c.typ.Name, Campaign: c.enc}, actor))
	c.logger.Infow("record created", "record", id, "label", label)
	_ = c.cache.Set(id, rec)
	return rec, nil
}

// GetByID returns the cached instance when present, else loads the
// record and selects its current revision.
func (c *Collection) GetByID(ctx context.Context, id int64) (*Record, error) {
	if cached, err := c.cache.Get(id); err == nil {
		return cached.(*Record), nil
	}
	if _, err := c.meta.GetRecord(ctx, c.typ.Name, c.enc, id); err != nil {
		return nil, err
	}
	current, err := c.meta.GetCurrentRevision(ctx, c.typ.Name, c.enc, id)
	if err != nil {
		return nil, err
	}
	rec := c.newRecord(id)
	if err = rec.storage.SelectRevision(ctx, current); err != nil {
		return nil, err
	}
	_ = c.cache.Set(id, rec)
	return rec, nil
}

// UnloadRecord disposes and evicts one cached instance.
func (c *Collection) UnloadRecord(id int64) {
	if cached, err := c.cache.Get(id); err == nil {
		cached.(*Record).dispose()
	}
	c.cache.Remove(id)
}

// ResetCollection disposes every cached instance and empties the cache.
func (c *Collection) ResetCollection() {
	for _, key := range c.cache.Keys(true) {
		if cached, err := c.cache.Get(key); err == nil {
			cached.(*Record).dispose()
		}
	}
	c.cache.Purge()
}

// GetIDByRevision resolves a revision number to its owning record ID
// within this collection's scope.
func (c *Collection) GetIDByRevision(ctx context.Context, revision int64) (int64, error) {
	id, err := c.meta.GetRecordIDByRevision(ctx, c.typ.Name, c.enc, revision)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return 0, types.ErrRevisionNotFound
		}
		return 0, err
	}
	return id, nil
}

// GetByRevision loads the record owning revision and selects that
// revision on it.
func (c *Collection) GetByRevision(ctx context.Context, revision int64) (*Record, error) {
	id, err := c.GetIDByRevision(ctx, revision)
	if err != nil {
		return nil, err
	}
	rec, err := c.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = rec.storage.SelectRevision(ctx, revision); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *Collection) GetCurrentRevision(ctx context.Context, id int64) (int64, error) {
	return c.meta.GetCurrentRevision(ctx, c.typ.Name, c.enc, id)
}

// SetCurrentRevision moves the durable pointer. The store validates the
// target revision exists in the same transaction as the upsert.
func (c *Collection) SetCurrentRevision(ctx context.Context, id, revision int64) error {
	if err := c.meta.SetCurrentRevision(ctx, c.typ.Name, c.enc, id, revision); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.ErrRevisionNotFound
		}
		return err
	}
	actor := types.GetActor(ctx)
	events.Publish(events.TopicRevisionSelected,
		events.BuildRevisionEvent(events.ActionTypeSelect, &types.RevisionInfo{
			Number: revision, RecordID: id, Type: c.typ.Name, Campaign: c.enc,
		}, actor))
	if cached, err := c.cache.Get(id); err == nil {
		return cached.(*Record).storage.SelectRevision(ctx, revision)
	}
	return nil
}

// Destroy deletes the whole record: ID row, revisions, keys, data and
// pointer. Guarded by the type's destroy policy.
func (c *Collection) Destroy(ctx context.Context, rec *Record) error {
	if c.typ.CanDestroy != nil && !c.typ.CanDestroy(ctx, rec) {
		return types.ErrConflict
	}
	actor := types.GetActor(ctx)
	if err := c.meta.DestroyRecord(ctx, c.typ.Name, c.enc, rec.id); err != nil {
		return err
	}
	c.logger.Infow("record destroyed", "record", rec.id, "actor", actor.Name)
	events.Publish(events.TopicRecordDestroyed,
		events.BuildRecordEvent(events.ActionTypeDestroy, &types.RecordInfo{ID: rec.id, Type: c.typ.Name, Campaign: c.enc}, actor))
	rec.dispose()
	c.cache.Remove(rec.id)
	return nil
}

// Delete is the generic per-row deletion path and always refuses:
// records go away through Destroy, single revisions through
// Storage.RemoveRevision.
func (c *Collection) Delete(ctx context.Context, id int64) error {
	return types.ErrCannotDeleteRecordDirectly
}
