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

package lock

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/basefold/revisiond/config"
	"github.com/basefold/revisiond/pkg/events"
	"github.com/basefold/revisiond/pkg/metastore"
	"github.com/basefold/revisiond/pkg/types"
	"github.com/basefold/revisiond/utils/logger"
)

// Manager provides advisory, time-boxed mutual exclusion over a
// (path, item primary) pair. All coordination goes through the durable
// lock rows; the manager itself holds no cross-request state. Expired
// rows are treated as absent on read and hard-deleted by the sweep.
type Manager struct {
	meta            metastore.LockStore
	expiryDelay     time.Duration
	shortLeaveDelay time.Duration
	logger          *zap.SugaredLogger
}

func NewManager(meta metastore.LockStore, cfg config.Lock) *Manager {
	return &Manager{
		meta:            meta,
		expiryDelay:     time.Duration(cfg.ExpiryDelay) * time.Second,
		shortLeaveDelay: time.Duration(cfg.ShortLeaveDelay) * time.Second,
		logger:          logger.NewLogger("lockManager"),
	}
}

// activeLock returns the lock row for (path, primary) if it still
// excludes someone, purging it lazily when expired.
func (m *Manager) activeLock(ctx context.Context, path, primary string) (*types.Lock, error) {
	l, err := m.meta.GetActiveLock(ctx, path, primary)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !l.Active(time.Now()) {
		if err = m.meta.DeleteLock(ctx, l.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return l, nil
}

// Lock attempts to acquire or extend the lock on (path, primary) for
// the context actor. A false result is the normal locked-by-someone-else
// outcome, not an error; the holder's lease is left untouched.
func (m *Manager) Lock(ctx context.Context, path string, primary interface{}) (bool, error) {
	p, err := PrimaryFromValue(primary)
	if err != nil {
		return false, err
	}
	actor := types.GetActor(ctx)
	now := time.Now()

	existing, err := m.activeLock(ctx, path, p)
	if err != nil {
		return false, err
	}
	if existing == nil {
		l := &types.Lock{
			Path:         path,
			ItemPrimary:  p,
			OwnerID:      actor.ID,
			OwnerName:    actor.Name,
			LockedAt:     now,
			LockedUntil:  now.Add(m.expiryDelay),
			LastActivity: now,
		}
		if err = m.meta.SaveLock(ctx, l); err != nil {
			return false, err
		}
		events.Publish(events.TopicLockAcquired, events.BuildLockEvent(events.ActionTypeAcquire, l, actor))
		m.logger.Infow("lock acquired", "path", path, "primary", p, "owner", actor.Name)
		return true, nil
	}
	if existing.OwnerID != actor.ID {
		return false, nil
	}

	// Re-lock by the owner: also recovers a lock released moments ago,
	// the page-reload case the grace window exists for.
	existing.LockedUntil = now.Add(m.expiryDelay)
	existing.LastActivity = now
	existing.Released = false
	existing.ForcedRelease = false
	if err = m.meta.SaveLock(ctx, existing); err != nil {
		return false, err
	}
	return true, nil
}

// LockRecord binds a lockable item and acquires its lock.
func (m *Manager) LockRecord(ctx context.Context, item Lockable) (bool, error) {
	if !item.IsLockable() {
		return false, types.ErrNotLockable
	}
	return m.Lock(ctx, item.LockPath(), item.LockPrimary())
}

// Release ends a lock session. The lock is not removed: it stays held
// through the short-leave grace window, marked released, so a page
// reload by the owner can recover it. Returns whether the lock existed.
func (m *Manager) Release(ctx context.Context, lockID int64) (bool, error) {
	return m.release(ctx, lockID, nil, false)
}

// ReleaseTransfer atomically reassigns the lock to another user with a
// fresh lease. Pending unlock requests addressed the old owner and are
// discarded.
func (m *Manager) ReleaseTransfer(ctx context.Context, lockID int64, transferTo types.Actor) (bool, error) {
	return m.release(ctx, lockID, &transferTo, false)
}

// ForcedRelease behaves like Release but flags the row for audit.
func (m *Manager) ForcedRelease(ctx context.Context, lockID int64) (bool, error) {
	return m.release(ctx, lockID, nil, true)
}

func (m *Manager) release(ctx context.Context, lockID int64, transferTo *types.Actor, forced bool) (bool, error) {
	l, err := m.meta.GetLockByID(ctx, lockID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	now := time.Now()

	// A lapsed lease reads as unlocked everywhere; releasing it must not
	// hand out a grace window or a fresh transferred lease.
	if !l.Active(now) {
		if err = m.meta.DeleteLock(ctx, l.ID); err != nil {
			return false, err
		}
		return false, nil
	}

	if transferTo != nil {
		l.OwnerID = transferTo.ID
		l.OwnerName = transferTo.Name
		l.LockedUntil = now.Add(m.expiryDelay)
		l.LastActivity = now
		l.Released = false
		l.ForcedRelease = false
		if err = m.meta.SaveLock(ctx, l); err != nil {
			return false, err
		}
		if err = m.meta.DeleteUnlockRequests(ctx, l.ID); err != nil {
			return false, err
		}
		m.logger.Infow("lock transferred", "lock", l.ID, "to", transferTo.Name)
		return true, nil
	}

	l.Released = true
	l.ForcedRelease = forced
	l.LockedUntil = now.Add(m.shortLeaveDelay)
	l.LastActivity = now
	if err = m.meta.SaveLock(ctx, l); err != nil {
		return false, err
	}
	events.Publish(events.TopicLockReleased, events.BuildLockEvent(events.ActionTypeRelease, l, types.GetActor(ctx)))
	m.logger.Infow("lock released", "lock", l.ID, "forced", forced)
	return true, nil
}

// KeepAlive extends every lock held by the context actor and reports
// which lock IDs were extended and which are gone (expired or sitting
// in their release grace window).
func (m *Manager) KeepAlive(ctx context.Context, lastActivity time.Time) (extended, released []int64, err error) {
	actor := types.GetActor(ctx)
	locks, err := m.meta.ListLocksByOwner(ctx, actor.ID)
	if err != nil {
		return nil, nil, err
	}
	now := time.Now()
	for _, l := range locks {
		if !l.Active(now) {
			if err = m.meta.DeleteLock(ctx, l.ID); err != nil {
				return nil, nil, err
			}
			released = append(released, l.ID)
			continue
		}
		if l.Released {
			released = append(released, l.ID)
			continue
		}
		l.LockedUntil = now.Add(m.expiryDelay)
		l.LastActivity = lastActivity
		if err = m.meta.SaveLock(ctx, l); err != nil {
			return nil, nil, err
		}
		extended = append(extended, l.ID)
	}
	return extended, released, nil
}

// IsLockedFor reports whether (path, primary) is held by someone other
// than actor. A lock in its release grace window still counts as held,
// even for its owner's rivals, until the window lapses.
func (m *Manager) IsLockedFor(ctx context.Context, path string, primary interface{}, actor types.Actor) (bool, error) {
	p, err := PrimaryFromValue(primary)
	if err != nil {
		return false, err
	}
	l, err := m.activeLock(ctx, path, p)
	if err != nil {
		return false, err
	}
	if l == nil {
		return false, nil
	}
	return l.OwnerID != actor.ID, nil
}

// GetStatus returns the protocol-facing view of (path, primary),
// including any pending unlock requests.
func (m *Manager) GetStatus(ctx context.Context, path string, primary interface{}) (*types.LockStatus, error) {
	p, err := PrimaryFromValue(primary)
	if err != nil {
		return nil, err
	}
	l, err := m.activeLock(ctx, path, p)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return &types.LockStatus{Locked: false}, nil
	}
	requests, err := m.meta.ListUnlockRequests(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	status := &types.LockStatus{
		Locked:        true,
		LockID:        l.ID,
		OwnerID:       l.OwnerID,
		OwnerName:     l.OwnerName,
		LockedUntil:   l.LockedUntil,
		Released:      l.Released,
		ForcedRelease: l.ForcedRelease,
	}
	for _, req := range requests {
		status.UnlockRequests = append(status.UnlockRequests, *req)
	}
	return status, nil
}

// RequestUnlock attaches a please-release message from the context
// actor to an existing lock. One outstanding request per visitor:
// repeats are dropped.
func (m *Manager) RequestUnlock(ctx context.Context, lockID int64, message string) error {
	if _, err := m.meta.GetLockByID(ctx, lockID); err != nil {
		return err
	}
	actor := types.GetActor(ctx)
	_, err := m.meta.GetUnlockRequest(ctx, lockID, actor.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return err
	}
	return m.meta.SaveUnlockRequest(ctx, &types.UnlockRequest{
		LockID:        lockID,
		RequesterID:   actor.ID,
		RequesterName: actor.Name,
		Message:       message,
		RequestedAt:   time.Now(),
	})
}

// CleanUpExpired hard-deletes rows past their lease.
func (m *Manager) CleanUpExpired(ctx context.Context) (int64, error) {
	deleted, err := m.meta.DeleteExpiredLocks(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		m.logger.Infow("expired locks purged", "count", deleted)
	}
	return deleted, nil
}
