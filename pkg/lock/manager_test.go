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
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/basefold/revisiond/config"
	"github.com/basefold/revisiond/pkg/metastore"
	"github.com/basefold/revisiond/pkg/types"
)

const lockPath = "screens.invoice"

var _ = Describe("TestLockManager", func() {
	var (
		meta     metastore.Meta
		mgr      *Manager
		aliceCtx context.Context
		bobCtx   context.Context
		alice    = types.Actor{ID: 1, Name: "alice"}
		bob      = types.Actor{ID: 2, Name: "bob"}
	)

	BeforeEach(func() {
		meta = newTestMeta()
		mgr = NewManager(meta, config.Lock{ExpiryDelay: 60, ShortLeaveDelay: 1, SweepInterval: 600})
		aliceCtx = types.WithActor(context.TODO(), alice)
		bobCtx = types.WithActor(context.TODO(), bob)
	})

	Context("mutual exclusion", func() {
		It("should refuse a second user without touching the holder's lease", func() {
			ok, err := mgr.Lock(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())

			before, err := mgr.GetStatus(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())

			ok, err = mgr.Lock(bobCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeFalse())

			after, err := mgr.GetStatus(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(after.OwnerID).Should(Equal(alice.ID))
			Expect(after.LockedUntil).Should(Equal(before.LockedUntil))
		})
		It("should extend when the holder locks again", func() {
			ok, err := mgr.Lock(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())
			before, err := mgr.GetStatus(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())

			time.Sleep(time.Millisecond * 1100)
			ok, err = mgr.Lock(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())

			after, err := mgr.GetStatus(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(after.LockedUntil.After(before.LockedUntil)).Should(BeTrue())
		})
		It("should keep separate primaries independent", func() {
			ok, err := mgr.Lock(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())

			ok, err = mgr.Lock(bobCtx, lockPath, 43)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())
		})
	})

	Context("release with grace window", func() {
		It("should stay held through the window, then free up", func() {
			ok, err := mgr.Lock(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())
			status, err := mgr.GetStatus(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())

			found, err := mgr.Release(aliceCtx, status.LockID)
			Expect(err).Should(BeNil())
			Expect(found).Should(BeTrue())

			locked, err := mgr.IsLockedFor(bobCtx, lockPath, 42, bob)
			Expect(err).Should(BeNil())
			Expect(locked).Should(BeTrue())

			time.Sleep(time.Millisecond * 1100)
			ok, err = mgr.Lock(bobCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())
		})
		It("should let the owner recover a released lock on reload", func() {
			ok, err := mgr.Lock(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())
			status, err := mgr.GetStatus(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())

			_, err = mgr.Release(aliceCtx, status.LockID)
			Expect(err).Should(BeNil())

			ok, err = mgr.Lock(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())

			status, err = mgr.GetStatus(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(status.Released).Should(BeFalse())
		})
		It("should report a missing lock as not found", func() {
			found, err := mgr.Release(aliceCtx, 1024)
			Expect(err).Should(BeNil())
			Expect(found).Should(BeFalse())
		})
	})

	Context("release with transfer", func() {
		It("should reassign ownership and discard unlock requests", func() {
			ok, err := mgr.Lock(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())
			status, err := mgr.GetStatus(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())

			Expect(mgr.RequestUnlock(bobCtx, status.LockID, "please")).Should(BeNil())

			found, err := mgr.ReleaseTransfer(aliceCtx, status.LockID, bob)
			Expect(err).Should(BeNil())
			Expect(found).Should(BeTrue())

			status, err = mgr.GetStatus(bobCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(status.OwnerID).Should(Equal(bob.ID))
			Expect(status.Released).Should(BeFalse())
			Expect(len(status.UnlockRequests)).Should(Equal(0))
		})
	})

	Context("forced release", func() {
		It("should flag the row for audit", func() {
			ok, err := mgr.Lock(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())
			status, err := mgr.GetStatus(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())

			found, err := mgr.ForcedRelease(bobCtx, status.LockID)
			Expect(err).Should(BeNil())
			Expect(found).Should(BeTrue())

			status, err = mgr.GetStatus(bobCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(status.Released).Should(BeTrue())
			Expect(status.ForcedRelease).Should(BeTrue())
		})
	})

	Context("expiry", func() {
		It("should treat a past lease as absent and purge it on sweep", func() {
			past := time.Now().Add(-time.Hour)
			l := &types.Lock{Path: lockPath, ItemPrimary: "42", OwnerID: alice.ID, OwnerName: alice.Name, LockedAt: past, LockedUntil: past, LastActivity: past}
			Expect(meta.SaveLock(context.TODO(), l)).Should(BeNil())

			locked, err := mgr.IsLockedFor(bobCtx, lockPath, 42, bob)
			Expect(err).Should(BeNil())
			Expect(locked).Should(BeFalse())

			Expect(meta.SaveLock(context.TODO(), &types.Lock{Path: lockPath, ItemPrimary: "7", OwnerID: alice.ID, LockedAt: past, LockedUntil: past, LastActivity: past})).Should(BeNil())
			deleted, err := mgr.CleanUpExpired(context.TODO())
			Expect(err).Should(BeNil())
			Expect(deleted).Should(Equal(int64(1)))
		})
		It("should not grant a grace window when releasing a lapsed lease", func() {
			past := time.Now().Add(-time.Hour)
			l := &types.Lock{Path: lockPath, ItemPrimary: "42", OwnerID: alice.ID, OwnerName: alice.Name, LockedAt: past, LockedUntil: past, LastActivity: past}
			Expect(meta.SaveLock(context.TODO(), l)).Should(BeNil())

			found, err := mgr.Release(aliceCtx, l.ID)
			Expect(err).Should(BeNil())
			Expect(found).Should(BeFalse())

			ok, err := mgr.Lock(bobCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())
		})
		It("should not transfer a lapsed lease", func() {
			past := time.Now().Add(-time.Hour)
			l := &types.Lock{Path: lockPath, ItemPrimary: "42", OwnerID: alice.ID, OwnerName: alice.Name, LockedAt: past, LockedUntil: past, LastActivity: past}
			Expect(meta.SaveLock(context.TODO(), l)).Should(BeNil())

			found, err := mgr.ReleaseTransfer(aliceCtx, l.ID, bob)
			Expect(err).Should(BeNil())
			Expect(found).Should(BeFalse())

			status, err := mgr.GetStatus(bobCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(status.Locked).Should(BeFalse())
		})
	})

	Context("keep alive", func() {
		It("should extend live locks and report released ones", func() {
			ok, err := mgr.Lock(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())
			ok, err = mgr.Lock(aliceCtx, lockPath, 43)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())

			status, err := mgr.GetStatus(aliceCtx, lockPath, 43)
			Expect(err).Should(BeNil())
			_, err = mgr.Release(aliceCtx, status.LockID)
			Expect(err).Should(BeNil())

			extended, released, err := mgr.KeepAlive(aliceCtx, time.Now())
			Expect(err).Should(BeNil())
			Expect(len(extended)).Should(Equal(1))
			Expect(released).Should(ContainElement(status.LockID))
		})
	})

	Context("unlock requests", func() {
		It("should deduplicate per visitor", func() {
			ok, err := mgr.Lock(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())
			status, err := mgr.GetStatus(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())

			Expect(mgr.RequestUnlock(bobCtx, status.LockID, "please")).Should(BeNil())
			Expect(mgr.RequestUnlock(bobCtx, status.LockID, "please again")).Should(BeNil())

			status, err = mgr.GetStatus(aliceCtx, lockPath, 42)
			Expect(err).Should(BeNil())
			Expect(len(status.UnlockRequests)).Should(Equal(1))
			Expect(status.UnlockRequests[0].Message).Should(Equal("please"))
		})
		It("should refuse requests against unknown locks", func() {
			err := mgr.RequestUnlock(bobCtx, 1024, "please")
			Expect(err).Should(Equal(types.ErrNotFound))
		})
	})

	Context("primary validation", func() {
		It("should accept strings and integers only", func() {
			_, err := PrimaryFromValue("abc")
			Expect(err).Should(BeNil())
			_, err = PrimaryFromValue(42)
			Expect(err).Should(BeNil())
			_, err = PrimaryFromValue(3.14)
			Expect(err).Should(Equal(types.ErrLockPrimaryUnhandled))
		})
		It("should refuse binding a non-lockable item", func() {
			_, err := mgr.LockRecord(aliceCtx, fakeLockable{lockable: false})
			Expect(err).Should(Equal(types.ErrNotLockable))

			ok, err := mgr.LockRecord(aliceCtx, fakeLockable{lockable: true})
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())
		})
	})
})

type fakeLockable struct {
	lockable bool
}

func (f fakeLockable) IsLockable() bool {
	return f.lockable
}

func (f fakeLockable) LockPath() string {
	return "records.fake"
}

func (f fakeLockable) LockPrimary() interface{} {
	return int64(1)
}
