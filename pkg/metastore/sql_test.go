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

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/basefold/revisiond/config"
	"github.com/basefold/revisiond/pkg/metastore/db"
	"github.com/basefold/revisiond/pkg/types"
)

var _ = Describe("TestRecordLifecycle", func() {
	var (
		store Meta
		ctx   = context.TODO()
		alice = types.Actor{ID: 1, Name: "alice"}
		bob   = types.Actor{ID: 2, Name: "bob"}
	)

	BeforeEach(func() {
		store = newTestStore()
	})

	Context("create a record", func() {
		It("should insert id, first revision and pointer", func() {
			rev := &types.RevisionInfo{Type: "invoice", Label: "Draft 1", State: "draft", OwnerID: alice.ID, OwnerName: alice.Name}
			id, err := store.CreateRecord(ctx, rev, map[string]string{"title": "hello"})
			Expect(err).Should(BeNil())
			Expect(id).Should(Equal(int64(1)))
			Expect(rev.Number).Should(BeNumerically(">", 0))
			Expect(rev.Pretty).Should(Equal(int64(1)))

			rec, err := store.GetRecord(ctx, "invoice", "", id)
			Expect(err).Should(BeNil())
			Expect(rec.ID).Should(Equal(id))

			current, err := store.GetCurrentRevision(ctx, "invoice", "", id)
			Expect(err).Should(BeNil())
			Expect(current).Should(Equal(rev.Number))

			keys, err := store.GetRevisionKeys(ctx, rev.Number)
			Expect(err).Should(BeNil())
			Expect(keys["title"]).Should(Equal("hello"))
		})
		It("should allocate increasing ids", func() {
			rev1 := &types.RevisionInfo{Type: "invoice", Label: "one"}
			rev2 := &types.RevisionInfo{Type: "invoice", Label: "two"}
			id1, err := store.CreateRecord(ctx, rev1, nil)
			Expect(err).Should(BeNil())
			id2, err := store.CreateRecord(ctx, rev2, nil)
			Expect(err).Should(BeNil())
			Expect(id2).Should(Equal(id1 + 1))
		})
	})

	Context("lookup a missing record", func() {
		It("should fail with not found", func() {
			_, err := store.GetRecord(ctx, "invoice", "", 1024)
			Expect(err).Should(Equal(types.ErrNotFound))
		})
		It("should scope by campaign keys", func() {
			rev := &types.RevisionInfo{Type: "invoice", Campaign: "site=a", Label: "one"}
			id, err := store.CreateRecord(ctx, rev, nil)
			Expect(err).Should(BeNil())

			_, err = store.GetRecord(ctx, "invoice", "site=b", id)
			Expect(err).Should(Equal(types.ErrNotFound))
			_, err = store.GetRecord(ctx, "invoice", "site=a", id)
			Expect(err).Should(BeNil())
		})
	})

	Context("copy a revision", func() {
		It("should duplicate content and restamp owner fields", func() {
			rev := &types.RevisionInfo{Type: "invoice", Label: "Draft 1", State: "draft", OwnerID: alice.ID, OwnerName: alice.Name}
			id, err := store.CreateRecord(ctx, rev, map[string]string{"title": "hello"})
			Expect(err).Should(BeNil())

			n2, err := store.CopyRevision(ctx, rev, bob, "Edit")
			Expect(err).Should(BeNil())
			Expect(n2).Should(BeNumerically(">", rev.Number))

			rev2, err := store.GetRevision(ctx, "invoice", "", id, n2)
			Expect(err).Should(BeNil())
			Expect(rev2.Label).Should(Equal("Draft 1"))
			Expect(rev2.State).Should(Equal("draft"))
			Expect(rev2.OwnerID).Should(Equal(bob.ID))
			Expect(rev2.Comments).Should(Equal("Edit"))
			Expect(rev2.Pretty).Should(Equal(int64(2)))

			keys, err := store.GetRevisionKeys(ctx, n2)
			Expect(err).Should(BeNil())
			Expect(keys["title"]).Should(Equal("hello"))
		})
		It("should run extra part copiers after the base row", func() {
			rev := &types.RevisionInfo{Type: "invoice", Label: "one"}
			_, err := store.CreateRecord(ctx, rev, nil)
			Expect(err).Should(BeNil())

			var sawTarget int64
			part := func(tx *gorm.DB, source, target int64) error {
				sawTarget = target
				return tx.Create(&db.RevisionKey{Revision: target, Name: "part", Value: "yes"}).Error
			}
			n2, err := store.CopyRevision(ctx, rev, alice, "", part)
			Expect(err).Should(BeNil())
			Expect(sawTarget).Should(Equal(n2))

			keys, err := store.GetRevisionKeys(ctx, n2)
			Expect(err).Should(BeNil())
			Expect(keys["part"]).Should(Equal("yes"))
		})
	})

	Context("list revisions", func() {
		It("should return a strictly increasing sequence with latest at max", func() {
			rev := &types.RevisionInfo{Type: "invoice", Label: "one"}
			id, err := store.CreateRecord(ctx, rev, nil)
			Expect(err).Should(BeNil())
			for i := 0; i < 3; i++ {
				_, err = store.CopyRevision(ctx, rev, alice, "")
				Expect(err).Should(BeNil())
			}

			all, err := store.ListRevisions(ctx, "invoice", "", id)
			Expect(err).Should(BeNil())
			Expect(len(all)).Should(Equal(4))
			for i := 1; i < len(all); i++ {
				Expect(all[i].Number).Should(BeNumerically(">", all[i-1].Number))
			}
			latest, err := store.GetLatestRevision(ctx, "invoice", "", id)
			Expect(err).Should(BeNil())
			Expect(latest.Number).Should(Equal(all[len(all)-1].Number))
		})
	})

	Context("move the current pointer", func() {
		It("should upsert when the target exists and refuse otherwise", func() {
			rev := &types.RevisionInfo{Type: "invoice", Label: "one"}
			id, err := store.CreateRecord(ctx, rev, nil)
			Expect(err).Should(BeNil())
			n2, err := store.CopyRevision(ctx, rev, alice, "")
			Expect(err).Should(BeNil())

			Expect(store.SetCurrentRevision(ctx, "invoice", "", id, n2)).Should(BeNil())
			current, err := store.GetCurrentRevision(ctx, "invoice", "", id)
			Expect(err).Should(BeNil())
			Expect(current).Should(Equal(n2))

			err = store.SetCurrentRevision(ctx, "invoice", "", id, n2+100)
			Expect(err).Should(Equal(types.ErrNotFound))
		})
	})

	Context("delete a revision the pointer sits on", func() {
		It("should repoint to the new latest in the same transaction", func() {
			rev := &types.RevisionInfo{Type: "invoice", Label: "one"}
			id, err := store.CreateRecord(ctx, rev, nil)
			Expect(err).Should(BeNil())
			n2, err := store.CopyRevision(ctx, rev, alice, "")
			Expect(err).Should(BeNil())
			Expect(store.SetCurrentRevision(ctx, "invoice", "", id, n2)).Should(BeNil())

			Expect(store.DeleteRevision(ctx, "invoice", "", id, n2)).Should(BeNil())

			current, err := store.GetCurrentRevision(ctx, "invoice", "", id)
			Expect(err).Should(BeNil())
			Expect(current).Should(Equal(rev.Number))
		})
		It("should leave a pointer on another revision alone", func() {
			rev := &types.RevisionInfo{Type: "invoice", Label: "one"}
			id, err := store.CreateRecord(ctx, rev, nil)
			Expect(err).Should(BeNil())
			n2, err := store.CopyRevision(ctx, rev, alice, "")
			Expect(err).Should(BeNil())

			Expect(store.DeleteRevision(ctx, "invoice", "", id, n2)).Should(BeNil())

			current, err := store.GetCurrentRevision(ctx, "invoice", "", id)
			Expect(err).Should(BeNil())
			Expect(current).Should(Equal(rev.Number))
		})
	})

	Context("replace a revision the pointer sits on", func() {
		It("should move the pointer to the squash target", func() {
			rev := &types.RevisionInfo{Type: "invoice", Label: "one"}
			id, err := store.CreateRecord(ctx, rev, map[string]string{"title": "hello"})
			Expect(err).Should(BeNil())
			n2, err := store.CopyRevision(ctx, rev, alice, "draft")
			Expect(err).Should(BeNil())
			Expect(store.SetCurrentRevision(ctx, "invoice", "", id, n2)).Should(BeNil())

			target, err := store.GetRevision(ctx, "invoice", "", id, rev.Number)
			Expect(err).Should(BeNil())
			Expect(store.ReplaceRevision(ctx, target, map[string]string{"title": "squashed"}, nil, n2)).Should(BeNil())

			current, err := store.GetCurrentRevision(ctx, "invoice", "", id)
			Expect(err).Should(BeNil())
			Expect(current).Should(Equal(rev.Number))
		})
	})

	Context("overwrite a revision", func() {
		It("should run extra part copiers inside the transaction", func() {
			rev1 := &types.RevisionInfo{Type: "invoice", Label: "one"}
			_, err := store.CreateRecord(ctx, rev1, map[string]string{"title": "hello"})
			Expect(err).Should(BeNil())
			rev2 := &types.RevisionInfo{Type: "invoice", Label: "two"}
			_, err = store.CreateRecord(ctx, rev2, nil)
			Expect(err).Should(BeNil())

			part := func(tx *gorm.DB, source, target int64) error {
				return tx.Create(&db.RevisionKey{Revision: target, Name: "part", Value: "yes"}).Error
			}
			Expect(store.OverwriteRevision(ctx, rev1, rev2, part)).Should(BeNil())

			keys, err := store.GetRevisionKeys(ctx, rev2.Number)
			Expect(err).Should(BeNil())
			Expect(keys["title"]).Should(Equal("hello"))
			Expect(keys["part"]).Should(Equal("yes"))
		})
	})

	Context("reverse lookup by revision", func() {
		It("should resolve the owning record", func() {
			rev := &types.RevisionInfo{Type: "invoice", Label: "one"}
			id, err := store.CreateRecord(ctx, rev, nil)
			Expect(err).Should(BeNil())

			owner, err := store.GetRecordIDByRevision(ctx, "invoice", "", rev.Number)
			Expect(err).Should(BeNil())
			Expect(owner).Should(Equal(id))

			_, err = store.GetRecordIDByRevision(ctx, "invoice", "", rev.Number+1024)
			Expect(err).Should(Equal(types.ErrNotFound))
		})
	})

	Context("destroy a record", func() {
		It("should drop revisions, keys, data and pointer", func() {
			rev := &types.RevisionInfo{Type: "invoice", Label: "one"}
			id, err := store.CreateRecord(ctx, rev, map[string]string{"title": "x"})
			Expect(err).Should(BeNil())
			Expect(store.WriteRevisionData(ctx, rev.Number, map[string]string{"body": "big"})).Should(BeNil())

			Expect(store.DestroyRecord(ctx, "invoice", "", id)).Should(BeNil())

			_, err = store.GetRecord(ctx, "invoice", "", id)
			Expect(err).Should(Equal(types.ErrNotFound))
			_, err = store.GetCurrentRevision(ctx, "invoice", "", id)
			Expect(err).Should(Equal(types.ErrNotFound))
			keys, err := store.GetRevisionKeys(ctx, rev.Number)
			Expect(err).Should(BeNil())
			Expect(len(keys)).Should(Equal(0))
			data, err := store.GetRevisionData(ctx, rev.Number)
			Expect(err).Should(BeNil())
			Expect(len(data)).Should(Equal(0))
		})
	})

	Context("amend a revision", func() {
		It("should only touch owner and comments", func() {
			rev := &types.RevisionInfo{Type: "invoice", Label: "one", State: "draft", OwnerID: alice.ID, OwnerName: alice.Name}
			id, err := store.CreateRecord(ctx, rev, nil)
			Expect(err).Should(BeNil())

			Expect(store.UpdateRevisionAmendable(ctx, "invoice", "", rev.Number, bob, "taken over")).Should(BeNil())
			got, err := store.GetRevision(ctx, "invoice", "", id, rev.Number)
			Expect(err).Should(BeNil())
			Expect(got.OwnerID).Should(Equal(bob.ID))
			Expect(got.Comments).Should(Equal("taken over"))
			Expect(got.Label).Should(Equal("one"))

			err = store.UpdateRevisionAmendable(ctx, "invoice", "", rev.Number+99, bob, "")
			Expect(err).Should(Equal(types.ErrNotFound))
		})
	})
})

var _ = Describe("TestLockRows", func() {
	var (
		store Meta
		ctx   = context.TODO()
	)

	BeforeEach(func() {
		store = newTestStore()
	})

	Context("save and fetch a lock", func() {
		It("should round-trip all fields", func() {
			now := time.Now()
			l := &types.Lock{
				Path:         "screens.invoice",
				ItemPrimary:  "42",
				OwnerID:      1,
				OwnerName:    "alice",
				LockedAt:     now,
				LockedUntil:  now.Add(time.Hour),
				LastActivity: now,
				Properties:   map[string]string{"tab": "main"},
			}
			Expect(store.SaveLock(ctx, l)).Should(BeNil())
			Expect(l.ID).Should(BeNumerically(">", 0))

			got, err := store.GetActiveLock(ctx, "screens.invoice", "42")
			Expect(err).Should(BeNil())
			Expect(got.OwnerID).Should(Equal(int64(1)))
			Expect(got.Properties["tab"]).Should(Equal("main"))

			_, err = store.GetActiveLock(ctx, "screens.invoice", "7")
			Expect(err).Should(Equal(types.ErrNotFound))
		})
	})

	Context("expired rows", func() {
		It("should be purged together with their unlock requests", func() {
			past := time.Now().Add(-time.Hour)
			l := &types.Lock{Path: "screens.invoice", ItemPrimary: "42", OwnerID: 1, LockedAt: past, LockedUntil: past, LastActivity: past}
			Expect(store.SaveLock(ctx, l)).Should(BeNil())
			Expect(store.SaveUnlockRequest(ctx, &types.UnlockRequest{LockID: l.ID, RequesterID: 2, Message: "please", RequestedAt: past})).Should(BeNil())

			deleted, err := store.DeleteExpiredLocks(ctx, time.Now())
			Expect(err).Should(BeNil())
			Expect(deleted).Should(Equal(int64(1)))

			_, err = store.GetLockByID(ctx, l.ID)
			Expect(err).Should(Equal(types.ErrNotFound))
			requests, err := store.ListUnlockRequests(ctx, l.ID)
			Expect(err).Should(BeNil())
			Expect(len(requests)).Should(Equal(0))
		})
	})
})

var _ = Describe("TestTransactionGuard", func() {
	Context("multi-row helpers outside a transaction", func() {
		It("should fail with no transaction active", func() {
			s, err := newSqliteMetaStore(config.Meta{Type: config.MemoryMeta, Path: ":memory:"})
			Expect(err).Should(BeNil())

			err = writeRevisionKeys(s.dbStore.DB, 1, map[string]string{"k": "v"})
			Expect(err).Should(Equal(types.ErrNoTransaction))

			err = s.dbStore.Transaction(func(tx *gorm.DB) error {
				return writeRevisionKeys(tx, 1, map[string]string{"k": "v"})
			})
			Expect(err).Should(BeNil())
		})
	})
})
