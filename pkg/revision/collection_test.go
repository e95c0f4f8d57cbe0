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

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/basefold/revisiond/pkg/metastore"
	"github.com/basefold/revisiond/pkg/types"
)

var _ = Describe("TestRevisionableCollection", func() {
	var (
		meta  metastore.Meta
		col   *Collection
		ctx   context.Context
		alice = types.Actor{ID: 1, Name: "alice"}
	)

	BeforeEach(func() {
		ctx = types.WithActor(context.TODO(), alice)
		meta = newTestMeta()
		col = NewCollection(invoiceType(), nil, meta, 0)
	})

	Context("create a new revisionable", func() {
		It("should require a label", func() {
			_, err := col.CreateNewRevisionable(ctx, "", nil)
			Expect(err).Should(Equal(types.ErrMissingLabel))
		})
		It("should stamp the context actor as owner", func() {
			rec, err := col.CreateNewRevisionable(ctx, "Draft 1", nil)
			Expect(err).Should(BeNil())
			Expect(rec.Storage().CurrentInfo().OwnerName).Should(Equal("alice"))
		})
	})

	Context("instance cache", func() {
		It("should hand out the same instance until unloaded", func() {
			rec, err := col.CreateNewRevisionable(ctx, "Draft 1", nil)
			Expect(err).Should(BeNil())

			again, err := col.GetByID(ctx, rec.ID())
			Expect(err).Should(BeNil())
			Expect(again).Should(BeIdenticalTo(rec))

			col.UnloadRecord(rec.ID())
			fresh, err := col.GetByID(ctx, rec.ID())
			Expect(err).Should(BeNil())
			Expect(fresh).ShouldNot(BeIdenticalTo(rec))
		})
		It("should dispose everything on reset", func() {
			rec, err := col.CreateNewRevisionable(ctx, "Draft 1", nil)
			Expect(err).Should(BeNil())
			col.ResetCollection()
			Expect(rec.Storage().IsDisposed()).Should(BeTrue())
		})
	})

	Context("reverse lookup", func() {
		It("should resolve records by revision number", func() {
			rec, err := col.CreateNewRevisionable(ctx, "Draft 1", nil)
			Expect(err).Should(BeNil())
			revision := rec.Storage().Selected()

			id, err := col.GetIDByRevision(ctx, revision)
			Expect(err).Should(BeNil())
			Expect(id).Should(Equal(rec.ID()))

			byRev, err := col.GetByRevision(ctx, revision)
			Expect(err).Should(BeNil())
			Expect(byRev.ID()).Should(Equal(rec.ID()))

			_, err = col.GetIDByRevision(ctx, revision+1024)
			Expect(err).Should(Equal(types.ErrRevisionNotFound))
		})
	})

	Context("current pointer", func() {
		It("should refuse moving to a missing revision", func() {
			rec, err := col.CreateNewRevisionable(ctx, "Draft 1", nil)
			Expect(err).Should(BeNil())
			err = col.SetCurrentRevision(ctx, rec.ID(), 1024)
			Expect(err).Should(Equal(types.ErrRevisionNotFound))
		})
		It("should advance after a branch", func() {
			rec, err := col.CreateNewRevisionable(ctx, "Draft 1", nil)
			Expect(err).Should(BeNil())
			first := rec.Storage().Selected()
			n2, err := rec.Storage().AddByCopy(ctx, first, alice, "next")
			Expect(err).Should(BeNil())

			Expect(col.SetCurrentRevision(ctx, rec.ID(), n2)).Should(BeNil())
			current, err := col.GetCurrentRevision(ctx, rec.ID())
			Expect(err).Should(BeNil())
			Expect(current).Should(Equal(n2))
		})
	})

	Context("campaign keys", func() {
		It("should isolate otherwise-identical id spaces", func() {
			colA := NewCollection(invoiceType(), types.CampaignKeys{"site": "a"}, meta, 0)
			colB := NewCollection(invoiceType(), types.CampaignKeys{"site": "b"}, meta, 0)

			rec, err := colA.CreateNewRevisionable(ctx, "Draft 1", nil)
			Expect(err).Should(BeNil())

			_, err = colB.GetByID(ctx, rec.ID())
			Expect(err).Should(Equal(types.ErrNotFound))
			_, err = colA.GetByID(ctx, rec.ID())
			Expect(err).Should(BeNil())
		})
	})

	Context("destroy and delete", func() {
		It("should refuse the generic per-row delete path", func() {
			rec, err := col.CreateNewRevisionable(ctx, "Draft 1", nil)
			Expect(err).Should(BeNil())
			Expect(col.Delete(ctx, rec.ID())).Should(Equal(types.ErrCannotDeleteRecordDirectly))
		})
		It("should honor the destroy policy hook", func() {
			typ := invoiceType()
			typ.CanDestroy = func(ctx context.Context, rec *Record) bool { return false }
			guarded := NewCollection(typ, nil, meta, 0)

			rec, err := guarded.CreateNewRevisionable(ctx, "Draft 1", nil)
			Expect(err).Should(BeNil())
			Expect(guarded.Destroy(ctx, rec)).Should(Equal(types.ErrConflict))
		})
		It("should remove the record entirely on destroy", func() {
			rec, err := col.CreateNewRevisionable(ctx, "Draft 1", nil)
			Expect(err).Should(BeNil())
			id := rec.ID()

			Expect(col.Destroy(ctx, rec)).Should(BeNil())
			Expect(rec.Storage().IsDisposed()).Should(BeTrue())
			_, err = col.GetByID(ctx, id)
			Expect(err).Should(Equal(types.ErrNotFound))
		})
	})
})
