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

	"github.com/basefold/revisiond/pkg/metastore"
	"github.com/basefold/revisiond/pkg/types"
)

// Copy materializes a new revision by duplicating a source revision's
// durable rows. The target's identity, owner, date and comments are
// overwritten and the pretty counter is recomputed; everything else is
// taken from the source. Regular keys and data keys are copied by the
// store itself, extra part copiers run after the base row exists, all
// inside one transaction.
//
// A Copy is single-use: Process succeeds at most once.
type Copy struct {
	meta     metastore.Meta
	source   *types.RevisionInfo
	owner    types.Actor
	comments string
	parts    []metastore.PartCopier
	consumed bool
}

func NewCopy(meta metastore.Meta, source *types.RevisionInfo, owner types.Actor, comments string, parts ...metastore.PartCopier) *Copy {
	return &Copy{meta: meta, source: source, owner: owner, comments: comments, parts: parts}
}

func (c *Copy) Process(ctx context.Context) (int64, error) {
	if c.consumed {
		return 0, types.ErrCopyConsumed
	}
	c.consumed = true
	return c.meta.CopyRevision(ctx, c.source, c.owner, c.comments, c.parts...)
}
