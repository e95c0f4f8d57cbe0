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

package types

import "context"

// Actor is the current user on whose behalf an operation runs. It is the
// default author of new revisions and the owner of acquired locks.
type Actor struct {
	ID   int64
	Name string
}

const actorKey = "actor"

var SystemActor = Actor{ID: 0, Name: "system"}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor) //nolint:staticcheck
}

func GetActor(ctx context.Context) Actor {
	if v := ctx.Value(actorKey); v != nil {
		return v.(Actor)
	}
	return SystemActor
}
