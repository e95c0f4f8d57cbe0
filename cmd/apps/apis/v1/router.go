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

package v1

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/basefold/revisiond/pkg/types"
)

const (
	actorIDHeader   = "X-Actor-ID"
	actorNameHeader = "X-Actor-Name"
)

// ActorMiddleware resolves the acting user from request headers and
// stores it on the request context.
func ActorMiddleware() gin.HandlerFunc {
	return func(gCtx *gin.Context) {
		actor := types.SystemActor
		if raw := gCtx.GetHeader(actorIDHeader); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				actor = types.Actor{ID: id, Name: gCtx.GetHeader(actorNameHeader)}
			}
		}
		gCtx.Request = gCtx.Request.WithContext(types.WithActor(gCtx.Request.Context(), actor))
		gCtx.Next()
	}
}

func RegisterRoutes(engine *gin.Engine, locks *LocksAPI) {
	grp := engine.Group("/api/v1", ActorMiddleware())
	grp.GET("/locks/status", locks.Status)
	grp.POST("/locks/keepalive", locks.KeepAlive)
	grp.POST("/locks/release", locks.Release)
	grp.POST("/locks/unlock-request", locks.RequestUnlock)
}
