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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/basefold/revisiond/pkg/lock"
	"github.com/basefold/revisiond/pkg/types"
	"github.com/basefold/revisiond/utils/logger"
)

// LocksAPI is the keep-alive protocol surface of the lock manager. The
// acting user comes from the X-Actor-ID / X-Actor-Name headers filled
// in by the gateway; authentication is not this server's concern.
type LocksAPI struct {
	mgr    *lock.Manager
	logger *zap.SugaredLogger
}

func NewLocksAPI(mgr *lock.Manager) *LocksAPI {
	return &LocksAPI{mgr: mgr, logger: logger.NewLogger("locksAPI")}
}

// Status reports the lock state of (path, primary). A visiting user may
// carry an unlock request along with the poll via unlock_message.
func (api *LocksAPI) Status(gCtx *gin.Context) {
	path := gCtx.Query("path")
	if path == "" {
		gCtx.JSON(http.StatusBadRequest, errorResponse{Error: "path is required"})
		return
	}
	ctx := gCtx.Request.Context()
	status, err := api.mgr.GetStatus(ctx, path, gCtx.Query("primary"))
	if err != nil {
		abortWithError(gCtx, err)
		return
	}

	if msg := gCtx.Query("unlock_message"); msg != "" && status.Locked {
		actor := types.GetActor(ctx)
		if actor.ID != status.OwnerID {
			if err = api.mgr.RequestUnlock(ctx, status.LockID, msg); err != nil {
				abortWithError(gCtx, err)
				return
			}
			if status, err = api.mgr.GetStatus(ctx, path, gCtx.Query("primary")); err != nil {
				abortWithError(gCtx, err)
				return
			}
		}
	}
	gCtx.JSON(http.StatusOK, newLockStatusResponse(status))
}

// KeepAlive extends all locks held by the acting user.
func (api *LocksAPI) KeepAlive(gCtx *gin.Context) {
	var req keepAliveRequest
	if err := gCtx.ShouldBindJSON(&req); err != nil {
		gCtx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	extended, released, err := api.mgr.KeepAlive(gCtx.Request.Context(), req.activityTime())
	if err != nil {
		abortWithError(gCtx, err)
		return
	}
	resp := keepAliveResponse{
		Locked:        len(extended) > 0,
		ExtendedLocks: extended,
		ReleasedLocks: released,
	}
	if resp.ExtendedLocks == nil {
		resp.ExtendedLocks = []int64{}
	}
	if resp.ReleasedLocks == nil {
		resp.ReleasedLocks = []int64{}
	}
	gCtx.JSON(http.StatusOK, resp)
}

// Release ends a lock session, optionally transferring ownership.
func (api *LocksAPI) Release(gCtx *gin.Context) {
	var req releaseRequest
	if err := gCtx.ShouldBindJSON(&req); err != nil {
		gCtx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	ctx := gCtx.Request.Context()

	var (
		found bool
		err   error
	)
	switch {
	case req.TransferToUser != 0:
		found, err = api.mgr.ReleaseTransfer(ctx, req.LockID, types.Actor{ID: req.TransferToUser, Name: req.TransferToName})
	case req.Forced:
		found, err = api.mgr.ForcedRelease(ctx, req.LockID)
	default:
		found, err = api.mgr.Release(ctx, req.LockID)
	}
	if err != nil {
		abortWithError(gCtx, err)
		return
	}
	gCtx.JSON(http.StatusOK, releaseResponse{Found: found})
}

// RequestUnlock attaches a please-release message to a held lock.
func (api *LocksAPI) RequestUnlock(gCtx *gin.Context) {
	var req unlockRequestBody
	if err := gCtx.ShouldBindJSON(&req); err != nil {
		gCtx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := api.mgr.RequestUnlock(gCtx.Request.Context(), req.LockID, req.Message); err != nil {
		abortWithError(gCtx, err)
		return
	}
	gCtx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
