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
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/basefold/revisiond/pkg/types"
)

type unlockRequestInfo struct {
	RequesterID   int64  `json:"requester_id"`
	RequesterName string `json:"requester_name"`
	Message       string `json:"message"`
	RequestedAt   int64  `json:"requested_at"`
}

type lockStatusResponse struct {
	Locked         bool                `json:"locked"`
	LockID         int64               `json:"lock_id,omitempty"`
	OwnerID        int64               `json:"owner_id,omitempty"`
	OwnerName      string              `json:"owner_name,omitempty"`
	LockedUntil    int64               `json:"locked_until,omitempty"`
	Released       bool                `json:"released,omitempty"`
	ForcedRelease  bool                `json:"forced_release,omitempty"`
	UnlockRequests []unlockRequestInfo `json:"unlock_requests,omitempty"`
}

func newLockStatusResponse(status *types.LockStatus) lockStatusResponse {
	resp := lockStatusResponse{
		Locked:        status.Locked,
		LockID:        status.LockID,
		OwnerID:       status.OwnerID,
		OwnerName:     status.OwnerName,
		Released:      status.Released,
		ForcedRelease: status.ForcedRelease,
	}
	if status.Locked {
		resp.LockedUntil = status.LockedUntil.Unix()
	}
	for _, req := range status.UnlockRequests {
		resp.UnlockRequests = append(resp.UnlockRequests, unlockRequestInfo{
			RequesterID:   req.RequesterID,
			RequesterName: req.RequesterName,
			Message:       req.Message,
			RequestedAt:   req.RequestedAt.Unix(),
		})
	}
	return resp
}

type keepAliveRequest struct {
	LastActivity int64 `json:"last_activity"`
}

func (r keepAliveRequest) activityTime() time.Time {
	if r.LastActivity == 0 {
		return time.Now()
	}
	return time.Unix(r.LastActivity, 0)
}

type keepAliveResponse struct {
	Locked        bool    `json:"locked"`
	ExtendedLocks []int64 `json:"extended_locks"`
	ReleasedLocks []int64 `json:"released_locks"`
}

type releaseRequest struct {
	LockID         int64  `json:"lock_id"`
	TransferToUser int64  `json:"transfer_to_user,omitempty"`
	TransferToName string `json:"transfer_to_name,omitempty"`
	Forced         bool   `json:"forced,omitempty"`
}

type releaseResponse struct {
	Found bool `json:"found"`
}

type unlockRequestBody struct {
	LockID  int64  `json:"lock_id"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func abortWithError(gCtx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrRevisionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrLockPrimaryUnhandled), errors.Is(err, types.ErrNotLockable):
		status = http.StatusBadRequest
	}
	gCtx.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}
