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

package events

import (
	"time"

	"github.com/google/uuid"
	eventbus "github.com/hyponet/eventbus/bus"

	"github.com/basefold/revisiond/pkg/types"
)

const eventSource = "revisiond"

func BuildRecordEvent(actionType string, rec *types.RecordInfo, actor types.Actor) *types.Event {
	return &types.Event{
		Id:         uuid.New().String(),
		Type:       actionType,
		Source:     eventSource,
		Time:       time.Now(),
		RecordType: rec.Type,
		Campaign:   rec.Campaign,
		RecordID:   rec.ID,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
	}
}

func BuildRevisionEvent(actionType string, rev *types.RevisionInfo, actor types.Actor) *types.Event {
	return &types.Event{
		Id:         uuid.New().String(),
		Type:       actionType,
		Source:     eventSource,
		Time:       time.Now(),
		RecordType: rev.Type,
		Campaign:   rev.Campaign,
		RecordID:   rev.RecordID,
		Revision:   rev.Number,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
	}
}

func BuildLockEvent(actionType string, lock *types.Lock, actor types.Actor) *types.Event {
	return &types.Event{
		Id:         uuid.New().String(),
		Type:       actionType,
		Source:     eventSource,
		Time:       time.Now(),
		RecordType: lock.Path,
		RecordID:   lock.ID,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
	}
}

func Publish(topic string, evt *types.Event) {
	eventbus.Publish(topic, evt)
}

func Subscribe(topic string, handler func(evt *types.Event)) {
	eventbus.Subscribe(topic, handler)
}
