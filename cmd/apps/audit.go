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

package apps

import (
	"github.com/basefold/revisiond/pkg/events"
	"github.com/basefold/revisiond/pkg/types"
	"github.com/basefold/revisiond/utils/logger"
)

// subscribeAuditLog turns every lifecycle event into an audit log line.
func subscribeAuditLog() {
	log := logger.NewLogger("audit")
	handler := func(evt *types.Event) {
		log.Infow("event",
			"id", evt.Id,
			"type", evt.Type,
			"rtype", evt.RecordType,
			"campaign", evt.Campaign,
			"record", evt.RecordID,
			"revision", evt.Revision,
			"actor", evt.ActorName,
		)
	}
	for _, topic := range []string{
		events.TopicRecordCreated,
		events.TopicRecordDestroyed,
		events.TopicRevisionAdded,
		events.TopicRevisionRemoved,
		events.TopicRevisionSelected,
		events.TopicLockAcquired,
		events.TopicLockReleased,
	} {
		events.Subscribe(topic, handler)
	}
}
