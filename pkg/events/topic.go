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

const (
	TopicRecordCreated   = "record.create"
	TopicRecordDestroyed = "record.destroy"

	TopicRevisionAdded    = "revision.add"
	TopicRevisionRemoved  = "revision.remove"
	TopicRevisionSelected = "revision.select"

	TopicLockAcquired = "lock.acquire"
	TopicLockReleased = "lock.release"
)

const (
	ActionTypeCreate  = "create"
	ActionTypeDestroy = "destroy"
	ActionTypeAdd     = "add"
	ActionTypeRemove  = "remove"
	ActionTypeSelect  = "select"
	ActionTypeAcquire = "acquire"
	ActionTypeRelease = "release"
)
