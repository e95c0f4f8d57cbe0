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

package config

const (
	MemoryMeta   = "memory"
	SqliteMeta   = "sqlite"
	PostgresMeta = "postgres"
)

type Bootstrap struct {
	Meta  Meta `json:"meta"`
	API   API  `json:"api"`
	Lock  Lock `json:"lock"`
	Debug bool `json:"debug,omitempty"`

	// CacheSize bounds each collection's in-memory record cache.
	CacheSize int `json:"cache_size,omitempty"`
}

type Meta struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
	DSN  string `json:"dsn,omitempty"`
}

type API struct {
	Enable bool   `json:"enable"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Pprof  bool   `json:"pprof"`
}

// Lock delays are in seconds. ExpiryDelay is the lease granted by lock()
// and keep-alive; ShortLeaveDelay is the grace window after release();
// SweepInterval drives the hard-delete sweep of expired rows.
type Lock struct {
	ExpiryDelay     int `json:"expiry_delay,omitempty"`
	ShortLeaveDelay int `json:"short_leave_delay,omitempty"`
	SweepInterval   int `json:"sweep_interval,omitempty"`
}
