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
	defaultLockExpiryDelay     = 30 * 60
	defaultLockShortLeaveDelay = 60
	defaultLockSweepInterval   = 10 * 60
	defaultCacheSize           = 1 << 12
)

func setDefault(cfg *Bootstrap) {
	if cfg.Meta.Type == "" {
		cfg.Meta.Type = MemoryMeta
	}
	if cfg.Lock.ExpiryDelay <= 0 {
		cfg.Lock.ExpiryDelay = defaultLockExpiryDelay
	}
	if cfg.Lock.ShortLeaveDelay <= 0 {
		cfg.Lock.ShortLeaveDelay = defaultLockShortLeaveDelay
	}
	if cfg.Lock.SweepInterval <= 0 {
		cfg.Lock.SweepInterval = defaultLockSweepInterval
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
}
