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

package lock

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/basefold/revisiond/config"
	"github.com/basefold/revisiond/utils/logger"
)

// Sweeper periodically hard-deletes expired lock rows. Lazy expiry on
// read already hides them; the sweep keeps the table from growing.
type Sweeper struct {
	mgr      *Manager
	interval time.Duration
	logger   *zap.SugaredLogger
}

func NewSweeper(mgr *Manager, cfg config.Lock) *Sweeper {
	return &Sweeper{
		mgr:      mgr,
		interval: time.Duration(cfg.SweepInterval) * time.Second,
		logger:   logger.NewLogger("lockSweeper"),
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Infow("sweeper started", "interval", s.interval)
	timer := time.NewTicker(s.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-timer.C:
			if _, err := s.mgr.CleanUpExpired(ctx); err != nil {
				s.logger.Errorw("clean up expired locks failed", "err", err)
			}
		}
	}
}
