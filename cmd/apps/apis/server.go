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

package apis

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	v1 "github.com/basefold/revisiond/cmd/apps/apis/v1"
	"github.com/basefold/revisiond/config"
	"github.com/basefold/revisiond/pkg/lock"
	"github.com/basefold/revisiond/utils"
	"github.com/basefold/revisiond/utils/logger"
)

const defaultHttpTimeout = time.Minute * 30

type Server struct {
	engine *gin.Engine
	cfg    config.Bootstrap
	logger *zap.SugaredLogger
}

func New(lockMgr *lock.Manager, cfg config.Bootstrap) (*Server, error) {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		engine: gin.New(),
		cfg:    cfg,
		logger: logger.NewLogger("api"),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(s.logMiddleware())

	v1.RegisterRoutes(s.engine, v1.NewLocksAPI(lockMgr))

	s.engine.GET("/_ping", s.Ping)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.API.Pprof {
		pprof.Register(s.engine)
	}
	return s, nil
}

func (s *Server) Run(stopCh chan struct{}) {
	addr := fmt.Sprintf("%s:%d", s.cfg.API.Host, s.cfg.API.Port)
	s.logger.Infof("api server on %s", addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  defaultHttpTimeout,
		WriteTimeout: defaultHttpTimeout,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			if err != http.ErrServerClosed {
				s.logger.Panicw("api server down", "err", err)
			}
			s.logger.Infof("api server stopped")
		}
	}()

	<-stopCh
	shutdownCtx, canF := context.WithTimeout(context.TODO(), time.Second)
	defer canF()
	_ = httpServer.Shutdown(shutdownCtx)
}

func (s *Server) Ping(gCtx *gin.Context) {
	gCtx.JSON(200, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) logMiddleware() gin.HandlerFunc {
	return func(gCtx *gin.Context) {
		start := time.Now()
		path := gCtx.Request.URL.Path
		method := gCtx.Request.Method

		reqID := gCtx.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = utils.MustRandString(12)
		}
		gCtx.Header("X-Request-ID", reqID)

		gCtx.Next()

		s.logger.Infow("api request",
			"req", reqID,
			"method", method,
			"path", path,
			"query", gCtx.Request.URL.Query().Encode(),
			"status", gCtx.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
