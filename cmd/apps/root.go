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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basefold/revisiond/cmd/apps/apis"
	"github.com/basefold/revisiond/config"
	"github.com/basefold/revisiond/pkg/lock"
	"github.com/basefold/revisiond/pkg/metastore"
	"github.com/basefold/revisiond/utils"
	"github.com/basefold/revisiond/utils/logger"
)

const version = "1.0.0"

func init() {
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(versionCmd)
	serveCmd.Flags().StringVar(&config.FilePath, "config", "", "revisiond config file")
}

var RootCmd = &cobra.Command{
	Use:   "revisiond",
	Short: "Revisiond engine server",
	Long:  `Revisioned record storage with pessimistic screen locking.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start server service",
	Run: func(cmd *cobra.Command, args []string) {
		loader := config.NewConfigLoader()
		cfg, err := loader.GetBootstrapConfig()
		if err != nil {
			panic(err)
		}
		if cfg.Debug {
			logger.SetDebug(cfg.Debug)
		}

		meta, err := metastore.NewMetaStorage(cfg.Meta.Type, cfg.Meta)
		if err != nil {
			panic(err)
		}

		lockMgr := lock.NewManager(meta, cfg.Lock)
		stop := utils.HandleTerminalSignal()
		run(lockMgr, cfg, stop)
	},
}

func run(lockMgr *lock.Manager, cfg config.Bootstrap, stopCh chan struct{}) {
	log := logger.NewLogger("revisiond")
	log.Infow("starting", "version", version)

	ctx, canF := context.WithCancel(context.Background())
	defer canF()

	subscribeAuditLog()
	go lock.NewSweeper(lockMgr, cfg.Lock).Run(ctx)

	if cfg.API.Enable {
		s, err := apis.New(lockMgr, cfg)
		if err != nil {
			log.Panicw("init http server failed", "err", err.Error())
		}
		go s.Run(stopCh)
	}

	log.Info("started")
	<-stopCh
	log.Info("stopped")
}
