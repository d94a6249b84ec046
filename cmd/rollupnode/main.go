// Copyright 2025 Alpen Labs
//
// rollupnode is the consensus-kernel node entrypoint. It builds the
// client-state machine harness from the configured genesis parameters,
// runs the fork-choice service, and stops when signaled. The harness is
// not fed any L1 manifests.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alpenlabs/alpen-rollup/pkg/config"
	"github.com/alpenlabs/alpen-rollup/pkg/fcm"
	"github.com/alpenlabs/alpen-rollup/pkg/rollupsim"
	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

func main() {
	var (
		rollupConfigPath = flag.String("rollup-config", "", "Path to the rollup YAML config file (overrides ROLLUP_CONFIG_PATH)")
		showHelp         = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	log.Println("🚀 [Phase 1] Starting rollup node...")

	ambient, err := config.Load()
	if err != nil {
		log.Fatalf("❌ [Phase 1] Failed to load ambient configuration: %v", err)
	}
	log.Printf("✅ [Phase 1] Ambient configuration loaded (node_id=%s, log_level=%s)", ambient.NodeID, ambient.LogLevel)

	path := *rollupConfigPath
	if path == "" {
		path = os.Getenv("ROLLUP_CONFIG_PATH")
	}
	if path == "" {
		log.Fatal("❌ [Phase 1] No rollup config path given: pass -rollup-config or set ROLLUP_CONFIG_PATH")
	}

	log.Println("🗄️ [Phase 2] Loading rollup domain configuration...")
	rollupCfg, err := config.LoadRollupConfig(path)
	if err != nil {
		log.Fatalf("❌ [Phase 2] Failed to load rollup config: %v", err)
	}
	log.Printf("✅ [Phase 2] Rollup config loaded: genesis_l1_height=%d reorg_safe_depth=%d",
		rollupCfg.Genesis.L1Height, rollupCfg.Genesis.L1ReorgSafeDepth)

	params, err := rollupCfg.RollupParams()
	if err != nil {
		log.Fatalf("❌ [Phase 2] Failed to build rollup params: %v", err)
	}

	log.Println("🔄 [Phase 3] Initializing client-state machine harness...")
	harness := rollupsim.NewHarness(params, nil)
	log.Println("✅ [Phase 3] Client-state machine ready")

	log.Println("🔄 [Phase 4] Initializing fork-choice service...")
	genesis := fcm.OLBlock{Slot: 0, Id: rtypes.OLBlockId{}}
	fcService, _ := rollupsim.NewForkChoiceService(genesis, rollupCfg.ForkChoice.LimitDepth)
	log.Println("✅ [Phase 4] Fork-choice service ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := fcService.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("⚠️ [Phase 4] Fork-choice service exited: %v", err)
		}
	}()

	_ = harness // not connected to an L1 manifest feed; pkg/l1reader.Reader names that interface

	log.Println("🚀 [Phase 5] Rollup node running — waiting for L1 blocks and shutdown signal")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("🛑 [Phase 6] Received signal %v, shutting down...", sig)

	cancel()
	fmt.Println("✅ Rollup node stopped")
}
