package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyunwoo-ko/vaultlend/params"
	"github.com/hyunwoo-ko/vaultlend/pkg/api"
	"github.com/hyunwoo-ko/vaultlend/pkg/lending"
	"github.com/hyunwoo-ko/vaultlend/pkg/token"
	"github.com/hyunwoo-ko/vaultlend/pkg/util"
)

// Well-known devnet identities. The pool address is the engine's identity on
// both token ledgers; the mint authority owns both ledgers and seeds the
// pool's loan-asset liquidity at boot.
var (
	poolAddr = common.HexToAddress("0x9001000000000000000000000000000000000001")
	mintAddr = common.HexToAddress("0x9001000000000000000000000000000000000002")
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLogger(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// ---- Ledger store (pebble-backed) ----
	store, err := lending.NewStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("store_init_failed", "err", err)
	}
	defer store.Close()
	sugar.Infow("store_opened", "db_path", cfg.Node.DBPath)

	// ---- Asset ledgers ----
	// Devnet tokens: a collateral asset and a loan asset, both owned by the
	// mint authority. The pool's loan-asset balance is seeded so fresh
	// networks have liquidity to borrow against.
	collateral := token.New("CLT", mintAddr)
	loan := token.New("LND", mintAddr)
	if cfg.Node.SeedLiquidity.Sign() > 0 {
		if err := loan.Mint(mintAddr, poolAddr, cfg.Node.SeedLiquidity); err != nil {
			sugar.Fatalw("seed_liquidity_failed", "err", err)
		}
		sugar.Infow("pool_seeded", "liquidity", cfg.Node.SeedLiquidity.String())
	}

	// ---- Accrual & invariant engine ----
	engine := lending.NewEngine(logger, store, util.RealClock{}, collateral, loan, poolAddr, cfg.Node.Admin)

	sugar.Infow("node_starting",
		"pool", poolAddr.Hex(),
		"admin", cfg.Node.Admin.Hex(),
		"collateral_ratio_pct", params.CollateralRatioPct,
		"interest_rate_pct", params.InterestRatePerPeriod,
		"period_seconds", params.PeriodSeconds)

	// ---- API server ----
	apiServer := api.NewServer(logger, engine, store)
	engine.Subscribe(apiServer)

	go func() {
		if err := apiServer.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	sugar.Info("node_shutting_down")
}
