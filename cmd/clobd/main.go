package main

import (
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/octagonpredict/clob/params"
	"github.com/octagonpredict/clob/pkg/api"
	"github.com/octagonpredict/clob/pkg/app/core"
	"github.com/octagonpredict/clob/pkg/app/core/transaction"
	"github.com/octagonpredict/clob/pkg/crypto"
	"github.com/octagonpredict/clob/pkg/storage"
	"github.com/octagonpredict/clob/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	// ---- Journal ----
	journal, err := newJournal(cfg.Journal)
	if err != nil {
		sugar.Fatalw("journal_init_failed", "backend", cfg.Journal.Backend, "path", cfg.Journal.Path, "err", err)
	}
	defer journal.Close()
	sugar.Infow("journal_ready", "backend", cfg.Journal.Backend, "path", cfg.Journal.Path)

	// ---- Matching engine ----
	clock := util.RealClock{}
	engine := core.NewMatchingEngine(clock, logger)

	// ---- Signature verification ----
	domain := crypto.EIP712Domain{
		Name:    cfg.Signing.DomainName,
		Version: cfg.Signing.DomainVersion,
		ChainID: big.NewInt(cfg.Signing.ChainID),
	}

	verifier := transaction.NewVerifier()
	if cfg.Signing.ExchangeAddress != "" {
		if !common.IsHexAddress(cfg.Signing.ExchangeAddress) {
			sugar.Fatalw("invalid_exchange_address", "address", cfg.Signing.ExchangeAddress)
		}
		bootDomain := domain
		bootDomain.VerifyingContract = common.HexToAddress(cfg.Signing.ExchangeAddress)
		if err := verifier.Configure(bootDomain); err != nil {
			sugar.Fatalw("verifier_configure_failed", "err", err)
		}
		sugar.Infow("exchange_configured", "address", bootDomain.VerifyingContract.Hex())
	} else {
		// Order submission stays 503 until POST /api/v1/config/exchange.
		sugar.Infow("exchange_unconfigured", "hint", "set EXCHANGE_ADDRESS or call /api/v1/config/exchange")
	}

	// ---- Expiry sweeper ----
	stopSweeper := make(chan struct{})
	go func() {
		for {
			select {
			case <-stopSweeper:
				return
			case <-clock.After(cfg.Engine.SweepInterval):
				if n := engine.CleanExpiredOrders(clock.Now().Unix()); n > 0 {
					sugar.Infow("expired_orders_swept", "count", n)
				}
			}
		}
	}()

	// ---- API server ----
	server := api.NewServer(engine, verifier, journal, domain, cfg.API.AllowedOrigins, clock, logger)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.API.ListenAddr)
	}()

	sugar.Infow("node_started",
		"addr", cfg.API.ListenAddr,
		"domain", cfg.Signing.DomainName,
		"chain_id", cfg.Signing.ChainID,
	)

	// Block until shutdown signal or server failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		sugar.Infow("shutdown_signal", "signal", sig.String())
	case err := <-serverErr:
		sugar.Errorw("api_server_failed", "err", err)
	}

	close(stopSweeper)
	sugar.Infow("node_stopped")
}

func newJournal(cfg params.Journal) (storage.Journal, error) {
	switch cfg.Backend {
	case "pebble":
		return storage.NewPebbleJournal(cfg.Path)
	case "file":
		return storage.NewFileJournal(cfg.Path)
	case "none", "":
		return storage.NewNopJournal(), nil
	default:
		return storage.NewFileJournal(cfg.Path)
	}
}
