package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tricodex/darkpool/params"
	"github.com/tricodex/darkpool/pkg/api"
	"github.com/tricodex/darkpool/pkg/ledger"
	"github.com/tricodex/darkpool/pkg/settlement"
	"github.com/tricodex/darkpool/pkg/token"
	"github.com/tricodex/darkpool/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Authority ----
	admin, err := requiredAddress("SETTLEMENT_ADMIN", cfg.Settlement.Admin)
	if err != nil {
		sugar.Fatalw("config_invalid", "err", err)
	}
	matcher, err := requiredAddress("SETTLEMENT_MATCHER", cfg.Settlement.Matcher)
	if err != nil {
		sugar.Fatalw("config_invalid", "err", err)
	}

	var verifier settlement.AttestationVerifier
	if cfg.Settlement.EnclaveKey != "" {
		if !common.IsHexAddress(cfg.Settlement.EnclaveKey) {
			sugar.Fatalw("config_invalid", "err", "SETTLEMENT_ENCLAVE_KEY is not an address")
		}
		verifier = settlement.NewEnclaveVerifier(
			[]byte(cfg.Settlement.AppID),
			common.HexToAddress(cfg.Settlement.EnclaveKey),
		)
		sugar.Infow("attested_updates_enabled", "app_id", cfg.Settlement.AppID)
	}
	auth := settlement.NewAuthority(admin, matcher, verifier, sugar)

	// ---- Order ledger ----
	mode := ledger.ModeOpaque
	if cfg.Ledger.Structured {
		mode = ledger.ModeStructured
	}
	book, err := ledger.Open(ledger.Config{
		Mode:            mode,
		MaxPayloadBytes: cfg.Ledger.MaxPayloadBytes,
	}, auth, cfg.Ledger.DBPath, sugar)
	if err != nil {
		sugar.Fatalw("ledger_open_failed", "err", err)
	}
	defer book.Close()

	// ---- Confidential assets ----
	tokens := token.NewRegistry()
	for _, entry := range cfg.Settlement.Tokens {
		symbol, addr, err := parseTokenEntry(entry)
		if err != nil {
			sugar.Fatalw("config_invalid", "err", err)
		}
		if err := tokens.Register(token.New(symbol, addr, admin)); err != nil {
			sugar.Fatalw("token_register_failed", "err", err)
		}
		sugar.Infow("token_registered", "symbol", symbol, "address", addr.Hex())
	}
	if !common.IsHexAddress(cfg.Settlement.QuoteAddress) {
		sugar.Fatalw("config_invalid", "err", "QUOTE_ADDRESS is not an address")
	}
	quote := token.New(cfg.Settlement.QuoteSymbol, common.HexToAddress(cfg.Settlement.QuoteAddress), admin)

	// ---- Settlement engine ----
	engineAddr := matcher
	if cfg.Settlement.EngineKey != "" {
		if !common.IsHexAddress(cfg.Settlement.EngineKey) {
			sugar.Fatalw("config_invalid", "err", "SETTLEMENT_ENGINE_KEY is not an address")
		}
		engineAddr = common.HexToAddress(cfg.Settlement.EngineKey)
	}
	engine := settlement.NewEngine(engineAddr, book, tokens, quote, auth, sugar)

	// One-time capability grant so the engine can move escrowed balances.
	engine.RequestPrivacyAccess()

	// ---- API ----
	server := api.NewServer(book, engine, tokens)
	go func() {
		if err := server.Start(cfg.Node.APIListen); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("node_started",
		"api", cfg.Node.APIListen,
		"matcher", matcher.Hex(),
		"admin", admin.Hex(),
		"mode", map[bool]string{true: "structured", false: "opaque"}[cfg.Ledger.Structured],
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	sugar.Info("shutting down")
}

func requiredAddress(name, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, fmt.Errorf("%s is required", name)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s is not a valid address: %s", name, value)
	}
	return common.HexToAddress(value), nil
}

// parseTokenEntry parses "SYMBOL=0xaddr".
func parseTokenEntry(entry string) (string, common.Address, error) {
	parts := strings.SplitN(strings.TrimSpace(entry), "=", 2)
	if len(parts) != 2 || parts[0] == "" || !common.IsHexAddress(parts[1]) {
		return "", common.Address{}, fmt.Errorf("bad token entry %q, want SYMBOL=0xaddr", entry)
	}
	return parts[0], common.HexToAddress(parts[1]), nil
}
