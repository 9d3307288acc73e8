package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Ledger holds order-ledger parameters.
type Ledger struct {
	// Structured decodes payloads at submission; false keeps them opaque
	// and defers decoding to the privileged settlement path.
	Structured bool
	// MaxPayloadBytes bounds submitted payload size.
	MaxPayloadBytes int
	// DBPath is the Pebble database directory.
	DBPath string
}

// Settlement holds authority and asset parameters.
type Settlement struct {
	// Admin is the administrative owner allowed to rotate the matcher.
	Admin string
	// Matcher is the initial privileged settlement caller.
	Matcher string
	// EnclaveKey is the registered enclave signing address for attested
	// matcher self-updates. Empty disables the attested path.
	EnclaveKey string
	// AppID pins attestation proofs to one deployed app.
	AppID string
	// EngineKey is the engine's own identity as a token mover.
	EngineKey string
	// QuoteSymbol/QuoteAddress identify the quote-leg asset.
	QuoteSymbol  string
	QuoteAddress string
	// Tokens lists tradable base assets as "SYMBOL=0xaddr" pairs.
	Tokens []string
}

// Node holds service-level parameters.
type Node struct {
	APIListen string
	LogFile   string
}

type Config struct {
	Ledger     Ledger
	Settlement Settlement
	Node       Node
}

func Default() Config {
	return Config{
		Ledger: Ledger{
			Structured:      false,
			MaxPayloadBytes: 4096,
			DBPath:          "data/ledger",
		},
		Settlement: Settlement{
			AppID:        "darkpool-devnet",
			QuoteSymbol:  "WUSDC",
			QuoteAddress: "0x0000000000000000000000000000000000000100",
			Tokens: []string{
				"WATER=0x0000000000000000000000000000000000000101",
				"FIRE=0x0000000000000000000000000000000000000102",
			},
		},
		Node: Node{
			APIListen: ":8080",
			LogFile:   "data/node.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("LEDGER_STRUCTURED"); v != "" {
		cfg.Ledger.Structured = v == "true"
	}
	if v := os.Getenv("LEDGER_MAX_PAYLOAD_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Ledger.MaxPayloadBytes = n
		}
	}
	if v := os.Getenv("LEDGER_DB_PATH"); v != "" {
		cfg.Ledger.DBPath = v
	}

	if v := os.Getenv("SETTLEMENT_ADMIN"); v != "" {
		cfg.Settlement.Admin = v
	}
	if v := os.Getenv("SETTLEMENT_MATCHER"); v != "" {
		cfg.Settlement.Matcher = v
	}
	if v := os.Getenv("SETTLEMENT_ENCLAVE_KEY"); v != "" {
		cfg.Settlement.EnclaveKey = v
	}
	if v := os.Getenv("SETTLEMENT_APP_ID"); v != "" {
		cfg.Settlement.AppID = v
	}
	if v := os.Getenv("SETTLEMENT_ENGINE_KEY"); v != "" {
		cfg.Settlement.EngineKey = v
	}
	if v := os.Getenv("QUOTE_SYMBOL"); v != "" {
		cfg.Settlement.QuoteSymbol = v
	}
	if v := os.Getenv("QUOTE_ADDRESS"); v != "" {
		cfg.Settlement.QuoteAddress = v
	}
	if v := os.Getenv("TOKENS"); v != "" {
		// Example: "WATER=0x...,FIRE=0x..."
		cfg.Settlement.Tokens = strings.Split(v, ",")
	}

	if v := os.Getenv("API_LISTEN"); v != "" {
		cfg.Node.APIListen = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}

	return cfg
}
