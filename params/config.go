package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Signing is the EIP-712 domain configuration. ExchangeAddress may be empty
// at boot; the operator sets it through the config endpoint after deploying
// the settlement contract, and no signature verifies until then.
type Signing struct {
	DomainName      string
	DomainVersion   string
	ChainID         int64
	ExchangeAddress string
}

type API struct {
	ListenAddr     string
	AllowedOrigins []string
}

type Engine struct {
	// SweepInterval is how often expired orders are swept out of the books.
	SweepInterval time.Duration
}

// Journal selects the audit journal backend: "none", "file" or "pebble".
type Journal struct {
	Backend string
	Path    string
}

type Config struct {
	Signing Signing
	API     API
	Engine  Engine
	Journal Journal
	LogFile string
}

func Default() Config {
	return Config{
		Signing: Signing{
			DomainName:    "OctagonPredict",
			DomainVersion: "1",
			ChainID:       100010, // VeChain testnet
		},
		API: API{
			ListenAddr:     ":8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Engine: Engine{
			SweepInterval: 30 * time.Second,
		},
		Journal: Journal{
			Backend: "file",
			Path:    "data/journal.log",
		},
		LogFile: "data/node.log",
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

	if v := os.Getenv("EIP712_DOMAIN_NAME"); v != "" {
		cfg.Signing.DomainName = v
	}
	if v := os.Getenv("EIP712_DOMAIN_VERSION"); v != "" {
		cfg.Signing.DomainVersion = v
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Signing.ChainID = id
		}
	}
	if v := os.Getenv("EXCHANGE_ADDRESS"); v != "" {
		cfg.Signing.ExchangeAddress = v
	}

	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.API.ListenAddr = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.API.AllowedOrigins = strings.Split(v, ",")
	}

	if v := os.Getenv("SWEEP_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Engine.SweepInterval = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("JOURNAL_BACKEND"); v != "" {
		cfg.Journal.Backend = v
	}
	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}

	return cfg
}
