package params

import (
	"math/big"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Protocol constants. These are fixed for every pool: the accounting engine
// computes interest and borrow headroom from nominal balances only, so the
// numbers below fully determine its behavior.
const (
	// CollateralRatioPct requires collateral >= 150% of total debt.
	// Max debt = collateral * RatePrecision / CollateralRatioPct.
	CollateralRatioPct = 150

	// InterestRatePerPeriod is simple interest, in percent, charged on
	// outstanding principal per period.
	InterestRatePerPeriod = 5

	// PeriodSeconds is one week.
	PeriodSeconds = 604800

	// RatePrecision is the divisor for both the collateral ratio and the
	// interest rate percentage.
	RatePrecision = 100
)

// MaxBorrowable returns the ceiling on total outstanding debt (principal +
// accrued interest) implied by a collateral balance. Floor division.
func MaxBorrowable(collateral *big.Int) *big.Int {
	if collateral == nil || collateral.Sign() <= 0 {
		return big.NewInt(0)
	}
	max := new(big.Int).Mul(collateral, big.NewInt(RatePrecision))
	return max.Quo(max, big.NewInt(CollateralRatioPct))
}

type API struct {
	Addr string
}

type Node struct {
	DBPath string
	// Admin is the single privileged identity allowed to call the
	// emergency drain. Zero address disables the drain entirely.
	Admin common.Address
	// SeedLiquidity is minted into the pool's loan-asset balance at boot so
	// borrowers have something to draw against on a fresh devnet.
	SeedLiquidity *big.Int
	LogFile       string
}

type Config struct {
	API  API
	Node Node
}

func Default() Config {
	return Config{
		API: API{
			Addr: ":8080",
		},
		Node: Node{
			DBPath:        "data/vaultlend.db",
			SeedLiquidity: big.NewInt(1_000_000),
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.API.Addr = addr
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.Node.DBPath = path
	}
	if admin := os.Getenv("ADMIN_ADDRESS"); admin != "" && common.IsHexAddress(admin) {
		cfg.Node.Admin = common.HexToAddress(admin)
	}
	if seed := os.Getenv("SEED_LIQUIDITY"); seed != "" {
		if n, err := strconv.ParseInt(seed, 10, 64); err == nil && n >= 0 {
			cfg.Node.SeedLiquidity = big.NewInt(n)
		}
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.Node.LogFile = logFile
	}

	return cfg
}
