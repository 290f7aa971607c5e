package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"export-consortium/internal/domain"
)

const (
	defaultHTTPPort        = "8080"
	defaultTemporalAddress = "localhost:7233"
	defaultTemporalNS      = "default"
	defaultTaskQueue       = "export-handoff-task-queue"
	defaultMinioEndpoint   = "localhost:9000"
	defaultMinioBucket     = "export-consortium"
	defaultBadgerPath      = "data/badger"
	defaultLedgerTimeout   = 30
	defaultForwardAttempts = 3
	defaultForwardDelay    = 2 * time.Second
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreBadger   = "badger"
	StoreMinio    = "minio"

	ForwardInline   = "inline"
	ForwardTemporal = "temporal"
)

type Config struct {
	OrgRole  domain.Role
	HTTPPort string

	StoreBackend      string
	DeadLetterBackend string
	PostgresDSN       string
	BadgerPath        string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	LedgerMSPID         string
	LedgerProfilePath   string
	LedgerWalletPath    string
	LedgerIdentity      string
	LedgerAdminIdentity string
	LedgerExternal      bool
	LedgerTimeoutSec    int

	ForwardMode        string
	ForwardTargets     map[domain.Role]string
	ForwardMaxAttempts int
	ForwardBaseDelay   time.Duration

	TemporalAddress   string
	TemporalNamespace string
	TemporalTaskQueue string
}

// Load reads the process environment. A .env file in the working directory is
// applied first when present; real environment variables win over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		HTTPPort: getenv("HTTP_PORT", defaultHTTPPort),

		StoreBackend:      strings.ToLower(getenv("STORE_BACKEND", StoreMemory)),
		DeadLetterBackend: strings.ToLower(getenv("DEAD_LETTER_BACKEND", StoreBadger)),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		BadgerPath:        getenv("BADGER_PATH", defaultBadgerPath),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", defaultMinioEndpoint),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getenv("MINIO_BUCKET", defaultMinioBucket),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),

		LedgerMSPID:         os.Getenv("LEDGER_MSP_ID"),
		LedgerProfilePath:   getenv("LEDGER_PROFILE_PATH", "connection-profile.yaml"),
		LedgerWalletPath:    getenv("LEDGER_WALLET_PATH", "wallet"),
		LedgerIdentity:      os.Getenv("LEDGER_IDENTITY"),
		LedgerAdminIdentity: getenv("LEDGER_ADMIN_IDENTITY", "admin"),
		LedgerExternal:      getenvBool("LEDGER_EXTERNAL", false),
		LedgerTimeoutSec:    getenvInt("LEDGER_TIMEOUT_SEC", defaultLedgerTimeout),

		ForwardMode:        strings.ToLower(getenv("FORWARD_MODE", ForwardInline)),
		ForwardMaxAttempts: getenvInt("FORWARD_MAX_ATTEMPTS", defaultForwardAttempts),
		ForwardBaseDelay:   getenvDuration("FORWARD_BASE_DELAY", defaultForwardDelay),

		TemporalAddress:   getenv("TEMPORAL_ADDRESS", defaultTemporalAddress),
		TemporalNamespace: getenv("TEMPORAL_NAMESPACE", defaultTemporalNS),
		TemporalTaskQueue: getenv("TEMPORAL_TASK_QUEUE", defaultTaskQueue),
	}

	role, ok := domain.ParseRole(strings.ToUpper(strings.TrimSpace(os.Getenv("ORG_ROLE"))))
	if !ok {
		return Config{}, fmt.Errorf("ORG_ROLE is required and must be one of %v", domain.AllRoles)
	}
	cfg.OrgRole = role
	if cfg.LedgerIdentity == "" {
		cfg.LedgerIdentity = strings.ToLower(string(role)) + "-app"
	}

	targets, err := parseTargets(os.Getenv("FORWARD_TARGETS"))
	if err != nil {
		return Config{}, err
	}
	cfg.ForwardTargets = targets

	switch cfg.StoreBackend {
	case StoreMemory, StoreBadger:
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			return Config{}, fmt.Errorf("POSTGRES_DSN is required when STORE_BACKEND=postgres")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	switch cfg.DeadLetterBackend {
	case StoreMemory, StoreBadger, StoreMinio:
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			return Config{}, fmt.Errorf("POSTGRES_DSN is required when DEAD_LETTER_BACKEND=postgres")
		}
	default:
		return Config{}, fmt.Errorf("unknown DEAD_LETTER_BACKEND %q", cfg.DeadLetterBackend)
	}
	switch cfg.ForwardMode {
	case ForwardInline:
	case ForwardTemporal:
		// The worker writes dead letters from another process.
		if cfg.DeadLetterBackend != StoreMinio && cfg.DeadLetterBackend != StorePostgres {
			return Config{}, fmt.Errorf("FORWARD_MODE=temporal needs DEAD_LETTER_BACKEND=minio or postgres")
		}
	default:
		return Config{}, fmt.Errorf("unknown FORWARD_MODE %q", cfg.ForwardMode)
	}

	return cfg, nil
}

func (c Config) LedgerTimeout() time.Duration {
	return time.Duration(c.LedgerTimeoutSec) * time.Second
}

// parseTargets reads "ECTA=http://ecta:8080/intake,NBE=http://nbe:8080/intake".
func parseTargets(raw string) (map[domain.Role]string, error) {
	out := make(map[domain.Role]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, url, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("FORWARD_TARGETS entry %q is not ROLE=URL", pair)
		}
		role, ok := domain.ParseRole(strings.ToUpper(strings.TrimSpace(name)))
		if !ok {
			return nil, fmt.Errorf("FORWARD_TARGETS entry %q names an unknown role", pair)
		}
		out[role] = strings.TrimSpace(url)
	}
	return out, nil
}

func getenv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
