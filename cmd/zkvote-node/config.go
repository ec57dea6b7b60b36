package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vocdoni/zkvote-node/db"
	"github.com/vocdoni/zkvote-node/internal"
	"github.com/vocdoni/zkvote-node/log"
	"github.com/vocdoni/zkvote-node/types"
	"github.com/vocdoni/zkvote-node/util"
)

const (
	defaultAPIHost         = "0.0.0.0"
	defaultAPIPort         = 9090
	defaultDBType          = db.TypePebble
	defaultLogLevel        = "info"
	defaultLogOutput       = "stdout"
	defaultDatadir         = ".zkvote" // Will be prefixed with user's home directory
	defaultVerifierWorkers = 4
	defaultVerifierCache   = 4096
	defaultStatsInterval   = time.Minute
)

// Version is the build version, set at build time with -ldflags
var Version = internal.Version

var availableDBTypes = []string{db.TypePebble, db.TypeLevelDB, db.TypeMongo, db.TypeInMemory}

// Config holds the application configuration
type Config struct {
	API      APIConfig
	DB       DBConfig
	Verifier VerifierConfig
	Census   CensusConfig
	Log      LogConfig
	Datadir  string
	Dev      bool
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	AdminToken string `mapstructure:"adminToken"`
}

// DBConfig holds the ledger database configuration
type DBConfig struct {
	Type string `mapstructure:"type"`
}

// VerifierConfig holds the proof verification configuration
type VerifierConfig struct {
	Keys    string `mapstructure:"keys"`
	Scope   string `mapstructure:"scope"`
	Workers int    `mapstructure:"workers"`
	Cache   int    `mapstructure:"cache"`
}

// CensusConfig holds the accepted census roots
type CensusConfig struct {
	Roots []string `mapstructure:"roots"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level         string        `mapstructure:"level"`
	Output        string        `mapstructure:"output"`
	StatsInterval time.Duration `mapstructure:"statsInterval"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig(args []string) (*Config, error) {
	v := viper.New()

	// Get user's home directory for default datadir
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)

	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("db.type", defaultDBType)
	v.SetDefault("verifier.workers", defaultVerifierWorkers)
	v.SetDefault("verifier.cache", defaultVerifierCache)
	v.SetDefault("census.roots", []string{})
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("log.statsInterval", defaultStatsInterval)
	v.SetDefault("datadir", defaultDatadirPath)

	// Configure flags
	fs := flag.NewFlagSet("zkvote-node", flag.ContinueOnError)
	fs.StringP("api.host", "a", defaultAPIHost, "API host")
	fs.IntP("api.port", "p", defaultAPIPort, "API port")
	fs.String("api.adminToken", "", "bearer token of the administrative endpoints (disabled if empty)")
	fs.String("db.type", defaultDBType, fmt.Sprintf("ledger database type %v", availableDBTypes))
	fs.StringP("verifier.keys", "k", "", "directory of the membership circuit keys (default <datadir>/keys)")
	fs.StringP("verifier.scope", "s", "", "election name the nullifiers are bound to (required)")
	fs.Int("verifier.workers", defaultVerifierWorkers, "maximum concurrent proof verifications")
	fs.Int("verifier.cache", defaultVerifierCache, "proof verdict cache size (0 disables the cache)")
	fs.StringSliceP("census.roots", "r", []string{}, "accepted census roots, comma-separated (required)")
	fs.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	fs.Duration("log.statsInterval", defaultStatsInterval, "interval of the ledger stats log line (0 disables it)")
	fs.StringP("datadir", "d", defaultDatadirPath, "data directory for database and key files")
	fs.Bool("dev", false, "development mode: generate the circuit keys if they are missing")

	// Configure usage information
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "zkvote-node v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: zkvote-node [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, ZKVOTE_API_PORT or ZKVOTE_CENSUS_ROOTS\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Start a node for an election with one census root\n")
		fmt.Fprintf(os.Stderr, "  zkvote-node --verifier.scope=city-council-2026 --census.roots=0x1f2e...\n\n")
		fmt.Fprintf(os.Stderr, "  # Development node with in-memory ledger and generated keys\n")
		fmt.Fprintf(os.Stderr, "  zkvote-node --dev --db.type=inmemory --verifier.scope=test --census.roots=0x1f2e... --api.adminToken=secret\n")
	}

	// Parse flags
	fs.SortFlags = false
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Configure Viper to use environment variables
	v.SetEnvPrefix("ZKVOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind flags to Viper
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Verifier.Keys == "" {
		cfg.Verifier.Keys = filepath.Join(cfg.Datadir, "keys")
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.Verifier.Scope == "" {
		return fmt.Errorf("election scope is required (use --verifier.scope flag or ZKVOTE_VERIFIER_SCOPE environment variable)")
	}
	if len(cfg.Census.Roots) == 0 {
		return fmt.Errorf("at least one census root is required (use --census.roots flag or ZKVOTE_CENSUS_ROOTS environment variable)")
	}
	if _, err := parseRoots(cfg.Census.Roots); err != nil {
		return err
	}
	if !slices.Contains(availableDBTypes, cfg.DB.Type) {
		return fmt.Errorf("invalid database type %s, available types: %v", cfg.DB.Type, availableDBTypes)
	}
	if cfg.API.Port < 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("invalid API port %d", cfg.API.Port)
	}
	if cfg.Verifier.Workers < 1 {
		return fmt.Errorf("verifier workers must be at least 1, got %d", cfg.Verifier.Workers)
	}
	if cfg.Verifier.Cache < 0 {
		return fmt.Errorf("verifier cache size cannot be negative, got %d", cfg.Verifier.Cache)
	}
	if cfg.Log.StatsInterval < 0 {
		return fmt.Errorf("stats interval cannot be negative, got %s", cfg.Log.StatsInterval)
	}
	if !slices.Contains(log.LogLevels, cfg.Log.Level) {
		return fmt.Errorf("invalid log level %s, available levels: %v", cfg.Log.Level, log.LogLevels)
	}
	return nil
}

// parseRoots decodes the hex encoded census roots.
func parseRoots(roots []string) ([]types.CensusRoot, error) {
	out := make([]types.CensusRoot, 0, len(roots))
	for _, r := range roots {
		b, err := hex.DecodeString(util.TrimHex(strings.TrimSpace(r)))
		if err != nil || len(b) != common.HashLength {
			return nil, fmt.Errorf("invalid census root %q: must be 32 bytes hex encoded", r)
		}
		out = append(out, common.BytesToHash(b))
	}
	return out, nil
}
