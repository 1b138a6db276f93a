// Package config loads the board client configuration from defaults,
// a network preset, an optional YAML file, a .env file and BBOARD_
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/privatestate"
	"github.com/blockberries/bboard/providers"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Network presets.
const (
	// NetworkStandalone runs an in-process network.
	NetworkStandalone = "standalone"
	// NetworkDevnet talks to a `bboard devnet` server on this machine.
	NetworkDevnet = "devnet"
	// NetworkTestnet talks to a remote connector named by
	// connector.address.
	NetworkTestnet = "testnet"
)

// EnvPrefix prefixes every environment variable the client reads.
const EnvPrefix = "BBOARD"

// Config keys.
const (
	KeyNetwork           = "network"
	KeyConnectorAddress  = "connector.address"
	KeyCompatibleVersion = "connector.compatibleVersion"
	KeyPollInterval      = "connector.pollInterval"
	KeyDetectTimeout     = "connector.detectTimeout"
	KeyEnableTimeout     = "connector.enableTimeout"
	KeyStatePath         = "privateState.path"
	KeyStoreName         = "privateState.storeName"
	KeyIdentity          = "privateState.identity"
	KeyScoped            = "privateState.scoped"
	KeyLogLevel          = "log.level"
	KeyMetricsListen     = "metrics.listen"
	KeyDevnetListen      = "devnet.listen"
	KeyWalletSeed        = "devnet.walletSeed"
)

// DefaultDevnetAddress is where `bboard devnet` listens by default.
const DefaultDevnetAddress = "127.0.0.1:9700"

// Config is the resolved client configuration.
type Config struct {
	Network string

	ConnectorAddress  string
	CompatibleVersion string
	PollInterval      time.Duration
	DetectTimeout     time.Duration
	EnableTimeout     time.Duration

	// StatePath is the bbolt file private state is kept in. Empty
	// keeps private state in memory.
	StatePath string
	StoreName string
	Identity  string
	Scoped    bool

	LogLevel      string
	MetricsListen string

	DevnetListen string
	WalletSeed   string
}

// presets holds the values each network overrides on top of the
// defaults.
var presets = map[string]map[string]any{
	NetworkStandalone: {},
	NetworkDevnet: {
		KeyConnectorAddress: DefaultDevnetAddress,
		KeyStatePath:        "bboard-devnet.db",
	},
	NetworkTestnet: {
		KeyStatePath:     "bboard-testnet.db",
		KeyEnableTimeout: 30 * time.Second,
	},
}

// Networks returns the preset names.
func Networks() []string {
	return []string{NetworkStandalone, NetworkDevnet, NetworkTestnet}
}

// New returns a viper instance with the defaults set and environment
// binding enabled.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyNetwork, NetworkStandalone)
	v.SetDefault(KeyConnectorAddress, "")
	v.SetDefault(KeyCompatibleVersion, providers.DefaultCompatibleVersion)
	v.SetDefault(KeyPollInterval, providers.DefaultPollInterval)
	v.SetDefault(KeyDetectTimeout, providers.DefaultDetectTimeout)
	v.SetDefault(KeyEnableTimeout, providers.DefaultEnableTimeout)
	v.SetDefault(KeyStatePath, "")
	v.SetDefault(KeyStoreName, privatestate.DefaultStoreName)
	v.SetDefault(KeyIdentity, bboard.DefaultPrivateStateKey)
	v.SetDefault(KeyScoped, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyMetricsListen, "")
	v.SetDefault(KeyDevnetListen, DefaultDevnetAddress)
	v.SetDefault(KeyWalletSeed, "bboard-devnet")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads .env files into the process environment. Missing
// files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load resolves the configuration from v. configFile, when not empty,
// is read as YAML before the preset is applied.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	network := v.GetString(KeyNetwork)
	preset, ok := presets[network]
	if !ok {
		return Config{}, fmt.Errorf("unknown network %q (want one of %s)", network, strings.Join(Networks(), ", "))
	}
	for k, val := range preset {
		v.SetDefault(k, val)
	}

	cfg := Config{
		Network:           network,
		ConnectorAddress:  v.GetString(KeyConnectorAddress),
		CompatibleVersion: v.GetString(KeyCompatibleVersion),
		PollInterval:      v.GetDuration(KeyPollInterval),
		DetectTimeout:     v.GetDuration(KeyDetectTimeout),
		EnableTimeout:     v.GetDuration(KeyEnableTimeout),
		StatePath:         v.GetString(KeyStatePath),
		StoreName:         v.GetString(KeyStoreName),
		Identity:          v.GetString(KeyIdentity),
		Scoped:            v.GetBool(KeyScoped),
		LogLevel:          v.GetString(KeyLogLevel),
		MetricsListen:     v.GetString(KeyMetricsListen),
		DevnetListen:      v.GetString(KeyDevnetListen),
		WalletSeed:        v.GetString(KeyWalletSeed),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Network != NetworkStandalone && c.ConnectorAddress == "" {
		return fmt.Errorf("network %s requires %s", c.Network, KeyConnectorAddress)
	}
	if c.Identity == "" {
		return fmt.Errorf("%s must not be empty", KeyIdentity)
	}
	for key, d := range map[string]time.Duration{
		KeyPollInterval:  c.PollInterval,
		KeyDetectTimeout: c.DetectTimeout,
		KeyEnableTimeout: c.EnableTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	return nil
}

// Remote reports whether the client reaches the network through a
// connector address rather than in process.
func (c Config) Remote() bool {
	return c.Network != NetworkStandalone
}
