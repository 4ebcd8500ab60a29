// Package config loads peer configuration with viper, the way
// _examples/other_examples/manifests/man0j-012-distributed_object_store
// wires a storage node's config. Defaults match spec §6's constants.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything a peer needs to boot: network identity, storage
// limits, pool sizes and the protocol timeouts from spec §4.5/§6.
type Config struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	BootstrapAddr  string        `mapstructure:"bootstrap_addr"`
	StorageRoot    string        `mapstructure:"storage_root"`
	DefaultCapBytes int64        `mapstructure:"default_capacity_bytes"`
	ChunkBytes     int           `mapstructure:"tls_chunk_bytes"`
	StabilizeMs    int           `mapstructure:"stabilize_ms"`
	ClientPoolSize int           `mapstructure:"client_pool_size"`
	ProtocolPoolSize int         `mapstructure:"protocol_pool_size"`
	BackupAckTimeout  time.Duration `mapstructure:"backup_ack_timeout"`
	BackupDataTimeout time.Duration `mapstructure:"backup_data_timeout"`
	RestoreAckTimeout time.Duration `mapstructure:"restore_ack_timeout"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
}

// DefaultCapacity is DEFAULT_CAPACITY from spec §6: 1 GiB.
const DefaultCapacity = int64(1 << 30)

// TLSChunkSize is TLS_CHUNK_SIZE from spec §6: 16 KiB.
const TLSChunkSize = 16 * 1024

func defaults() *viper.Viper {
	v := viper.New()
	v.SetDefault("listen_addr", ":3000")
	v.SetDefault("bootstrap_addr", "")
	v.SetDefault("storage_root", "./chordvault-data")
	v.SetDefault("default_capacity_bytes", DefaultCapacity)
	v.SetDefault("tls_chunk_bytes", TLSChunkSize)
	v.SetDefault("stabilize_ms", 1000)
	v.SetDefault("client_pool_size", 8)
	v.SetDefault("protocol_pool_size", 16)
	v.SetDefault("backup_ack_timeout", 100*time.Millisecond)
	v.SetDefault("backup_data_timeout", 2000*time.Millisecond)
	v.SetDefault("restore_ack_timeout", 500*time.Millisecond)
	v.SetDefault("metrics_addr", "")
	return v
}

// Load reads configuration from an optional file path, environment
// variables prefixed CHORDVAULT_, and falls back to the §6 defaults.
func Load(path string) (*Config, error) {
	v := defaults()
	v.SetEnvPrefix("chordvault")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
