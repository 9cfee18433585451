package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// MemoryConfig holds in-memory/JSON recording backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds local SQLite recording backend settings
type SQLiteConfig struct {
	DataDir      string        `json:"dataDir" mapstructure:"dataDir"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// RelayConfig holds remote websocket recording backend settings
type RelayConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and parameterizes the recording backend.
type StorageConfig struct {
	Type   string
	Memory MemoryConfig
	SQLite SQLiteConfig
	Relay  RelayConfig
}

// OTelConfig holds OpenTelemetry export settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// EngineConfig holds the fusion tuning exposed in the config file.
// The elevation clamp is kept in degrees here; callers convert to radians
// when building the engine.
type EngineConfig struct {
	HeadingSmoothing  float64
	PositionSmoothing float64
	MaxElevationDeg   float64
	RenderRadius      float64
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("defaultTag", "Nav")
	viper.SetDefault("logsDir", "./waypointlogs")

	viper.SetDefault("server.listenAddr", ":5001")
	viper.SetDefault("server.secret", "")

	viper.SetDefault("engine.headingSmoothing", 0.2)
	viper.SetDefault("engine.positionSmoothing", 0.35)
	viper.SetDefault("engine.maxElevationDeg", 45.0)
	viper.SetDefault("engine.renderRadius", 10.0)

	viper.SetDefault("api.serverUrl", "http://localhost:5000/api")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "waypoint")

	viper.SetDefault("influx.enabled", true)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "waypoint-metrics")

	viper.SetDefault("graylog.enabled", true)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dataDir", "./data")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.relay.url", "")
	viper.SetDefault("storage.relay.secret", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "waypointd")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("waypointd.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the assembled recording backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DataDir:      viper.GetString("storage.sqlite.dataDir"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Relay: RelayConfig{
			URL:    viper.GetString("storage.relay.url"),
			Secret: viper.GetString("storage.relay.secret"),
		},
	}
}

// GetOTelConfig returns the assembled OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetEngineConfig returns the fusion tuning.
func GetEngineConfig() EngineConfig {
	return EngineConfig{
		HeadingSmoothing:  viper.GetFloat64("engine.headingSmoothing"),
		PositionSmoothing: viper.GetFloat64("engine.positionSmoothing"),
		MaxElevationDeg:   viper.GetFloat64("engine.maxElevationDeg"),
		RenderRadius:      viper.GetFloat64("engine.renderRadius"),
	}
}
