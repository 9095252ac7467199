package models

// MConfig Structure
type MConfig struct {
	Name      string           `yaml:"name"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	LogLevel  string           `yaml:"log_level"`
	LogFormat string           `yaml:"log_format"` // "json" or "text"
	GrpcHost  string           `yaml:"grpc_host"`
	GrpcPort  int              `yaml:"grpc_port"`
	Storage   MStorageConfig   `yaml:"storage"`
	Oracle    MOracleConfig    `yaml:"oracle"`
	Producers MProducersConfig `yaml:"producers"`
	API       MAPIConfig       `yaml:"api"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // sqlite, postgres, pebble, memory
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	ConnectRetries     int    `yaml:"connect_retries"`
}

type MOracleConfig struct {
	SystemAccount     string   `yaml:"system_account"`
	PricePointsWindow int      `yaml:"price_points_window"`
	ReadCacheSize     int      `yaml:"read_cache_size"`
	Pairs             []string `yaml:"pairs"` // registered at startup when missing
}

type MProducersConfig struct {
	Active       []string `yaml:"active"`
	Standby      []string `yaml:"standby"`
	ScheduleFile string   `yaml:"schedule_file"` // Optional, overrides Active/Standby
	ReloadSpec   string   `yaml:"reload_spec"`   // cron spec, e.g. "@every 30s"
}

type MAPIConfig struct {
	RateLimitPerSecond int      `yaml:"rate_limit_per_second"`
	RateLimitBurst     int      `yaml:"rate_limit_burst"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
}
