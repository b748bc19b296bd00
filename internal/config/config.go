package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Cron   CronConfig   `mapstructure:"cron"`
	Auth   AuthConfig   `mapstructure:"auth"`

	Engine     EngineConfig     `mapstructure:"engine"`
	MarketFeed MarketFeedConfig `mapstructure:"market_feed"`
	QuoteCache QuoteCacheConfig `mapstructure:"quote_cache"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Commentary CommentaryConfig `mapstructure:"commentary"`
	Backup     BackupConfig     `mapstructure:"backup"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	EngineTick     string `mapstructure:"engine_tick"`
	DailyReset     string `mapstructure:"daily_reset"`
	QuoteRefresh   string `mapstructure:"quote_refresh"`
	BackupJob      string `mapstructure:"backup_job"`
	ExpirySweep    string `mapstructure:"expiry_sweep"`
	MarketTimezone string `mapstructure:"market_timezone"`
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	Disabled     bool          `mapstructure:"disabled"`
	IPFilter     bool          `mapstructure:"ip_filter"`
	APIKeyHeader string        `mapstructure:"api_key_header"`
}

type EngineConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRulesPerTick  int           `mapstructure:"max_rules_per_tick"`
	MaxOrdersPerTick int           `mapstructure:"max_orders_per_tick"`
	DispatchTimeout  time.Duration `mapstructure:"dispatch_timeout"`
	QuoteTimeout     time.Duration `mapstructure:"quote_timeout"`
}

type MarketFeedConfig struct {
	Provinces   []string `mapstructure:"provinces"`
	MarketTypes []string `mapstructure:"market_types"`
	Persist     bool     `mapstructure:"persist"`
	Seed        int64    `mapstructure:"seed"`
}

type QuoteCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type DispatchConfig struct {
	AutoFill bool `mapstructure:"auto_fill"`
}

type CommentaryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
	APIKeyEnv string `mapstructure:"api_key_env"`
}

type BackupConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
	Keep    int    `mapstructure:"keep"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POWERX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "Asia/Shanghai")

	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.engine_tick", "@every 5s")
	v.SetDefault("cron.daily_reset", "0 0 0 * * *")
	v.SetDefault("cron.quote_refresh", "@every 30s")
	v.SetDefault("cron.backup_job", "0 0 3 * * *")
	v.SetDefault("cron.expiry_sweep", "@every 1m")
	v.SetDefault("cron.market_timezone", "Asia/Shanghai")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.disabled", false)
	v.SetDefault("auth.ip_filter", false)
	v.SetDefault("auth.api_key_header", "X-API-Key")

	v.SetDefault("engine.enabled", true)
	v.SetDefault("engine.max_rules_per_tick", 200)
	v.SetDefault("engine.max_orders_per_tick", 200)
	v.SetDefault("engine.dispatch_timeout", "10s")
	v.SetDefault("engine.quote_timeout", "5s")

	v.SetDefault("market_feed.provinces", []string{"广东", "山东", "山西", "浙江", "江苏", "四川", "甘肃", "蒙西"})
	v.SetDefault("market_feed.market_types", []string{"day_ahead", "spot"})
	v.SetDefault("market_feed.persist", true)
	v.SetDefault("market_feed.seed", 0)

	v.SetDefault("quote_cache.enabled", false)
	v.SetDefault("quote_cache.addr", "localhost:6379")
	v.SetDefault("quote_cache.password", "")
	v.SetDefault("quote_cache.db", 0)
	v.SetDefault("quote_cache.ttl", "10s")

	v.SetDefault("dispatch.auto_fill", true)

	v.SetDefault("commentary.enabled", false)
	v.SetDefault("commentary.model", "claude-sonnet-4-5")
	v.SetDefault("commentary.max_tokens", 1024)
	v.SetDefault("commentary.api_key_env", "ANTHROPIC_API_KEY")

	v.SetDefault("backup.enabled", false)
	v.SetDefault("backup.dir", "backups")
	v.SetDefault("backup.keep", 7)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
