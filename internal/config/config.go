package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Telegram     Telegram     `mapstructure:"telegram"`
	Solana       Solana       `mapstructure:"solana"`
	Jupiter      Jupiter      `mapstructure:"jupiter"`
	RugCheck     RugCheck     `mapstructure:"rugcheck"`
	Jito         Jito         `mapstructure:"jito"`
	Binance      Binance      `mapstructure:"binance"`
	Security     Security     `mapstructure:"security"`
	Trading      Trading      `mapstructure:"trading"`
	Fees         Fees         `mapstructure:"fees"`
	Subscription Subscription `mapstructure:"subscription"`
	Analyzer     Analyzer     `mapstructure:"analyzer"`
	Logger       Logger       `mapstructure:"logger"`
	Server       Server       `mapstructure:"server"`
	Database     Database     `mapstructure:"database"`
}

// Telegram holds the bot credentials and the chats it reports to.
type Telegram struct {
	BotToken        string `mapstructure:"bot_token"`
	AdminID         int64  `mapstructure:"admin_id"`
	ChannelID       string `mapstructure:"channel_id"`
	UpdateTimeout   int    `mapstructure:"update_timeout"`
	ConversationTTL int    `mapstructure:"conversation_ttl"` // seconds
	SupportContact  string `mapstructure:"support_contact"`
}

// IsAdmin reports whether id belongs to the configured administrator.
func (t Telegram) IsAdmin(id int64) bool {
	return t.AdminID != 0 && t.AdminID == id
}

// Solana holds the RPC endpoint and the trading wallet.
type Solana struct {
	RPCURL       string `mapstructure:"rpc_url"`
	WalletKey    string `mapstructure:"wallet_key"`
	HeliusKey    string `mapstructure:"helius_api_key"`
	Commitment   string `mapstructure:"commitment"`
	ConfirmPolls int    `mapstructure:"confirm_polls"`
}

// HeliusAPIKey returns the explicit Helius key or the api-key parameter of the RPC URL.
func (s Solana) HeliusAPIKey() string {
	if s.HeliusKey != "" {
		return s.HeliusKey
	}
	u, err := url.Parse(s.RPCURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("api-key")
}

// DASURL returns the endpoint for Helius DAS calls: the RPC URL carrying the Helius api-key.
func (s Solana) DASURL() string {
	key := s.HeliusAPIKey()
	u, err := url.Parse(s.RPCURL)
	if err != nil || key == "" || u.Query().Get("api-key") != "" {
		return s.RPCURL
	}
	q := u.Query()
	q.Set("api-key", key)
	u.RawQuery = q.Encode()
	return u.String()
}

// Jupiter holds the configuration for the Jupiter swap API.
type Jupiter struct {
	BaseURL             string  `mapstructure:"base_url"`
	ApiKey              string  `mapstructure:"api_key"`
	RateLimit           float64 `mapstructure:"rate_limit"`
	RateLimitBurst      int     `mapstructure:"rate_limit_burst"`
	PriorityFeeLamports uint64  `mapstructure:"priority_fee_lamports"`
}

// RugCheck holds the configuration for the RugCheck risk API.
type RugCheck struct {
	BaseURL        string  `mapstructure:"base_url"`
	ApiKey         string  `mapstructure:"api_key"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Jito holds the block engine settings used for bundle submission.
type Jito struct {
	Enabled     bool   `mapstructure:"enabled"`
	BaseURL     string `mapstructure:"base_url"`
	TipLamports uint64 `mapstructure:"tip_lamports"`
}

// Binance holds the settings for the SOL/USD price feed.
type Binance struct {
	Symbol   string `mapstructure:"symbol"`
	CacheTTL int    `mapstructure:"cache_ttl"` // seconds
}

// Security holds the secrets used for key encryption and admin tokens.
type Security struct {
	EncryptionKey string `mapstructure:"encryption_key"`
	JWTSecret     string `mapstructure:"jwt_secret"`
	TokenTTL      int    `mapstructure:"token_ttl"` // hours
}

// Trading holds the snipe and auto-sell parameters.
type Trading struct {
	DryRun                bool    `mapstructure:"dry_run"`
	MinAmountSOL          float64 `mapstructure:"min_amount_sol"`
	SlippageOptions       []int   `mapstructure:"slippage_options"`
	SellSlippageBps       int     `mapstructure:"sell_slippage_bps"`
	PollInterval          int     `mapstructure:"poll_interval"`      // seconds
	HeartbeatInterval     int     `mapstructure:"heartbeat_interval"` // seconds
	Strategy              string  `mapstructure:"strategy"`
	StopLossPct           float64 `mapstructure:"stop_loss_pct"`
	TakeProfit1Pct        float64 `mapstructure:"take_profit1_pct"`
	TakeProfit1Portion    float64 `mapstructure:"take_profit1_portion"`
	TakeProfit2Pct        float64 `mapstructure:"take_profit2_pct"`
	TrailingActivationPct float64 `mapstructure:"trailing_activation_pct"`
	TrailingDistancePct   float64 `mapstructure:"trailing_distance_pct"`
}

// Fees holds the fee policy.
type Fees struct {
	Percent float64 `mapstructure:"percent"`
	Wallet  string  `mapstructure:"wallet"`
}

// Subscription holds tier pricing and limits.
type Subscription struct {
	ProPriceSOL     float64 `mapstructure:"pro_price_sol"`
	WhalePriceSOL   float64 `mapstructure:"whale_price_sol"`
	FreeDailySnipes int     `mapstructure:"free_daily_snipes"`
	PeriodDays      int     `mapstructure:"period_days"`
}

// Analyzer holds the token safety thresholds.
type Analyzer struct {
	MaxRiskScore  float64 `mapstructure:"max_risk_score"`
	MaxSellTaxPct float64 `mapstructure:"max_sell_tax_pct"`
	RoundTripSOL  float64 `mapstructure:"round_trip_sol"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port            int `mapstructure:"port"`
	UIPort          int `mapstructure:"ui_port"`
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // seconds
}

// Database holds the configuration for the database.
type Database struct {
	URL            string `mapstructure:"url"`
	SQLitePath     string `mapstructure:"sqlite_path"`
	FallbackSQLite bool   `mapstructure:"fallback_sqlite"`
	MaxConns       int32  `mapstructure:"max_conns"`
}

// legacyEnv maps the flat environment names used by deployments to config keys.
var legacyEnv = map[string]string{
	"telegram.bot_token":      "BOT_TOKEN",
	"telegram.admin_id":       "ADMIN_ID",
	"telegram.channel_id":     "CHANNEL_ID",
	"solana.rpc_url":          "RPC_URL",
	"solana.wallet_key":       "SOL_MAIN",
	"solana.helius_api_key":   "HELIUS_API_KEY",
	"security.encryption_key": "ENCRYPTION_KEY",
	"security.jwt_secret":     "JWT_SECRET",
	"database.url":            "DATABASE_URL",
	"rugcheck.api_key":        "RUGCHECK_API_KEY",
	"jupiter.api_key":         "JUPITER_API_KEY",
	"fees.wallet":             "FEE_WALLET",
	"server.port":             "PORT",
	"server.ui_port":          "UI_PORT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.admin_id", 0)
	v.SetDefault("telegram.channel_id", "")
	v.SetDefault("telegram.update_timeout", 30)
	v.SetDefault("telegram.conversation_ttl", 600)
	v.SetDefault("telegram.support_contact", "")

	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.wallet_key", "")
	v.SetDefault("solana.helius_api_key", "")
	v.SetDefault("solana.commitment", "confirmed")
	v.SetDefault("solana.confirm_polls", 30)

	v.SetDefault("jupiter.base_url", "https://api.jup.ag/swap/v1")
	v.SetDefault("jupiter.api_key", "")
	v.SetDefault("jupiter.rate_limit", 5)
	v.SetDefault("jupiter.rate_limit_burst", 2)
	v.SetDefault("jupiter.priority_fee_lamports", 100000)

	v.SetDefault("rugcheck.base_url", "https://api.rugcheck.xyz")
	v.SetDefault("rugcheck.api_key", "")
	v.SetDefault("rugcheck.rate_limit", 2)
	v.SetDefault("rugcheck.rate_limit_burst", 2)

	v.SetDefault("jito.enabled", false)
	v.SetDefault("jito.base_url", "https://mainnet.block-engine.jito.wtf")
	v.SetDefault("jito.tip_lamports", 10000)

	v.SetDefault("binance.symbol", "SOLUSDT")
	v.SetDefault("binance.cache_ttl", 60)

	v.SetDefault("security.encryption_key", "")
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.token_ttl", 24)

	v.SetDefault("trading.dry_run", false)
	v.SetDefault("trading.min_amount_sol", 0.01)
	v.SetDefault("trading.slippage_options", []int{50, 100, 200, 500})
	v.SetDefault("trading.sell_slippage_bps", 300)
	v.SetDefault("trading.poll_interval", 10)
	v.SetDefault("trading.heartbeat_interval", 300)
	v.SetDefault("trading.strategy", "tiered")
	v.SetDefault("trading.stop_loss_pct", 20)
	v.SetDefault("trading.take_profit1_pct", 100)
	v.SetDefault("trading.take_profit1_portion", 0.5)
	v.SetDefault("trading.take_profit2_pct", 400)
	v.SetDefault("trading.trailing_activation_pct", 200)
	v.SetDefault("trading.trailing_distance_pct", 10)

	v.SetDefault("fees.percent", 0.5)
	v.SetDefault("fees.wallet", "")

	v.SetDefault("subscription.pro_price_sol", 0.3)
	v.SetDefault("subscription.whale_price_sol", 1.0)
	v.SetDefault("subscription.free_daily_snipes", 3)
	v.SetDefault("subscription.period_days", 30)

	v.SetDefault("analyzer.max_risk_score", 50)
	v.SetDefault("analyzer.max_sell_tax_pct", 10)
	v.SetDefault("analyzer.round_trip_sol", 0.01)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.file", "")

	v.SetDefault("server.port", 10000)
	v.SetDefault("server.ui_port", 10001)
	v.SetDefault("server.shutdown_timeout", 10)

	v.SetDefault("database.url", "")
	v.SetDefault("database.sqlite_path", "mex_balancer.db")
	v.SetDefault("database.fallback_sqlite", true)
	v.SetDefault("database.max_conns", 10)
}

// LoadConfig reads configuration from file, .env and environment variables.
// A missing config file is not an error.
func LoadConfig(path string) (config Config, err error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range legacyEnv {
		if err = v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return
		}
	}

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

// Validate checks that the settings needed to trade are present.
func (c Config) Validate() error {
	var missing []string
	if c.Telegram.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if c.Solana.RPCURL == "" {
		missing = append(missing, "RPC_URL")
	}
	if c.Solana.WalletKey == "" {
		missing = append(missing, "SOL_MAIN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.Trading.MinAmountSOL <= 0 {
		return errors.New("trading.min_amount_sol must be positive")
	}
	if c.Trading.PollInterval <= 0 {
		return errors.New("trading.poll_interval must be positive")
	}
	if c.Fees.Percent < 0 || c.Fees.Percent > 100 {
		return errors.New("fees.percent must be between 0 and 100")
	}
	return nil
}

// PollEvery returns the position monitor interval.
func (t Trading) PollEvery() time.Duration {
	return time.Duration(t.PollInterval) * time.Second
}

// HeartbeatEvery returns the heartbeat interval.
func (t Trading) HeartbeatEvery() time.Duration {
	return time.Duration(t.HeartbeatInterval) * time.Second
}
