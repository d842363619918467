package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application settings. Business constants (subscription fee, grace
// window, wormhole purge ages) live here so jobs and stores never hard-code them.
type Config struct {
	Port    int    `json:"port"`
	DataDir string `json:"data_dir"`

	// ESI SSO application credentials.
	ESIClientID     string `json:"esi_client_id"`
	ESIClientSecret string `json:"esi_client_secret"`
	ESICallbackURL  string `json:"esi_callback_url"`

	// Hex-encoded 32-byte key used to seal watcher refresh tokens at rest.
	TokenSealKey string `json:"token_seal_key"`

	// Optional Telegram ops channel for reconciliation/purge alerts.
	TelegramToken  string `json:"telegram_token"`
	TelegramChatID string `json:"telegram_chat_id"`

	// Character the service sends EVE mail as. Mail is disabled when unset.
	MailCharacterID  int64  `json:"mail_character_id"`
	MailRefreshToken string `json:"-"`

	// Subscription business constants.
	MonthlyFeeISK   float64 `json:"monthly_fee_isk"`
	GraceDays       int     `json:"grace_days"`
	DonationRefType string  `json:"donation_ref_type"`

	// Wormhole lifetime constants (hours). A connection is purged when any of the
	// age predicates in the connection store matches.
	PurgeAgeHours     float64 `json:"purge_age_hours"`
	FastDecayAgeHours float64 `json:"fast_decay_age_hours"`
	CriticalAgeHours  float64 `json:"critical_age_hours"`
	FastDecayType     string  `json:"fast_decay_type"`

	// Routing constants.
	HighsecThreshold float64 `json:"highsec_threshold"`
	UnsafePenalty    int     `json:"unsafe_penalty"`

	// Scheduler intervals (minutes).
	ReconcileIntervalMin int `json:"reconcile_interval_min"`
	PurgeIntervalMin     int `json:"purge_interval_min"`
}

// Default returns a Config with the production constants.
func Default() *Config {
	return &Config{
		Port:                 13440,
		DataDir:              "data",
		MonthlyFeeISK:        500_000_000,
		GraceDays:            7,
		DonationRefType:      "player_donation",
		PurgeAgeHours:        15.5,
		FastDecayAgeHours:    11.5,
		CriticalAgeHours:     3,
		FastDecayType:        "C729",
		HighsecThreshold:     0.45,
		UnsafePenalty:        100,
		ReconcileIntervalMin: 10,
		PurgeIntervalMin:     15,
	}
}

// Load reads .env (if present) and environment variables over Default().
func Load() *Config {
	_ = godotenv.Load()

	c := Default()
	c.Port = envInt("PORT", c.Port)
	c.DataDir = envString("DATA_DIR", c.DataDir)
	c.ESIClientID = envString("ESI_CLIENT_ID", "")
	c.ESIClientSecret = envString("ESI_CLIENT_SECRET", "")
	c.ESICallbackURL = envString("ESI_CALLBACK_URL", "")
	c.TokenSealKey = envString("TOKEN_SEAL_KEY", "")
	c.TelegramToken = envString("TELEGRAM_BOT_TOKEN", "")
	c.TelegramChatID = envString("TELEGRAM_CHAT_ID", "")
	c.MailCharacterID = int64(envInt("MAIL_CHARACTER_ID", 0))
	c.MailRefreshToken = envString("MAIL_REFRESH_TOKEN", "")
	c.MonthlyFeeISK = envFloat("MONTHLY_FEE_ISK", c.MonthlyFeeISK)
	c.GraceDays = envInt("GRACE_DAYS", c.GraceDays)
	c.ReconcileIntervalMin = envInt("RECONCILE_INTERVAL_MIN", c.ReconcileIntervalMin)
	c.PurgeIntervalMin = envInt("PURGE_INTERVAL_MIN", c.PurgeIntervalMin)
	return c
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
