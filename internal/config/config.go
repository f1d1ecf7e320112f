package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "FASHIONFEED_CONFIG"

	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHANNEL_ID"

	appwriteEndpointEnv   = "APPWRITE_ENDPOINT"
	appwriteProjectEnv    = "APPWRITE_PROJECT_ID"
	appwriteKeyEnv        = "APPWRITE_API_KEY"
	appwriteDatabaseEnv   = "APPWRITE_DATABASE_ID"
	appwriteCollectionEnv = "APPWRITE_COLLECTION_ID"
)

// Config holds everything the application needs for one run.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Telegram TelegramConfig `yaml:"telegram"`
	Appwrite AppwriteConfig `yaml:"appwrite"`
	Run      RunConfig      `yaml:"run"`
	Filter   FilterConfig   `yaml:"filter"`
	Caption  CaptionConfig  `yaml:"caption"`
	Feeds    []FeedConfig   `yaml:"feeds"`
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// TelegramConfig wires the channel publisher.
type TelegramConfig struct {
	BotToken          string   `yaml:"botToken"`
	ChannelID         string   `yaml:"channelId"`
	APIBaseURL        string   `yaml:"apiBaseUrl"`
	Stickers          []string `yaml:"stickers"`
	CaptionDelaySecs  float64  `yaml:"captionDelaySeconds"`
	StickerDelaySecs  float64  `yaml:"stickerDelaySeconds"`
	RequestTimeoutSec int      `yaml:"requestTimeoutSeconds"`
}

// CaptionDelay is the courtesy pause between album and caption.
func (t TelegramConfig) CaptionDelay() time.Duration {
	return time.Duration(t.CaptionDelaySecs * float64(time.Second))
}

// StickerDelay is the pause before the decorative sticker.
func (t TelegramConfig) StickerDelay() time.Duration {
	return time.Duration(t.StickerDelaySecs * float64(time.Second))
}

// RequestTimeout bounds every outbound Telegram call.
func (t TelegramConfig) RequestTimeout() time.Duration {
	return time.Duration(t.RequestTimeoutSec) * time.Second
}

// AppwriteConfig describes the durable history store.
type AppwriteConfig struct {
	Endpoint     string `yaml:"endpoint"`
	ProjectID    string `yaml:"projectId"`
	APIKey       string `yaml:"apiKey"`
	DatabaseID   string `yaml:"databaseId"`
	CollectionID string `yaml:"collectionId"`
	TimeoutSecs  int    `yaml:"timeoutSeconds"`
}

// Timeout bounds each store call.
func (a AppwriteConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// RunConfig carries the batch scheduler's budgets and caps.
type RunConfig struct {
	BudgetSecs        int `yaml:"budgetSeconds"`
	MinFloorSecs      int `yaml:"minFloorSeconds"`
	FetchTimeoutSecs  int `yaml:"fetchTimeoutSeconds"`
	PageTimeoutSecs   int `yaml:"pageTimeoutSeconds"`
	MaxPostsPerRun    int `yaml:"maxPostsPerRun"`
	MaxImages         int `yaml:"maxImages"`
	AgeHorizonHours   int `yaml:"ageHorizonHours"`
	HistoryLimit      int `yaml:"historyLimit"`
	InterPostDelaySec int `yaml:"interPostDelaySeconds"`
	RetryAttempts     int `yaml:"retryAttempts"`
	RetryBaseDelayMS  int `yaml:"retryBaseDelayMs"`
}

// Budget is the hard wall-clock deadline for a whole run.
func (r RunConfig) Budget() time.Duration { return time.Duration(r.BudgetSecs) * time.Second }

// MinFloor is the remaining-time floor below which the run stops cleanly.
func (r RunConfig) MinFloor() time.Duration { return time.Duration(r.MinFloorSecs) * time.Second }

// FetchTimeout bounds a single feed fetch attempt.
func (r RunConfig) FetchTimeout() time.Duration {
	return time.Duration(r.FetchTimeoutSecs) * time.Second
}

// PageTimeout bounds the article-page fetch in the image fallback.
func (r RunConfig) PageTimeout() time.Duration {
	return time.Duration(r.PageTimeoutSecs) * time.Second
}

// AgeHorizon is how far back an entry's publication date may lie.
func (r RunConfig) AgeHorizon() time.Duration {
	return time.Duration(r.AgeHorizonHours) * time.Hour
}

// InterPostDelay spaces successive posts within one run.
func (r RunConfig) InterPostDelay() time.Duration {
	return time.Duration(r.InterPostDelaySec) * time.Second
}

// RetryBaseDelay is the base for the exponential fetch backoff.
func (r RunConfig) RetryBaseDelay() time.Duration {
	return time.Duration(r.RetryBaseDelayMS) * time.Millisecond
}

// FilterConfig carries the relevance keyword lists.
type FilterConfig struct {
	Allow []string `yaml:"allow"`
	Block []string `yaml:"block"`
}

// CaptionConfig carries the caption template data.
type CaptionConfig struct {
	Channel        string `yaml:"channel"`
	Hashtags       string `yaml:"hashtags"`
	MaxLen         int    `yaml:"maxLen"`
	MaxDescription int    `yaml:"maxDescription"`
}

// FeedConfig describes one upstream source.
type FeedConfig struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides. It never fails; Validate decides whether the result is usable.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Validate reports every missing required setting. The process must stop
// before any side effect when this fails.
func (c Config) Validate() error {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check(telegramTokenEnv, c.Telegram.BotToken)
	check(telegramChatIDEnv, c.Telegram.ChannelID)
	check(appwriteEndpointEnv, c.Appwrite.Endpoint)
	check(appwriteProjectEnv, c.Appwrite.ProjectID)
	check(appwriteKeyEnv, c.Appwrite.APIKey)
	check(appwriteDatabaseEnv, c.Appwrite.DatabaseID)
	check(appwriteCollectionEnv, c.Appwrite.CollectionID)

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(c.Feeds) == 0 {
		return fmt.Errorf("no feeds configured")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Telegram.ChannelID = v
	}
	if v := os.Getenv(appwriteEndpointEnv); v != "" {
		c.Appwrite.Endpoint = v
	}
	if v := os.Getenv(appwriteProjectEnv); v != "" {
		c.Appwrite.ProjectID = v
	}
	if v := os.Getenv(appwriteKeyEnv); v != "" {
		c.Appwrite.APIKey = v
	}
	if v := os.Getenv(appwriteDatabaseEnv); v != "" {
		c.Appwrite.DatabaseID = v
	}
	if v := os.Getenv(appwriteCollectionEnv); v != "" {
		c.Appwrite.CollectionID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.ChannelID != "" {
		base.Telegram.ChannelID = override.Telegram.ChannelID
	}
	if override.Telegram.APIBaseURL != "" {
		base.Telegram.APIBaseURL = override.Telegram.APIBaseURL
	}
	if len(override.Telegram.Stickers) > 0 {
		base.Telegram.Stickers = override.Telegram.Stickers
	}
	if override.Telegram.CaptionDelaySecs > 0 {
		base.Telegram.CaptionDelaySecs = override.Telegram.CaptionDelaySecs
	}
	if override.Telegram.StickerDelaySecs > 0 {
		base.Telegram.StickerDelaySecs = override.Telegram.StickerDelaySecs
	}
	if override.Telegram.RequestTimeoutSec > 0 {
		base.Telegram.RequestTimeoutSec = override.Telegram.RequestTimeoutSec
	}

	if override.Appwrite.Endpoint != "" {
		base.Appwrite.Endpoint = override.Appwrite.Endpoint
	}
	if override.Appwrite.ProjectID != "" {
		base.Appwrite.ProjectID = override.Appwrite.ProjectID
	}
	if override.Appwrite.APIKey != "" {
		base.Appwrite.APIKey = override.Appwrite.APIKey
	}
	if override.Appwrite.DatabaseID != "" {
		base.Appwrite.DatabaseID = override.Appwrite.DatabaseID
	}
	if override.Appwrite.CollectionID != "" {
		base.Appwrite.CollectionID = override.Appwrite.CollectionID
	}
	if override.Appwrite.TimeoutSecs > 0 {
		base.Appwrite.TimeoutSecs = override.Appwrite.TimeoutSecs
	}

	if override.Run.BudgetSecs > 0 {
		base.Run.BudgetSecs = override.Run.BudgetSecs
	}
	if override.Run.MinFloorSecs > 0 {
		base.Run.MinFloorSecs = override.Run.MinFloorSecs
	}
	if override.Run.FetchTimeoutSecs > 0 {
		base.Run.FetchTimeoutSecs = override.Run.FetchTimeoutSecs
	}
	if override.Run.PageTimeoutSecs > 0 {
		base.Run.PageTimeoutSecs = override.Run.PageTimeoutSecs
	}
	if override.Run.MaxPostsPerRun > 0 {
		base.Run.MaxPostsPerRun = override.Run.MaxPostsPerRun
	}
	if override.Run.MaxImages > 0 {
		base.Run.MaxImages = override.Run.MaxImages
	}
	if override.Run.AgeHorizonHours > 0 {
		base.Run.AgeHorizonHours = override.Run.AgeHorizonHours
	}
	if override.Run.HistoryLimit > 0 {
		base.Run.HistoryLimit = override.Run.HistoryLimit
	}
	if override.Run.InterPostDelaySec > 0 {
		base.Run.InterPostDelaySec = override.Run.InterPostDelaySec
	}
	if override.Run.RetryAttempts > 0 {
		base.Run.RetryAttempts = override.Run.RetryAttempts
	}
	if override.Run.RetryBaseDelayMS > 0 {
		base.Run.RetryBaseDelayMS = override.Run.RetryBaseDelayMS
	}

	if len(override.Filter.Allow) > 0 {
		base.Filter.Allow = override.Filter.Allow
	}
	if len(override.Filter.Block) > 0 {
		base.Filter.Block = override.Filter.Block
	}

	if override.Caption.Channel != "" {
		base.Caption.Channel = override.Caption.Channel
	}
	if override.Caption.Hashtags != "" {
		base.Caption.Hashtags = override.Caption.Hashtags
	}
	if override.Caption.MaxLen > 0 {
		base.Caption.MaxLen = override.Caption.MaxLen
	}
	if override.Caption.MaxDescription > 0 {
		base.Caption.MaxDescription = override.Caption.MaxDescription
	}

	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Telegram: TelegramConfig{
			APIBaseURL:        "https://api.telegram.org",
			CaptionDelaySecs:  2.0,
			StickerDelaySecs:  1.5,
			RequestTimeoutSec: 15,
			Stickers: []string{
				"CAACAgIAAxkBAAIBmGRx1yRFMVhVqVXLv_dAAXJMOdFNAAIUAAOVgnkAAVGGBbBjxbg4LwQ",
				"CAACAgIAAxkBAAIBmWRx1yRqy9JkN2DmV_Z2sRsKdaTjAAIVAAOVgnkAAc8R3q5p5-AELAQ",
				"CAACAgIAAxkBAAIBmmRx1yS2T2gfLqJQX9oK6LZqp1HIAAIWAAO0yXAAAV0MzCRF3ZRILAQ",
				"CAACAgIAAxkBAAIBm2Rx1ySiJV4dVeTuCTc-RfFDnfQpAAIXAAO0yXAAAA3Vm7IiJdisLAQ",
				"CAACAgIAAxkBAAIBnGRx1yT_jVlWt5xPJ7BO9aQ4JvFaAAIYAAO0yXAAAA0k9GZDQpLcLAQ",
			},
		},
		Appwrite: AppwriteConfig{
			Endpoint:     "https://cloud.appwrite.io/v1",
			CollectionID: "history",
			TimeoutSecs:  6,
		},
		Run: RunConfig{
			BudgetSecs:        110,
			MinFloorSecs:      15,
			FetchTimeoutSecs:  10,
			PageTimeoutSecs:   8,
			MaxPostsPerRun:    3,
			MaxImages:         5,
			AgeHorizonHours:   48,
			HistoryLimit:      500,
			InterPostDelaySec: 5,
			RetryAttempts:     2,
			RetryBaseDelayMS:  500,
		},
		Filter: FilterConfig{
			Allow: []string{
				// Persian
				"مد", "فشن", "استایل", "زیبایی", "لباس", "پوشاک",
				"طراحی لباس", "ترند", "کلکسیون", "برند", "سیزن",
				"آرایش", "مانتو", "پیراهن", "کت", "شلوار", "کیف",
				"کفش", "اکسسوری", "جواهر", "طلا", "عطر", "نگین",
				"پالتو", "ست لباس", "مزون", "خیاطی", "بافت",
				// English
				"fashion", "style", "beauty", "clothing", "trend",
				"outfit", "couture", "runway", "lookbook", "textile",
				"wardrobe", "luxury", "brand", "collection", "designer",
				"chanel", "dior", "gucci", "prada", "zara", "h&m",
				"streetwear", "accessory", "jewelry", "fragrance",
			},
			Block: []string{
				// Entertainment
				"فیلم", "سینما", "سریال", "بازیگر", "کارگردان", "اسکار",
				// Food
				"صبحانه", "رژیم غذایی", "طرز تهیه", "دستور پخت", "آشپزی",
				// Tech
				"اپل", "گوگل", "آیفون", "سامسونگ", "تکنولوژی", "گیم",
				// Sports
				"فوتبال", "والیبال", "ورزش", "تیم ملی", "لیگ", "مسابقه",
				// Finance
				"بورس", "ارز", "دلار", "سکه", "بیت کوین", "اقتصاد",
				// Politics
				"انتخابات", "سیاسی", "مجلس", "دولت", "وزیر", "رئیس جمهور",
				// Accidents
				"زلزله", "سیل", "آتش سوزی", "تصادف", "حادثه", "کشته",
			},
		},
		Caption: CaptionConfig{
			Channel:        "@irfashionnews",
			Hashtags:       "#مد #استایل #ترند #فشن_ایرانی #زیبایی #fashion #style",
			MaxLen:         1020,
			MaxDescription: 350,
		},
		Feeds: []FeedConfig{
			{Label: "Medopia", URL: "https://medopia.ir/feed/"},
			{Label: "Digistyle Mag", URL: "https://www.digistyle.com/mag/feed/"},
			{Label: "Chibepoosham", URL: "https://www.chibepoosham.com/feed/"},
			{Label: "Tarahane Lebas", URL: "https://www.tarahanelebas.com/feed/"},
			{Label: "Persian Pood", URL: "https://www.persianpood.com/feed/"},
			{Label: "Zibamoon", URL: "https://www.zibamoon.com/feed/"},
			{Label: "Elsana", URL: "https://www.elsana.com/feed/"},
			{Label: "Beytoote Fashion", URL: "https://www.beytoote.com/rss/fashion"},
			{Label: "Namnak Fashion", URL: "https://www.namnak.com/rss/fashion"},
			{Label: "Roozaneh Fashion", URL: "https://www.roozaneh.net/rss/fashion"},
			{Label: "Bartarinha Fashion", URL: "https://www.bartarinha.ir/rss/fashion"},
			{Label: "Zoomit Fashion Beauty", URL: "https://www.zoomit.ir/feed/category/fashion-beauty/"},
			{Label: "Fararu Fashion", URL: "https://fararu.com/rss/category/مد-زیبایی"},
			{Label: "Digikala Mag Fashion", URL: "https://www.digikala.com/mag/feed/?category=مد-و-زیبایی"},
		},
	}
}
