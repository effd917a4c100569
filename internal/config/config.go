package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ChatDigest/internal/domain"
)

const (
	defaultTimezone = "Asia/Seoul"
	configPathEnv   = "CHAT_DIGEST_CONFIG"
	geminiKeyEnv    = "GEMINI_KEY"
	openAIKeyEnv    = "OPENAI_API_KEY"
	notionKeyEnv    = "NOTION_KEY"
	notionDBEnv     = "NOTION_DB_ID"
	telegramTokEnv  = "TG_BOT_TOKEN"
	telegramChatEnv = "TG_CHAT_ID"
	telegramChEnv   = "TG_CHANNELS"
	keywordsEnv     = "TARGET_KEYWORDS"
	windowEnv       = "WINDOW_DURATION"
	databaseDSNEnv  = "DATABASE_DSN"
	pushgatewayEnv  = "PUSHGATEWAY_URL"
	logLevelEnv     = "LOG_LEVEL"
)

// Summarizer providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Platform strategies.
const (
	PlatformTelegram  = "telegram"
	PlatformEditorial = "editorial"
)

// EnvFiles are loaded, when present, before the environment is read.
// Variables already set in the process take precedence.
var EnvFiles = []string{".env", ".env.local"}

// Config holds high-level settings required across the application.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Window      WindowConfig      `yaml:"window"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Selection   SelectionConfig   `yaml:"selection"`
	Collection  CollectionConfig  `yaml:"collection"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Sinks       SinksConfig       `yaml:"sinks"`
	Database    DatabaseConfig    `yaml:"database"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Sites       []SiteConfig      `yaml:"sites"`
}

// LoggingConfig selects the slog level and handler ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WindowConfig sets the look-back of every run.
type WindowConfig struct {
	Duration time.Duration `yaml:"duration"`
}

// SchedulerConfig defines when scheduled runs fire.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return resolveLocation(s.Timezone)
}

// SelectionConfig picks the sources to read by name.
type SelectionConfig struct {
	Keywords    []string `yaml:"keywords"`
	SortSources bool     `yaml:"sortSources"`
}

// CollectionConfig bounds reads and admission.
type CollectionConfig struct {
	MaxMessages    int      `yaml:"maxMessages"`
	MinLength      int      `yaml:"minLength"`
	Concurrency    int      `yaml:"concurrency"`
	Keywords       []string `yaml:"keywords"`
	AllowedSources []string `yaml:"allowedSources"`
}

// AggregationConfig chooses the unit layout and its character caps.
type AggregationConfig struct {
	Mode           domain.AggregationMode `yaml:"mode"`
	PerSourceCap   int                    `yaml:"perSourceCap"`
	CrossSourceCap int                    `yaml:"crossSourceCap"`
}

// Cap returns the unit cap of the configured mode.
func (a AggregationConfig) Cap() int {
	if a.Mode == domain.ModeCrossSource {
		return a.CrossSourceCap
	}
	return a.PerSourceCap
}

// SummarizerConfig defines how to contact the summarization service.
type SummarizerConfig struct {
	Provider     string          `yaml:"provider"`
	Model        string          `yaml:"model"`
	APIKey       string          `yaml:"apiKey"`
	BaseURL      string          `yaml:"baseUrl"`
	SystemPrompt string          `yaml:"systemPrompt"`
	MaxRetries   int             `yaml:"maxRetries"`
	Concurrency  int             `yaml:"concurrency"`
	PromptCaps   PromptCapConfig `yaml:"promptCaps"`
	Templates    TemplateConfig  `yaml:"templates"`
}

// PromptCapConfig caps the submitted prompt per mode.
type PromptCapConfig struct {
	PerSource   int `yaml:"perSource"`
	CrossSource int `yaml:"crossSource"`
}

// TemplateConfig overrides the built-in prompt templates.
type TemplateConfig struct {
	PerSource   string `yaml:"perSource"`
	CrossSource string `yaml:"crossSource"`
}

// SinksConfig wires every outbound channel. A sink is enabled by its
// credentials (or path) being present.
type SinksConfig struct {
	ChunkLimit int            `yaml:"chunkLimit"`
	MaxRetries int            `yaml:"maxRetries"`
	Telegram   TelegramConfig `yaml:"telegram"`
	Notion     NotionConfig   `yaml:"notion"`
	Document   DocumentConfig `yaml:"document"`
	Archive    ArchiveConfig  `yaml:"archive"`
}

// TelegramConfig wires all data required to send direct messages.
type TelegramConfig struct {
	BotToken   string `yaml:"botToken"`
	ChatID     string `yaml:"chatId"`
	ChunkLimit int    `yaml:"chunkLimit"`
}

// Enabled reports whether the sink has credentials.
func (t TelegramConfig) Enabled() bool { return t.BotToken != "" && t.ChatID != "" }

// NotionConfig targets the knowledge-base database.
type NotionConfig struct {
	APIKey        string `yaml:"apiKey"`
	DatabaseID    string `yaml:"databaseId"`
	Category      string `yaml:"category"`
	FixedCategory string `yaml:"fixedCategory"`
}

// Enabled reports whether the sink has credentials.
func (n NotionConfig) Enabled() bool { return n.APIKey != "" && n.DatabaseID != "" }

// DocumentConfig locates the published Markdown document.
type DocumentConfig struct {
	Path    string `yaml:"path"`
	Title   string `yaml:"title"`
	Push    bool   `yaml:"push"`
	RepoDir string `yaml:"repoDir"`
	Remote  string `yaml:"remote"`
	Branch  string `yaml:"branch"`
}

// Enabled reports whether a document path is configured.
func (d DocumentConfig) Enabled() bool { return d.Path != "" }

// ArchiveConfig toggles the Postgres report archive.
type ArchiveConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// MetricsConfig points at a Prometheus Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgatewayUrl"`
	Instance       string `yaml:"instance"`
}

// SiteConfig describes a single site with its platform strategy.
type SiteConfig struct {
	Name     string            `yaml:"name"`
	Platform string            `yaml:"platform"`
	Channels []string          `yaml:"channels"`
	BaseURL  string            `yaml:"baseUrl"`
	Options  map[string]string `yaml:"options"`
}

// Load reads .env files, the YAML file at path (or $CHAT_DIGEST_CONFIG),
// applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	loadEnvFiles()

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(raw))), &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	cfg.bindTimezone()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFiles() {
	for _, file := range EnvFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		_ = godotenv.Load(file)
	}
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(windowEnv); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &domain.ConfigurationError{Field: windowEnv, Reason: fmt.Sprintf("is not a duration: %q", v)}
		}
		c.Window.Duration = d
	}

	if v := os.Getenv(keywordsEnv); v != "" {
		c.Selection.Keywords = splitList(v)
	}

	switch c.Summarizer.Provider {
	case ProviderOpenAI:
		if v := os.Getenv(openAIKeyEnv); v != "" {
			c.Summarizer.APIKey = v
		}
	default:
		if v := os.Getenv(geminiKeyEnv); v != "" {
			c.Summarizer.APIKey = v
		}
	}

	if v := os.Getenv(notionKeyEnv); v != "" {
		c.Sinks.Notion.APIKey = v
	}
	if v := os.Getenv(notionDBEnv); v != "" {
		c.Sinks.Notion.DatabaseID = v
	}

	if v := os.Getenv(telegramTokEnv); v != "" {
		c.Sinks.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Sinks.Telegram.ChatID = v
	}
	if v := os.Getenv(telegramChEnv); v != "" {
		c.setTelegramChannels(splitList(v))
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(pushgatewayEnv); v != "" {
		c.Metrics.PushgatewayURL = v
	}
	return nil
}

func (c *Config) setTelegramChannels(channels []string) {
	for i := range c.Sites {
		if c.Sites[i].Platform == PlatformTelegram {
			c.Sites[i].Channels = channels
			return
		}
	}
	c.Sites = append(c.Sites, SiteConfig{Name: PlatformTelegram, Platform: PlatformTelegram, Channels: channels})
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) bindTimezone() {
	c.Scheduler.location = resolveLocation(c.Scheduler.Timezone)
}

func resolveLocation(tz string) *time.Location {
	if tz == "" {
		tz = defaultTimezone
	}
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc
	}
	return time.FixedZone("UTC+9", 9*60*60)
}

// Validate fails fast on settings a run cannot work without. The error is a
// *domain.ConfigurationError naming the field.
func (c Config) Validate() error {
	invalid := func(field, reason string) error {
		return &domain.ConfigurationError{Field: field, Reason: reason}
	}

	if c.Window.Duration <= 0 {
		return invalid("window.duration", "must be positive")
	}
	if len(splitList(strings.Join(c.Selection.Keywords, ","))) == 0 {
		return invalid("selection.keywords", "needs at least one keyword")
	}
	if len(c.Sites) == 0 {
		return invalid("sites", "needs at least one site")
	}
	for i, site := range c.Sites {
		field := fmt.Sprintf("sites[%d]", i)
		switch site.Platform {
		case PlatformTelegram:
			if len(site.Channels) == 0 {
				return invalid(field+".channels", "needs at least one channel")
			}
		case PlatformEditorial:
		default:
			return invalid(field+".platform", fmt.Sprintf("unsupported platform %q", site.Platform))
		}
	}

	if !c.Aggregation.Mode.Valid() {
		return invalid("aggregation.mode", fmt.Sprintf("unsupported mode %q", c.Aggregation.Mode))
	}
	if c.Aggregation.PerSourceCap <= 0 || c.Aggregation.CrossSourceCap <= 0 {
		return invalid("aggregation caps", "must be positive")
	}
	if c.Summarizer.PromptCaps.PerSource <= 0 || c.Summarizer.PromptCaps.CrossSource <= 0 {
		return invalid("summarizer.promptCaps", "must be positive")
	}
	if c.Collection.MaxMessages <= 0 {
		return invalid("collection.maxMessages", "must be positive")
	}

	switch c.Summarizer.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return invalid("summarizer.provider", fmt.Sprintf("unsupported provider %q", c.Summarizer.Provider))
	}
	if c.Summarizer.APIKey == "" {
		return invalid("summarizer.apiKey", "is required (set "+geminiKeyEnv+" or "+openAIKeyEnv+")")
	}

	if c.Sinks.ChunkLimit <= 0 {
		return invalid("sinks.chunkLimit", "must be positive")
	}
	if c.Sinks.Archive.Enabled && c.Database.DSN == "" {
		return invalid("database.dsn", "is required when the archive is enabled")
	}
	if !c.Sinks.Telegram.Enabled() && !c.Sinks.Notion.Enabled() && !c.Sinks.Document.Enabled() && !c.Sinks.Archive.Enabled {
		return invalid("sinks", "needs at least one configured sink")
	}
	return nil
}

// IsConfigurationError reports whether err came from Validate.
func IsConfigurationError(err error) bool {
	var cfgErr *domain.ConfigurationError
	return errors.As(err, &cfgErr)
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Window:    WindowConfig{Duration: domain.DefaultWindow},
		Scheduler: SchedulerConfig{CronExpression: "0 7 * * *", Timezone: defaultTimezone},
		Collection: CollectionConfig{
			MaxMessages: 50,
			MinLength:   20,
			Concurrency: 4,
		},
		Aggregation: AggregationConfig{
			Mode:           domain.ModePerSource,
			PerSourceCap:   5000,
			CrossSourceCap: 50000,
		},
		Summarizer: SummarizerConfig{
			Provider:    ProviderGemini,
			Concurrency: 2,
			PromptCaps:  PromptCapConfig{PerSource: 6000, CrossSource: 60000},
		},
		Sinks: SinksConfig{
			ChunkLimit: 4000,
			MaxRetries: 2,
			Document:   DocumentConfig{Title: "Chat Digest", Remote: "origin"},
		},
	}
}
