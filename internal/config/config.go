package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Listing  ListingConfig  `mapstructure:"listing"`
	Search   SearchConfig   `mapstructure:"search"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Log      LogConfig      `mapstructure:"log"`
	UI       UIConfig       `mapstructure:"ui"`
	Media    MediaConfig    `mapstructure:"media"`
	Keys     KeyConfig      `mapstructure:"keys"`
}

type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SearchIndex string        `mapstructure:"search_index"`
}

type ListingConfig struct {
	PageSize          int `mapstructure:"page_size" toml:"page_size"`
	PrefetchThreshold int `mapstructure:"prefetch_threshold" toml:"prefetch_threshold"`
}

type SearchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" toml:"debounce"`
	Limit    int           `mapstructure:"limit" toml:"limit"`
}

type UploadConfig struct {
	MaxDimension int   `mapstructure:"max_dimension" toml:"max_dimension"`
	JPEGQuality  int   `mapstructure:"jpeg_quality" toml:"jpeg_quality"`
	MaxFileBytes int64 `mapstructure:"max_file_bytes" toml:"max_file_bytes"`
}

type LogConfig struct {
	Level string `mapstructure:"level" toml:"level"`
	File  string `mapstructure:"file" toml:"file"`
}

type UIConfig struct {
	Colors       UIColors      `mapstructure:"colors" toml:"colors"`
	Article      ArticleConfig `mapstructure:"article" toml:"article"`
	ConfirmDelay time.Duration `mapstructure:"confirm_delay" toml:"confirm_delay"`
}

type UIColors struct {
	Primary    string `mapstructure:"primary" toml:"primary"`
	Secondary  string `mapstructure:"secondary" toml:"secondary"`
	Accent     string `mapstructure:"accent" toml:"accent"`
	Background string `mapstructure:"background" toml:"background"`
	Surface    string `mapstructure:"surface" toml:"surface"`
	Text       string `mapstructure:"text" toml:"text"`
	Muted      string `mapstructure:"muted" toml:"muted"`
	Error      string `mapstructure:"error" toml:"error"`
	Success    string `mapstructure:"success" toml:"success"`
}

type ArticleConfig struct {
	MaxExcerptLength int `mapstructure:"max_excerpt_length" toml:"max_excerpt_length"`
	WordWrapMaxWidth int `mapstructure:"word_wrap_max_width" toml:"word_wrap_max_width"`
	WordWrapMinWidth int `mapstructure:"word_wrap_min_width" toml:"word_wrap_min_width"`
}

type MediaConfig struct {
	Darwin        ImageViewers `mapstructure:"darwin" toml:"darwin"`
	Linux         ImageViewers `mapstructure:"linux" toml:"linux"`
	Windows       ImageViewers `mapstructure:"windows" toml:"windows"`
	DefaultOpener string       `mapstructure:"default_opener" toml:"default_opener"`
}

type ImageViewers struct {
	Image []string `mapstructure:"image" toml:"image"`
}

type KeyConfig struct {
	Modifier string      `mapstructure:"modifier" toml:"modifier"`
	Bindings KeyBindings `mapstructure:"bindings" toml:"bindings"`
}

type KeyBindings struct {
	Quit       string `mapstructure:"quit" toml:"quit"`
	Search     string `mapstructure:"search" toml:"search"`
	NewArticle string `mapstructure:"new_article" toml:"new_article"`
	Edit       string `mapstructure:"edit" toml:"edit"`
	Delete     string `mapstructure:"delete" toml:"delete"`
	Refresh    string `mapstructure:"refresh" toml:"refresh"`
	Profile    string `mapstructure:"profile" toml:"profile"`
	OpenImage  string `mapstructure:"open_image" toml:"open_image"`
	Back       string `mapstructure:"back" toml:"back"`
	Help       string `mapstructure:"help" toml:"help"`
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dbPath := filepath.Join(homeDir, ".chronicle.db")
	searchIndexPath := filepath.Join(homeDir, ".chronicle", "index.bleve")

	return &Config{
		API: APIConfig{
			BaseURL:   "http://localhost:3000/api/",
			Timeout:   30 * time.Second,
			UserAgent: "chronicle/1.0 (https://github.com/pders01/chronicle)",
		},
		Database: DatabaseConfig{
			Path:        dbPath,
			Timeout:     1 * time.Second,
			SearchIndex: searchIndexPath,
		},
		Listing: ListingConfig{
			PageSize:          20,
			PrefetchThreshold: 4,
		},
		Search: SearchConfig{
			Debounce: 300 * time.Millisecond,
			Limit:    20,
		},
		Upload: UploadConfig{
			MaxDimension: 1600,
			JPEGQuality:  70,
			MaxFileBytes: 15 << 20,
		},
		Log: LogConfig{
			Level: "off",
		},
		UI: UIConfig{
			Colors: UIColors{
				Primary:    "#C08457",
				Secondary:  "#4ECDC4",
				Accent:     "#E9C46A",
				Background: "#1A1A2E",
				Surface:    "#16213E",
				Text:       "#EAEAEA",
				Muted:      "#94A3B8",
				Error:      "#F87171",
				Success:    "#4ADE80",
			},
			Article: ArticleConfig{
				MaxExcerptLength: 120,
				WordWrapMaxWidth: 120,
				WordWrapMinWidth: 40,
			},
			ConfirmDelay: 1500 * time.Millisecond,
		},
		Media: MediaConfig{
			Darwin: ImageViewers{
				Image: []string{"preview", "open"},
			},
			Linux: ImageViewers{
				Image: []string{"sxiv", "feh", "eog", "xdg-open"},
			},
			Windows: ImageViewers{
				Image: []string{"start"},
			},
			DefaultOpener: getDefaultOpener(),
		},
		Keys: KeyConfig{
			Modifier: "ctrl",
			Bindings: KeyBindings{
				Quit:       "q",
				Search:     "s",
				NewArticle: "n",
				Edit:       "e",
				Delete:     "x",
				Refresh:    "r",
				Profile:    "p",
				OpenImage:  "o",
				Back:       "esc",
				Help:       "?",
			},
		},
	}
}

func getDefaultOpener() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "linux":
		return "xdg-open"
	case "windows":
		return "start"
	default:
		return "open"
	}
}

// Load reads configuration from configPath, or from
// ~/.config/chronicle/config.toml and ./config.toml when configPath is empty.
// A .env file in the working directory is loaded first so CHRONICLE_*
// variables defined there take part in the environment override.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v, defaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "chronicle")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CHRONICLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyFallbacks(&config)
	expandPaths(&config)

	return &config, nil
}

// setDefaults registers every leaf key so partial sections in a config file
// or a single CHRONICLE_* variable only override what they name.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("api.user_agent", cfg.API.UserAgent)

	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.timeout", cfg.Database.Timeout)
	v.SetDefault("database.search_index", cfg.Database.SearchIndex)

	v.SetDefault("listing.page_size", cfg.Listing.PageSize)
	v.SetDefault("listing.prefetch_threshold", cfg.Listing.PrefetchThreshold)

	v.SetDefault("search.debounce", cfg.Search.Debounce)
	v.SetDefault("search.limit", cfg.Search.Limit)

	v.SetDefault("upload.max_dimension", cfg.Upload.MaxDimension)
	v.SetDefault("upload.jpeg_quality", cfg.Upload.JPEGQuality)
	v.SetDefault("upload.max_file_bytes", cfg.Upload.MaxFileBytes)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)

	colors := cfg.UI.Colors
	v.SetDefault("ui.colors.primary", colors.Primary)
	v.SetDefault("ui.colors.secondary", colors.Secondary)
	v.SetDefault("ui.colors.accent", colors.Accent)
	v.SetDefault("ui.colors.background", colors.Background)
	v.SetDefault("ui.colors.surface", colors.Surface)
	v.SetDefault("ui.colors.text", colors.Text)
	v.SetDefault("ui.colors.muted", colors.Muted)
	v.SetDefault("ui.colors.error", colors.Error)
	v.SetDefault("ui.colors.success", colors.Success)
	v.SetDefault("ui.article.max_excerpt_length", cfg.UI.Article.MaxExcerptLength)
	v.SetDefault("ui.article.word_wrap_max_width", cfg.UI.Article.WordWrapMaxWidth)
	v.SetDefault("ui.article.word_wrap_min_width", cfg.UI.Article.WordWrapMinWidth)
	v.SetDefault("ui.confirm_delay", cfg.UI.ConfirmDelay)

	v.SetDefault("media.darwin.image", cfg.Media.Darwin.Image)
	v.SetDefault("media.linux.image", cfg.Media.Linux.Image)
	v.SetDefault("media.windows.image", cfg.Media.Windows.Image)
	v.SetDefault("media.default_opener", cfg.Media.DefaultOpener)

	b := cfg.Keys.Bindings
	v.SetDefault("keys.modifier", cfg.Keys.Modifier)
	v.SetDefault("keys.bindings.quit", b.Quit)
	v.SetDefault("keys.bindings.search", b.Search)
	v.SetDefault("keys.bindings.new_article", b.NewArticle)
	v.SetDefault("keys.bindings.edit", b.Edit)
	v.SetDefault("keys.bindings.delete", b.Delete)
	v.SetDefault("keys.bindings.refresh", b.Refresh)
	v.SetDefault("keys.bindings.profile", b.Profile)
	v.SetDefault("keys.bindings.open_image", b.OpenImage)
	v.SetDefault("keys.bindings.back", b.Back)
	v.SetDefault("keys.bindings.help", b.Help)
}

// applyFallbacks restores defaults for numeric settings a partial config file
// left at zero.
func applyFallbacks(cfg *Config) {
	def := defaultConfig()
	if cfg.Listing.PageSize <= 0 {
		cfg.Listing.PageSize = def.Listing.PageSize
	}
	if cfg.Listing.PrefetchThreshold <= 0 {
		cfg.Listing.PrefetchThreshold = def.Listing.PrefetchThreshold
	}
	if cfg.Search.Limit <= 0 {
		cfg.Search.Limit = def.Search.Limit
	}
	if cfg.Upload.JPEGQuality <= 0 || cfg.Upload.JPEGQuality > 100 {
		cfg.Upload.JPEGQuality = def.Upload.JPEGQuality
	}
	if cfg.Upload.MaxDimension <= 0 {
		cfg.Upload.MaxDimension = def.Upload.MaxDimension
	}
	if cfg.Upload.MaxFileBytes <= 0 {
		cfg.Upload.MaxFileBytes = def.Upload.MaxFileBytes
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = def.API.Timeout
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = def.API.UserAgent
	}
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Database.SearchIndex = expandPath(cfg.Database.SearchIndex)
	cfg.Log.File = expandPath(cfg.Log.File)
}

func Save(config *Config, path string) error {
	v := viper.New()

	// Durations as strings for TOML readability
	apiCfg := map[string]interface{}{
		"base_url":   config.API.BaseURL,
		"timeout":    config.API.Timeout.String(),
		"user_agent": config.API.UserAgent,
	}

	dbCfg := map[string]interface{}{
		"path":         config.Database.Path,
		"timeout":      config.Database.Timeout.String(),
		"search_index": config.Database.SearchIndex,
	}

	searchCfg := map[string]interface{}{
		"debounce": config.Search.Debounce.String(),
		"limit":    config.Search.Limit,
	}

	uiCfg := map[string]interface{}{
		"colors":        config.UI.Colors,
		"article":       config.UI.Article,
		"confirm_delay": config.UI.ConfirmDelay.String(),
	}

	v.Set("api", apiCfg)
	v.Set("database", dbCfg)
	v.Set("listing", config.Listing)
	v.Set("search", searchCfg)
	v.Set("upload", config.Upload)
	v.Set("log", config.Log)
	v.Set("ui", uiCfg)
	v.Set("media", config.Media)
	v.Set("keys", config.Keys)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
