package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	def := defaultConfig()
	return &Config{
		API: APIConfig{
			BaseURL:   "http://127.0.0.1:0/api/",
			Timeout:   5 * time.Second,
			UserAgent: "chronicle-test/1.0",
		},
		Database: DatabaseConfig{
			Path:    ":memory:", // callers substitute a temp dir path
			Timeout: 1 * time.Second,
		},
		Listing: def.Listing,
		Search: SearchConfig{
			Limit: 20,
		},
		Upload: UploadConfig{
			MaxDimension: 256,
			JPEGQuality:  70,
			MaxFileBytes: 1 << 20,
		},
		Log: LogConfig{
			Level: "off",
		},
		UI: UIConfig{
			Colors:  def.UI.Colors,
			Article: def.UI.Article,
		},
		Media: def.Media,
		Keys:  def.Keys,
	}
}
