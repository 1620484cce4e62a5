package config

import (
	"time"

	"github.com/pawmate/autoreply/src/persona"
)

// DefaultConfig returns a default configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Reply: ReplyConfig{
			ActiveProvider: "deepseek",
			HistoryLimit:   20,
			PeerDelay:      DelayRangeConfig{MinMs: 2000, MaxMs: 5000},
			AgentDelay:     DelayRangeConfig{MinMs: 800, MaxMs: 2000},
		},
		Providers: map[string]ProviderConfig{
			"deepseek": {
				Kind:         "openaichat",
				APIKeyEnvVar: "DEEPSEEK_API_KEY",
				BaseURL:      "https://api.deepseek.com/v1",
				Model:        "deepseek-chat",
				Timeout:      30 * time.Second,
			},
			"kimi": {
				Kind:         "openaichat",
				APIKeyEnvVar: "MOONSHOT_API_KEY",
				BaseURL:      "https://api.moonshot.cn/v1",
				Model:        "moonshot-v1-8k",
				Timeout:      30 * time.Second,
			},
			"qwen": {
				Kind:         "dashscope",
				APIKeyEnvVar: "DASHSCOPE_API_KEY",
				Model:        "qwen-turbo",
				Timeout:      30 * time.Second,
			},
			"gemini": {
				Kind:         "gemini",
				APIKeyEnvVar: "GEMINI_API_KEY",
				Model:        "gemini-2.0-flash",
				Timeout:      30 * time.Second,
			},
		},
		Personas: persona.DefaultPersonas(),
		Server: ServerConfig{
			Addr: ":8787",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
