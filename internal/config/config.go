package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort         string   `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL      string   `env:"DATABASE_URL"`
	SQLitePath       string   `env:"SQLITE_PATH" envDefault:"chat.db"`
	OpenRouterAPIKey string   `env:"OPENROUTER_API_KEY,required"`
	LLMBaseURL       string   `env:"LLM_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	LLMModels        []string `env:"LLM_MODELS" envSeparator:"," envDefault:"gpt-4o-mini,deepseek/deepseek-r1:free,mistralai/mistral-7b-instruct:free,z-ai/glm-4.5-air:free"`
	LLMMaxTokens     int      `env:"LLM_MAX_TOKENS" envDefault:"2000"`
	MaxMessageLength int      `env:"MAX_MESSAGE_LENGTH" envDefault:"1000"`
	AllowedOrigins   []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	RedisAddr        string   `env:"REDIS_ADDR"`
	RedisPassword    string   `env:"REDIS_PASSWORD"`
	RedisDB          int      `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
