package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/customeros/vmail/internal/logger"
	"github.com/customeros/vmail/internal/tracing"
)

type Config struct {
	AppConfig       *AppConfig
	Logger          *logger.Config
	Tracing         *tracing.JaegerConfig
	DatabaseConfig  *DatabaseConfig
	R2StorageConfig *R2StorageConfig
	TelegramConfig  *TelegramConfig
	OpenAIConfig    *OpenAIConfig
	MailConfig      *MailConfig
	SMTPConfig      *SMTPConfig
	WebhookConfig   *WebhookConfig
	RetentionConfig *RetentionConfig
	AuthConfig      *AuthConfig
}

func newEmptyConfig() *Config {
	return &Config{
		AppConfig:       &AppConfig{},
		Logger:          &logger.Config{},
		Tracing:         &tracing.JaegerConfig{},
		DatabaseConfig:  &DatabaseConfig{},
		R2StorageConfig: &R2StorageConfig{},
		TelegramConfig:  &TelegramConfig{},
		OpenAIConfig:    &OpenAIConfig{},
		MailConfig:      &MailConfig{},
		SMTPConfig:      &SMTPConfig{},
		WebhookConfig:   &WebhookConfig{},
		RetentionConfig: &RetentionConfig{},
		AuthConfig:      &AuthConfig{},
	}
}

func InitConfig() (*Config, error) {
	config := newEmptyConfig()

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
