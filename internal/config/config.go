package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	DataDir   string `env:"DATA_DIR" envDefault:"./data"`
	PublicDir string `env:"PUBLIC_DIR" envDefault:"./public"`
	UploadDir string `env:"UPLOAD_DIR" envDefault:"./public/uploads"`

	AWSRegion string `env:"AWS_REGION" envDefault:"us-east-1"`
	// ModerationFailOpen treats unanalyzable drawings as appropriate. The
	// original deployment ran fail-open; flip this off to reject submissions
	// when moderation is unavailable.
	ModerationFailOpen bool `env:"MODERATION_FAIL_OPEN" envDefault:"true"`

	OpenAIKey      string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string `env:"OPENAI_BASE_URL"`
	EmbeddingModel string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-ada-002"`

	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

func Load() (*Config, error) {
	// a missing .env file is fine; the environment wins either way
	_ = godotenv.Load()
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
