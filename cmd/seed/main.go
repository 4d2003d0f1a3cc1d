// Command seed loads the built-in prompt list into the store. Embeddings are
// generated through the OpenAI API when a key is configured; otherwise random
// unit vectors are used so local development works offline.
package main

import (
	"context"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"github.com/sketchdash/sketchdash/internal/ai/openai"
	"github.com/sketchdash/sketchdash/internal/config"
	"github.com/sketchdash/sketchdash/internal/game"
	"github.com/sketchdash/sketchdash/internal/store/badgerstore"
)

const embeddingDim = 1536

var prompts = []game.Prompt{
	{Name: "Cat", Description: "A small domesticated feline"},
	{Name: "House", Description: "A building where people live"},
	{Name: "Tree", Description: "A tall plant with a trunk and branches"},
	{Name: "Car", Description: "A four-wheeled motor vehicle"},
	{Name: "Sun", Description: "The star at the center of our solar system"},
	{Name: "Fish", Description: "An animal that lives and swims in water"},
	{Name: "Bicycle", Description: "A two-wheeled pedal-powered vehicle"},
	{Name: "Mountain", Description: "A large natural elevation of the earth"},
	{Name: "Flower", Description: "The colorful blossom of a plant"},
	{Name: "Boat", Description: "A vessel for traveling on water"},
	{Name: "Dog", Description: "A loyal domesticated canine"},
	{Name: "Pizza", Description: "A round flatbread topped with cheese and sauce"},
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerologlog.Logger = zerologlog.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	logger := zerologlog.Logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("loading config")
	}

	store, err := badgerstore.Open(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("opening store")
	}
	defer store.Close()

	var embedder *openai.Client
	if cfg.OpenAIKey != "" {
		embedder = openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel)
	} else {
		logger.Warn().Msg("no OPENAI_API_KEY set, seeding with random embeddings")
	}

	ctx := context.Background()
	for _, p := range prompts {
		prompt := p
		prompt.NameEmbedding = embed(ctx, embedder, prompt.Name, logger)
		prompt.DescriptionEmbedding = embed(ctx, embedder, prompt.Description, logger)
		stored, err := store.UpsertPrompt(ctx, &prompt)
		if err != nil {
			logger.Error().Err(err).Str("prompt", prompt.Name).Msg("seeding prompt")
			continue
		}
		logger.Info().Str("prompt", stored.Name).Str("id", stored.ID).Msg("added prompt")
	}
	logger.Info().Int("count", len(prompts)).Msg("finished seeding prompts")
}

func embed(ctx context.Context, embedder *openai.Client, text string, logger zerolog.Logger) []float64 {
	if embedder != nil {
		vec, err := embedder.Embed(ctx, text)
		if err == nil {
			return vec
		}
		logger.Error().Err(err).Str("text", text).Msg("embedding failed, falling back to random vector")
	}
	vec := make([]float64, embeddingDim)
	for i := range vec {
		vec[i] = rand.Float64()
	}
	return vec
}
