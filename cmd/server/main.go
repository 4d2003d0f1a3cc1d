package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"github.com/sketchdash/sketchdash/internal/ai/openai"
	"github.com/sketchdash/sketchdash/internal/ai/rekognition"
	"github.com/sketchdash/sketchdash/internal/config"
	"github.com/sketchdash/sketchdash/internal/game"
	"github.com/sketchdash/sketchdash/internal/store/badgerstore"
	"github.com/sketchdash/sketchdash/internal/uploads"
	"github.com/sketchdash/sketchdash/internal/ws"
)

const version = "v1.0.0-dev"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`Sketchdash - Real-time drawing-guessing game

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT                  Port to listen on (default: 8080)
  DATA_DIR              Badger database directory (default: ./data)
  PUBLIC_DIR            Static assets directory (default: ./public)
  UPLOAD_DIR            Drawing upload directory (default: ./public/uploads)
  AWS_REGION            AWS region for Rekognition (default: us-east-1)
  MODERATION_FAIL_OPEN  Treat unanalyzable drawings as appropriate (default: true)
  OPENAI_API_KEY        OpenAI API key for embeddings
  OPENAI_BASE_URL       Custom OpenAI API base URL (optional)
  EMBEDDING_MODEL       Embedding model (default: text-embedding-ada-002)
  ADMIN_USERNAME        Admin interface username for basic auth
  ADMIN_PASSWORD        Admin interface password for basic auth

Examples:
  %s                  Start server with default settings
  %s --port 3000      Start server on port 3000

Visit http://localhost:8080 after starting the server.
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("Sketchdash %s\n", version)
		return
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)
	logger := zerologlog.Logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("loading config")
	}
	if *portFlag != "" {
		cfg.Port = *portFlag
	}

	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		zerologlog.Info().Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	})

	// Healthcheck
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	// Persistence
	store, err := badgerstore.Open(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("opening store")
	}
	defer store.Close()

	files, err := uploads.New(cfg.UploadDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("creating upload store")
	}

	// External AI collaborators
	analyzer, err := rekognition.New(context.Background(), cfg.AWSRegion, cfg.ModerationFailOpen, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("creating rekognition client")
	}
	embedder := openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel)

	// Game orchestration + socket gateway
	registry := game.NewRegistry()
	sock := ws.New()
	manager := game.NewManager(store, registry, game.NewScorer(embedder), analyzer, embedder, files, sock, logger)
	sock.SetManager(manager)
	io := sock.Mount(r)
	defer io.Close()

	// prime the registry from whatever survived a restart
	if sums, err := manager.Resync(context.Background()); err != nil {
		logger.Error().Err(err).Msg("initial registry sync failed")
	} else {
		logger.Info().Int("sessions", len(sums)).Msg("registry primed from store")
	}

	mountRoutes(r, cfg, store, embedder, files)

	logger.Info().Str("port", cfg.Port).Msg("listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func mountRoutes(r *gin.Engine, cfg *config.Config, store *badgerstore.Store, embedder *openai.Client, files *uploads.Store) {
	// Drawing upload (multipart field "drawing")
	r.POST("/api/upload", func(c *gin.Context) {
		fh, err := c.FormFile("drawing")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No file uploaded"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Could not read upload"})
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Could not read upload"})
			return
		}
		filename, err := files.Save(fh.Filename, data)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Could not store upload"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "filename": filename})
	})

	r.GET("/api/prompts", func(c *gin.Context) {
		prompts, err := store.ListPrompts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, prompts)
	})

	r.GET("/api/getRandomPrompt", func(c *gin.Context) {
		prompt, err := store.RandomPrompt(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"prompt": prompt.Name, "description": prompt.Description})
	})

	// Admin surface behind basic auth
	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		auth := gin.BasicAuth(gin.Accounts{cfg.AdminUsername: cfg.AdminPassword})

		r.POST("/api/prompts", auth, func(c *gin.Context) {
			var req struct {
				Name        string `json:"name" binding:"required"`
				Description string `json:"description"`
			}
			if err := c.BindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid prompt"})
				return
			}
			ctx := c.Request.Context()
			prompt := &game.Prompt{Name: req.Name, Description: req.Description}
			if vec, err := embedder.Embed(ctx, req.Name); err == nil {
				prompt.NameEmbedding = vec
			} else {
				zerologlog.Error().Err(err).Str("prompt", req.Name).Msg("embedding prompt name")
			}
			if vec, err := embedder.Embed(ctx, req.Description); err == nil {
				prompt.DescriptionEmbedding = vec
			}
			stored, err := store.UpsertPrompt(ctx, prompt)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}
			c.JSON(http.StatusOK, stored)
		})

		r.GET("/admin", auth, func(c *gin.Context) {
			c.File(filepath.Join(cfg.PublicDir, "admin.html"))
		})
		r.GET("/leaderboard", auth, func(c *gin.Context) {
			c.File(filepath.Join(cfg.PublicDir, "leaderboard.html"))
		})
	}

	r.Static("/uploads", files.Dir())
	r.NoRoute(func(c *gin.Context) {
		// fall through to static assets, index.html for the root
		path := c.Request.URL.Path
		if path == "/" {
			path = "/index.html"
		}
		c.File(filepath.Join(cfg.PublicDir, filepath.Clean(path)))
	})
}
