package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"docchat/internal/chromemdb"
	"docchat/internal/chunker"
	"docchat/internal/config"
	"docchat/internal/db"
	"docchat/internal/embedding"
	"docchat/internal/llmservice"
	"docchat/internal/rag"
	"docchat/internal/session"
)

const defaultConfigPath = "./configs/config.yaml"

var (
	configPath string
	debug      bool
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "docchat",
	Short:         "Chat with a document using retrieval augmented generation",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		setupLogger(os.Stderr, cfg.LogLevel)
		log.Debug().
			Str("config", configPath).
			Str("embedder", cfg.Embedder.Provider).
			Str("generator", cfg.Generator.Provider).
			Str("index", cfg.Index.Backend).
			Msg("Loaded config")
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(chatCmd, askCmd, chunksCmd, inspectCmd, initCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}

func setupLogger(out io.Writer, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

// app is a session wired to the configured embedder, index and generator.
type app struct {
	session *session.Session
	closers []io.Closer
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	embedder, err := embedding.New(ctx, cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	if c, ok := embedder.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	index, err := newIndex(ctx, cfg, embedder, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	splitter, err := chunker.New(chunker.Options{ChunkSize: cfg.Chunker.ChunkSize, ChunkOverlap: cfg.Chunker.ChunkOverlap})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.session, err = session.New(index, llmservice.NewFactory(cfg.Generator), session.Options{
		Chunker:           splitter,
		TopK:              cfg.Retrieval.TopK,
		GenerationTimeout: cfg.Generator.Timeout(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.session)

	credential := cfg.Generator.APIKey()
	if credential == "" && !cfg.Generator.NeedsKey() {
		credential = cfg.Generator.Provider
	}
	if credential != "" {
		if err := a.session.Configure(ctx, credential); err != nil {
			log.Warn().Err(err).Msg("Generator not configured")
		}
	} else {
		log.Warn().Str("env", cfg.Generator.APIKeyEnv).Msg("No API key found, questions will not be answered until one is configured")
	}
	return a, nil
}

func newIndex(ctx context.Context, cfg *config.Config, embedder embedding.Embedder, a *app) (rag.VectorIndex, error) {
	switch cfg.Index.Backend {
	case config.BackendPostgres:
		sqldb, err := db.ConnectDB(&cfg.Index.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		idx, err := db.NewIndex(ctx, db.NewDB(sqldb, cfg.Index.Database.Debug), embedder, cfg.Index.Database.Table)
		if err != nil {
			_ = sqldb.Close()
			return nil, err
		}
		a.closers = append(a.closers, idx)
		return idx, nil
	default:
		return chromemdb.NewIndex(embedder, chromemdb.Options{
			SnapshotDir:   cfg.Index.SnapshotDir,
			Compress:      cfg.Index.Compress,
			EncryptionKey: cfg.Index.EncryptionKey,
		}), nil
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing resource")
		}
	}
}
