package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"trafficlaw-gateway/internal/adapter/client"
	"trafficlaw-gateway/internal/adapter/store"
	"trafficlaw-gateway/internal/config"
	"trafficlaw-gateway/internal/ingest"
	"trafficlaw-gateway/internal/logging"

	"github.com/qdrant/go-client/qdrant"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

type options struct {
	source string
	out    string
	qdrant bool
}

func main() {
	opts := &options{}
	root := &cobra.Command{
		Use:     "ingest",
		Short:   "Embed the law corpus into the gateway's vector database",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
		SilenceUsage: true,
	}
	root.Flags().StringVar(&opts.source, "source", "data_luat_vn.txt", "UTF-8 corpus, sections separated by ===")
	root.Flags().StringVar(&opts.out, "out", "", "output JSON path (default VECTOR_DB_PATH)")
	root.Flags().BoolVar(&opts.qdrant, "qdrant", false, "also upsert the records into QDRANT_COLLECTION")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()
	log = log.Named("ingest")

	if len(cfg.APIKeys) == 0 {
		return errors.New("GEMINI_API_KEY is not set")
	}
	out := opts.out
	if out == "" {
		out = cfg.VectorDBPath
	}

	raw, err := os.ReadFile(opts.source)
	if err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}
	sections := ingest.Split(string(raw))
	log.Info("corpus split", zap.String("source", opts.source), zap.Int("sections", len(sections)))

	genaiClient, err := client.NewAPIClient(ctx, cfg.APIKeys[0])
	if err != nil {
		return fmt.Errorf("gemini client: %w", err)
	}
	records, err := ingest.Build(ctx, client.NewEmbedder(genaiClient, cfg.EmbedModel), sections, log)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := ingest.WriteJSON(f, records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info("vector database written", zap.String("path", out), zap.Int("records", len(records)))

	if !opts.qdrant || len(records) == 0 {
		return nil
	}
	qClient, err := qdrant.NewClient(&qdrant.Config{Host: cfg.QdrantHost, Port: cfg.QdrantPort})
	if err != nil {
		return fmt.Errorf("connect qdrant: %w", err)
	}
	defer qClient.Close()

	qs := store.NewQdrantStore(qClient, cfg.QdrantCollection)
	if err := qs.EnsureCollection(ctx, uint64(len(records[0].Embedding))); err != nil {
		return err
	}
	if err := qs.Upsert(ctx, records); err != nil {
		return err
	}
	log.Info("records upserted", zap.String("collection", cfg.QdrantCollection), zap.Int("records", len(records)))
	return nil
}
