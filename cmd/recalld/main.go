// Command recalld serves the memory-augmented chat API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	chromemgo "github.com/philippgille/chromem-go"

	"github.com/recallhq/recall/config"
	"github.com/recallhq/recall/httpapi"
	"github.com/recallhq/recall/llm"
	"github.com/recallhq/recall/memory"
	"github.com/recallhq/recall/memory/embedder"
	"github.com/recallhq/recall/memory/embedder/cache"
	chromemindex "github.com/recallhq/recall/memory/index/chromem"
	"github.com/recallhq/recall/observability"
	"github.com/recallhq/recall/pipeline"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.App.Name)

	var emb embedder.Embedder
	switch cfg.Memory.Embedding {
	case "openai":
		fn := chromemgo.NewEmbeddingFuncOpenAI(cfg.Memory.EmbeddingAPIKey, chromemgo.EmbeddingModelOpenAI3Small)
		emb = embedder.FromFunc(fn, 1536)
		log.Printf("[MAIN] Embedding backend: openai text-embedding-3-small")
	default:
		emb = embedder.NewLocal()
		log.Printf("[MAIN] Embedding backend: local deterministic")
	}

	cached, err := cache.New(emb, cache.Config{MaxBytes: cfg.Memory.CacheMaxBytes})
	if err != nil {
		log.Fatalf("embedding cache init failed: %v", err)
	}
	defer cached.Close()

	index, err := chromemindex.New(chromemindex.Config{
		PersistDir: cfg.Memory.PersistDir,
		Compress:   cfg.Memory.Compress,
		Embedding:  cached.Embed,
	})
	if err != nil {
		log.Fatalf("vector index init failed: %v", err)
	}
	defer index.Close()

	client := anthropic.NewClient(option.WithAPIKey(cfg.LLM.APIKey))
	backend := llm.NewAnthropic(&client, cfg.LLM.Model)

	pipe := pipeline.New(
		memory.NewRetriever(index),
		memory.NewStore(index),
		backend,
		pipeline.Config{
			TopK:               cfg.Memory.TopK,
			GenTemperature:     cfg.LLM.GenTemperature,
			SummaryTemperature: cfg.LLM.SummaryTemperature,
			SummaryMaxTokens:   cfg.LLM.SummaryMaxTokens,
			CallTimeout:        cfg.LLM.CallTimeout,
		},
		pipeline.WithMetrics(metrics),
	)

	server := httpapi.New(*cfg, httpapi.NewChatService(pipe))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[MAIN] Listening on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Printf("[MAIN] Received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("[MAIN] Shutdown error: %v", err)
	}
}
