package main

import (
	"context"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Abhijeetkumar8582/NewCode/core"
	"github.com/Abhijeetkumar8582/NewCode/processors"
	"github.com/Abhijeetkumar8582/NewCode/server"
	"github.com/Abhijeetkumar8582/NewCode/storage"
)

func main() {
	log := core.NewLogger(os.Getenv("DEBUG") != "")

	cfg, err := core.LoadConfig()
	if err != nil {
		log.Error("configuration load failed", "err", err)
		os.Exit(1)
	}
	if !cfg.HasVisionBackend() {
		log.Warn("no vision backend configured; uploads will fail until OPENAI_API_KEY or GPT_BASE_URL+GPT_BEARER_TOKEN is set")
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Error("data dir unavailable", "dir", cfg.DataDir, "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var embedder storage.Embedder
	var chat *openai.Client
	if cfg.APIKey != "" {
		embedder = storage.NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.EmbeddingModel)
		chatCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			chatCfg.BaseURL = cfg.BaseURL
		}
		chat = openai.NewClientWithConfig(chatCfg)
	}

	results := storage.NewResultStore(ctx, cfg.PostgresURL, log)
	vectors := storage.NewVectorStore(ctx, cfg, embedder, log)
	images := storage.NewLocalImageStore(cfg.DataDir)

	var transcriber processors.Transcriber
	if cfg.APIKey != "" {
		transcriber = processors.NewWhisperTranscriber(cfg.APIKey, cfg.BaseURL, cfg.WhisperModel)
	} else {
		transcriber = processors.NewMockTranscriber(log)
	}

	extractor := processors.NewFrameExtractor(cfg.DataDir, cfg.FrameInterval, log)
	prompts := processors.NewPromptResolver("prompt.txt", log)
	docs := processors.NewDocumentBuilder(chat, cfg.ChatModel, log)

	pipeline := processors.NewPipeline(processors.PipelineDeps{
		Extractor:   extractor,
		Credentials: processors.NewStaticCredentials(cfg),
		Rules:       processors.NoRules{},
		Prompts:     prompts,
		Interpreter: processors.NewInterpreter(log),
		Images:      images,
		Transcriber: transcriber,
		Documents:   docs,
		Results:     results,
		Vectors:     vectors,
		BatchSize:   cfg.BatchSize,
		MaxWorkers:  cfg.MaxWorkers,
		Log:         log,
	})

	srv := server.New(cfg, pipeline, docs, results, vectors, log)
	if err := srv.ListenAndServe(":" + cfg.Port); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}
