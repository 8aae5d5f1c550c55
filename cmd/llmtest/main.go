package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/baymax-health/cmd/mainconfig"
	"github.com/wolfman30/baymax-health/internal/app/bootstrap"
	appconfig "github.com/wolfman30/baymax-health/internal/config"
	"github.com/wolfman30/baymax-health/internal/conversation"
	"github.com/wolfman30/baymax-health/pkg/logging"
)

var defaultProbes = []string{
	"I've had a mild headache since this morning. What can I do?",
	"My name is Jane Doe and my email is jane@example.com",
	"I have crushing chest pain and can't breathe",
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	cfg.StoreBackend = appconfig.BackendMemory
	logger := logging.New(cfg.LogLevel)

	probes := defaultProbes
	if len(os.Args) > 1 {
		probes = []string{strings.Join(os.Args[1:], " ")}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, logger, probes, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "llmtest: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, probes []string, out io.Writer) error {
	stores, err := bootstrap.BuildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	client, model, err := bootstrap.BuildLLMClient(ctx, cfg, mainconfig.Loader(cfg))
	if err != nil {
		return err
	}
	generator := bootstrap.BuildGenerator(cfg, client, model, nil)
	svc, err := bootstrap.BuildChatService(cfg, stores, generator, logger, nil)
	if err != nil {
		return err
	}
	return runProbes(ctx, svc, cfg.LLMProvider, model, probes, out)
}

func runProbes(ctx context.Context, svc conversation.TurnHandler, provider, model string, probes []string, out io.Writer) error {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Chat pipeline smoke test (provider=%s model=%s)\n", provider, model)
	fmt.Fprintln(out, rule)

	failures := 0
	for i, msg := range probes {
		fmt.Fprintf(out, "\n[%d] %s\n", i+1, msg)
		start := time.Now()
		resp, err := svc.HandleTurn(ctx, conversation.ChatRequest{Message: msg, UserID: "llmtest"})
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			failures++
			fmt.Fprintf(out, "    FAILED after %v: %v\n", elapsed, err)
			continue
		}
		fmt.Fprintf(out, "    classification=%s phi=%t emergency=%t (%v)\n",
			resp.Classification, resp.PHIDetected, resp.IsEmergency, elapsed)
		fmt.Fprintf(out, "    %s\n", resp.Response)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d probes failed", failures, len(probes))
	}
	return nil
}
