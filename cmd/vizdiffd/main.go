// Command vizdiffd is the vizdiff webhook service.
// It serves the GitHub webhook endpoint and a health check; qualifying
// pull_request events trigger a full visual regression run.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vizdiff/vizdiff/internal/webhook"
	"github.com/vizdiff/vizdiff/pkg/config"
)

type daemonConfig struct {
	Port           string
	ConfigPath     string
	WebhookSecret  string
	BeforeTemplate string
	AfterTemplate  string
}

func loadDaemonConfig() daemonConfig {
	return daemonConfig{
		Port:           envOrDefault("PORT", "8080"),
		ConfigPath:     os.Getenv("VIZDIFF_CONFIG"),
		WebhookSecret:  os.Getenv("GITHUB_WEBHOOK_SECRET"),
		BeforeTemplate: os.Getenv("BEFORE_URL_TEMPLATE"),
		AfterTemplate:  os.Getenv("AFTER_URL_TEMPLATE"),
	}
}

func main() {
	dcfg := loadDaemonConfig()
	if dcfg.WebhookSecret == "" {
		log.Fatal("GITHUB_WEBHOOK_SECRET is required")
	}
	if dcfg.BeforeTemplate == "" || dcfg.AfterTemplate == "" {
		log.Fatal("BEFORE_URL_TEMPLATE and AFTER_URL_TEMPLATE are required")
	}

	cfg, err := config.Load(dcfg.ConfigPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	baseRun, err := config.RunFromEnv()
	if err != nil {
		log.Fatalf("load run environment: %v", err)
	}
	if baseRun.WorkerURL == "" {
		log.Fatal("SCREENSHOT_WORKER_URL is required")
	}

	runner := &pipelineRunner{cfg: cfg, baseRun: baseRun}
	lister := webhook.NewGitHubFileLister(baseRun.GitHubToken)
	handler := webhook.NewHandler([]byte(dcfg.WebhookSecret), lister, runner,
		dcfg.BeforeTemplate, dcfg.AfterTemplate)

	mux := http.NewServeMux()
	mux.Handle("POST /v1/webhooks/github", handler)
	mux.HandleFunc("GET /healthz", healthHandler)

	srv := &http.Server{
		Addr:    ":" + dcfg.Port,
		Handler: mux,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("starting vizdiffd on :%s", dcfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
