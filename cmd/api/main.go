package main

import (
	"fmt"
	"net/http"
	"os"

	"clv_analytics/pkg/api/clv"
	"clv_analytics/pkg/core/pipeline"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	configPath := "config/analysis.yaml"
	if v := os.Getenv("CLV_CONFIG"); v != "" {
		configPath = v
	}
	cfg, err := pipeline.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("[FATAL] Failed to load config %s: %v\n", configPath, err)
		os.Exit(1)
	}
	clv.InitHandler(cfg)

	http.HandleFunc("/api/clv/report", clv.HandleReport)
	http.HandleFunc("/api/clv/score", clv.HandleScore)

	addr := ":8080"
	if v := os.Getenv("CLV_API_ADDR"); v != "" {
		addr = v
	}
	fmt.Printf("API server starting on %s...\n", addr)
	fmt.Println("  - POST /api/clv/report  (transaction log -> LTV table)")
	fmt.Println("  - POST /api/clv/score   (fitted params + one customer -> P(alive)/DERT/LTV)")

	if err := http.ListenAndServe(addr, nil); err != nil {
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}
