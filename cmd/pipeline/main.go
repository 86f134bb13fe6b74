package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"

	"clv_analytics/pkg/core/pipeline"
	"clv_analytics/pkg/core/store"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config/analysis.yaml", "analysis configuration file")
	persist := flag.Bool("persist", true, "save the report back to Postgres")
	top := flag.Int("top", 10, "number of top customers to print")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, assuming environment variables are set.")
	}

	cfg, err := pipeline.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	if err := store.InitDB(ctx); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	txns, err := store.NewTransactionRepo().LoadTransactions(ctx)
	if err != nil {
		log.Fatalf("Failed to load transaction log: %v", err)
	}
	if len(txns) == 0 {
		log.Fatal("Transaction log is empty; nothing to analyze.")
	}

	orch := pipeline.NewOrchestrator(cfg)
	if *persist {
		orch.SetRepository(store.NewReportRepo())
	}

	report, err := orch.Run(ctx, txns)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	// Summary: highest residual-value customers first.
	customers := report.Customers
	sort.Slice(customers, func(i, j int) bool { return customers[i].LTV > customers[j].LTV })

	fmt.Printf("\nRun %s: %d customers, discount rate %.4f\n", report.RunID, len(customers), report.DiscountRate)
	fmt.Printf("New-customer acquisition benchmark: %.4f\n\n", report.NewCustomerValue)
	fmt.Printf("%-20s %10s %10s %12s %12s\n", "CUSTOMER", "P(ALIVE)", "DERT", "EXP.SPEND", "LTV")
	n := *top
	if n > len(customers) {
		n = len(customers)
	}
	for _, c := range customers[:n] {
		fmt.Printf("%-20s %10.4f %10.4f %12.4f %12.4f\n", c.CustomerID, c.PAlive, c.DERT, c.ExpectedSpend, c.LTV)
	}
}
