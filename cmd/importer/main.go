package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"enforcement-platform/internal/config"
	"enforcement-platform/internal/repository"
	"enforcement-platform/internal/services"
	"enforcement-platform/pkg/database"
	"enforcement-platform/pkg/logging"
	"enforcement-platform/pkg/metrics"
)

func main() {
	// Parse command-line flags
	dataDir := flag.String("data-dir", "./data", "Directory containing Excel files to import")
	kind := flag.String("kind", "", "Record kind to import: crash or ticket")
	flag.Parse()

	if *kind != "crash" && *kind != "ticket" {
		fmt.Fprintln(os.Stderr, "-kind must be crash or ticket")
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logLevel := logging.InfoLevel
	if cfg.Logging.Level == "debug" {
		logLevel = logging.DebugLevel
	}

	logger := logging.NewStructuredLogger("enforcement-importer", "1.0.0", logLevel)

	ctx := context.Background()
	logger.Info(ctx, "[IMPORTER_START] Starting bulk record import", logging.Fields{
		"version":  "1.0.0",
		"data_dir": *dataDir,
		"kind":     *kind,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("enforcement_importer")

	// Initialize database
	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[IMPORTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository and service
	recordRepo := repository.NewRecordRepository(db, logger, metricsCollector)
	importService := services.NewImportService(recordRepo, logger, metricsCollector)

	// Collect Excel files
	entries, err := os.ReadDir(*dataDir)
	if err != nil {
		logger.Fatal(ctx, "[IMPORTER_ERROR] Failed to read data directory", logging.Fields{
			"data_dir": *dataDir,
		}, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".xlsx" || ext == ".xls" {
			files = append(files, entry.Name())
		}
	}

	if len(files) == 0 {
		fmt.Println("No Excel files found")
		return
	}

	// Import every file, continuing past per-file failures
	totalNew, totalSkipped, totalErrors := 0, 0, 0
	var failures []string

	for _, name := range files {
		path := filepath.Join(*dataDir, name)
		f, err := os.Open(path)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		var result *services.ImportResult
		if *kind == "crash" {
			result, err = importService.ImportCrashes(ctx, f, name)
		} else {
			result, err = importService.ImportTickets(ctx, f, name)
		}
		f.Close()

		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		totalNew += result.Stats.NewCount
		totalSkipped += result.Stats.Skipped
		totalErrors += result.Stats.Errors
		fmt.Printf("%-40s %s\n", name, result.Message)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("IMPORT COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Files Processed: %d\n", len(files)-len(failures))
	fmt.Printf("New Records:     %d\n", totalNew)
	fmt.Printf("Skipped:         %d\n", totalSkipped)
	fmt.Printf("Row Errors:      %d\n", totalErrors)

	if len(failures) > 0 {
		fmt.Printf("\nFailed Files (%d):\n", len(failures))
		for _, msg := range failures {
			fmt.Printf("  - %s\n", msg)
		}
	}

	logger.Info(ctx, "[IMPORTER_COMPLETE] Bulk import completed", logging.Fields{
		"files":        len(files),
		"new_records":  totalNew,
		"skipped":      totalSkipped,
		"row_errors":   totalErrors,
		"failed_files": len(failures),
	})
}
