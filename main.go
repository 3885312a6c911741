package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"imagedex/database"
	"imagedex/index"
	"imagedex/logging"
	"imagedex/scanner"
	"imagedex/search"
	"imagedex/signalhandler"
	"imagedex/tagging"
	"imagedex/utils"
)

func main() {
	// Set up signal-driven cancellation for the whole run
	ctx, cancel := signalhandler.SetupHandler()
	defer cancel()

	// Set the optimal number of CPUs to use
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	// Parse command line arguments into a map
	args := utils.ParseArguments()

	command, hasCommand := args["command"]

	// Set default database path
	dbPath := utils.GetDefaultDatabasePath()
	if customDB, ok := args["database"]; ok && customDB != "" {
		dbPath = customDB
	} else if customDB, ok := args["db"]; ok && customDB != "" {
		// Allow --db as an alias for --database
		dbPath = customDB
	}

	// Setup debug logging if enabled
	if _, ok := args["debug"]; ok {
		logPath := "imagedex.log"
		if customLogPath, ok := args["logfile"]; ok && customLogPath != "" {
			logPath = customLogPath
		}
		if err := logging.SetupLogger(logPath); err != nil {
			fmt.Printf("Warning: Failed to setup logging: %v\n", err)
		} else {
			fmt.Printf("Debug mode enabled. Logging to: %s\n", logPath)
		}
		defer logging.CloseLogger()
	}

	// Check if required arguments are missing
	showUsage := !hasCommand

	if hasCommand && command == "scan" && args["folder"] == "" {
		showUsage = true
	}
	if hasCommand && command == "search" && args["query"] == "" {
		showUsage = true
	}
	if hasCommand && command == "rm" && args["id"] == "" {
		showUsage = true
	}

	if showUsage {
		utils.PrintUsage()
		os.Exit(1)
	}

	switch command {
	case "scan":
		handleScanCommand(ctx, args, dbPath)
	case "search":
		handleSearchCommand(ctx, args, dbPath)
	case "dupes":
		handleDupesCommand(args, dbPath)
	case "rm":
		handleRemoveCommand(args, dbPath)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		utils.PrintUsage()
		os.Exit(1)
	}
}

// openStoreWithRetry opens the asset store, retrying transient failures
func openStoreWithRetry(dbPath string) *database.SQLiteStore {
	const maxRetries = 3
	var store *database.SQLiteStore
	var err error

	for i := 0; i < maxRetries; i++ {
		store, err = database.Open(dbPath)
		if err == nil {
			return store
		}
		if i < maxRetries-1 {
			log.Printf("Error opening database (attempt %d/%d): %v - retrying...", i+1, maxRetries, err)
			time.Sleep(time.Second * time.Duration(i+1))
		}
	}
	log.Fatalf("Error opening database after %d attempts: %v", maxRetries, err)
	return nil
}

func handleScanCommand(ctx context.Context, args map[string]string, dbPath string) {
	folderPath := args["folder"]

	// Verify folder path exists and is accessible
	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatalf("Folder path does not exist: %s", folderPath)
		}
		log.Fatalf("Cannot access folder path: %s (%v)", folderPath, err)
	}
	if !folderInfo.IsDir() {
		log.Fatalf("Path is not a directory: %s", folderPath)
	}

	workers := signalhandler.GetOptimalProcs()
	if w, ok := args["workers"]; ok {
		parsed, err := utils.ParsePositiveInt(w, workers)
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		workers = parsed
	}

	var tagger tagging.Tagger
	if url, ok := args["tagger"]; ok && url != "" {
		tagger = tagging.NewClient(url)
	}

	_, forceRewrite := args["force"]

	startTime := time.Now()

	store := openStoreWithRetry(dbPath)
	defer store.Close()

	// Discover image files under the folder
	files := scanner.CollectFiles(scanner.DirEntry(folderPath))

	fmt.Printf("Starting image indexing...\n")
	fmt.Printf("Total image files to process: %d\n", len(files))
	fmt.Printf("Force rewrite mode: %v\n", forceRewrite)
	if tagger != nil {
		fmt.Printf("Tagging service: %s\n", args["tagger"])
	}

	tracker := scanner.NewProgressTracker(len(files))
	defer tracker.Stop()

	pipeline := scanner.New(store, index.New(), tagger, scanner.Options{
		ForceRewrite: forceRewrite,
		Workers:      workers,
		Progress:     tracker.Update,
	})

	stats, err := pipeline.Run(ctx, files)
	if err != nil {
		if err == scanner.ErrEmptyInput {
			fmt.Printf("No image files found in %s\n", folderPath)
			return
		}
		if ctx.Err() != nil && stats != nil {
			fmt.Printf("\nScan aborted; %d images already indexed remain in the database.\n", stats.Persisted)
			return
		}
		log.Fatalf("Error scanning folder: %v", err)
	}

	duration := time.Since(startTime)
	fmt.Printf("\nScan completed successfully!\n")
	fmt.Printf("Total execution time: %v\n", duration.Round(time.Millisecond))
	fmt.Printf("Database: %s\n", dbPath)
	fmt.Printf("\nSummary:\n")
	fmt.Printf("- Total images processed: %d\n", stats.Total)
	fmt.Printf("- Newly indexed: %d\n", stats.Persisted)
	fmt.Printf("- Skipped (unchanged): %d\n", stats.Skipped)
	fmt.Printf("- Errors: %d\n", stats.Failed)
	fmt.Printf("- Sent to tagging service: %d\n", stats.Tagged)
	if stats.Failed > 0 {
		fmt.Println("Check the log file for details.")
	}
}

func handleSearchCommand(ctx context.Context, args map[string]string, dbPath string) {
	query := args["query"]

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Fatalf("Database does not exist: %s. Run scan command first.", dbPath)
	}

	limit := 10
	if l, ok := args["limit"]; ok {
		parsed, err := utils.ParsePositiveInt(l, limit)
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		limit = parsed
	}

	startTime := time.Now()

	store := openStoreWithRetry(dbPath)
	defer store.Close()

	assets, err := store.GetAll()
	if err != nil {
		log.Fatalf("Error loading assets: %v", err)
	}

	ranker := &search.Ranker{}
	if url, ok := args["expander"]; ok && url != "" {
		ranker.Expander = tagging.NewClient(url)
	}

	fmt.Printf("Searching %d assets for %q...\n", len(assets), query)

	results := ranker.Search(ctx, query, assets)
	if len(results) == 0 {
		fmt.Println("No matches found.")
	} else {
		fmt.Println("\nTop Matches:")
		for i, r := range results {
			if i >= limit {
				break
			}
			fmt.Printf("%d. %s (id=%d)\n", i+1, r.Asset.FilePath, r.Asset.ID)
			fmt.Printf("   Score: %.4f\n", r.Similarity)
			if len(r.Asset.Tags) > 0 {
				fmt.Printf("   Tags: %v\n", r.Asset.Tags)
			}
		}
	}

	fmt.Printf("\nTotal search time: %v\n", time.Since(startTime).Round(time.Millisecond))
}

func handleDupesCommand(args map[string]string, dbPath string) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Fatalf("Database does not exist: %s. Run scan command first.", dbPath)
	}

	threshold := index.DefaultDuplicateThreshold
	if t, ok := args["threshold"]; ok {
		parsed, err := utils.ParseThreshold(t, threshold)
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		threshold = parsed
	}

	store := openStoreWithRetry(dbPath)
	defer store.Close()

	assets, err := store.GetAll()
	if err != nil {
		log.Fatalf("Error loading assets: %v", err)
	}

	// Rebuild the in-memory index from persisted fingerprints
	idx := index.New()
	byID := make(map[int64]string, len(assets))
	for _, a := range assets {
		byID[a.ID] = a.FilePath
		if a.Fingerprint != nil {
			idx.Insert(a.ID, *a.Fingerprint)
		}
	}

	groups := idx.DuplicateGroups(threshold)
	if len(groups) == 0 {
		fmt.Printf("No near-duplicate groups at threshold %d.\n", threshold)
		return
	}

	fmt.Printf("Found %d near-duplicate group(s) at threshold %d:\n", len(groups), threshold)
	for i, group := range groups {
		fmt.Printf("\nGroup %d (%d images):\n", i+1, len(group.IDs))
		for _, id := range group.IDs {
			fmt.Printf("  [%d] %s\n", id, byID[id])
		}
	}
}

func handleRemoveCommand(args map[string]string, dbPath string) {
	id, err := utils.ParsePositiveInt(args["id"], 0)
	if err != nil {
		log.Fatalf("Invalid asset id: %s", args["id"])
	}

	store := openStoreWithRetry(dbPath)
	defer store.Close()

	if err := store.Delete(int64(id)); err != nil {
		log.Fatalf("Error deleting asset %d: %v", id, err)
	}
	fmt.Printf("Deleted asset %d.\n", id)
}
