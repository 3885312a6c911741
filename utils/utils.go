package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var commands = []string{"scan", "search", "dupes", "rm"}

// ParseArguments converts command-line arguments into a map of flags and values
func ParseArguments() map[string]string {
	args := make(map[string]string)

	// First, identify the command
	command := ""
	commandIndex := -1
	for i := 1; i < len(os.Args); i++ {
		for _, c := range commands {
			if os.Args[i] == c {
				command = c
				commandIndex = i
				break
			}
		}
		if command != "" {
			break
		}
	}

	if command != "" {
		args["command"] = command
	}

	// Process all arguments, skipping the command
	for i := 1; i < len(os.Args); i++ {
		if i == commandIndex {
			continue
		}

		arg := os.Args[i]

		// Handle flags with equals sign (--key=value)
		if strings.HasPrefix(arg, "--") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			flagName := strings.TrimPrefix(parts[0], "--")
			args[flagName] = parts[1]
			continue
		}

		// Handle flags without equals sign (--key value)
		if strings.HasPrefix(arg, "--") {
			flagName := strings.TrimPrefix(arg, "--")

			// Check if this is a boolean flag (no value)
			if i+1 >= len(os.Args) || strings.HasPrefix(os.Args[i+1], "--") {
				args[flagName] = "true"
			} else {
				// The next argument is the value
				args[flagName] = os.Args[i+1]
				i++ // Skip the value in the next iteration
			}
		}
	}

	return args
}

// GetDefaultDatabasePath returns the default path for the database file
func GetDefaultDatabasePath() string {
	// Get the executable path
	exePath, err := os.Executable()
	if err != nil {
		// Fallback to current directory if executable path can't be determined
		return "imagedex.db"
	}

	// Return the default database path next to the executable
	return filepath.Join(filepath.Dir(exePath), "imagedex.db")
}

// PrintUsage outputs the command-line usage instructions
func PrintUsage() {
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s scan --folder=PATH [--database=PATH] [--tagger=URL] [--workers=N] [--force] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("  %s search --query=TEXT [--database=PATH] [--expander=URL] [--limit=N]\n", os.Args[0])
	fmt.Printf("  %s dupes [--database=PATH] [--threshold=BITS]\n", os.Args[0])
	fmt.Printf("  %s rm --id=N [--database=PATH]\n", os.Args[0])
	fmt.Printf("\nParameters:\n")
	fmt.Printf("  --folder      : Path to folder containing images to index\n")
	fmt.Printf("  --query       : Free-text search query (matches filenames and tags)\n")
	fmt.Printf("  --database    : Path to database file (default: %s)\n", GetDefaultDatabasePath())
	fmt.Printf("  --tagger      : Base URL of the semantic tagging service\n")
	fmt.Printf("  --expander    : Base URL of the semantic query-expansion service\n")
	fmt.Printf("  --workers     : Concurrent fingerprinting workers (default: CPU-based)\n")
	fmt.Printf("  --force       : Re-process files that already have a record\n")
	fmt.Printf("  --threshold   : Duplicate threshold in bits, 0-64 (default: 5)\n")
	fmt.Printf("  --limit       : Maximum search results to print (default: 10)\n")
	fmt.Printf("  --id          : Asset id to remove\n")
	fmt.Printf("  --debug       : Enable debug mode (logs detailed information)\n")
	fmt.Printf("  --logfile     : Specify custom log file path (default: imagedex.log)\n")
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  %s scan --folder=/path/to/photos --tagger=http://localhost:8089 --debug\n", os.Args[0])
	fmt.Printf("  %s search --query=cat --limit=5\n", os.Args[0])
	fmt.Printf("  %s dupes --threshold=5\n", os.Args[0])
}

// ParseThreshold parses and validates a duplicate threshold in bits
func ParseThreshold(thresholdStr string, defaultValue int) (int, error) {
	parsed, err := strconv.Atoi(thresholdStr)
	if err != nil || parsed < 0 || parsed > 64 {
		return defaultValue, fmt.Errorf("invalid threshold value '%s', using default (%d)", thresholdStr, defaultValue)
	}
	return parsed, nil
}

// ParsePositiveInt parses a positive integer flag, falling back to the default
func ParsePositiveInt(value string, defaultValue int) (int, error) {
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return defaultValue, fmt.Errorf("invalid value '%s', using default (%d)", value, defaultValue)
	}
	return parsed, nil
}
