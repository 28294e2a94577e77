package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"todo-sync-go/pkg/logger"
)

const (
	dotenvFilename = ".env"
	// envFileVar points at an env file outside the working tree, e.g. for the
	// TUI run from a home directory.
	envFileVar = "TODO_SYNC_ENV_FILE"
)

var ErrMissingDotEnv = errors.New(".env not found")

type envEntry struct {
	line  int
	key   string
	value string
}

// loadDotEnv fills unset variables from TODO_SYNC_ENV_FILE or from the nearest
// .env above the working directory. Only an explicit file is required.
func loadDotEnv(log logger.Logger) error {
	path, explicit := os.LookupEnv(envFileVar)
	if !explicit || strings.TrimSpace(path) == "" {
		found, err := findDotEnv(dotenvFilename)
		if errors.Is(err, ErrMissingDotEnv) {
			log.Debug("dotenv: no file found, using process env")
			return nil
		}
		if err != nil {
			return err
		}
		path = found
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s=%s: %w", envFileVar, path, ErrMissingDotEnv)
		}
		return err
	}
	defer file.Close()

	entries, malformed, err := readEnvEntries(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(malformed) > 0 {
		log.Warn("dotenv: ignored malformed lines", "path", path, "lines", malformed)
	}

	loaded, skipped, err := applyEnvEntries(entries)
	if err != nil {
		return err
	}
	log.Info("dotenv: loaded variables", "path", path, "count", loaded, "kept_from_env", skipped)
	return nil
}

func findDotEnv(filename string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, filename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrMissingDotEnv
		}
		dir = parent
	}
}

// readEnvEntries parses r without touching the environment. Line numbers of
// lines that are neither blank, comments nor assignments are returned apart.
func readEnvEntries(r io.Reader) ([]envEntry, []int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		entries   []envEntry
		malformed []int
	)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := parseEnvLine(line)
		if !ok {
			malformed = append(malformed, lineNo)
			continue
		}
		entries = append(entries, envEntry{line: lineNo, key: key, value: value})
	}
	return entries, malformed, scanner.Err()
}

// applyEnvEntries sets every entry whose key is not already in the
// environment, so real env always wins over the file.
func applyEnvEntries(entries []envEntry) (loaded, skipped int, err error) {
	for _, entry := range entries {
		if _, exists := os.LookupEnv(entry.key); exists {
			skipped++
			continue
		}
		if err := os.Setenv(entry.key, entry.value); err != nil {
			return loaded, skipped, fmt.Errorf("line %d: set %s: %w", entry.line, entry.key, err)
		}
		loaded++
	}
	return loaded, skipped, nil
}

// parseEnvLine accepts KEY=value with an optional export prefix, single or
// double quotes, and a trailing " # comment" on unquoted values.
func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

	rawKey, rawValue, found := strings.Cut(line, "=")
	key := strings.TrimSpace(rawKey)
	if !found || key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false
	}

	value := strings.TrimSpace(rawValue)
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
		if value[0] == '"' {
			if unquoted, err := strconv.Unquote(value); err == nil {
				return key, unquoted, true
			}
		}
		return key, value[1 : len(value)-1], true
	}

	if idx := strings.Index(value, " #"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	if idx := strings.Index(value, "\t#"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	return key, value, true
}
