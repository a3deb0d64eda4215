package configuration

import (
	"bufio"
	"os"
	"strings"

	"newshub/infrastructure/logger"
)

// LoadEnvFromFile reads KEY=VALUE pairs from the given files into the process
// environment. Later files never override keys set by earlier ones or by the
// real environment, so config.env acts as a checked-in default and .env as a
// local override that must come first.
func LoadEnvFromFile(paths ...string) {
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		loadEnvLines(f)
		_ = f.Close()
		logger.GetLogger().WithField("file", p).Info("Environment file loaded")
	}
}

func loadEnvLines(f *os.File) {
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, val, ok := parseEnvLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, val)
		}
	}
}

func parseEnvLine(raw string) (string, string, bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	key, val, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	val = strings.Trim(strings.TrimSpace(val), "\"'")
	return key, val, true
}
