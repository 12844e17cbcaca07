package generate

import (
	"fmt"
	"os"
)

// defaultSystem is used when the caller does not pass a "system" option.
const defaultSystem = "You are the intent extraction service of a fashion store shopping assistant. Reply with JSON only."

// resolveAPIKey prefers the key written in the config and falls back to the
// named environment variable.
func resolveAPIKey(apiKeyEnv, directAPIKey string) (string, error) {
	if directAPIKey != "" {
		return directAPIKey, nil
	}
	if apiKeyEnv != "" {
		if key := os.Getenv(apiKeyEnv); key != "" {
			return key, nil
		}
	}
	return "", fmt.Errorf("API key not found in config or environment variable %s", apiKeyEnv)
}

func optInt(opts map[string]any, key string, def int) int {
	if val, ok := opts[key].(int); ok && val > 0 {
		return val
	}
	return def
}

func optString(opts map[string]any, key, def string) string {
	if val, ok := opts[key].(string); ok && val != "" {
		return val
	}
	return def
}
