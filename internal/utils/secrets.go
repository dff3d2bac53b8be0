package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// SecretKeys are the environment variables the server reads secrets from.
// REDIS_PASSWORD is only needed when REDIS_ADDRESS is set.
var SecretKeys = []string{"JWT_SECRET", "JWT_REFRESH_SECRET", "REDIS_PASSWORD"}

// minSecretBytes keeps HS256 keys at 256 bits or more
const minSecretBytes = 32

// EnvSecret is one generated KEY=value line
type EnvSecret struct {
	Key   string
	Value string
}

// GenerateSecret returns size random bytes, hex encoded
func GenerateSecret(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateEnvSecrets produces a distinct secret for every key. Sizes below
// 32 bytes are raised to 32.
func GenerateEnvSecrets(size int, keys ...string) ([]EnvSecret, error) {
	if size < minSecretBytes {
		size = minSecretBytes
	}
	if len(keys) == 0 {
		keys = SecretKeys
	}

	out := make([]EnvSecret, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		key = strings.ToUpper(strings.TrimSpace(key))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		value, err := GenerateSecret(size)
		if err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", key, err)
		}
		out = append(out, EnvSecret{Key: key, Value: value})
	}
	return out, nil
}

// FormatEnv renders secrets as .env lines
func FormatEnv(secrets []EnvSecret) string {
	var b strings.Builder
	for _, s := range secrets {
		fmt.Fprintf(&b, "%s=%s\n", s.Key, s.Value)
	}
	return b.String()
}
