package handlers

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Registry returns the built-in handlers keyed by a stable registry
// name, independent of the SPOP message name a routing file binds
// them to. Each call builds a fresh rateLimiter, so a routing reload
// also resets check_request_security's counters.
func Registry(logger *slog.Logger) map[string]HandlerFunc {
	rl := newRateLimiter(logger)
	return map[string]HandlerFunc{
		"check_client_ip":        CheckClientIP,
		"check_authorization":    CheckAuthorization,
		"check_request_security": rl.CheckRequestSecurity,
	}
}

// routingFile is the on-disk shape of a hot-reloadable routing table:
// SPOP message name -> registry key. SIGUSR1 reloads a Router's
// handlers from one of these without restarting the listener or
// dropping connections.
type routingFile struct {
	Routes map[string]string `yaml:"routes"`
}

// LoadTable reads a routing file at path and resolves each message
// binding against registry. It fails closed: an unknown registry key
// is an error, not a skipped binding, so a typo in the file can never
// silently drop a route.
func LoadTable(path string, registry map[string]HandlerFunc) (map[string]HandlerFunc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading routing file: %w", err)
	}

	var rf routingFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing routing file: %w", err)
	}

	table := make(map[string]HandlerFunc, len(rf.Routes))
	for msgName, key := range rf.Routes {
		fn, ok := registry[key]
		if !ok {
			return nil, fmt.Errorf("routing file binds message %q to unknown handler %q", msgName, key)
		}
		table[msgName] = fn
	}
	return table, nil
}
