package escore

import (
	"strconv"
	"time"
)

// Config holds the §6 configuration keys the Store Client and Command
// Router need. It is populated via ConfigFromEnv, grounded on the
// teacher's os.Getenv-with-default idiom in internal/web-app/main.go.
type Config struct {
	ServerURI         string
	APIToken          string
	ConnectionTimeout time.Duration

	CacheType     CacheTypeConfig
	CacheCapacity int

	MetaDataPropagation MetaDataPropagationMode
	PropagationKeys     []string
}

// CacheTypeConfig mirrors the cache.type configuration key.
type CacheTypeConfig int

const (
	CacheTypeNone CacheTypeConfig = iota
	CacheTypeInMemory
)

// DefaultConfig returns a Config with every §6-documented default applied.
func DefaultConfig() Config {
	return Config{
		ServerURI:           "http://localhost:8080",
		ConnectionTimeout:   5 * time.Second,
		CacheType:           CacheTypeNone,
		CacheCapacity:       1000,
		MetaDataPropagation: PropagateKeepAll,
	}
}

// Lookup is the injectable environment-variable reader ConfigFromEnv uses;
// satisfied by os.LookupEnv, kept as a parameter so tests never need to
// mutate process environment to exercise defaulting behavior.
type Lookup func(key string) (string, bool)

// ConfigFromEnv builds a Config from ESDB_* and OPENCQRS_* environment
// variables, applying §6 defaults for anything unset.
func ConfigFromEnv(lookup Lookup) Config {
	cfg := DefaultConfig()

	if v, ok := lookup("ESDB_SERVER_URI"); ok && v != "" {
		cfg.ServerURI = v
	}
	if v, ok := lookup("ESDB_SERVER_API_TOKEN"); ok {
		cfg.APIToken = v
	}
	if v, ok := lookup("ESDB_CONNECTION_TIMEOUT"); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ConnectionTimeout = d
		}
	}
	if v, ok := lookup("OPENCQRS_CACHE_TYPE"); ok {
		if v == "IN_MEMORY" {
			cfg.CacheType = CacheTypeInMemory
		}
	}
	if v, ok := lookup("OPENCQRS_CACHE_CAPACITY"); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheCapacity = n
		}
	}
	return cfg
}
