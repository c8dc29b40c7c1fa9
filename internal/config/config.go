// Package config resolves the CLI's global defaults (spec §6): iteration
// count, LOD chunking thresholds, and GPU selection. Generalizes the
// teacher's Config/DefaultConfig/Resolve/Validate layering: instead of
// service addresses, it holds the defaults a run falls back to when a flag
// is omitted, overridable by environment variables loaded from an optional
// .env file via godotenv exactly as the teacher's config is meant to be
// seeded in development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the resolved defaults for a sogforge run.
type Config struct {
	// Iterations is the default k-means iteration count (spec §6:
	// --iterations N, default 10).
	Iterations int

	// LodChunkCount is the default LOD chunk size in thousands of splats
	// (spec §6: --lod-chunk-count N, default 512).
	LodChunkCount int

	// LodChunkExtent is the default LOD chunk extent threshold in meters
	// (spec §6: --lod-chunk-extent N, default 16).
	LodChunkExtent float32

	// GPU is the default GPU selection ("auto", "cpu", or a device index
	// as a string), spec §6's --gpu {N|cpu} (default auto).
	GPU string
}

// DefaultConfig returns sogforge's built-in defaults, matching spec §6's
// documented flag defaults exactly.
func DefaultConfig() *Config {
	return &Config{
		Iterations:     10,
		LodChunkCount:  512,
		LodChunkExtent: 16,
		GPU:            "auto",
	}
}

// LoadDotEnv loads a .env file at path if present, seeding os.Environ for a
// subsequent LoadFromEnv call. Missing files are not an error: a .env file
// is a development convenience, not a requirement.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// LoadFromEnv overlays environment variables (SOGFORGE_ prefix) onto cfg.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("SOGFORGE_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Iterations = n
		}
	}
	if v := os.Getenv("SOGFORGE_LOD_CHUNK_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LodChunkCount = n
		}
	}
	if v := os.Getenv("SOGFORGE_LOD_CHUNK_EXTENT"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LodChunkExtent = float32(f)
		}
	}
	if v := os.Getenv("SOGFORGE_GPU"); v != "" {
		cfg.GPU = v
	}
}

// Validate checks the resolved configuration is usable.
func (c *Config) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("iterations must be >= 1, got %d", c.Iterations)
	}
	if c.LodChunkCount < 1 {
		return fmt.Errorf("lod-chunk-count must be >= 1, got %d", c.LodChunkCount)
	}
	if c.LodChunkExtent <= 0 {
		return fmt.Errorf("lod-chunk-extent must be > 0, got %v", c.LodChunkExtent)
	}
	gpu := strings.ToLower(c.GPU)
	if gpu != "auto" && gpu != "cpu" {
		if _, err := strconv.Atoi(c.GPU); err != nil {
			return fmt.Errorf("gpu must be \"auto\", \"cpu\", or a device index, got %q", c.GPU)
		}
	}
	return nil
}
