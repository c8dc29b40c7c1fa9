package config

import "testing"

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Iterations != 10 {
		t.Errorf("expected default iterations 10, got %d", cfg.Iterations)
	}
	if cfg.LodChunkCount != 512 {
		t.Errorf("expected default lod chunk count 512, got %d", cfg.LodChunkCount)
	}
	if cfg.LodChunkExtent != 16 {
		t.Errorf("expected default lod chunk extent 16, got %v", cfg.LodChunkExtent)
	}
	if cfg.GPU != "auto" {
		t.Errorf("expected default gpu auto, got %q", cfg.GPU)
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("SOGFORGE_ITERATIONS", "25")
	t.Setenv("SOGFORGE_LOD_CHUNK_COUNT", "128")
	t.Setenv("SOGFORGE_LOD_CHUNK_EXTENT", "8.5")
	t.Setenv("SOGFORGE_GPU", "cpu")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Iterations != 25 {
		t.Errorf("expected iterations 25, got %d", cfg.Iterations)
	}
	if cfg.LodChunkCount != 128 {
		t.Errorf("expected lod chunk count 128, got %d", cfg.LodChunkCount)
	}
	if cfg.LodChunkExtent != 8.5 {
		t.Errorf("expected lod chunk extent 8.5, got %v", cfg.LodChunkExtent)
	}
	if cfg.GPU != "cpu" {
		t.Errorf("expected gpu cpu, got %q", cfg.GPU)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero iterations", Config{Iterations: 0, LodChunkCount: 1, LodChunkExtent: 1, GPU: "auto"}},
		{"zero chunk count", Config{Iterations: 1, LodChunkCount: 0, LodChunkExtent: 1, GPU: "auto"}},
		{"negative chunk extent", Config{Iterations: 1, LodChunkCount: 1, LodChunkExtent: -1, GPU: "auto"}},
		{"bad gpu", Config{Iterations: 1, LodChunkCount: 1, LodChunkExtent: 1, GPU: "nonsense"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := c.cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateAcceptsNumericGPUIndex(t *testing.T) {
	cfg := Config{Iterations: 1, LodChunkCount: 1, LodChunkExtent: 1, GPU: "2"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected numeric gpu index to validate, got %v", err)
	}
}
