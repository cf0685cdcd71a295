package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORE_BACKEND", BackendMemory)
	t.Setenv("PORT", "")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("SYMMETRIC_PREFERENCES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8080" || cfg.RequestTimeout != 10*time.Second || cfg.MongoDB != "spark" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.SymmetricPreferences {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORE_BACKEND", BackendMongo)
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("CORS_ORIGINS", " https://a.dev , ,https://b.dev")
	t.Setenv("SYMMETRIC_PREFERENCES", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RequestTimeout != 3*time.Second || !cfg.SymmetricPreferences {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.dev" {
		t.Fatalf("origins = %q", cfg.AllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"memory", Config{JWTSecret: "s", StoreBackend: BackendMemory}, true},
		{"mongo", Config{JWTSecret: "s", StoreBackend: BackendMongo, MongoURI: "mongodb://x"}, true},
		{"no secret", Config{StoreBackend: BackendMemory}, false},
		{"mongo without uri", Config{JWTSecret: "s", StoreBackend: BackendMongo}, false},
		{"unknown backend", Config{JWTSecret: "s", StoreBackend: "redis"}, false},
	}
	for _, tc := range cases {
		if err := tc.cfg.Validate(); (err == nil) != tc.ok {
			t.Errorf("%s: err = %v", tc.name, err)
		}
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORE_BACKEND", BackendMemory)
	t.Setenv("REQUEST_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("bad REQUEST_TIMEOUT accepted")
	}
}
