// Package config reads service settings from the environment, loading a
// .env file first when one is present.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

type Config struct {
	Port    string
	GinMode string

	StoreBackend string
	MongoURI     string
	MongoDB      string

	JWTSecret string

	CloudinaryURL    string
	CloudinaryFolder string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	AllowedOrigins       []string
	RequestTimeout       time.Duration
	SymmetricPreferences bool
}

// Load reads .env (if any) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("⚠️  Could not read .env: %v", err)
	}

	cfg := Config{
		Port:             getenv("PORT", "8080"),
		GinMode:          getenv("GIN_MODE", "debug"),
		StoreBackend:     getenv("STORE_BACKEND", BackendMongo),
		MongoURI:         os.Getenv("MONGODB_URI"),
		MongoDB:          getenv("MONGODB_DB", "spark"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		CloudinaryURL:    os.Getenv("CLOUDINARY_URL"),
		CloudinaryFolder: getenv("CLOUDINARY_FOLDER", "spark/messages"),
		VAPIDPublicKey:   os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey:  os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDSubject:     getenv("VAPID_SUBJECT", "mailto:admin@spark.local"),
		AllowedOrigins:   splitList(getenv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),
	}

	timeout, err := time.ParseDuration(getenv("REQUEST_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("REQUEST_TIMEOUT: %w", err)
	}
	cfg.RequestTimeout = timeout

	if v := os.Getenv("SYMMETRIC_PREFERENCES"); v != "" {
		sym, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("SYMMETRIC_PREFERENCES: %w", err)
		}
		cfg.SymmetricPreferences = sym
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	switch c.StoreBackend {
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("MONGODB_URI must be set for the mongo backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
