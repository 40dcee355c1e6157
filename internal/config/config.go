package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	VerifyToken  string
	InstanceName string
	OfferType    string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	CachePath string

	N8NBaseURL    string
	N8NSearchPath string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:         getEnv("PORT", "8080"),
		VerifyToken:  getEnv("VERIFY_TOKEN", ""),
		InstanceName: getEnv("WA_INSTANCE_NAME", "testwp"),
		OfferType:    getEnv("OFFER_TYPE", "yapay zeka çözümleri ile işletmenizi büyütme"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "leadgen"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		CachePath: getEnv("CACHE_PATH", "./dashboard_cache.db"),

		N8NBaseURL:    getEnv("N8N_BASE_URL", "https://n8n.lueratech.com/webhook"),
		N8NSearchPath: getEnv("N8N_SEARCH_PATH", "e3c9c128-2078-4702-8fc2-bf55da50302c"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
