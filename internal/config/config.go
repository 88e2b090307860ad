package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	HTTPPort    string
	LogLevel    string
	JWTSecret   string

	// External model process.
	PythonBin string
	MLDir     string
	MLTimeout time.Duration

	// Uploaded images and adapter temp files.
	UploadDir     string
	MaxUploadSize int64

	// Links embedded in verification emails and OAuth redirects.
	FrontendURL string

	// Transactional email API.
	EmailAPIURL string
	EmailAPIKey string
	EmailFrom   string

	// Google OAuth.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		DatabaseURL:   getEnv("DATABASE_URL", "growfrika.db"),
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		PythonBin:     getEnv("PYTHON_BIN", "python3"),
		MLDir:         getEnv("ML_DIR", "ml"),
		MLTimeout:     time.Duration(getEnvAsInt("ML_TIMEOUT_SECONDS", 60)) * time.Second,
		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadSize: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 5*1024*1024)),
		FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:5173/"),

		EmailAPIURL: getEnv("EMAIL_API_URL", ""),
		EmailAPIKey: getEnv("EMAIL_API_KEY", ""),
		EmailFrom:   getEnv("EMAIL_FROM", "GrowFrika <noreply@growfrika.app>"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleCallbackURL:  getEnv("GOOGLE_CALLBACK_URL", ""),
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
