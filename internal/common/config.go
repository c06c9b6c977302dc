package common

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Paths Paths
	Tools ToolsConfig
	OCR   OCRConfig
	LLM   LLMConfig
}

// Paths holds the working directory layout. Everything lives under DataDir.
type Paths struct {
	DataDir    string
	LedgerPath string
}

// InvoicesDir is where source PDFs are picked up.
func (p Paths) InvoicesDir() string { return filepath.Join(p.DataDir, "invoices") }

// LLMReadyDir holds pre-processing artifacts: raw text, metadata, manifest.
func (p Paths) LLMReadyDir() string { return filepath.Join(p.DataDir, "llm_ready") }

// OCRTextsDir holds first-page OCR dumps written during self-correction.
func (p Paths) OCRTextsDir() string { return filepath.Join(p.LLMReadyDir(), "ocr_texts") }

// OutputDir holds the final parsed records and exports.
func (p Paths) OutputDir() string { return filepath.Join(p.LLMReadyDir(), "json_out_multi_agent") }

// RegistryPath points at the known client case number list.
func (p Paths) RegistryPath() string {
	if v := os.Getenv("REGISTRY_PATH"); v != "" {
		return v
	}
	return filepath.Join(p.DataDir, "reference", "valid_clientcases.csv")
}

// ToolsConfig holds the poppler binaries used for text fallback and rendering.
type ToolsConfig struct {
	Pdftotext string
	Pdftoppm  string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	DPI int
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
	MaxRetries  int
	Cooldown    time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Paths: Paths{
			DataDir:    getEnv("DATA_DIR", "./data"),
			LedgerPath: getEnv("LEDGER_PATH", filepath.Join(getEnv("DATA_DIR", "./data"), "runs.db")),
		},
		Tools: ToolsConfig{
			Pdftotext: getEnv("PDFTOTEXT", "pdftotext"),
			Pdftoppm:  getEnv("PDFTOPPM", "pdftoppm"),
		},
		OCR: OCRConfig{
			DPI: getEnvAsInt("OCR_DPI", 300),
		},
		LLM: LLMConfig{
			Model:       getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"),
			APIKey:      getEnv("GOOGLE_API_KEY", ""),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			MaxRetries:  getEnvAsInt("LLM_MAX_RETRIES", 3),
			Cooldown:    time.Duration(getEnvAsInt("COOLDOWN_SECONDS", 10)) * time.Second,
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the parts a pipeline run cannot do without.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return NewAppError("CONFIG_ERROR", "DATA_DIR is required", ErrInvalidInput)
	}
	if c.LLM.MaxRetries < 1 {
		return NewAppError("CONFIG_ERROR", "LLM_MAX_RETRIES must be at least 1", ErrInvalidInput)
	}
	return nil
}
