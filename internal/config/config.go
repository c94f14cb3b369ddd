package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/merbantech/ocr-indexer/internal/store"
)

// Processing modes. Immediate runs the pipeline on the caller's request;
// async enqueues for the background workers.
const (
	ModeImmediate = "immediate"
	ModeAsync     = "async"
)

// Config is fixed at process start; nothing here changes at runtime.
type Config struct {
	Host        string
	Port        int
	ProcessMode string

	ScanDir             string
	FullyIndexedDir     string
	PartiallyIndexedDir string
	FailedDir           string

	SnapshotPath     string
	SnapshotInterval time.Duration

	OCRDPI          int
	OCRTimeout      time.Duration
	OCRMaxPages     int
	PreferTextLayer bool
	TesseractCmd    string
	PdftoppmCmd     string
	PdftotextCmd    string
	TesseractLang   string

	Workers   int
	QueueSize int

	AllowOrigins []string
	SweepOnStart bool
	LogLevel     string
}

func Load() Config {
	return Config{
		Host:        getenv("HOST", "0.0.0.0"),
		Port:        getenvInt("PORT", 8000),
		ProcessMode: getenv("PROCESS_MODE", ModeImmediate),

		ScanDir:             getenv("SCAN_DIR", "./data/incoming-scan"),
		FullyIndexedDir:     getenv("FULLY_INDEXED_DIR", "./data/fully_indexed"),
		PartiallyIndexedDir: getenv("PARTIAL_INDEXED_DIR", "./data/partially_indexed"),
		FailedDir:           getenv("FAILED_DIR", "./data/failed"),

		SnapshotPath:     getenv("SNAPSHOT_PATH", "./data/state/jobs_snapshot.json"),
		SnapshotInterval: time.Duration(getenvInt("SNAPSHOT_INTERVAL", 30)) * time.Second,

		OCRDPI:          getenvInt("OCR_DPI", 300),
		OCRTimeout:      time.Duration(getenvInt("OCR_TIMEOUT_SECONDS", 120)) * time.Second,
		OCRMaxPages:     getenvInt("OCR_MAX_PAGES", 0),
		PreferTextLayer: getenvBool("OCR_PREFER_TEXT_LAYER", false),
		TesseractCmd:    getenv("TESSERACT_CMD", "tesseract"),
		PdftoppmCmd:     getenv("PDFTOPPM_CMD", "pdftoppm"),
		PdftotextCmd:    getenv("PDFTOTEXT_CMD", "pdftotext"),
		TesseractLang:   getenv("TESSERACT_LANG", "eng"),

		Workers:   getenvInt("WORKERS", 1),
		QueueSize: getenvInt("QUEUE_SIZE", 256),

		AllowOrigins: splitCSV(getenv("ALLOW_ORIGINS", "*")),
		SweepOnStart: getenvBool("SWEEP_ON_START", false),
		LogLevel:     getenv("LOG_LEVEL", "info"),
	}
}

func (c Config) Validate() error {
	if c.ProcessMode != ModeImmediate && c.ProcessMode != ModeAsync {
		return fmt.Errorf("PROCESS_MODE must be %q or %q, got %q", ModeImmediate, ModeAsync, c.ProcessMode)
	}
	if c.ScanDir == "" {
		return fmt.Errorf("SCAN_DIR must not be empty")
	}
	return nil
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) BucketDirs() store.BucketDirs {
	return store.BucketDirs{
		FullyIndexed:     c.FullyIndexedDir,
		PartiallyIndexed: c.PartiallyIndexedDir,
		Failed:           c.FailedDir,
	}
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(k string, fallback bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
