package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LLMExchange represents a prompt/response pair for caching
type LLMExchange struct {
	Timestamp time.Time `json:"timestamp"`
	Task      string    `json:"task"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	System    string    `json:"system"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Error     string    `json:"error,omitempty"`
}

// SaveLLMExchange serializes an LLM exchange to JSON and writes it to a
// timestamped file in dir. Returns the path to the saved file.
func SaveLLMExchange(dir string, exchange LLMExchange) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	// Dashes instead of colons for filesystem compatibility
	filename := fmt.Sprintf("%s_%s.json", exchange.Timestamp.Format("2006-01-02T15-04-05.000"), exchange.Task)
	path := filepath.Join(dir, filename)

	data, err := json.MarshalIndent(exchange, "", "  ")
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}

	return path, nil
}
