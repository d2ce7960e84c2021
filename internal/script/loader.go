// Package script loads the assessment script: the system prompt driving the
// interview, the scripted question list, and the solution catalog the report
// format draws its categories from. The prompt text is opaque to the rest of
// the system.
package script

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Question is one scripted interview question
type Question struct {
	ID    string `yaml:"id" json:"id"`
	Text  string `yaml:"text" json:"text"`
	Topic string `yaml:"topic" json:"topic"`
	Order int    `yaml:"order" json:"order"`
}

// Category is one solution catalog entry the model may recommend
type Category struct {
	Name        string `yaml:"name" json:"name"`
	Group       string `yaml:"group" json:"group"`
	Description string `yaml:"description" json:"description"`
}

type scriptFile struct {
	SystemPrompt string     `yaml:"system_prompt"`
	Questions    []Question `yaml:"questions"`
	Catalog      []Category `yaml:"catalog"`
}

// Loader holds the parsed assessment script and supports reloading
type Loader struct {
	mu           sync.RWMutex
	systemPrompt string
	questions    []Question
	catalog      []Category
}

// NewLoader creates an empty script loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFromFile reads and validates a YAML script file
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script file: %w", err)
	}

	var sf scriptFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("failed to parse script YAML: %w", err)
	}

	if sf.SystemPrompt == "" {
		return fmt.Errorf("script file %s has no system_prompt", path)
	}

	l.mu.Lock()
	l.systemPrompt = sf.SystemPrompt
	l.questions = sf.Questions
	l.catalog = sf.Catalog
	l.mu.Unlock()

	slog.Info("assessment script loaded",
		"path", path,
		"questions", len(sf.Questions),
		"catalog_entries", len(sf.Catalog),
	)

	return nil
}

// SystemPrompt returns the configured system prompt, or "" if none loaded
func (l *Loader) SystemPrompt() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.systemPrompt
}

// Questions returns a copy of the scripted question list
func (l *Loader) Questions() []Question {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cp := make([]Question, len(l.questions))
	copy(cp, l.questions)
	return cp
}

// Catalog returns a copy of the solution catalog
func (l *Loader) Catalog() []Category {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cp := make([]Category, len(l.catalog))
	copy(cp, l.catalog)
	return cp
}
