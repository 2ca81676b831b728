package game

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template is one playable prompt.
type Template struct {
	ID            string `yaml:"id" json:"id"`
	ContentRef    string `yaml:"url" json:"contentRef"`
	CaptionFields int    `yaml:"captionFields" json:"requiredFieldCount"`
	Name          string `yaml:"name" json:"name,omitempty"`
	Description   string `yaml:"description,omitempty" json:"description,omitempty"`
	Category      string `yaml:"category,omitempty" json:"category,omitempty"`
}

type Catalog interface {
	Templates() []Template
}

// StaticCatalog is a fixed, in-memory catalog.
type StaticCatalog []Template

func (c StaticCatalog) Templates() []Template { return c }

// DefaultCatalog is used when no catalog file or database is configured.
func DefaultCatalog() StaticCatalog {
	return StaticCatalog{
		{ID: "drake", ContentRef: "/memes/drake.jpg", CaptionFields: 2, Name: "Drake Hotline Bling", Category: "reaction"},
		{ID: "distracted-boyfriend", ContentRef: "/memes/distracted-boyfriend.jpg", CaptionFields: 3, Name: "Distracted Boyfriend", Category: "reaction"},
		{ID: "two-buttons", ContentRef: "/memes/two-buttons.jpg", CaptionFields: 2, Name: "Two Buttons", Category: "decision"},
		{ID: "expanding-brain", ContentRef: "/memes/expanding-brain.jpg", CaptionFields: 4, Name: "Expanding Brain", Category: "progression"},
		{ID: "change-my-mind", ContentRef: "/memes/change-my-mind.jpg", CaptionFields: 1, Name: "Change My Mind", Category: "debate"},
		{ID: "this-is-fine", ContentRef: "/memes/this-is-fine.jpg", CaptionFields: 1, Name: "This Is Fine", Category: "reaction"},
		{ID: "one-does-not-simply", ContentRef: "/memes/one-does-not-simply.jpg", CaptionFields: 1, Name: "One Does Not Simply", Category: "classic"},
		{ID: "doge", ContentRef: "/memes/doge.jpg", CaptionFields: 5, Name: "Doge", Category: "classic"},
	}
}

type catalogFile struct {
	Templates []Template `yaml:"templates"`
}

// LoadCatalogFile reads a YAML catalog of the form
//
//	templates:
//	  - id: drake
//	    url: /memes/drake.jpg
//	    captionFields: 2
func LoadCatalogFile(path string) (StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (StaticCatalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(file.Templates))
	out := make(StaticCatalog, 0, len(file.Templates))
	for i, tmpl := range file.Templates {
		tmpl.ID = strings.TrimSpace(tmpl.ID)
		if tmpl.ID == "" {
			return nil, fmt.Errorf("template %d: id is required", i)
		}
		if tmpl.CaptionFields <= 0 {
			return nil, fmt.Errorf("template %s: captionFields must be positive", tmpl.ID)
		}
		if _, dup := seen[tmpl.ID]; dup {
			return nil, fmt.Errorf("template %s: duplicate id", tmpl.ID)
		}
		seen[tmpl.ID] = struct{}{}
		out = append(out, tmpl)
	}
	if len(out) == 0 {
		return nil, errors.New("catalog has no templates")
	}
	return out, nil
}
