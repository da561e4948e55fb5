package productcard

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var defaultSelectorsYAML []byte

// Selectors lists the locator strategies for one provider layout.
type Selectors struct {
	Grid          string   `yaml:"grid"`
	Card          string   `yaml:"card"`
	IDAttribute   string   `yaml:"id_attribute"`
	MaxCards      int      `yaml:"max_cards"`
	Sponsored     []string `yaml:"sponsored"`
	Title         []string `yaml:"title"`
	Price         []string `yaml:"price"`
	PricePrefixes []string `yaml:"price_prefixes"`
	Rating        []string `yaml:"rating"`
	ReviewCount   []string `yaml:"review_count"`
	Prime         []string `yaml:"prime"`
	Image         []string `yaml:"image"`
}

func DefaultSelectors() Selectors {
	s, err := ParseSelectors(defaultSelectorsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded selectors: %v", err))
	}
	return s
}

// LoadSelectors reads an override file; an empty path yields the defaults.
func LoadSelectors(path string) (Selectors, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSelectors(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Selectors{}, fmt.Errorf("read selectors: %w", err)
	}
	return ParseSelectors(raw)
}

func ParseSelectors(raw []byte) (Selectors, error) {
	var s Selectors
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Selectors{}, fmt.Errorf("parse selectors: %w", err)
	}
	s.applyDefaults()
	if err := s.validate(); err != nil {
		return Selectors{}, err
	}
	return s, nil
}

func (s *Selectors) applyDefaults() {
	if s.IDAttribute == "" {
		s.IDAttribute = "data-asin"
	}
	if s.MaxCards <= 0 || s.MaxCards > 100 {
		s.MaxCards = 100
	}
	for i, prefix := range s.PricePrefixes {
		s.PricePrefixes[i] = strings.ToLower(strings.TrimSpace(prefix))
	}
}

func (s Selectors) validate() error {
	switch {
	case strings.TrimSpace(s.Card) == "":
		return fmt.Errorf("selectors: card is required")
	case len(s.Title) == 0:
		return fmt.Errorf("selectors: title locators are required")
	case len(s.Price) == 0:
		return fmt.Errorf("selectors: price locators are required")
	}
	return nil
}

// readySelector matches the first populated card inside the grid.
func (s Selectors) readySelector() string {
	if s.Grid == "" {
		return s.Card
	}
	return s.Grid + " " + s.Card
}
