package query

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

// Vocabulary maps semantic filter values to provider refinement tokens.
type Vocabulary struct {
	BaseURL             string            `yaml:"base_url"`
	RefinementParam     string            `yaml:"refinement_param"`
	RefinementDelimiter string            `yaml:"refinement_delimiter"`
	Price               PriceVocabulary   `yaml:"price"`
	Prime               string            `yaml:"prime"`
	FreeShipping        string            `yaml:"free_shipping"`
	BrandKey            string            `yaml:"brand_key"`
	Rating              map[int]string    `yaml:"rating"`
	Condition           map[string]string `yaml:"condition"`
	Delivery            map[string]string `yaml:"delivery"`
	SearchIndex         map[string]string `yaml:"search_index"`
	StaticParams        map[string]string `yaml:"static_params"`
	CorrelationLength   int               `yaml:"correlation_length"`
}

type PriceVocabulary struct {
	Key         string `yaml:"key"`
	CentsSuffix string `yaml:"cents_suffix"`
	Sort        string `yaml:"sort"`
}

// DefaultVocabulary returns the embedded vocabulary.
func DefaultVocabulary() Vocabulary {
	v, err := ParseVocabulary(defaultVocabularyYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary: %v", err))
	}
	return v
}

// LoadVocabulary reads a vocabulary override file. An empty path yields the
// embedded vocabulary.
func LoadVocabulary(path string) (Vocabulary, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultVocabulary(), nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	return ParseVocabulary(data)
}

func ParseVocabulary(data []byte) (Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary: %w", err)
	}
	v.applyDefaults()
	if err := v.validate(); err != nil {
		return Vocabulary{}, err
	}
	return v, nil
}

func (v *Vocabulary) applyDefaults() {
	if v.RefinementParam == "" {
		v.RefinementParam = "rh"
	}
	if v.RefinementDelimiter == "" {
		v.RefinementDelimiter = ","
	}
	if v.Price.CentsSuffix == "" {
		v.Price.CentsSuffix = "00"
	}
	if v.CorrelationLength <= 0 {
		v.CorrelationLength = 20
	}
	v.Condition = lowerKeys(v.Condition)
	v.Delivery = lowerKeys(v.Delivery)
	v.SearchIndex = lowerKeys(v.SearchIndex)
}

func (v Vocabulary) validate() error {
	if strings.TrimSpace(v.BaseURL) == "" {
		return fmt.Errorf("vocabulary: base_url is required")
	}
	if strings.TrimSpace(v.Price.Key) == "" {
		return fmt.Errorf("vocabulary: price.key is required")
	}
	return nil
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[strings.ToLower(strings.TrimSpace(key))] = value
	}
	return out
}
