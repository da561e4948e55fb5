package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

const intentSystemPrompt = `You convert shopping requests into structured product search filters.
Work out the product type first, then the attributes that matter for it:
- Electronics: storage capacity, screen size, processor, RAM, connectivity
- Clothing: size, color, material, style, fit, season
- Books: format (hardcover, paperback, kindle), language, genre
- Home goods: room type, dimensions, material, style
- Beauty: skin type, ingredients, concerns
- Food: dietary restrictions, ingredients, preparation

Earlier turns of the conversation are refinements: keep filters the user did not change.

Reply with exactly one JSON object and nothing else:
{
  "searchTerm": "optimized search keywords",
  "productType": "product category" or null,
  "filters": {
    "minPrice": number or null,
    "maxPrice": number or null,
    "prime": boolean,
    "minRating": number or null,
    "minReviewCount": number or null,
    "freeShipping": boolean,
    "deliverySpeed": "next-day" | "two-day" | null,
    "condition": "new" | "used" | "refurbished" | null,
    "brand": string or null,
    "attributes": {
      "color": string or null,
      "size": string or null,
      "material": string or null,
      "storage": string or null,
      "format": string or null
    },
    "excludeTerms": [string],
    "mustIncludeTerms": [string]
  }
}
Additional attribute keys are allowed when relevant to the product type.`

var (
	errInferenceEmpty         = errors.New("inference response is empty")
	errInferenceMissingFilter = errors.New("inference response has no filters object")
	errInferenceMissingTerm   = errors.New("inference response has no search term")
)

type inferencePayload struct {
	SearchTerm  string           `json:"searchTerm"`
	ProductType *string          `json:"productType"`
	Filters     inferenceFilters `json:"filters"`
}

type inferenceFilters struct {
	MinPrice         *float64           `json:"minPrice"`
	MaxPrice         *float64           `json:"maxPrice"`
	Prime            bool               `json:"prime"`
	MinRating        *float64           `json:"minRating"`
	MinReviewCount   *int               `json:"minReviewCount"`
	FreeShipping     bool               `json:"freeShipping"`
	DeliverySpeed    *string            `json:"deliverySpeed"`
	Condition        *string            `json:"condition"`
	Brand            *string            `json:"brand"`
	Attributes       map[string]*string `json:"attributes"`
	ExcludeTerms     []string           `json:"excludeTerms"`
	MustIncludeTerms []string           `json:"mustIncludeTerms"`
}

// encodeInferenceFilters renders a resolved filter set in the response schema so
// prior turns read like earlier assistant answers.
func encodeInferenceFilters(fs domain.FilterSet) string {
	payload := inferencePayload{
		SearchTerm:  fs.SearchTerm,
		ProductType: fs.ProductType,
		Filters: inferenceFilters{
			MinPrice:         fs.MinPrice,
			MaxPrice:         fs.MaxPrice,
			Prime:            fs.Prime,
			MinRating:        fs.MinRating,
			MinReviewCount:   fs.MinReviewCount,
			FreeShipping:     fs.FreeShipping,
			DeliverySpeed:    enumOrNull(string(fs.DeliverySpeed)),
			Condition:        enumOrNull(string(fs.Condition)),
			Brand:            fs.Brand,
			Attributes:       fs.Attributes,
			ExcludeTerms:     fs.ExcludeTerms,
			MustIncludeTerms: fs.MustIncludeTerms,
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func enumOrNull(value string) *string {
	if value == "" || value == "none" {
		return nil
	}
	return &value
}

// decodeInferenceFilters parses an inference response and merges it over a
// schema-complete default filter set. Leaves with an unexpected type keep their
// default.
func decodeInferenceFilters(raw string) (domain.FilterSet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.FilterSet{}, errInferenceEmpty
	}
	var root map[string]interface{}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &root); err != nil {
		return domain.FilterSet{}, fmt.Errorf("decode inference response: %w", err)
	}
	filters, ok := objectInput(root, "filters")
	if !ok {
		return domain.FilterSet{}, errInferenceMissingFilter
	}
	term := strings.TrimSpace(stringInput(root, "searchTerm", ""))
	if term == "" {
		return domain.FilterSet{}, errInferenceMissingTerm
	}

	fs := domain.NewFilterSet(term)
	fs.ProductType = nullableStringInput(root, "productType")
	if fs.ProductType == nil {
		fs.ProductType = nullableStringInput(filters, "productType")
	}
	fs.MinPrice = nullableFloatInput(filters, "minPrice")
	fs.MaxPrice = nullableFloatInput(filters, "maxPrice")
	fs.MinRating = nullableFloatInput(filters, "minRating")
	if count := nullableFloatInput(filters, "minReviewCount"); count != nil {
		v := int(math.Round(*count))
		fs.MinReviewCount = &v
	}
	fs.Prime = boolInput(filters, "prime", false)
	fs.FreeShipping = boolInput(filters, "freeShipping", false)
	fs.DeliverySpeed = domain.DeliverySpeed(enumInput(filters, "deliverySpeed", string(domain.DeliveryNone)))
	fs.Condition = domain.Condition(enumInput(filters, "condition", string(domain.ConditionNone)))
	fs.Brand = nullableStringInput(filters, "brand")
	if attributes, ok := objectInput(filters, "attributes"); ok {
		for key := range attributes {
			name := strings.ToLower(strings.TrimSpace(key))
			if name == "" {
				continue
			}
			fs.Attributes[name] = nullableStringInput(attributes, key)
		}
	}
	fs.ExcludeTerms = stringListInput(filters, "excludeTerms")
	fs.MustIncludeTerms = stringListInput(filters, "mustIncludeTerms")
	fs.Normalize()
	return fs, nil
}

// extractJSONObject trims chatter around the first JSON object of a reply.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func objectInput(input map[string]interface{}, key string) (map[string]interface{}, bool) {
	if input == nil {
		return nil, false
	}
	typed, ok := input[key].(map[string]interface{})
	return typed, ok
}

func stringInput(input map[string]interface{}, key, fallback string) string {
	if input == nil {
		return fallback
	}
	typed, ok := input[key].(string)
	if !ok || strings.TrimSpace(typed) == "" {
		return fallback
	}
	return typed
}

var enumSeparators = strings.NewReplacer("_", "-", " ", "-")

func enumInput(input map[string]interface{}, key, fallback string) string {
	return enumSeparators.Replace(strings.ToLower(strings.TrimSpace(stringInput(input, key, fallback))))
}

func nullableStringInput(input map[string]interface{}, key string) *string {
	if input == nil {
		return nil
	}
	switch typed := input[key].(type) {
	case string:
		if strings.TrimSpace(typed) == "" {
			return nil
		}
		return &typed
	case float64:
		s := strconv.FormatFloat(typed, 'f', -1, 64)
		return &s
	default:
		return nil
	}
}

func nullableFloatInput(input map[string]interface{}, key string) *float64 {
	if input == nil {
		return nil
	}
	switch typed := input[key].(type) {
	case float64:
		return &typed
	case string:
		cleaned := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(typed))
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

func boolInput(input map[string]interface{}, key string, fallback bool) bool {
	if input == nil {
		return fallback
	}
	switch typed := input[key].(type) {
	case bool:
		return typed
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
		if err != nil {
			return fallback
		}
		return parsed
	default:
		return fallback
	}
}

func stringListInput(input map[string]interface{}, key string) []string {
	if input == nil {
		return nil
	}
	items, ok := input[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

