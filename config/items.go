package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultItemTokenValue is awarded for item types missing from the table.
const DefaultItemTokenValue = 10

// ItemValues maps an item type tag to the tokens one deposited item earns.
type ItemValues map[string]int

// DefaultItemValues returns the built-in token table.
func DefaultItemValues() ItemValues {
	return ItemValues{
		"PLASTIC_BOTTLE": 10,
		"ALUMINUM_CAN":   15,
		"GLASS_BOTTLE":   20,
		"PAPER":          5,
	}
}

// TokensFor returns the token value of itemType, falling back to the default.
func (v ItemValues) TokensFor(itemType string) int {
	if tokens, ok := v[strings.ToUpper(strings.TrimSpace(itemType))]; ok && tokens > 0 {
		return tokens
	}
	return DefaultItemTokenValue
}

type itemValuesFile struct {
	Items map[string]int `yaml:"items"`
}

// LoadItemValues reads a YAML file of the form
//
//	items:
//	  PLASTIC_BOTTLE: 10
//
// and merges it over the defaults.
func LoadItemValues(path string) (ItemValues, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read item values: %w", err)
	}
	var file itemValuesFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse item values: %w", err)
	}

	values := DefaultItemValues()
	for item, tokens := range file.Items {
		if tokens <= 0 {
			return nil, fmt.Errorf("item %q: token value must be positive", item)
		}
		key := strings.ToUpper(strings.TrimSpace(item))
		if key == "" {
			return nil, errors.New("empty item type in item values")
		}
		values[key] = tokens
	}
	return values, nil
}
