// Package discovery inspects one sample product and reports feed
// attributes, texts and destination dynamic fields the mapping does not
// cover yet, with suggested target types and transforms.
package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pellelindal/FEEDJetshop/pkg/feed"
	"github.com/pellelindal/FEEDJetshop/pkg/mapping"
)

// FeedSource provides sample product documents.
type FeedSource interface {
	FetchProducts(ctx context.Context, exportFrom string, productNo string, limit int) ([]feed.Document, error)
}

// DynamicFieldReader reads the dynamic fields defined for articles.
type DynamicFieldReader interface {
	DynamicFieldsGet(ctx context.Context, articleNumbers, cultures []string) (map[string]map[string]string, error)
}

// typeSuggestions maps feed attribute data types to mapping types.
var typeSuggestions = map[string]string{
	"FLOAT":               "float",
	"INT":                 "int",
	"UNI_TEXT":            "string",
	"TEXT":                "string",
	"DATA_REGISTER":       "string",
	"DATA_REGISTER_MULTI": "list",
}

// UnmappedAttribute describes an attribute with no mapping entry.
type UnmappedAttribute struct {
	ImportCode            string   `yaml:"importCode"`
	DataType              string   `yaml:"dataType,omitempty"`
	SampleValue           any      `yaml:"sampleValue"`
	CulturesPresent       []string `yaml:"culturesPresent"`
	RecommendedTransforms []string `yaml:"recommendedTransforms"`
	SuggestedTargetType   string   `yaml:"suggestedTargetType"`
}

// UnmappedText describes a text with no mapping entry.
type UnmappedText struct {
	ImportCode            string   `yaml:"importCode"`
	MaxLength             any      `yaml:"maxLength,omitempty"`
	SampleValue           any      `yaml:"sampleValue"`
	CulturesPresent       []string `yaml:"culturesPresent"`
	RecommendedTransforms []string `yaml:"recommendedTransforms"`
	SuggestedTargetType   string   `yaml:"suggestedTargetType"`
}

// UnmappedDynamicField describes a destination dynamic field no mapping
// entry writes to.
type UnmappedDynamicField struct {
	Key                 string            `yaml:"key"`
	SampleValues        map[string]string `yaml:"sampleValues"`
	SuggestedTargetType string            `yaml:"suggestedTargetType"`
}

// Suggestions is the full discovery result, serialized as YAML.
type Suggestions struct {
	UnmappedAttributes    []UnmappedAttribute    `yaml:"unmapped_attributes"`
	UnmappedTexts         []UnmappedText         `yaml:"unmapped_texts"`
	UnmappedDynamicFields []UnmappedDynamicField `yaml:"unmapped_dynamic_fields"`
}

// Options select the sample product and the output location.
type Options struct {
	ExportFrom string
	ProductNo  string
	// OutputPath defaults to mappings/mapping_suggestions.yaml.
	OutputPath string
}

// Discover fetches one product, compares it against the mapping and
// writes the suggestion document.
func Discover(ctx context.Context, source FeedSource, dest DynamicFieldReader, cfg *mapping.Config, opts Options) (*Suggestions, error) {
	docs, err := source.FetchProducts(ctx, opts.ExportFrom, opts.ProductNo, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch sample product: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no feed products returned for discovery")
	}
	doc := docs[0]

	s := &Suggestions{
		UnmappedAttributes:    []UnmappedAttribute{},
		UnmappedTexts:         []UnmappedText{},
		UnmappedDynamicFields: []UnmappedDynamicField{},
	}

	mappedAttrs := toSet(cfg.MappedAttributeCodes())
	mappedTexts := toSet(cfg.MappedTextCodes())
	mappedDynamic := toSet(cfg.DynamicFieldKeys())

	for _, attr := range entries(doc["attributes"]) {
		code, _ := attr["importCode"].(string)
		if code == "" || mappedAttrs[code] {
			continue
		}
		dataType, _ := attr["dataType"].(string)
		value := attr["value"]
		var transforms []string
		if dataType == "DATA_REGISTER" || dataType == "DATA_REGISTER_MULTI" {
			transforms = append(transforms, "data_register_label")
		}
		s.UnmappedAttributes = append(s.UnmappedAttributes, UnmappedAttribute{
			ImportCode:            code,
			DataType:              dataType,
			SampleValue:           value,
			CulturesPresent:       cultureKeys(value),
			RecommendedTransforms: transforms,
			SuggestedTargetType:   suggestType(dataType),
		})
	}

	for _, text := range entries(doc["texts"]) {
		code, _ := text["importCode"].(string)
		if code == "" || mappedTexts[code] {
			continue
		}
		value := text["value"]
		var transforms []string
		if m, ok := value.(map[string]any); ok {
			for _, item := range m {
				if strings.Contains(fmt.Sprintf("%v", item), "\n") {
					transforms = append(transforms, "newline_to_br")
					break
				}
			}
		}
		s.UnmappedTexts = append(s.UnmappedTexts, UnmappedText{
			ImportCode:            code,
			MaxLength:             text["maxLength"],
			SampleValue:           value,
			CulturesPresent:       cultureKeys(value),
			RecommendedTransforms: transforms,
			SuggestedTargetType:   "string",
		})
	}

	productNo := opts.ProductNo
	if productNo == "" {
		productNo = doc.ProductNo()
	}
	if productNo != "" && dest != nil {
		fields, err := dest.DynamicFieldsGet(ctx, []string{productNo}, cfg.Cultures)
		if err != nil {
			return nil, fmt.Errorf("read dynamic fields: %w", err)
		}
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if mappedDynamic[key] {
				continue
			}
			s.UnmappedDynamicFields = append(s.UnmappedDynamicFields, UnmappedDynamicField{
				Key:                 key,
				SampleValues:        fields[key],
				SuggestedTargetType: "string",
			})
		}
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join("mappings", "mapping_suggestions.yaml")
	}
	if err := writeSuggestions(outputPath, s); err != nil {
		return nil, err
	}
	return s, nil
}

func writeSuggestions(path string, s *Suggestions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create suggestions directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write suggestions: %w", err)
	}
	return nil
}

func entries(raw any) []map[string]any {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func cultureKeys(value any) []string {
	m, ok := value.(map[string]any)
	if !ok {
		return []string{}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func suggestType(dataType string) string {
	if t, ok := typeSuggestions[dataType]; ok {
		return t
	}
	return "string"
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
