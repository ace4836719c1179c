// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagram

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Categories
// =============================================================================

// Category is the closed classification bucket a node maps to.
type Category string

const (
	CategoryCompute           Category = "compute"
	CategoryStorage           Category = "storage"
	CategoryDatabase          Category = "database"
	CategoryNetworkingGateway Category = "networking-gateway"
	CategoryLoadBalancer      Category = "load-balancer"
	CategoryServerless        Category = "serverless-function"
	CategoryAPILayer          Category = "api-layer"
	CategoryMonitoring        Category = "monitoring"
	CategorySecurity          Category = "security"
	CategoryUnclassified      Category = "unclassified"
)

// Categories lists every classifiable category in canonical order.
// CategoryUnclassified is deliberately absent: it is the no-match
// result, not a catalog target.
var Categories = []Category{
	CategoryCompute,
	CategoryStorage,
	CategoryDatabase,
	CategoryNetworkingGateway,
	CategoryLoadBalancer,
	CategoryServerless,
	CategoryAPILayer,
	CategoryMonitoring,
	CategorySecurity,
}

// DisplayName returns a human-readable name for a category, used by
// the description generator.
func (c Category) DisplayName() string {
	switch c {
	case CategoryCompute:
		return "Compute"
	case CategoryStorage:
		return "Storage"
	case CategoryDatabase:
		return "Database"
	case CategoryNetworkingGateway:
		return "Networking & Gateways"
	case CategoryLoadBalancer:
		return "Load Balancing"
	case CategoryServerless:
		return "Serverless Functions"
	case CategoryAPILayer:
		return "API Layer"
	case CategoryMonitoring:
		return "Monitoring"
	case CategorySecurity:
		return "Security"
	case CategoryUnclassified:
		return "Unclassified"
	default:
		return string(c)
	}
}

// =============================================================================
// Catalog Data
// =============================================================================

// defaultCatalogYAML is the compiled-in classification table. Baking
// the catalog into the binary means a deployment with no config files
// still classifies the full AWS vocabulary; a catalog file, when
// configured, replaces it wholesale.
//
//go:embed catalog.yaml
var defaultCatalogYAML []byte

// ServiceEntry is one recognizable service in the catalog.
//
// Exact names match the whole normalized label; keywords and style
// tokens are substring matches. All three lists are matched in
// declaration order.
type ServiceEntry struct {
	ID          string   `yaml:"id" validate:"required"`
	DisplayName string   `yaml:"display_name" validate:"required"`
	Category    Category `yaml:"category" validate:"required,oneof=compute storage database networking-gateway load-balancer serverless-function api-layer monitoring security"`
	Exact       []string `yaml:"exact"`
	Keywords    []string `yaml:"keywords"`
	Styles      []string `yaml:"styles"`
}

// CategoryKeyword maps a generic word ("server", "database") to a
// category without naming a concrete service.
type CategoryKeyword struct {
	Keyword  string   `yaml:"keyword" validate:"required"`
	Category Category `yaml:"category" validate:"required,oneof=compute storage database networking-gateway load-balancer serverless-function api-layer monitoring security"`
}

// Catalog is the complete classification table. It is immutable after
// construction; hot reload swaps the whole catalog atomically rather
// than mutating one in place.
type Catalog struct {
	Services        []ServiceEntry    `yaml:"services" validate:"required,min=1,dive"`
	GenericKeywords []CategoryKeyword `yaml:"generic_keywords" validate:"dive"`

	// exactIndex maps a normalized exact name to its service entry.
	exactIndex map[string]*ServiceEntry
}

var catalogValidate = validator.New()

// ParseCatalog parses and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling catalog YAML: %w", err)
	}
	if err := catalogValidate.Struct(&c); err != nil {
		return nil, fmt.Errorf("validating catalog: %w", err)
	}

	seen := make(map[string]bool, len(c.Services))
	c.exactIndex = make(map[string]*ServiceEntry)
	for i := range c.Services {
		entry := &c.Services[i]
		if seen[entry.ID] {
			return nil, fmt.Errorf("validating catalog: duplicate service id %q", entry.ID)
		}
		seen[entry.ID] = true
		for _, name := range entry.Exact {
			norm := normalizeLabel(name)
			if _, dup := c.exactIndex[norm]; !dup {
				c.exactIndex[norm] = entry
			}
		}
	}
	return &c, nil
}

// LoadCatalogFile reads and parses a catalog file from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("catalog file %s: %w", path, err)
	}
	return c, nil
}

// DefaultCatalog returns the compiled-in catalog. The embedded data is
// validated by tests; a parse failure here is a build defect, so it
// panics rather than forcing every caller to handle an impossible
// error.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// normalizeLabel lowercases and collapses internal whitespace so that
// matching is insensitive to case and spacing.
func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
