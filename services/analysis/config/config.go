// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the analysis service configuration.
//
// Settings come from built-in defaults, overlaid by an optional YAML
// file, overlaid by environment variables, in that order. Oracle
// backend selection and credentials are not handled here: the oracle
// package reads its own ORACLE_* variables so that key material never
// passes through a config struct that might get logged.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port string `yaml:"port" validate:"required,numeric"`

	// DataDir is where the BadgerDB record store lives.
	DataDir string `yaml:"data_dir" validate:"required"`

	// CatalogFile optionally replaces the compiled-in classification
	// catalog. When set, the file is watched and hot-reloaded.
	CatalogFile string `yaml:"catalog_file"`

	// GCS configures the optional Cloud Storage document store. When
	// Bucket is empty, diagram documents stay in BadgerDB.
	GCS GCSConfig `yaml:"gcs"`

	// Processor tunes the background analysis workers.
	Processor ProcessorConfig `yaml:"processor"`
}

// GCSConfig points the document store at a Cloud Storage bucket.
type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Enabled reports whether documents should go to Cloud Storage.
func (g GCSConfig) Enabled() bool {
	return g.Bucket != ""
}

// ProcessorConfig tunes the async analysis pipeline.
type ProcessorConfig struct {
	Workers              int `yaml:"workers" validate:"gte=1"`
	QueueSize            int `yaml:"queue_size" validate:"gte=1"`
	OracleTimeoutSeconds int `yaml:"oracle_timeout_seconds" validate:"gte=1"`
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes" validate:"gte=1"`
}

// OracleTimeout returns the total per-analysis oracle budget,
// including the retry.
func (p ProcessorConfig) OracleTimeout() time.Duration {
	return time.Duration(p.OracleTimeoutSeconds) * time.Second
}

// SweepInterval returns how often orphaned analyses are requeued.
func (p ProcessorConfig) SweepInterval() time.Duration {
	return time.Duration(p.SweepIntervalMinutes) * time.Minute
}

// configValidate is the validator instance for config structs.
var configValidate = validator.New()

// DefaultConfig returns the configuration the service runs with when
// no file and no environment overrides are present.
func DefaultConfig() Config {
	return Config{
		Port:    "12310",
		DataDir: "/var/lib/archlens",
		Processor: ProcessorConfig{
			Workers:              4,
			QueueSize:            64,
			OracleTimeoutSeconds: 90,
			SweepIntervalMinutes: 10,
		},
	}
}

// Load builds the effective configuration.
//
// path may be empty, in which case ANALYSIS_CONFIG_FILE is consulted;
// if that is also empty the service runs on defaults plus environment
// overrides. A configured file that cannot be read or parsed is a
// startup error, not a silent fallback.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("ANALYSIS_CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read the config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse the config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnv overlays ANALYSIS_* environment variables. Empty variables
// are treated as unset.
func (c *Config) applyEnv() error {
	envString("ANALYSIS_PORT", &c.Port)
	envString("ANALYSIS_DATA_DIR", &c.DataDir)
	envString("ANALYSIS_CATALOG_FILE", &c.CatalogFile)
	envString("ANALYSIS_GCS_BUCKET", &c.GCS.Bucket)
	envString("ANALYSIS_GCS_PREFIX", &c.GCS.Prefix)
	envString("ANALYSIS_GCS_CREDENTIALS", &c.GCS.CredentialsFile)
	return envInt("ANALYSIS_WORKERS", &c.Processor.Workers)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	*dst = n
	return nil
}
