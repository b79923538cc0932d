// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config resolves the effective run configuration from, in
// priority order, CLI flags (which the CLI fills from the environment,
// including a .env file, when left unset), an optional JSON config file
// (validated against an embedded JSON Schema), and built-in defaults.
package config

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/config.schema.json
var schemaFS embed.FS

// Config is the effective, fully-resolved run configuration.
type Config struct {
	InFile      string `json:"in_file"`
	OutFile     string `json:"out_file"`
	Separator   string `json:"separator"`
	LogLevel    string `json:"log_level"`
	LogDateTime bool   `json:"log_date_time"`
	MetricsAddr string `json:"metrics_addr"`
	Gops        bool   `json:"gops"`
}

// LoadDotEnv loads environment variables from path into the process
// environment, silently doing nothing if the file does not exist. Values
// read from os.Getenv only see the file's entries after this call; a flag
// default captured before it does not.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

func compiledSchema() (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile("schemas/config.schema.json")
	if err != nil {
		return nil, fmt.Errorf("config: reading embedded schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("config: loading schema: %w", err)
	}
	return compiler.Compile("config.schema.json")
}

// LoadFile reads and schema-validates a JSON configuration file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return Config{}, err
	}
	if err := schema.Validate(generic); err != nil {
		return Config{}, fmt.Errorf("config: %s failed schema validation: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve layers flagCfg (as parsed from the command line) over an
// optional JSON config file: any field flagCfg left at its zero value is
// filled in from the file, then built-in defaults apply. Flags that were
// explicitly set always win, since they are never zero-valued by the time
// they reach here unless the user genuinely left them unset.
func Resolve(flagCfg Config, configPath string) (Config, error) {
	result := flagCfg

	if configPath != "" {
		fileCfg, err := LoadFile(configPath)
		if err != nil {
			return Config{}, err
		}
		if result.InFile == "" {
			result.InFile = fileCfg.InFile
		}
		if result.OutFile == "" {
			result.OutFile = fileCfg.OutFile
		}
		if result.Separator == "" {
			result.Separator = fileCfg.Separator
		}
		if result.LogLevel == "" {
			result.LogLevel = fileCfg.LogLevel
		}
		if !result.LogDateTime {
			result.LogDateTime = fileCfg.LogDateTime
		}
		if result.MetricsAddr == "" {
			result.MetricsAddr = fileCfg.MetricsAddr
		}
		if !result.Gops {
			result.Gops = fileCfg.Gops
		}
	}

	if result.InFile == "" {
		return Config{}, fmt.Errorf("config: in-file is required (via --in-file or a config file)")
	}
	if result.OutFile == "" {
		return Config{}, fmt.Errorf("config: out-file is required (via --out-file or a config file)")
	}
	if result.Separator == "" {
		result.Separator = "<"
	}
	if result.LogLevel == "" {
		result.LogLevel = "info"
	}
	return result, nil
}
