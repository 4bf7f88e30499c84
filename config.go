package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/resttable/resttable/core"
)

// connectionsFile is the layout of the connections file.
type connectionsFile struct {
	Connections []map[string]any `yaml:"connections"`
}

// loadConnections reads connection configs from a yaml file. Values may
// use the {{ env "X" }}, {{ exec "cmd" }} and {{ keyring "service" "key" }}
// templates, which are expanded when the connection is registered.
func loadConnections(path string) ([]*core.ConnectionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile: %w", err)
	}

	return parseConnections(data)
}

func parseConnections(data []byte) ([]*core.ConnectionConfig, error) {
	var file connectionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, core.NewError(core.ErrConfiguration, "parse connections", err)
	}
	if len(file.Connections) == 0 {
		return nil, core.Errorf(core.ErrConfiguration, "parse connections", "no connections defined")
	}

	seen := make(map[string]bool)
	configs := make([]*core.ConnectionConfig, 0, len(file.Connections))
	for i, raw := range file.Connections {
		params := make(map[string]string, len(raw))
		for k, v := range raw {
			if v == nil {
				continue
			}
			params[k] = fmt.Sprint(v)
		}

		cfg, err := core.ConfigFromMap(params)
		if err != nil {
			return nil, fmt.Errorf("connection %d: %w", i, err)
		}
		if cfg.Name == "" {
			cfg.Name = fmt.Sprintf("%s-%d", cfg.Type, i)
		}
		if seen[cfg.Name] {
			return nil, core.Errorf(core.ErrConfiguration, "parse connections", "duplicate connection name %q", cfg.Name)
		}
		seen[cfg.Name] = true

		configs = append(configs, cfg)
	}

	return configs, nil
}

// parsePredicate parses a "field operator value" filter. Values are read
// as json when possible (numbers, booleans, lists), else as plain strings.
func parsePredicate(s string) (core.Predicate, error) {
	fields, err := core.SplitCommand(s)
	if err != nil {
		return core.Predicate{}, core.NewError(core.ErrValidation, "parse filter", err)
	}
	if len(fields) != 3 {
		return core.Predicate{}, core.Errorf(core.ErrValidation, "parse filter", "expected \"field operator value\", got %q", s)
	}

	op, err := core.ParseOperator(fields[1])
	if err != nil {
		return core.Predicate{}, err
	}

	return core.Predicate{
		Field:    fields[0],
		Operator: op,
		Value:    parseValue(fields[2]),
	}, nil
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	// objects are matched by their raw text
	if _, ok := v.(map[string]any); ok {
		return s
	}
	return v
}

// parseRows reads json objects or a json array of objects.
func parseRows(inputs []string) ([]map[string]any, error) {
	var rows []map[string]any
	for _, in := range inputs {
		in = strings.TrimSpace(in)
		if strings.HasPrefix(in, "[") {
			var batch []map[string]any
			if err := json.Unmarshal([]byte(in), &batch); err != nil {
				return nil, core.Errorf(core.ErrValidation, "parse rows", "invalid json array: %s", err)
			}
			rows = append(rows, batch...)
			continue
		}

		var row map[string]any
		if err := json.Unmarshal([]byte(in), &row); err != nil {
			return nil, core.Errorf(core.ErrValidation, "parse rows", "invalid json object: %s", err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, core.Errorf(core.ErrValidation, "parse rows", "no rows to insert")
	}
	return rows, nil
}
