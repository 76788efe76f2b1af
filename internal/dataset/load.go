package dataset

import (
	"encoding/json"
	"fmt"
	"os"
)

// FromJSON decodes a dataset from either a bare array of records or an
// object with "data" and optional "columns" keys.
func FromJSON(data []byte) (*Dataset, error) {
	var rows []Record
	if err := json.Unmarshal(data, &rows); err == nil {
		return New(rows, nil), nil
	}

	var envelope struct {
		Rows    []Record `json:"data"`
		Columns []string `json:"columns"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return New(envelope.Rows, envelope.Columns), nil
}

// LoadFile reads and decodes a dataset JSON file.
func LoadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return FromJSON(data)
}
