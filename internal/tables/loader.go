package tables

import (
	"bytes"
	"fmt"
	"os"

	validator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// LoadFile reads table data from a YAML file.
func LoadFile(path string) (Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("tables: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates YAML table data.
func Parse(raw []byte) (Data, error) {
	var data Data
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&data); err != nil {
		return Data{}, fmt.Errorf("tables: decode: %w", err)
	}
	if err := validate.Struct(data); err != nil {
		return Data{}, fmt.Errorf("tables: validate: %w", err)
	}
	return data, nil
}
