package cfn

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case JSON, "":
		return JSON, nil
	case YAML, "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("unsupported template format %q (want json or yaml)", s)
}

// Ext is the file extension used for the format.
func (f Format) Ext() string {
	if f == YAML {
		return ".yaml"
	}
	return ".json"
}

const yamlHeader = "# Generated by gqlstack. DO NOT EDIT.\n\n"

// Encode renders the template. Map keys are emitted in sorted order by both
// encoders, so equal templates always encode to equal bytes.
func Encode(t *Template, f Format) ([]byte, error) {
	switch f {
	case YAML:
		var buf bytes.Buffer
		buf.WriteString(yamlHeader)
		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)
		if err := encoder.Encode(t); err != nil {
			return nil, fmt.Errorf("marshaling template: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return nil, fmt.Errorf("marshaling template: %w", err)
		}
		return buf.Bytes(), nil
	case JSON, "":
		data, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling template: %w", err)
		}
		return append(data, '\n'), nil
	}
	return nil, fmt.Errorf("unsupported template format %q", f)
}
