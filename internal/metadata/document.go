package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is a YAML metadata file holding table and transition rows.
//
//	tables:
//	  - {base_name: customer, rel_type: hub, column_name: id, column_type: INTEGER, column_position: 1, mapping: pk}
//	transitions:
//	  - {source_table: customer, source_field: id, target_table: hub_customer, ...}
type Document struct {
	Tables      []TableColumn `yaml:"tables,omitempty"`
	Transitions []Transition  `yaml:"transitions,omitempty"`
}

// ReadDocument reads and normalizes the YAML document at path.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata document %s: %w", path, err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// ParseDocument decodes data and replaces long kind names by their codes.
// Unknown fields and kinds are rejected.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse metadata document: %w", err)
	}

	var errs []error
	for i := range doc.Tables {
		k, err := ParseEntityKind(string(doc.Tables[i].EntityKind))
		if err != nil {
			errs = append(errs, fmt.Errorf("tables[%d]: %w", i, err))
			continue
		}
		doc.Tables[i].EntityKind = k
	}
	for i := range doc.Transitions {
		k, err := ParseTransferKind(string(doc.Transitions[i].Kind))
		if err != nil {
			errs = append(errs, fmt.Errorf("transitions[%d]: %w", i, err))
			continue
		}
		doc.Transitions[i].Kind = k
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &doc, nil
}

// Marshal encodes the document as YAML.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode metadata document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode metadata document: %w", err)
	}
	return buf.Bytes(), nil
}
