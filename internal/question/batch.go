package question

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Batch is an already-selected set of questions, as handed to a session by
// whatever picked them. JSON documents are accepted too since they are
// valid YAML.
type Batch struct {
	OwnerID   string     `json:"ownerId" yaml:"ownerId"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// LoadBatch reads a batch from a YAML or JSON file.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	b, err := ParseBatch(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return b, nil
}

// ParseBatch decodes a batch document and checks every question has an ID
// and a canonical answer.
func ParseBatch(data []byte) (*Batch, error) {
	var b Batch
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}

	var errs []error
	seen := make(map[string]bool, len(b.Questions))
	for i, q := range b.Questions {
		switch {
		case q.ID == "":
			errs = append(errs, fmt.Errorf("question %d: missing id", i))
		case seen[q.ID]:
			errs = append(errs, fmt.Errorf("question %d: duplicate id %q", i, q.ID))
		}
		seen[q.ID] = true
		if q.Answer == "" {
			errs = append(errs, fmt.Errorf("question %d: missing answer", i))
		}
		if q.Type != "" && !q.Type.Valid() {
			errs = append(errs, fmt.Errorf("question %d: unknown type %q", i, q.Type))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &b, nil
}
