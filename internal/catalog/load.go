package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of a catalog file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor infers the format from a file extension. Anything that is not
// .yaml or .yml is treated as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads, validates, and indexes the catalog file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data, FormatFor(path))
}

// Parse validates raw catalog bytes and builds a Catalog. Malformed entries
// are rejected here so that lookups never see them.
func Parse(data []byte, format Format) (*Catalog, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	compiled, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}
	if err := compiled.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: schema validation failed: %v", ErrInvalidCatalog, err)
	}

	// Round-trip through JSON so both formats decode with the same tags.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	var questions []Question
	if err := json.Unmarshal(normalized, &questions); err != nil {
		return nil, fmt.Errorf("%w: decode questions: %v", ErrInvalidCatalog, err)
	}
	return New(questions)
}

// decodeDocument parses data into the generic form the schema validator
// expects.
func decodeDocument(data []byte, format Format) (any, error) {
	var doc any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		// The validator wants JSON-shaped values; yaml.v3 yields Go ints.
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert YAML: %w", err)
		}
		doc = nil
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("convert YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}
	return doc, nil
}

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

// compiledSchema compiles questionBankSchema once per process.
func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		// The jsonschema library expects a parsed JSON value (any), not Go maps
		// with typed slices, so normalize through JSON first.
		defBytes, err := json.Marshal(questionBankSchema)
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema definition: %w", err)
			return
		}
		var defParsed any
		if err := json.Unmarshal(defBytes, &defParsed); err != nil {
			schemaErr = fmt.Errorf("parse schema definition: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		const schemaURL = "schema://question-bank.json"
		if err := c.AddResource(schemaURL, defParsed); err != nil {
			schemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		schemaCompiled, schemaErr = c.Compile(schemaURL)
	})
	return schemaCompiled, schemaErr
}
