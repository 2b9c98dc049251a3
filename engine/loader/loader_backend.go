package loader

import (
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// loaderBackend decodes one declaration file format.
type loaderBackend interface {
	// Decode reads a single set file from r.
	//
	// Parameters:
	//   - r: the reader providing the file contents
	//
	// Returns:
	//   - *SetFile: the decoded file
	//   - error: error if decoding fails
	Decode(r io.Reader) (*SetFile, error)
}

// yamlLoaderBackend decodes YAML set files.
type yamlLoaderBackend struct{}

func newYAMLLoaderBackend() loaderBackend {
	return yamlLoaderBackend{}
}

func (yamlLoaderBackend) Decode(r io.Reader) (*SetFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	f := &SetFile{}
	if err := dec.Decode(f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("yaml: empty document")
		}
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return f, nil
}

// tomlLoaderBackend decodes TOML set files.
type tomlLoaderBackend struct{}

func newTOMLLoaderBackend() loaderBackend {
	return tomlLoaderBackend{}
}

func (tomlLoaderBackend) Decode(r io.Reader) (*SetFile, error) {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	f := &SetFile{}
	if err := dec.Decode(f); err != nil {
		return nil, fmt.Errorf("toml: %w", err)
	}
	return f, nil
}
