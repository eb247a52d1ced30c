package rbac

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadCatalog reads a substitute catalog from a YAML, TOML or JSON file,
// chosen by extension, and validates it. Unknown keys are rejected.
func LoadCatalog(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("rbac: read catalog: %w", err)
	}

	var catalog Catalog
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&catalog); err != nil {
			return Catalog{}, fmt.Errorf("rbac: decode %s: %w", path, err)
		}
	case ".toml":
		meta, err := toml.Decode(string(raw), &catalog)
		if err != nil {
			return Catalog{}, fmt.Errorf("rbac: decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Catalog{}, fmt.Errorf("rbac: decode %s: unknown key %s", path, undecoded[0])
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&catalog); err != nil {
			return Catalog{}, fmt.Errorf("rbac: decode %s: %w", path, err)
		}
	default:
		return Catalog{}, fmt.Errorf("rbac: unsupported catalog format %q", ext)
	}

	if err := catalog.Validate(); err != nil {
		return Catalog{}, err
	}
	return catalog, nil
}
