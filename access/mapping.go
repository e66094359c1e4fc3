package access

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/poiesic/ragfence/core"
)

// LoadRoleMapping loads the role-to-tags mapping from a JSON file of
// the form {"Role": ["tag", ...], ...}.
//
// A missing file is not an error: absence of the mapping is a supported
// configuration and degrades to "roles grant no extra tags". A file
// that exists but is malformed (invalid JSON, or a role mapped to
// anything other than a list of strings) fails with ErrConfiguration
// and no partial mapping is returned.
func LoadRoleMapping(path string) (core.RoleMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.RoleMapping{}, nil
		}
		return nil, fmt.Errorf("reading role mapping %s: %w", path, err)
	}

	var mapping core.RoleMapping
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfiguration, path, err)
	}
	if mapping == nil {
		// The file contained the JSON literal null.
		return nil, fmt.Errorf("%w: %s: mapping is null", ErrConfiguration, path)
	}

	return mapping, nil
}
