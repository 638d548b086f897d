package routing

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// LoadConfig reads the persisted config at path. A missing file is not an
// error — it yields DefaultConfig(), matching spec.md §6 "missing fields
// are filled from defaults" applied to the whole document.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("routing: reading config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("routing: parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("routing: config %s failed validation: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as a whole-file atomic write: encode, write
// to a sibling temp file, then rename over the destination. Grounded on the
// teacher's session/cache_store.go saveIndex, which uses exactly this
// write-temp-then-rename shape for the same reason: a crash mid-write must
// never leave a half-written config file on disk.
func SaveConfig(path string, cfg *Config) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("routing: encoding config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("routing: writing temp config %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("routing: renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}
