package config

import (
	"encoding/json"
	"os"

	"github.com/titanous/json5"
)

// UpdateLocal edits the .local override of a config path in place, keys the
// update does not touch are preserved.
func UpdateLocal(path string, update func(local map[string]any)) error {
	localPath := LocalPath(path)

	local := map[string]any{}
	buff, err := os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if len(buff) > 0 {
		err = json5.Unmarshal(buff, &local)
		if err != nil {
			return err
		}
	}

	update(local)

	// plain json is valid json5
	out, err := json.MarshalIndent(local, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(localPath, out, 0600)
}

// Section returns the nested object at key, creating it when missing.
func Section(local map[string]any, key string) map[string]any {
	existing, ok := local[key].(map[string]any)
	if ok {
		return existing
	}
	created := map[string]any{}
	local[key] = created
	return created
}
