package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"AlertWatch/internal/model"
)

// LoadStats reads persisted counters from a JSON file. Returns zero stats if the file doesn't exist.
func LoadStats(filePath string) (model.ScanStats, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return model.ScanStats{}, nil
		}
		return model.ScanStats{}, err
	}
	var st model.ScanStats
	if err := json.Unmarshal(data, &st); err != nil {
		return model.ScanStats{}, fmt.Errorf("decode %s: %w", filePath, err)
	}
	st.Running = false
	return st, nil
}

// SaveStats writes the counters to a JSON file via a temp file and rename.
func SaveStats(filePath string, st model.ScanStats) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}
