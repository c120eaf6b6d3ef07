package version

import (
	"encoding/json"
	"os"

	"github.com/JustinTDCT/SerialDesk/internal/logger"
)

const fallback = "0.0.0"

type Info struct {
	Version string `json:"version"`
}

// Load reads the build version from a JSON file, falling back to 0.0.0.
func Load(path string, log *logger.Logger) Info {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("could not read version file", "path", path, "error", err)
		return Info{Version: fallback}
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil || info.Version == "" {
		log.Warn("could not parse version file", "path", path, "error", err)
		return Info{Version: fallback}
	}
	return info
}
