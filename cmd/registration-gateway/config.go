package main

import (
	"encoding/json"
	"io"

	"admissions-gateway/internal/common/config"
)

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// printConfig writes cfg as JSON. Only the masked form of the ERP key and
// no Redis password is ever printed.
func printConfig(w io.Writer, cfg *config.Config) error {
	masked := *cfg
	masked.ERP.APIKey = cfg.ERP.MaskedAPIKey()
	if masked.Database.Redis.Password != "" {
		masked.Database.Redis.Password = "****"
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(masked)
}
