package embedding

import (
	"fmt"

	"docmind/internal/config"
)

// New selects a Backend implementation from cfg.Embedding.Backend. "local"
// and "remote" both resolve to the same HTTP shim; only the configured
// base URL differs.
func New(cfg config.EmbeddingConfig) (Backend, error) {
	switch cfg.Backend {
	case "local", "remote":
		return NewHTTP(HTTPConfig{
			Name:      cfg.Backend,
			BaseURL:   cfg.BaseURL,
			Path:      cfg.Path,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			APIHeader: cfg.APIHeader,
			Dimension: cfg.Dimensions,
		})
	case "deterministic":
		return NewDeterministic(cfg.Dimensions, true, 0), nil
	case "none":
		return NewNone(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.Backend)
	}
}
