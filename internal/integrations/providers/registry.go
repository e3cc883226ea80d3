// internal/integrations/providers/registry.go
package providers

import (
	"fmt"

	"banking-assistant/internal/assistant/datafetch"
	"banking-assistant/internal/common/config"
	"banking-assistant/internal/common/database"
	apphttp "banking-assistant/internal/common/http"
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/models"
)

// New builds one provider per banking domain for the configured backend.
func New(cfg config.ProvidersConfig, es *database.ElasticsearchClient, log logger.Logger) (map[models.Domain]datafetch.Provider, error) {
	out := make(map[models.Domain]datafetch.Provider, len(models.BankingDomains))

	switch cfg.Backend {
	case "", "http":
		hc := apphttp.NewClient(config.GetDuration(cfg.Timeout))
		if cfg.APIKey != "" {
			hc = hc.WithHeader("X-API-Key", cfg.APIKey)
		}
		for _, d := range models.BankingDomains {
			out[d] = NewHTTPProvider(d, cfg.BaseURL, pathFor(d, cfg.Paths), hc, log)
		}
	case "elasticsearch":
		if es == nil {
			return nil, fmt.Errorf("elasticsearch backend selected without an elasticsearch client")
		}
		for _, d := range models.BankingDomains {
			out[d] = NewElasticsearchProvider(d, es, log)
		}
	default:
		return nil, fmt.Errorf("unknown provider backend %q", cfg.Backend)
	}
	return out, nil
}
