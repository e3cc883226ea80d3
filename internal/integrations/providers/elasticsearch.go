// internal/integrations/providers/elasticsearch.go
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"banking-assistant/internal/common/database"
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/models"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrDocumentNotFound = errors.New("PROVIDER_DOCUMENT_NOT_FOUND")

// ElasticsearchProvider serves pre-materialised provider documents, one per
// customer, from a per-domain index. The request filters are applied in process.
type ElasticsearchProvider struct {
	domain models.Domain
	index  string
	es     *database.ElasticsearchClient
	logger logger.Logger
}

func NewElasticsearchProvider(domain models.Domain, es *database.ElasticsearchClient, log logger.Logger) *ElasticsearchProvider {
	return &ElasticsearchProvider{
		domain: domain,
		index:  es.Index(DefaultPaths[domain]),
		es:     es,
		logger: logger.ForComponent(log, "provider").With(map[string]interface{}{
			"domain": domain,
			"index":  es.Index(DefaultPaths[domain]),
		}),
	}
}

func (p *ElasticsearchProvider) Fetch(ctx context.Context, req models.FetchRequest) (models.RawDocument, error) {
	res, err := esapi.GetRequest{
		Index:      p.index,
		DocumentID: req.CustomerID,
	}.Do(ctx, p.es.Client)
	if err != nil {
		return nil, fmt.Errorf("%w: elasticsearch: %v", ErrProviderFetchFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, p.index, req.CustomerID)
	}
	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return nil, fmt.Errorf("%w: elasticsearch get failed: %s %s", ErrProviderFetchFailed, res.Status(), strings.TrimSpace(string(body)))
	}

	var hit struct {
		Found  bool            `json:"found"`
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&hit); err != nil {
		return nil, fmt.Errorf("%w: decode hit: %v", ErrProviderFetchFailed, err)
	}
	if !hit.Found {
		return nil, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, p.index, req.CustomerID)
	}

	filtered, err := applyRequest(p.domain, req, hit.Source)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(p.domain, filtered)
}
