// internal/integrations/providers/http.go
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	apphttp "banking-assistant/internal/common/http"
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/common/validation"
	"banking-assistant/internal/models"
)

var ErrProviderFetchFailed = errors.New("PROVIDER_FETCH_FAILED")

var envelopeSchema = validation.MustCompile("provider envelope", validation.ProviderEnvelopeSchema)

// HTTPProvider reads one domain from the banking provider REST API.
type HTTPProvider struct {
	domain  models.Domain
	baseURL string
	path    string
	http    *apphttp.Client
	logger  logger.Logger
}

func NewHTTPProvider(domain models.Domain, baseURL, path string, hc *apphttp.Client, log logger.Logger) *HTTPProvider {
	return &HTTPProvider{
		domain:  domain,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		path:    strings.Trim(path, "/"),
		http:    hc,
		logger: logger.ForComponent(log, "provider").With(map[string]interface{}{
			"domain": domain,
		}),
	}
}

// Fetch performs GET {base}/{path} with the request encoded as query parameters.
func (p *HTTPProvider) Fetch(ctx context.Context, req models.FetchRequest) (models.RawDocument, error) {
	if req.Domain != "" && req.Domain != p.domain {
		return nil, fmt.Errorf("%w: provider for %s cannot serve %s", ErrProviderFetchFailed, p.domain, req.Domain)
	}

	body, err := p.http.GetBytes(ctx, p.baseURL+"/"+p.path+"?"+encodeQuery(req, p.domain).Encode())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFetchFailed, err)
	}
	return decodeEnvelope(p.domain, body)
}

func encodeQuery(req models.FetchRequest, domain models.Domain) url.Values {
	q := url.Values{}
	q.Set("customerId", req.CustomerID)
	if !req.TimeRange.IsZero() {
		q.Set("fromDate", req.TimeRange.FromDate)
		q.Set("toDate", req.TimeRange.ToDate)
	}
	if len(req.EntityIDs) > 0 {
		q.Set("accountIds", strings.Join(req.EntityIDs, ","))
	}
	if req.AccountAlias != "" {
		q.Set("accountAlias", req.AccountAlias)
	}
	q.Set("includeTransactions", strconv.FormatBool(req.IncludeTransactions))
	if domain == models.DomainSecurities {
		q.Set("includePositions", strconv.FormatBool(req.IncludePositions))
	}
	return q
}

// decodeEnvelope validates the shared envelope before decoding the domain variant.
func decodeEnvelope(domain models.Domain, body []byte) (models.RawDocument, error) {
	if err := envelopeSchema.ValidateBytes(body).Err(envelopeSchema.Name()); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedDocument, err)
	}
	return models.DecodeRawDocument(domain, body)
}
