package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPProductGateway calls the product service over HTTP.
type HTTPProductGateway struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPProductGateway creates a product gateway with a bounded
// request timeout so a hung remote call cannot stall callers.
func NewHTTPProductGateway(baseURL string, timeout time.Duration) *HTTPProductGateway {
	return &HTTPProductGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type productListResponse struct {
	Products []ProductDetails `json:"products"`
}

// FetchProducts retrieves product details for the given ids in a single
// batch call. Any id absent from the response fails the whole call.
func (g *HTTPProductGateway) FetchProducts(ctx context.Context, ids []string) (map[string]ProductDetails, error) {
	endpoint := fmt.Sprintf("%s/products?ids=%s", g.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build product request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: product service call failed: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, strings.Join(ids, ","))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: product service returned status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	var body productListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to decode product response: %v", ErrServiceUnavailable, err)
	}

	products := make(map[string]ProductDetails, len(body.Products))
	for _, p := range body.Products {
		products[p.ID] = p
	}

	var missing []string
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, strings.Join(missing, ","))
	}

	return products, nil
}
