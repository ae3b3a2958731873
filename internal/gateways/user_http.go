package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPUserGateway calls the user service over HTTP.
type HTTPUserGateway struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPUserGateway creates a user gateway with a bounded request
// timeout.
func NewHTTPUserGateway(baseURL string, timeout time.Duration) *HTTPUserGateway {
	return &HTTPUserGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ResolveCustomer looks up a customer by CPF.
func (g *HTTPUserGateway) ResolveCustomer(ctx context.Context, cpf string) (*CustomerInfo, error) {
	endpoint := fmt.Sprintf("%s/users/cpf/%s", g.baseURL, cpf)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build user request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: user service call failed: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: cpf %s", ErrCustomerNotFound, cpf)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: user service returned status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	var customer CustomerInfo
	if err := json.NewDecoder(resp.Body).Decode(&customer); err != nil {
		return nil, fmt.Errorf("%w: failed to decode user response: %v", ErrServiceUnavailable, err)
	}
	if customer.CPF == "" {
		customer.CPF = cpf
	}

	return &customer, nil
}
