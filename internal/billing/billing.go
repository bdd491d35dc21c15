// internal/billing/billing.go
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"assignment-service/internal/common/config"
	"assignment-service/internal/common/errors"
	commonhttp "assignment-service/internal/common/http"
	"assignment-service/internal/common/logger"
)

// Decision is the billing gate's answer for one client.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Gate is consulted before batch generation is attempted. The generator
// itself never overrides a denial.
type Gate interface {
	CanCreateProject(ctx context.Context, clientID string) (*Decision, error)
	IncrementUsage(ctx context.Context, clientID string) error
}

// HTTPGate talks to the external billing service.
type HTTPGate struct {
	client  *commonhttp.Client
	baseURL string
	logger  logger.Logger
}

func NewHTTPGate(cfg *config.BillingConfig, log logger.Logger) *HTTPGate {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPGate{
		client:  commonhttp.NewClient(timeout, cfg.APIKey),
		baseURL: cfg.BaseURL,
		logger:  log.WithFields(map[string]interface{}{"component": "billing-gate"}),
	}
}

func (g *HTTPGate) CanCreateProject(ctx context.Context, clientID string) (*Decision, error) {
	url := fmt.Sprintf("%s/v1/clients/%s/can-create-project", g.baseURL, clientID)
	resp, err := g.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("billing gate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NewNotFoundError("client", clientID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("billing gate returned status %d", resp.StatusCode)
	}

	var decision Decision
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return nil, fmt.Errorf("decode billing response: %w", err)
	}

	if !decision.Allowed {
		g.logger.Info("project creation denied by billing", map[string]interface{}{
			"client_id": clientID,
			"reason":    decision.Reason,
		})
	}
	return &decision, nil
}

func (g *HTTPGate) IncrementUsage(ctx context.Context, clientID string) error {
	url := fmt.Sprintf("%s/v1/clients/%s/usage", g.baseURL, clientID)
	resp, err := g.client.PostJSON(ctx, url, map[string]string{"event": "batch_generated"})
	if err != nil {
		return fmt.Errorf("billing usage request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("billing usage returned status %d", resp.StatusCode)
	}
	return nil
}
