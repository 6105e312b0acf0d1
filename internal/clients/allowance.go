package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tip-gate-backend/internal/models"
)

// AllowanceConfig configures an AllowanceClient
type AllowanceConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	HTTPClient        HTTPDoer
}

// AllowanceClient reads daily tip allowances from the ledger API
type AllowanceClient struct {
	baseURL string
	getter  *jsonGetter
}

// NewAllowanceClient creates a new allowance client
func NewAllowanceClient(cfg AllowanceConfig) *AllowanceClient {
	return &AllowanceClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		getter:  newJSONGetter("ledger", cfg.HTTPClient, cfg.Timeout, cfg.RequestsPerSecond, cfg.Burst),
	}
}

type allowanceRecord struct {
	TipAllowance json.RawMessage `json:"tip_allowance"`
}

// GetAllowance returns the current daily tip allowance of fid. ok is false
// when the ledger has no allowance record for fid.
func (c *AllowanceClient) GetAllowance(ctx context.Context, fid models.FID) (allowance float64, ok bool, err error) {
	q := url.Values{}
	q.Set("fid", fid.String())

	var records []allowanceRecord
	if err := c.getter.get(ctx, c.baseURL+"/allowances?"+q.Encode(), &records); err != nil {
		return 0, false, fmt.Errorf("failed to get allowance: %w", err)
	}
	if len(records) == 0 {
		return 0, false, nil
	}

	raw := strings.Trim(string(records[0].TipAllowance), `"`)
	allowance, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("ledger: malformed tip_allowance %q: %w", raw, err)
	}
	return allowance, true, nil
}
