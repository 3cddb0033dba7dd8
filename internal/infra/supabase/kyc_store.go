package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/resilience"
	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// KYC directory (implements port.KYCDirectory)
// ============================================================

// KYCDirectory reads kyc_records rows keyed by mobile_number. Directors and
// shareholding are jsonb columns.
type KYCDirectory struct {
	client *Client
}

// NewKYCDirectory creates the directory on top of c.
func NewKYCDirectory(c *Client) *KYCDirectory {
	return &KYCDirectory{client: c}
}

// LookupByMobile returns the record for mobile, or (nil, nil).
func (d *KYCDirectory) LookupByMobile(ctx context.Context, mobile string) (*odomain.KYCRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.LookupKYC")
	defer span.End()
	span.SetAttributes(attribute.String("kyc.mobile", mobile))

	path := fmt.Sprintf("kyc_records?mobile_number=eq.%s&limit=1", url.QueryEscape(mobile))
	rows, err := resilience.Execute(ctx, d.client.cb, d.client.cfg, "supabase/kyc", func() ([]odomain.KYCRecord, error) {
		body, err := d.client.doRequest(ctx, http.MethodGet, path)
		if err != nil || body == nil {
			return nil, err
		}
		var rows []odomain.KYCRecord
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode kyc_records: %w", err)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
