package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/resilience"
	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Customer store (implements port.CustomerStore)
//
//	merchant_customers          one row per lower-cased email
//	merchant_customer_history   append-only checkpoint log
// ============================================================

// supabaseCustomer maps merchant_customers columns.
type supabaseCustomer struct {
	ID                     string                  `json:"id"`
	Email                  string                  `json:"email"`
	Name                   string                  `json:"name"`
	BusinessName           string                  `json:"business_name"`
	MobileNumber           string                  `json:"mobile_number"`
	ServiceType            string                  `json:"service_type"`
	SelectedPOSModel       string                  `json:"selected_pos_model"`
	SelectedPGPlan         string                  `json:"selected_pg_plan"`
	SelectedPricingPlan    string                  `json:"selected_pricing_plan"`
	BusinessCategory       string                  `json:"business_category"`
	AnnualTurnover         string                  `json:"annual_turnover"`
	OnboardingStep         string                  `json:"onboarding_step"`
	LastVisit              time.Time               `json:"last_visit"`
	IsOnboardingComplete   bool                    `json:"is_onboarding_complete"`
	AssignedRepresentative *odomain.Representative `json:"assigned_representative"`
	KYC                    *odomain.KYCRecord      `json:"kyc"`
	CaseNumber             string                  `json:"case_number"`
}

type supabaseHistory struct {
	Email     string            `json:"email"`
	Step      string            `json:"step"`
	CreatedAt time.Time         `json:"created_at"`
	Data      map[string]string `json:"data,omitempty"`
}

// CustomerStore persists checkpoints in Supabase.
type CustomerStore struct {
	client *Client
	now    func() time.Time
}

// NewCustomerStore creates the store on top of c.
func NewCustomerStore(c *Client) *CustomerStore {
	return &CustomerStore{client: c, now: time.Now}
}

// Upsert writes c, keeping the ID of an existing row. c.LastVisit is stamped.
func (s *CustomerStore) Upsert(ctx context.Context, c *odomain.StoredCustomer) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertCustomer")
	defer span.End()

	email := normalizeEmail(c.Email)
	if email == "" {
		return &domain.ErrValidation{Field: "email", Message: "required"}
	}
	span.SetAttributes(attribute.String("customer.email", email))

	existing, err := s.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	id := c.ID
	if existing != nil {
		id = existing.ID
	}
	if id == "" {
		id = s.NewID()
	}

	now := s.now().UTC()
	row := supabaseCustomer{
		ID:                     id,
		Email:                  email,
		Name:                   c.Name,
		BusinessName:           c.BusinessName,
		MobileNumber:           c.MobileNumber,
		ServiceType:            string(c.ServiceType),
		SelectedPOSModel:       c.SelectedPOSModel,
		SelectedPGPlan:         c.SelectedPGPlan,
		SelectedPricingPlan:    c.SelectedPricingPlan,
		BusinessCategory:       c.BusinessCategory,
		AnnualTurnover:         c.AnnualTurnover,
		OnboardingStep:         string(c.OnboardingStep),
		LastVisit:              now,
		IsOnboardingComplete:   c.IsOnboardingComplete,
		AssignedRepresentative: c.AssignedRepresentative,
		KYC:                    c.KYC,
		CaseNumber:             c.CaseNumber,
	}

	_, err = resilience.Execute(ctx, s.client.cb, s.client.cfg, "supabase/customers", func() ([]byte, error) {
		return s.client.doPost(ctx, "merchant_customers", "on_conflict=email",
			"resolution=merge-duplicates,return=minimal", row)
	})
	if err != nil {
		return err
	}
	c.LastVisit = now
	return nil
}

// FindByEmail returns the customer with its history, or (nil, nil).
func (s *CustomerStore) FindByEmail(ctx context.Context, email string) (*odomain.StoredCustomer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindCustomerByEmail")
	defer span.End()

	email = normalizeEmail(email)
	return s.findOne(ctx, fmt.Sprintf("merchant_customers?email=eq.%s&limit=1", url.QueryEscape(email)))
}

// FindByMobile returns the most recently visited customer with mobile.
func (s *CustomerStore) FindByMobile(ctx context.Context, mobile string) (*odomain.StoredCustomer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindCustomerByMobile")
	defer span.End()

	if mobile == "" {
		return nil, nil
	}
	return s.findOne(ctx, fmt.Sprintf("merchant_customers?mobile_number=eq.%s&order=last_visit.desc&limit=1", url.QueryEscape(mobile)))
}

func (s *CustomerStore) findOne(ctx context.Context, path string) (*odomain.StoredCustomer, error) {
	rows, err := resilience.Execute(ctx, s.client.cb, s.client.cfg, "supabase/customers", func() ([]supabaseCustomer, error) {
		body, err := s.client.doRequest(ctx, http.MethodGet, path)
		if err != nil || body == nil {
			return nil, err
		}
		var rows []supabaseCustomer
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode merchant_customers: %w", err)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	r := rows[0]
	c := &odomain.StoredCustomer{
		ID:                     r.ID,
		Name:                   r.Name,
		BusinessName:           r.BusinessName,
		Email:                  r.Email,
		MobileNumber:           r.MobileNumber,
		ServiceType:            odomain.ServiceType(r.ServiceType),
		SelectedPOSModel:       r.SelectedPOSModel,
		SelectedPGPlan:         r.SelectedPGPlan,
		SelectedPricingPlan:    r.SelectedPricingPlan,
		BusinessCategory:       r.BusinessCategory,
		AnnualTurnover:         r.AnnualTurnover,
		OnboardingStep:         odomain.Step(r.OnboardingStep),
		LastVisit:              r.LastVisit,
		IsOnboardingComplete:   r.IsOnboardingComplete,
		AssignedRepresentative: r.AssignedRepresentative,
		KYC:                    r.KYC,
		CaseNumber:             r.CaseNumber,
	}

	history, err := s.history(ctx, r.Email)
	if err != nil {
		return nil, err
	}
	c.ConversationHistory = history
	return c, nil
}

func (s *CustomerStore) history(ctx context.Context, email string) ([]odomain.HistoryEntry, error) {
	path := fmt.Sprintf("merchant_customer_history?email=eq.%s&order=id.asc", url.QueryEscape(email))
	rows, err := resilience.Execute(ctx, s.client.cb, s.client.cfg, "supabase/history", func() ([]supabaseHistory, error) {
		body, err := s.client.doRequest(ctx, http.MethodGet, path)
		if err != nil || body == nil {
			return nil, err
		}
		var rows []supabaseHistory
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode merchant_customer_history: %w", err)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}

	history := make([]odomain.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		history = append(history, odomain.HistoryEntry{
			Step:      odomain.Step(r.Step),
			Timestamp: r.CreatedAt,
			Data:      r.Data,
		})
	}
	return history, nil
}

// AppendHistory inserts one history row. The customer must exist.
func (s *CustomerStore) AppendHistory(ctx context.Context, email string, entry odomain.HistoryEntry) error {
	ctx, span := tracer.Start(ctx, "Supabase.AppendHistory")
	defer span.End()

	email = normalizeEmail(email)
	existing, err := s.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing == nil {
		return &domain.ErrNotFound{Resource: "customer", ID: email}
	}

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	row := supabaseHistory{Email: email, Step: string(entry.Step), CreatedAt: ts.UTC(), Data: entry.Data}

	_, err = resilience.Execute(ctx, s.client.cb, s.client.cfg, "supabase/history", func() ([]byte, error) {
		return s.client.doPost(ctx, "merchant_customer_history", "", "return=minimal", row)
	})
	return err
}

// NewID returns CUST_<unix ms>_<9 random chars>.
func (s *CustomerStore) NewID() string {
	return fmt.Sprintf("CUST_%d_%s", s.now().UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
}

// Ping issues a one-row select against merchant_customers.
func (s *CustomerStore) Ping(ctx context.Context) error {
	_, err := s.client.doRequest(ctx, http.MethodGet, "merchant_customers?select=email&limit=1")
	return err
}

func (s *CustomerStore) Close() error { return nil }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
