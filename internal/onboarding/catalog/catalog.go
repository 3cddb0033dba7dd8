// Package catalog loads the offers shown during onboarding: service bundles,
// POS models, payment gateway plans, pricing plans, business categories,
// negotiation offers and the representative assigned on completion.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Offer is one selectable plan or product.
type Offer struct {
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
}

// Service maps a service-selection label to its bundle.
type Service struct {
	Type  domain.ServiceType `yaml:"type"`
	Label string             `yaml:"label"`
}

// Catalog is the full offer set.
type Catalog struct {
	Services          []Service `yaml:"services"`
	POSModels         []Offer   `yaml:"pos_models"`
	PGPlans           []Offer   `yaml:"pg_plans"`
	PricingPlans      []Offer   `yaml:"pricing_plans"`
	Categories        []string  `yaml:"categories"`
	NegotiationOffers []string  `yaml:"negotiation_offers"`
	Representative    struct {
		Name   string `yaml:"name"`
		Mobile string `yaml:"mobile"`
	} `yaml:"representative"`
	SupportEmail string `yaml:"support_email"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file. An empty path yields the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	switch {
	case len(c.Services) == 0:
		return fmt.Errorf("catalog: no services")
	case len(c.POSModels) == 0:
		return fmt.Errorf("catalog: no pos_models")
	case len(c.PGPlans) == 0:
		return fmt.Errorf("catalog: no pg_plans")
	case len(c.PricingPlans) == 0:
		return fmt.Errorf("catalog: no pricing_plans")
	case len(c.Categories) == 0:
		return fmt.Errorf("catalog: no categories")
	case len(c.NegotiationOffers) == 0:
		return fmt.Errorf("catalog: no negotiation_offers")
	case c.Representative.Name == "":
		return fmt.Errorf("catalog: representative name is required")
	}

	for _, s := range c.Services {
		switch s.Type {
		case domain.ServicePaymentGateway, domain.ServicePOSMachine, domain.ServiceBoth:
		default:
			return fmt.Errorf("catalog: unknown service type %q", s.Type)
		}
	}

	// Option labels are matched by exact string, so a label may appear once
	// per list.
	lists := map[string][]string{
		"services":      serviceLabels(c.Services),
		"pos_models":    offerLabels(c.POSModels),
		"pg_plans":      offerLabels(c.PGPlans),
		"pricing_plans": offerLabels(c.PricingPlans),
		"categories":    c.Categories,
	}
	for name, labels := range lists {
		seen := make(map[string]bool, len(labels))
		for _, l := range labels {
			if strings.TrimSpace(l) == "" {
				return fmt.Errorf("catalog: empty label in %s", name)
			}
			if seen[l] {
				return fmt.Errorf("catalog: duplicate label %q in %s", l, name)
			}
			seen[l] = true
		}
	}
	return nil
}

// ServiceLabels lists the service-selection labels in catalog order.
func (c *Catalog) ServiceLabels() []string { return serviceLabels(c.Services) }

// POSLabels lists the POS model labels.
func (c *Catalog) POSLabels() []string { return offerLabels(c.POSModels) }

// PGLabels lists the payment gateway plan labels.
func (c *Catalog) PGLabels() []string { return offerLabels(c.PGPlans) }

// PricingLabels lists the pricing plan labels.
func (c *Catalog) PricingLabels() []string { return offerLabels(c.PricingPlans) }

// ServiceFor resolves a service label.
func (c *Catalog) ServiceFor(label string) (domain.ServiceType, bool) {
	for _, s := range c.Services {
		if s.Label == label {
			return s.Type, true
		}
	}
	return "", false
}

// Category resolves free text to a listed category, ignoring case and
// surrounding spaces.
func (c *Catalog) Category(text string) (string, bool) {
	text = strings.TrimSpace(text)
	for _, cat := range c.Categories {
		if strings.EqualFold(cat, text) {
			return cat, true
		}
	}
	return "", false
}

// Offer returns the negotiation offer for round n (1-based). Rounds past the
// end of the ladder repeat the final offer.
func (c *Catalog) Offer(round int) string {
	if round < 1 {
		round = 1
	}
	if round > len(c.NegotiationOffers) {
		round = len(c.NegotiationOffers)
	}
	return c.NegotiationOffers[round-1]
}

// Rep returns the representative assigned to completed applications.
func (c *Catalog) Rep() domain.Representative {
	return domain.Representative{Name: c.Representative.Name, Mobile: c.Representative.Mobile}
}

// Describe renders a bulleted list of offers with their descriptions.
func Describe(offers []Offer) string {
	var b strings.Builder
	for _, o := range offers {
		fmt.Fprintf(&b, "• %s: %s\n", o.Label, o.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func serviceLabels(services []Service) []string {
	out := make([]string, len(services))
	for i, s := range services {
		out[i] = s.Label
	}
	return out
}

func offerLabels(offers []Offer) []string {
	out := make([]string, len(offers))
	for i, o := range offers {
		out[i] = o.Label
	}
	return out
}
