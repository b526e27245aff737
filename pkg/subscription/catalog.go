package subscription

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed plans.default.yaml
var defaultCatalogYAML []byte

// Plan maps a plan identifier to its provider price and products.
type Plan struct {
	ID         string   `yaml:"id" json:"id"`
	Name       string   `yaml:"name" json:"name"`
	PriceID    string   `yaml:"price_id" json:"price_id,omitempty"`
	ProductIDs []string `yaml:"product_ids" json:"-"`
}

type catalogFile struct {
	DefaultPlan string `yaml:"default_plan"`
	TrialDays   int    `yaml:"trial_days"`
	Plans       []Plan `yaml:"plans"`
}

// Catalog is the injected plan mapping used by checkout and reconciliation.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	defaultPlan string
	trialDays   int
	plans       map[string]Plan
	order       []string
	byProduct   map[string]string
	byPrice     map[string]string
}

// NewCatalog validates plans and builds the lookup indexes. trialDays of
// zero means DefaultTrialDays.
func NewCatalog(defaultPlan string, trialDays int, plans ...Plan) (*Catalog, error) {
	if trialDays < 0 {
		return nil, fmt.Errorf("%w: negative trial days %d", ErrInvalidCatalog, trialDays)
	}
	if trialDays == 0 {
		trialDays = DefaultTrialDays
	}

	c := &Catalog{
		defaultPlan: defaultPlan,
		trialDays:   trialDays,
		plans:       make(map[string]Plan, len(plans)),
		byProduct:   make(map[string]string),
		byPrice:     make(map[string]string),
	}
	for _, p := range plans {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("%w: plan without id", ErrInvalidCatalog)
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %q", ErrInvalidCatalog, p.ID)
		}
		for _, prod := range p.ProductIDs {
			if owner, dup := c.byProduct[prod]; dup {
				return nil, fmt.Errorf("%w: product %q mapped to %q and %q", ErrInvalidCatalog, prod, owner, p.ID)
			}
			c.byProduct[prod] = p.ID
		}
		if p.PriceID != "" {
			c.byPrice[p.PriceID] = p.ID
		}
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	if _, ok := c.plans[defaultPlan]; !ok {
		return nil, fmt.Errorf("%w: default plan %q is not defined", ErrInvalidCatalog, defaultPlan)
	}
	return c, nil
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	return NewCatalog(f.DefaultPlan, f.TrialDays, f.Plans...)
}

// LoadCatalog reads the catalog at path, or the built-in catalog when path
// is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlan, err)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) DefaultPlan() string { return c.defaultPlan }

func (c *Catalog) TrialDays() int { return c.trialDays }

// Plans returns the plans in declaration order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		p := c.plans[id]
		p.ProductIDs = slices.Clone(p.ProductIDs)
		out = append(out, p)
	}
	return out
}

func (c *Catalog) Plan(id string) (Plan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// PlanFor resolves the plan for a purchased product, falling back to the
// price id and then to the default plan.
func (c *Catalog) PlanFor(productID, priceID string) string {
	if id, ok := c.byProduct[productID]; ok && productID != "" {
		return id
	}
	if id, ok := c.byPrice[priceID]; ok && priceID != "" {
		return id
	}
	return c.defaultPlan
}

// PriceFor returns the provider price for a plan.
func (c *Catalog) PriceFor(planID string) (string, error) {
	p, ok := c.plans[planID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrPlanNotFound, planID)
	}
	if p.PriceID == "" {
		return "", fmt.Errorf("%w: %q", ErrPlanHasNoPrice, planID)
	}
	return p.PriceID, nil
}

// AccessPolicy returns the derivation policy matching the catalog's trial
// length.
func (c *Catalog) AccessPolicy() AccessPolicy {
	return AccessPolicy{DefaultTrialDays: c.trialDays}
}
