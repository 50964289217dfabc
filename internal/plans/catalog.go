package plans

import (
	_ "embed"
	"fmt"

	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Feature names understood by the catalog.
const (
	FeatureBatchAnalysis = "batchAnalysis"
	FeaturePriorityQueue = "priorityQueue"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Plan describes the limits and features bought with a subscription tier.
type Plan struct {
	Tier                 enums.SubscriptionTier `yaml:"tier" json:"tier"`
	Name                 string                 `yaml:"name" json:"name"`
	Description          string                 `yaml:"description" json:"description"`
	MonthlyContractLimit int                    `yaml:"monthly_contract_limit" json:"monthlyContractLimit"`
	MaxFileSizeBytes     int64                  `yaml:"max_file_size_bytes" json:"maxFileSizeBytes"`
	Features             map[string]bool        `yaml:"features" json:"features"`
	ExportFormats        []string               `yaml:"export_formats" json:"exportFormats"`
	AIModel              string                 `yaml:"ai_model" json:"aiModel"`
	Price                decimal.Decimal        `yaml:"-" json:"price"`
	RawPrice             string                 `yaml:"price_usd" json:"-"`
}

// HasFeature reports whether the named flag is enabled; unknown names are disabled.
func (p Plan) HasFeature(name string) bool {
	return p.Features[name]
}

// Catalog is the read-only tier to plan mapping.
type Catalog struct {
	ordered []Plan
	byTier  map[enums.SubscriptionTier]Plan
}

type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	catalog, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded plan catalog invalid: %v", err))
	}
	return catalog
}

// Parse decodes and validates a YAML catalog: every tier exactly once and
// limits that never decrease from one tier to the next.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode plan catalog: %w", err)
	}

	byTier := make(map[enums.SubscriptionTier]Plan, len(file.Plans))
	for _, plan := range file.Plans {
		if !plan.Tier.IsValid() {
			return nil, fmt.Errorf("unknown tier %q in plan catalog", plan.Tier)
		}
		if _, dup := byTier[plan.Tier]; dup {
			return nil, fmt.Errorf("duplicate plan for tier %q", plan.Tier)
		}
		price, err := decimal.NewFromString(plan.RawPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid price for tier %q: %w", plan.Tier, err)
		}
		plan.Price = price
		if plan.Features == nil {
			plan.Features = map[string]bool{}
		}
		byTier[plan.Tier] = plan
	}

	ordered := make([]Plan, 0, len(byTier))
	for _, tier := range enums.OrderedSubscriptionTiers() {
		plan, ok := byTier[tier]
		if !ok {
			return nil, fmt.Errorf("plan catalog missing tier %q", tier)
		}
		if n := len(ordered); n > 0 {
			prev := ordered[n-1]
			if plan.MonthlyContractLimit < prev.MonthlyContractLimit || plan.MaxFileSizeBytes < prev.MaxFileSizeBytes {
				return nil, fmt.Errorf("plan %q has lower limits than %q", plan.Tier, prev.Tier)
			}
		}
		ordered = append(ordered, plan)
	}

	return &Catalog{ordered: ordered, byTier: byTier}, nil
}

// Get returns the plan for tier.
func (c *Catalog) Get(tier enums.SubscriptionTier) (Plan, bool) {
	plan, ok := c.byTier[tier]
	return plan, ok
}

// Plans returns every plan in ascending tier order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// SmallestFitting returns the cheapest tier whose file size limit admits size.
func (c *Catalog) SmallestFitting(size int64) (enums.SubscriptionTier, bool) {
	for _, plan := range c.ordered {
		if size <= plan.MaxFileSizeBytes {
			return plan.Tier, true
		}
	}
	return "", false
}
