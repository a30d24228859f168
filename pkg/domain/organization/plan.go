package organization

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// PlanTier identifies a billing plan.
type PlanTier string

const (
	PlanFree       PlanTier = "FREE"
	PlanPro        PlanTier = "PRO"
	PlanBusiness   PlanTier = "BUSINESS"
	PlanEnterprise PlanTier = "ENTERPRISE"
)

// Unlimited is the sentinel limit value that bypasses quota checks.
const Unlimited = -1

// PlanLimits holds the quota limits for one plan tier.
type PlanLimits struct {
	MonthlyScanLimit int `yaml:"monthly_scan_limit"`
	MaxTargets       int `yaml:"max_targets"`
}

//go:embed plans.yaml
var plansYAML []byte

var planTable map[PlanTier]PlanLimits

func init() {
	var doc struct {
		Plans map[PlanTier]PlanLimits `yaml:"plans"`
	}
	if err := yaml.Unmarshal(plansYAML, &doc); err != nil {
		panic(fmt.Sprintf("organization: parse embedded plans.yaml: %v", err))
	}
	planTable = doc.Plans
}

// Limits returns the quota limits for the tier. Unknown tiers fall back to
// the FREE limits rather than failing open.
func (p PlanTier) Limits() PlanLimits {
	if limits, ok := planTable[p]; ok {
		return limits
	}
	return planTable[PlanFree]
}

// MonthlyScanLimit returns the tier's monthly scan allowance.
func (p PlanTier) MonthlyScanLimit() int {
	return p.Limits().MonthlyScanLimit
}

// HasQuotaRemaining reports whether an organization on this tier with the
// given usage may create another scan.
func (p PlanTier) HasQuotaRemaining(used int) bool {
	limit := p.MonthlyScanLimit()
	if limit == Unlimited {
		return true
	}
	return used < limit
}
