package types

import (
	"fmt"
	"strings"
)

type PriorityLevel string

const (
	PriorityLow     PriorityLevel = "low"
	PriorityMedium  PriorityLevel = "medium"
	PriorityHigh    PriorityLevel = "high"
	PriorityExtreme PriorityLevel = "extreme"
)

type PriorityConfig struct {
	ComputeUnits uint32 // Number of compute units
	PriorityFee  uint64 // Priority fee in micro-lamports per compute unit
}

var priorityProfiles = map[PriorityLevel]PriorityConfig{
	PriorityLow:     {ComputeUnits: 200_000, PriorityFee: 1_000},
	PriorityMedium:  {ComputeUnits: 400_000, PriorityFee: 5_000},
	PriorityHigh:    {ComputeUnits: 800_000, PriorityFee: 10_000},
	PriorityExtreme: {ComputeUnits: 1_000_000, PriorityFee: 50_000},
}

// PriorityLevels lists the tiers in ascending order.
var PriorityLevels = []PriorityLevel{PriorityLow, PriorityMedium, PriorityHigh, PriorityExtreme}

// ParsePriorityLevel accepts a tier name in any case.
func ParsePriorityLevel(s string) (PriorityLevel, error) {
	level := PriorityLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := priorityProfiles[level]; !ok {
		return "", fmt.Errorf("unknown priority level: %s", s)
	}
	return level, nil
}

// Config returns the compute budget profile of the tier.
func (l PriorityLevel) Config() (PriorityConfig, bool) {
	cfg, ok := priorityProfiles[l]
	return cfg, ok
}

// FeeLamports is the total priority fee the tier pays for a fully used
// compute budget: units × micro-lamports / 1e6.
func (l PriorityLevel) FeeLamports() uint64 {
	cfg, ok := priorityProfiles[l]
	if !ok {
		return 0
	}
	return uint64(cfg.ComputeUnits) * cfg.PriorityFee / 1_000_000
}
