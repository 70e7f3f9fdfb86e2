package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidGasAmount = errors.New("invalid gas amount")

// GasAmount is a fee amount in a chain's native unit, e.g. "0.002 FLOW".
type GasAmount struct {
	Amount decimal.Decimal
	Unit   string
}

// ParseGasAmount parses "<decimal> <UNIT>" or a bare decimal.
func ParseGasAmount(s string) (GasAmount, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return GasAmount{}, fmt.Errorf("%w: %q", ErrInvalidGasAmount, s)
	}

	amount, err := decimal.NewFromString(fields[0])
	if err != nil {
		return GasAmount{}, fmt.Errorf("%w: %q: %w", ErrInvalidGasAmount, s, err)
	}

	if amount.IsNegative() {
		return GasAmount{}, fmt.Errorf("%w: negative amount %q", ErrInvalidGasAmount, s)
	}

	gas := GasAmount{Amount: amount}
	if len(fields) == 2 {
		gas.Unit = fields[1]
	}

	return gas, nil
}

// MustParseGasAmount is like ParseGasAmount but panics on error. Intended for fixtures.
func MustParseGasAmount(s string) GasAmount {
	gas, err := ParseGasAmount(s)
	if err != nil {
		panic(err)
	}

	return gas
}

func (g GasAmount) String() string {
	if g.Unit == "" {
		return g.Amount.String()
	}

	return g.Amount.String() + " " + g.Unit
}

// IsZero reports whether the amount is zero.
func (g GasAmount) IsZero() bool {
	return g.Amount.IsZero()
}

// Add sums two amounts. The receiver's unit wins unless it is empty.
func (g GasAmount) Add(other GasAmount) GasAmount {
	unit := g.Unit
	if unit == "" {
		unit = other.Unit
	}

	return GasAmount{Amount: g.Amount.Add(other.Amount), Unit: unit}
}

func (g GasAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

func (g *GasAmount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseGasAmount(s)
	if err != nil {
		return err
	}

	*g = parsed

	return nil
}

// NodeEstimate is the per-node cost and risk input to aggregation.
type NodeEstimate struct {
	Chain       string    `json:"chain,omitempty"`
	Gas         GasAmount `json:"gas"`
	SuccessRate float64   `json:"success_rate"`
	DurationMs  int64     `json:"duration_ms"`
}

// PlanEstimate is the aggregated cost and risk of a plan.
type PlanEstimate struct {
	TotalGasByChain     map[string]GasAmount `json:"total_gas_by_chain"`
	CombinedSuccessRate float64              `json:"combined_success_rate"`
	EstimatedDurationMs int64                `json:"estimated_duration_ms"`
	StageDurationsMs    []int64              `json:"stage_durations_ms"`
}

// GasSummary renders the per-chain totals sorted by chain and joined with " + ".
func (e PlanEstimate) GasSummary() string {
	chains := make([]string, 0, len(e.TotalGasByChain))
	for chain := range e.TotalGasByChain {
		chains = append(chains, chain)
	}

	sort.Strings(chains)

	parts := make([]string, 0, len(chains))
	for _, chain := range chains {
		parts = append(parts, e.TotalGasByChain[chain].String())
	}

	return strings.Join(parts, " + ")
}

// SuccessPercent returns the combined success rate on a 0-100 scale.
func (e PlanEstimate) SuccessPercent() float64 {
	return e.CombinedSuccessRate * 100
}
