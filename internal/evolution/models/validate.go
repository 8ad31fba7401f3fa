package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	dErrors "rwaledger/pkg/domain-errors"
)

// DefaultMaxValuationDelta caps a single revaluation at ±50% of the prior value.
const DefaultMaxValuationDelta = 0.5

// Validator checks a proposed payload against the chain it would join.
type Validator func(data map[string]any, chain *Chain, maxValuationDelta float64) error

var validators = map[TokenType]Validator{
	TokenValuation:    validateValuation,
	TokenCompliance:   requireField("jurisdiction"),
	TokenVerification: requireField("verifierId"),
	TokenOwner:        requireField("owner"),
}

// ValidateData applies the rule for t. Types without a rule always pass.
func ValidateData(t TokenType, data map[string]any, chain *Chain, maxValuationDelta float64) error {
	v, ok := validators[t]
	if !ok {
		return nil
	}
	return v(data, chain, maxValuationDelta)
}

func validateValuation(data map[string]any, chain *Chain, maxDelta float64) error {
	raw, ok := data["value"]
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "valuation requires a value")
	}
	next, err := toFloat(raw)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "valuation value must be numeric")
	}
	if next < 0 {
		return dErrors.New(dErrors.CodeValidation, "valuation value cannot be negative")
	}
	if maxDelta <= 0 {
		maxDelta = DefaultMaxValuationDelta
	}
	if chain == nil {
		return nil
	}
	prior := chain.LatestOfType(TokenValuation)
	if prior == nil {
		return nil
	}
	prev, err := toFloat(prior.Data["value"])
	if err != nil || prev < 0 {
		return dErrors.New(dErrors.CodeValidation, "current valuation is not a finite non-negative number")
	}
	if delta := math.Abs(next - prev); delta > prev*maxDelta {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf(
			"valuation change from %s to %s exceeds the %.0f%% limit",
			strconv.FormatFloat(prev, 'f', -1, 64), strconv.FormatFloat(next, 'f', -1, 64), maxDelta*100))
	}
	return nil
}

func requireField(field string) Validator {
	return func(data map[string]any, _ *Chain, _ float64) error {
		v, ok := data[field].(string)
		if !ok || strings.TrimSpace(v) == "" {
			return dErrors.New(dErrors.CodeValidation, field+" is required")
		}
		return nil
	}
}

// toFloat accepts numeric values and numeric strings. NaN and ±Inf are
// rejected so the delta cap cannot be bypassed.
func toFloat(v any) (float64, error) {
	f, err := parseNumber(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %v", v)
	}
	return f, nil
}

func parseNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
