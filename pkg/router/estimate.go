package router

import (
	"github.com/shopspring/decimal"
)

var million = decimal.NewFromInt(1_000_000)

// EstimateConfig controls the pre-flight cost heuristic. True output
// length is unknown before execution, so the estimate assumes output
// proportional to input with a floor for tiny or empty inputs.
type EstimateConfig struct {
	// AssumedOutputRatio is the heuristic multiplier applied to input
	// size to guess output size.
	AssumedOutputRatio float64

	// MinAssumedOutputTokens is the output-size floor, so that a zero
	// or tiny input still produces an output-only estimate.
	MinAssumedOutputTokens int
}

// DefaultEstimateConfig returns the built-in estimate heuristic.
func DefaultEstimateConfig() EstimateConfig {
	return EstimateConfig{
		AssumedOutputRatio:     0.5,
		MinAssumedOutputTokens: 256,
	}
}

// AssumedOutputTokens returns the guessed output size for an input size.
func (c EstimateConfig) AssumedOutputTokens(inputSize int) int {
	assumed := int(float64(inputSize) * c.AssumedOutputRatio)
	if assumed < c.MinAssumedOutputTokens {
		assumed = c.MinAssumedOutputTokens
	}
	return assumed
}

// EstimateCost computes the pre-flight cost of running a task on a
// tier. It is pure: no backend is ever invoked, so callers (notably the
// budget controller and UI pre-flight displays) can call it freely.
func EstimateCost(tier *Tier, inputSize int, cfg EstimateConfig) decimal.Decimal {
	inputCost := decimal.NewFromInt(int64(inputSize)).
		Mul(tier.InputPricePerMillion).
		Div(million)

	assumedOutput := cfg.AssumedOutputTokens(inputSize)
	outputCost := decimal.NewFromInt(int64(assumedOutput)).
		Mul(tier.OutputPricePerMillion).
		Div(million)

	return inputCost.Add(outputCost)
}

// ActualCost computes the real cost of an executed task from the token
// usage the backend reported.
func ActualCost(tier *Tier, tokensIn, tokensOut int) decimal.Decimal {
	inputCost := decimal.NewFromInt(int64(tokensIn)).
		Mul(tier.InputPricePerMillion).
		Div(million)
	outputCost := decimal.NewFromInt(int64(tokensOut)).
		Mul(tier.OutputPricePerMillion).
		Div(million)
	return inputCost.Add(outputCost)
}
