package router

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/tombee/maestro/pkg/errors"
)

// Supported tier names, cheapest first.
const (
	TierNano = "nano"
	TierMini = "mini"
	TierFull = "full"
)

// Tier is a priced model-serving class. Tiers are statically configured
// and totally ordered by price; a tenant's plan decides which tiers it
// may use, the task's complexity decides which tier it wants.
type Tier struct {
	// Name identifies the tier (nano, mini, full).
	Name string

	// Model is the model identifier passed to backends serving this tier.
	Model string

	// InputPricePerMillion is the cost per million input tokens in USD.
	InputPricePerMillion decimal.Decimal

	// OutputPricePerMillion is the cost per million output tokens in USD.
	OutputPricePerMillion decimal.Decimal

	// Restricted marks tiers only available to plans that allow them.
	Restricted bool

	// SupportsReasoning indicates the tier honors reasoning-effort hints.
	SupportsReasoning bool

	// PrimaryBackend is the backend ID tried first.
	PrimaryBackend string

	// SecondaryBackend is the fallback backend ID for the same tier,
	// a different provider rather than a cheaper model.
	SecondaryBackend string
}

// Tiers is the static tier table, ordered cheapest first.
type Tiers []Tier

// complexityTier is the fixed complexity-to-tier lookup.
var complexityTier = map[Complexity]string{
	ComplexitySimple:   TierNano,
	ComplexityBalanced: TierMini,
	ComplexityComplex:  TierFull,
}

// TierForComplexity returns the tier name a complexity maps to.
func TierForComplexity(c Complexity) (string, error) {
	name, ok := complexityTier[c]
	if !ok {
		return "", &pkgerrors.ValidationError{
			Field:   "complexity",
			Message: "unknown complexity " + string(c),
		}
	}
	return name, nil
}

// Get returns the tier with the given name.
func (ts Tiers) Get(name string) (*Tier, error) {
	for i := range ts {
		if ts[i].Name == name {
			return &ts[i], nil
		}
	}
	return nil, &pkgerrors.NotFoundError{Resource: "tier", ID: name}
}

// ForComplexity resolves a complexity to its configured tier.
func (ts Tiers) ForComplexity(c Complexity) (*Tier, error) {
	name, err := TierForComplexity(c)
	if err != nil {
		return nil, err
	}
	return ts.Get(name)
}

// Validate checks the tier table: all three tiers present, backends
// wired, and prices strictly increasing from nano to full.
func (ts Tiers) Validate() error {
	for _, required := range []string{TierNano, TierMini, TierFull} {
		tier, err := ts.Get(required)
		if err != nil {
			return &pkgerrors.ConfigError{
				Key:    "tiers." + required,
				Reason: "tier is not configured",
			}
		}
		if tier.PrimaryBackend == "" || tier.SecondaryBackend == "" {
			return &pkgerrors.ConfigError{
				Key:    "tiers." + required,
				Reason: "tier must declare primary and secondary backends",
			}
		}
		if tier.InputPricePerMillion.IsNegative() || tier.OutputPricePerMillion.IsNegative() {
			return &pkgerrors.ConfigError{
				Key:    "tiers." + required,
				Reason: "tier prices cannot be negative",
			}
		}
	}

	// Total price ordering: nano < mini < full on input price.
	nano, _ := ts.Get(TierNano)
	mini, _ := ts.Get(TierMini)
	full, _ := ts.Get(TierFull)
	if !nano.InputPricePerMillion.LessThan(mini.InputPricePerMillion) ||
		!mini.InputPricePerMillion.LessThan(full.InputPricePerMillion) {
		return &pkgerrors.ConfigError{
			Key:    "tiers",
			Reason: "tiers must be strictly ordered by price: nano < mini < full",
		}
	}

	return nil
}

// DefaultTiers returns a built-in tier table usable without
// configuration. Prices are USD per million tokens.
func DefaultTiers() Tiers {
	return Tiers{
		{
			Name:                  TierNano,
			Model:                 "gpt-5-nano",
			InputPricePerMillion:  decimal.RequireFromString("0.05"),
			OutputPricePerMillion: decimal.RequireFromString("0.40"),
			PrimaryBackend:        "openai-nano",
			SecondaryBackend:      "bedrock-nano",
		},
		{
			Name:                  TierMini,
			Model:                 "gpt-5-mini",
			InputPricePerMillion:  decimal.RequireFromString("0.25"),
			OutputPricePerMillion: decimal.RequireFromString("2.00"),
			PrimaryBackend:        "openai-mini",
			SecondaryBackend:      "bedrock-mini",
		},
		{
			Name:                  TierFull,
			Model:                 "gpt-5",
			InputPricePerMillion:  decimal.RequireFromString("1.25"),
			OutputPricePerMillion: decimal.RequireFromString("10.00"),
			Restricted:            true,
			SupportsReasoning:     true,
			PrimaryBackend:        "openai-full",
			SecondaryBackend:      "bedrock-full",
		},
	}
}
