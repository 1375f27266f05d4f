// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tombee/maestro/pkg/budget"
	maestroerrors "github.com/tombee/maestro/pkg/errors"
	"github.com/tombee/maestro/pkg/ledger"
	"github.com/tombee/maestro/pkg/pipeline"
	"github.com/tombee/maestro/pkg/router"
)

// BuildTiers materializes the configured tier table, or the built-in
// table when none is configured.
func (c *Config) BuildTiers() (router.Tiers, error) {
	if len(c.Tiers) == 0 {
		return router.DefaultTiers(), nil
	}

	tiers := make(router.Tiers, 0, len(c.Tiers))
	for _, tc := range c.Tiers {
		inputPrice, err := decimal.NewFromString(tc.InputPricePerMillion)
		if err != nil {
			return nil, &maestroerrors.ConfigError{
				Key:    "tiers." + tc.Name + ".input_price_per_million",
				Reason: fmt.Sprintf("invalid decimal %q", tc.InputPricePerMillion),
				Cause:  err,
			}
		}
		outputPrice, err := decimal.NewFromString(tc.OutputPricePerMillion)
		if err != nil {
			return nil, &maestroerrors.ConfigError{
				Key:    "tiers." + tc.Name + ".output_price_per_million",
				Reason: fmt.Sprintf("invalid decimal %q", tc.OutputPricePerMillion),
				Cause:  err,
			}
		}
		tiers = append(tiers, router.Tier{
			Name:                  tc.Name,
			Model:                 tc.Model,
			InputPricePerMillion:  inputPrice,
			OutputPricePerMillion: outputPrice,
			Restricted:            tc.Restricted,
			SupportsReasoning:     tc.SupportsReasoning,
			PrimaryBackend:        tc.PrimaryBackend,
			SecondaryBackend:      tc.SecondaryBackend,
		})
	}
	if err := tiers.Validate(); err != nil {
		return nil, err
	}
	return tiers, nil
}

// BuildPlans materializes the plan table: the built-in plans with any
// configured overrides applied on top.
func (c *Config) BuildPlans() (budget.Plans, error) {
	overrides := make(budget.Plans, len(c.Plans))
	for name, pc := range c.Plans {
		base, err := budget.BuiltInPlans().Get(name)
		if err != nil {
			// New plan name: start from zero values.
			base = budget.Plan{Name: name}
		}

		if pc.DailyLimit != "" {
			limit, err := decimal.NewFromString(pc.DailyLimit)
			if err != nil {
				return nil, &maestroerrors.ConfigError{
					Key:    "plans." + name + ".daily_limit",
					Reason: fmt.Sprintf("invalid decimal %q", pc.DailyLimit),
					Cause:  err,
				}
			}
			base.DailyLimit = limit
		}
		if pc.MonthlyLimit != "" {
			limit, err := decimal.NewFromString(pc.MonthlyLimit)
			if err != nil {
				return nil, &maestroerrors.ConfigError{
					Key:    "plans." + name + ".monthly_limit",
					Reason: fmt.Sprintf("invalid decimal %q", pc.MonthlyLimit),
					Cause:  err,
				}
			}
			base.MonthlyLimit = limit
		}
		if pc.AllowedTiers != nil {
			base.AllowedTiers = pc.AllowedTiers
		}
		if pc.MaxConcurrentWorkflows != 0 {
			base.MaxConcurrentWorkflows = pc.MaxConcurrentWorkflows
		}
		overrides[name] = base
	}

	plans := budget.BuiltInPlans().Merge(overrides)
	if err := plans.Validate(); err != nil {
		return nil, err
	}
	return plans, nil
}

// ValidateTierAccess cross-checks the materialized plan table against
// the tier table: every allowed tier must exist, and a restricted tier
// cannot be granted by the catch-all default plan. Restricted tiers
// require an explicit tenant-to-plan assignment.
func (c *Config) ValidateTierAccess(tiers router.Tiers, plans budget.Plans) error {
	for name, plan := range plans {
		for _, tierName := range plan.AllowedTiers {
			if _, err := tiers.Get(tierName); err != nil {
				return &maestroerrors.ConfigError{
					Key:    "plans." + name + ".allowed_tiers",
					Reason: fmt.Sprintf("tier %q is not in the tier table", tierName),
				}
			}
		}
	}

	if c.DefaultPlan == "" {
		return nil
	}
	plan, err := plans.Get(c.DefaultPlan)
	if err != nil {
		return &maestroerrors.ConfigError{
			Key:    "default_plan",
			Reason: fmt.Sprintf("unknown plan %q", c.DefaultPlan),
		}
	}
	for _, tierName := range plan.AllowedTiers {
		tier, err := tiers.Get(tierName)
		if err != nil {
			continue
		}
		if tier.Restricted {
			return &maestroerrors.ConfigError{
				Key:    "default_plan",
				Reason: fmt.Sprintf("tier %q is restricted and cannot be granted by catch-all plan %q; assign tenants to that plan explicitly", tierName, c.DefaultPlan),
			}
		}
	}
	return nil
}

// BuildPlanLookup materializes the tenant-to-plan mapping.
func (c *Config) BuildPlanLookup() budget.PlanLookup {
	return budget.StaticPlanLookup{
		Tenants: c.Tenants,
		Default: c.DefaultPlan,
	}
}

// BuildStages materializes the pipeline stage list, or the built-in
// pipeline when none is configured.
func (c *Config) BuildStages() ([]pipeline.StageDefinition, error) {
	if len(c.Stages) == 0 {
		return pipeline.DefaultStages(), nil
	}

	stages := make([]pipeline.StageDefinition, 0, len(c.Stages))
	for _, sc := range c.Stages {
		complexity := router.Complexity(sc.Complexity)
		if !complexity.Valid() {
			return nil, &maestroerrors.ConfigError{
				Key:    "stages." + sc.Name + ".complexity",
				Reason: fmt.Sprintf("unknown complexity %q", sc.Complexity),
			}
		}
		stages = append(stages, pipeline.PromptStage(
			sc.Name,
			complexity,
			pipeline.FailurePolicy(sc.Policy),
			sc.Placeholder,
			sc.Consumes...,
		))
	}
	if err := pipeline.ValidateStages(stages); err != nil {
		return nil, err
	}
	return stages, nil
}

// BuildLedger materializes the configured spend ledger. The caller
// owns closing a SQLite ledger.
func (c *Config) BuildLedger() (ledger.Ledger, func() error, error) {
	switch c.Ledger.Backend {
	case "sqlite":
		sqlLedger, err := ledger.NewSQLiteLedger(c.Ledger.Path)
		if err != nil {
			return nil, nil, err
		}
		return sqlLedger, sqlLedger.Close, nil
	default:
		return ledger.NewMemoryLedger(), func() error { return nil }, nil
	}
}

// BuildRouterConfig materializes router settings.
func (c *Config) BuildRouterConfig() router.Config {
	cfg := router.DefaultConfig()
	cfg.InvokeTimeout = c.Router.InvokeTimeout
	cfg.Estimate = router.EstimateConfig{
		AssumedOutputRatio:     c.Router.AssumedOutputRatio,
		MinAssumedOutputTokens: c.Router.MinAssumedOutputTokens,
	}
	return cfg
}
