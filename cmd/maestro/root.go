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

package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/maestro/internal/config"
	"github.com/tombee/maestro/internal/log"
	"github.com/tombee/maestro/pkg/backend"
	"github.com/tombee/maestro/pkg/budget"
	"github.com/tombee/maestro/pkg/pipeline"
	"github.com/tombee/maestro/pkg/router"
	"github.com/tombee/maestro/pkg/service"
)

var configPath string

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maestro",
		Short: "Maestro - budget-aware LLM task routing and orchestration",
		Long: `Maestro routes text-generation tasks to tiered model backends,
enforces per-tenant spend budgets, and drives multi-stage generation
workflows with streaming progress events.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: built-in defaults)")

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newEstimateCommand())
	cmd.AddCommand(newBudgetCommand())

	return cmd
}

// app bundles the wired application graph for a single command run.
type app struct {
	service *service.Service
	router  *router.Router
	logger  *slog.Logger
	close   func() error
}

// buildApp wires the full graph from configuration: registry, router,
// ledger, budget controller, orchestrator, and service. Backends are
// local simulated clients; production embeds real provider clients via
// the same registry.
func buildApp(cfg *config.Config) (*app, error) {
	logger := log.New(&log.Config{
		Level:     cfg.Log.Level,
		Format:    log.Format(cfg.Log.Format),
		AddSource: cfg.Log.AddSource,
	})

	tiers, err := cfg.BuildTiers()
	if err != nil {
		return nil, err
	}

	registry := backend.NewRegistry()
	for _, tier := range tiers {
		for _, id := range []string{tier.PrimaryBackend, tier.SecondaryBackend} {
			client := &backend.StaticClient{ID: id, Latency: 100 * time.Millisecond}
			if err := registry.Register(client); err != nil {
				return nil, err
			}
		}
	}

	taskRouter, err := router.New(tiers, registry, cfg.BuildRouterConfig(), log.WithComponent(logger, "router"))
	if err != nil {
		return nil, err
	}

	led, closeLedger, err := cfg.BuildLedger()
	if err != nil {
		return nil, err
	}

	plans, err := cfg.BuildPlans()
	if err != nil {
		closeLedger()
		return nil, err
	}
	if err := cfg.ValidateTierAccess(tiers, plans); err != nil {
		closeLedger()
		return nil, err
	}

	controller, err := budget.NewController(plans, cfg.BuildPlanLookup(), led, taskRouter, log.WithComponent(logger, "budget"))
	if err != nil {
		closeLedger()
		return nil, err
	}

	stages, err := cfg.BuildStages()
	if err != nil {
		closeLedger()
		return nil, err
	}

	store := pipeline.NewMemoryStore()
	orchestrator, err := pipeline.NewOrchestrator(stages, taskRouter, controller, store,
		pipeline.NewBroker(log.WithComponent(logger, "broker")), log.WithComponent(logger, "pipeline"))
	if err != nil {
		closeLedger()
		return nil, err
	}

	svc, err := service.New(orchestrator, controller, taskRouter, store, logger)
	if err != nil {
		closeLedger()
		return nil, err
	}

	return &app{
		service: svc,
		router:  taskRouter,
		logger:  logger,
		close:   closeLedger,
	}, nil
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return buildApp(cfg)
}
