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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/maestro/pkg/pipeline"
)

func newRunCommand() *cobra.Command {
	var (
		tenantID   string
		inputs     []string
		inputsFile string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a workflow and stream its progress events",
		Long: `Run starts a multi-stage generation workflow for a tenant and
streams stage progress to stdout until the workflow reaches a terminal
state. The exit code is non-zero unless the workflow completes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowInputs, err := collectInputs(inputs, inputsFile)
			if err != nil {
				return err
			}

			application, err := loadApp()
			if err != nil {
				return err
			}
			defer application.close()

			ctx := cmd.Context()
			workflowID, err := application.service.StartWorkflow(ctx, tenantID, workflowInputs)
			if err != nil {
				return err
			}
			events, unsubscribe := application.service.Subscribe(workflowID)
			defer unsubscribe()

			fmt.Fprintf(cmd.OutOrStdout(), "workflow %s started\n", workflowID)

			for event := range events {
				if jsonOutput {
					line, err := json.Marshal(event)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(line))
				} else {
					printEvent(cmd, event)
				}
			}

			state, err := application.service.GetWorkflow(ctx, workflowID)
			if err != nil {
				return err
			}
			if state.Status != pipeline.StatusCompleted {
				return fmt.Errorf("workflow did not complete: %s", state.Summary())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tenantID, "tenant", "t", "", "Tenant ID to run as (required)")
	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "Workflow input as key=value (repeatable)")
	cmd.Flags().StringVarP(&inputsFile, "inputs-file", "f", "", "YAML file of workflow inputs")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit events as JSON lines")
	cmd.MarkFlagRequired("tenant")

	return cmd
}

// collectInputs merges file-based inputs with key=value flags; flags
// win on conflict.
func collectInputs(pairs []string, path string) (map[string]string, error) {
	inputs := make(map[string]string)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading inputs file: %w", err)
		}
		if err := yaml.Unmarshal(data, &inputs); err != nil {
			return nil, fmt.Errorf("parsing inputs file: %w", err)
		}
	}

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid input %q (expected key=value)", pair)
		}
		inputs[key] = value
	}
	return inputs, nil
}

func printEvent(cmd *cobra.Command, event pipeline.Event) {
	out := cmd.OutOrStdout()
	switch event.Type {
	case pipeline.EventStageProgress:
		fmt.Fprintf(out, "  [%5.1f%%] %s (%dms)\n",
			event.Data["percent_complete"],
			event.Data["stage_name"],
			event.Data["elapsed_ms"])
	default:
		fmt.Fprintf(out, "%s: %s (total cost $%s)\n",
			event.Type,
			event.Data["summary"],
			event.Data["total_cost"])
	}
}
