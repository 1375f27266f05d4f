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

	"github.com/spf13/cobra"

	"github.com/tombee/maestro/pkg/router"
)

func newEstimateCommand() *cobra.Command {
	var (
		complexity string
		inputSize  int
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the cost of a task without executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := loadApp()
			if err != nil {
				return err
			}
			defer application.close()

			descriptor := router.TaskDescriptor{
				TaskType:   "estimate",
				Complexity: router.Complexity(complexity),
				InputSize:  inputSize,
				Prompt:     "estimate",
			}

			tier, err := application.router.TierFor(descriptor)
			if err != nil {
				return err
			}
			estimate, err := application.service.EstimateCost(descriptor)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "complexity: %s\n", complexity)
			fmt.Fprintf(out, "tier:       %s (%s)\n", tier.Name, tier.Model)
			fmt.Fprintf(out, "estimate:   $%s\n", estimate.StringFixed(6))
			return nil
		},
	}

	cmd.Flags().StringVarP(&complexity, "complexity", "c", "balanced", "Task complexity (simple, balanced, complex)")
	cmd.Flags().IntVarP(&inputSize, "input-size", "s", 0, "Input size in tokens")

	return cmd
}
