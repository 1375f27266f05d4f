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
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/maestro/pkg/budget"
)

func newBudgetCommand() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show a tenant's current budget status",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := loadApp()
			if err != nil {
				return err
			}
			defer application.close()

			status, err := application.service.GetBudgetStatus(cmd.Context(), tenantID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tenant:        %s\n", status.TenantID)
			fmt.Fprintf(out, "plan:          %s\n", status.Plan)
			fmt.Fprintf(out, "daily spend:   $%s of $%s\n", status.SpentToday.StringFixed(4), status.DailyLimit.StringFixed(2))
			fmt.Fprintf(out, "monthly spend: $%s of $%s\n", status.SpentThisMonth.StringFixed(4), status.MonthlyLimit.StringFixed(2))
			fmt.Fprintf(out, "allowed tiers: %s\n", strings.Join(status.AllowedTiers, ", "))
			if status.Warning != budget.WarnNone {
				fmt.Fprintf(out, "warning:       %s\n", status.Warning)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tenantID, "tenant", "t", "", "Tenant ID to inspect (required)")
	cmd.MarkFlagRequired("tenant")

	return cmd
}
