package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *cli) reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Inspect and delete saved reports",
	}
	cmd.AddCommand(c.reportsListCmd(), c.reportsShowCmd(), c.reportsDeleteCmd())
	return cmd
}

func (c *cli) reportsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved reports, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			summaries, err := a.Reports.Summaries(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tFARMER\tSPECIES\tSTATUS\tTESTS")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", s.ID, s.DateOfReport, s.FarmerName, s.Species, s.Status, s.TestCount)
			}
			return w.Flush()
		},
	}
}

func (c *cli) reportsShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one report with abnormal values marked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			annotated, err := a.Reports.Annotated(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(annotated)
			}

			r := annotated.Report
			fmt.Fprintf(out, "%s  %s\n", annotated.DisplayID, r.DateOfReport)
			fmt.Fprintf(out, "Farmer:  %s, %s\n", r.FarmerName, r.FarmerAddress)
			fmt.Fprintf(out, "Animal:  %s %s, %s, %s\n", r.Species, r.Breed, r.Age, r.Sex)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, section := range annotated.Sections {
				fmt.Fprintf(w, "\n%s\n", section.Label)
				for _, row := range section.Entries {
					flag := ""
					if row.Abnormal {
						flag = "*"
					}
					fmt.Fprintf(w, "  %s\t%s%s\t%s\t%s\n", row.TestName, row.ResultValue, flag, row.Unit, row.NormalRange)
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nAbnormal results: %d\nRemarks: %s\n", annotated.AbnormalCount, annotated.Remarks)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the annotated report as JSON")
	return cmd
}

func (c *cli) reportsDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			report, err := a.Reports.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "Delete report %s for %s? [y/N]: ", report.DisplayID(), report.FarmerName)
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				answer = strings.ToLower(strings.TrimSpace(answer))
				if answer != "y" && answer != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			if err := a.Reports.Delete(cmd.Context(), report.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", report.ID)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
