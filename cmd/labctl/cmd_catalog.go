package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/caddl-lab-desk/internal/domain"
)

func (c *cli) classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify VALUE RANGE",
		Short: "Check a result value against a reference range",
		Example: `  labctl classify 16.2 "8.0 - 15.0"
  labctl classify Positive Negative`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			classifier := a.Reports.Classifier()
			verdict := "normal"
			if classifier.IsAbnormal(args[0], args[1]) {
				verdict = "ABNORMAL"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s range)\n", verdict, classifier.Kind(args[1]))
			return nil
		},
	}
}

func (c *cli) catalogCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the master test catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			cat := a.Reports.Catalog()
			if category != "" && !cat.HasCategory(domain.CategoryKey(category)) {
				return fmt.Errorf("unknown category %q", category)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, cg := range cat.Categories() {
				if category != "" && string(cg.Key) != category {
					continue
				}
				fmt.Fprintf(w, "[%s] %s\n", cg.Key, cg.Label)
				for _, def := range cat.ForCategory(cg.Key) {
					fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", def.SubCategory, def.Name, def.Unit, def.NormalRange)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "show one section only")
	return cmd
}
