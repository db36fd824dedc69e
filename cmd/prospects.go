package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eprofos/backoffice/internal/crm"
)

var (
	prospectsLimit  int
	prospectsOffset int
)

var prospectsCmd = &cobra.Command{
	Use:   "prospects",
	Short: "List prospects and status counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("prospects"); err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		prospects, err := store.ListProspects(ctx, prospectsLimit, prospectsOffset)
		if err != nil {
			return err
		}
		counts, err := store.CountProspectsByStatus(ctx)
		if err != nil {
			return err
		}

		printProspects(os.Stdout, prospects)
		printStatusCounts(os.Stdout, counts)
		return nil
	},
}

func printProspects(out io.Writer, prospects []crm.Prospect) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "EMAIL\tNAME\tSTATUS\tSOURCE\tLAST CONTACT")
	for _, p := range prospects {
		lastContact := "-"
		if p.LastContactDate != nil {
			lastContact = p.LastContactDate.Format("2006-01-02")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\n",
			p.Email, p.FirstName, p.LastName, p.Status, p.Source, lastContact)
	}
	_ = w.Flush()
}

func printStatusCounts(out io.Writer, counts map[crm.Status]int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w)
	total := 0
	for _, status := range []crm.Status{
		crm.StatusLead, crm.StatusProspect, crm.StatusQualified,
		crm.StatusNegotiation, crm.StatusCustomer,
	} {
		_, _ = fmt.Fprintf(w, "%s:\t%d\n", status, counts[status])
		total += counts[status]
	}
	_, _ = fmt.Fprintf(w, "Total:\t%d\n", total)
	_ = w.Flush()
}

func init() {
	prospectsCmd.Flags().IntVar(&prospectsLimit, "limit", 50, "max prospects to list")
	prospectsCmd.Flags().IntVar(&prospectsOffset, "offset", 0, "list offset")
	rootCmd.AddCommand(prospectsCmd)
}
