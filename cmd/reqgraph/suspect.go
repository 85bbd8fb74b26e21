package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/HendryAvila/reqgraph/internal/links"
	"github.com/spf13/cobra"
)

func suspectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suspect",
		Short: "Inspect and confirm suspect links",
	}
	cmd.AddCommand(suspectListCmd(a))
	cmd.AddCommand(suspectConfirmCmd(a))
	return cmd
}

func suspectListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List links awaiting re-confirmation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ls, err := links.NewRegistry(st, a.log).ListSuspect(cmd.Context(), a.cfg.Project)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ls) == 0 {
				fmt.Fprintf(out, "No suspect links in project %s.\n", a.cfg.Project)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tTYPE\tTARGET\tUPDATED\tREASON")
			for _, l := range ls {
				reason := ""
				if l.SuspectReason != nil {
					reason = *l.SuspectReason
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", l.ID, l.Source, l.LinkType, l.Target, l.UpdatedAt, reason)
			}
			return w.Flush()
		},
	}
}

func suspectConfirmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <link-id>...",
		Short: "Clear the suspect flag of one or more links",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			res := links.NewRegistry(st, a.log).BatchConfirm(cmd.Context(), args, a.cfg.Project)
			fmt.Fprintf(cmd.OutOrStdout(), "Confirmed %d of %d link(s).\n", res.ConfirmedCount, res.Requested)
			if res.FirstError != nil {
				return fmt.Errorf("%d link(s) failed, first: %w", len(res.FailedIDs), res.FirstError)
			}
			return nil
		},
	}
}
