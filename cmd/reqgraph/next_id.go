package main

import (
	"fmt"

	"github.com/HendryAvila/reqgraph/internal/idalloc"
	"github.com/HendryAvila/reqgraph/internal/requirements"
	"github.com/spf13/cobra"
)

func nextIDCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "next-id (business|system) <task-id>",
		Short:     "Preview the next free requirement ID of a task",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"business", "system"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, taskID := args[0], args[1]

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			f := requirements.Filter{TaskID: taskID}
			var next string
			switch kind {
			case "business":
				brs, err := st.ListBusinessRequirements(ctx, a.cfg.Project, f)
				if err != nil {
					return err
				}
				next = idalloc.NextSequentialIDFrom(idalloc.BusinessRequirementPrefix(taskID), brs,
					func(br requirements.BusinessRequirement) string { return br.ID }, a.cfg.PadLength)
			case "system":
				srs, err := st.ListSystemRequirements(ctx, a.cfg.Project, f)
				if err != nil {
					return err
				}
				next = idalloc.NextSequentialIDFrom(idalloc.SystemRequirementPrefix(taskID), srs,
					func(sr requirements.SystemRequirement) string { return sr.ID }, a.cfg.PadLength)
			default:
				return fmt.Errorf("invalid kind %q: must be business or system", kind)
			}

			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		},
	}
}
