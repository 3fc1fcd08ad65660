package cmd

import (
	"context"
	"fmt"

	"github.com/pocketbase/pocketbase"
	"github.com/spf13/cobra"

	"ticket-checkin/internal/services"
)

// issueCommand issues a ticket from the command line and prints its id and
// secret, tab separated.
func issueCommand(app *pocketbase.PocketBase, env *environment) *cobra.Command {
	var req services.IssueRequest

	command := &cobra.Command{
		Use:          "issue",
		Short:        "Issue a ticket for an event",
		SilenceUsage: true,
		RunE: func(command *cobra.Command, args []string) error {
			ctx := command.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if err := app.RunAllMigrations(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if err := env.wire(ctx, app); err != nil {
				return err
			}
			defer env.close(ctx)

			ticket, err := env.issuer.Issue(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(command.OutOrStdout(), "%s\t%s\n", ticket.ID, ticket.Secret)
			return nil
		},
	}

	command.Flags().StringVar(&req.EventID, "event", "", "event id")
	command.Flags().StringVar(&req.AttendeeName, "name", "", "attendee name")
	command.Flags().StringVar(&req.AttendeeEmail, "email", "", "attendee email")
	_ = command.MarkFlagRequired("event")
	_ = command.MarkFlagRequired("name")

	return command
}
