package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/doorman/internal/auth/app"
	"github.com/aussiebroadwan/doorman/internal/auth/domain"
	"github.com/aussiebroadwan/doorman/internal/auth/store"
	"github.com/aussiebroadwan/doorman/pkg/authsdk"
)

func newAuditCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the authentication audit log",
	}

	var (
		filter  store.AuditFilter
		event   string
		asJSON  bool
		listCmd = &cobra.Command{
			Use:   "list",
			Short: "List audit records, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				filter.Event = domain.AuditEvent(event)
				return rt.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
					records, err := svc.Audit.List(ctx, filter)
					if err != nil {
						return err
					}

					if asJSON {
						out := authsdk.AuditResponse{Records: make([]authsdk.AuditRecord, 0, len(records))}
						for _, r := range records {
							out.Records = append(out.Records, authsdk.AuditRecord{
								ID:        r.ID,
								UserID:    r.UserID,
								Event:     string(r.Event),
								Outcome:   string(r.Outcome),
								IPAddress: r.IPAddress,
								UserAgent: r.UserAgent,
								Details:   r.Details,
								CreatedAt: r.CreatedAt,
							})
						}
						enc := json.NewEncoder(cmd.OutOrStdout())
						enc.SetIndent("", "  ")
						return enc.Encode(out)
					}

					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					_, _ = fmt.Fprintln(w, "TIME\tEVENT\tOUTCOME\tUSER\tIP\tREASON")
					for _, r := range records {
						user := "-"
						if r.UserID != nil {
							user = *r.UserID
						}
						reason := r.Details["reason"]
						if reason == "" {
							reason = "-"
						}
						_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
							r.CreatedAt.Format(time.RFC3339), r.Event, r.Outcome, user, r.IPAddress, reason)
					}
					return w.Flush()
				})
			},
		}
	)

	listCmd.Flags().StringVar(&filter.UserID, "user", "", "only records for this user id")
	listCmd.Flags().StringVar(&event, "event", "", "login or failed_login")
	listCmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum records (0 for all)")
	listCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	cmd.AddCommand(listCmd)
	return cmd
}
