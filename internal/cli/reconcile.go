package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	deletionhandler "mastercom/internal/deletion/handler"
	adminmw "mastercom/pkg/platform/middleware/admin"
)

const reconcilePath = "/admin/deletion-requests/reconcile"

func newReconcileCommand(opts *options) *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-issue deletes for approved requests whose record still exists",
		Long: `reconcile calls the server's operator endpoint so the review lock held by
the running service is respected. ADMIN_API_TOKEN must match the server's.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token := opts.cfg.Server.AdminToken
			if token == "" {
				return errors.New("ADMIN_API_TOKEN is not set")
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
				strings.TrimRight(server, "/")+reconcilePath, nil)
			if err != nil {
				return err
			}
			req.Header.Set(adminmw.HeaderAdminToken, token)

			client := &http.Client{Timeout: timeout}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("call %s: %w", reconcilePath, err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("reconcile failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
			}

			var result deletionhandler.ReconcileResponse
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return opts.outputJSON(out, result)
			}
			return printReconcile(out, result)
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "base URL of the running service")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "request timeout")
	return cmd
}

func printReconcile(w io.Writer, result deletionhandler.ReconcileResponse) error {
	if result.Total == 0 {
		_, err := fmt.Fprintln(w, "nothing to reconcile")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REQUEST\tTABLE\tRECORD\tOUTCOME\tERROR")
	for _, r := range result.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.RequestID, r.Table, r.RecordID, r.Outcome, r.Error)
	}
	return tw.Flush()
}
