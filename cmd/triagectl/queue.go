package main

import (
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-triage-backend/internal/offline"
)

func newReplayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Submit queued analyses once if the server is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !a.connectivity(ctx).Online() {
				return fmt.Errorf("server %s unreachable; queue left as is", a.server)
			}
			rep, _, err := offline.NewReplayer(a.queue, a.results, a.api, a.log).Replay(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "attempted %d, succeeded %d, failed %d, still queued %d\n",
				rep.Attempted, rep.Succeeded, rep.Failed, rep.Remaining)
			return err
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Probe the server and replay the queue whenever it comes back",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			conn := offline.NewConnectivity(false)
			rp := offline.NewReplayer(a.queue, a.results, a.api, a.log)
			out := cmd.OutOrStdout()
			rp.OnReport(func(rep offline.ReplayReport) {
				if rep.Attempted > 0 {
					fmt.Fprintf(out, "%s replayed %d/%d, %d still queued\n",
						time.Now().Format(time.Kitchen), rep.Succeeded, rep.Attempted, rep.Remaining)
				}
			})

			go conn.Probe(ctx, interval, a.api.Health, a.log)
			rp.Watch(ctx, conn)
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Second, "health probe interval")
	return cmd
}

func newQueueCmd(a *app) *cobra.Command {
	q := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the offline queue",
	}
	q.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List queued analyses, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			pending, err := a.queue.Pending(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tQUEUED\tTYPE\tLANG\tANSWERS")
			for _, e := range pending {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
					e.ID, e.Timestamp.Local().Format(time.DateTime), e.Payload.MIMEType, e.Payload.Language, len(e.Payload.MCQAnswers))
			}
			return tw.Flush()
		},
	})
	return q
}

func newResultsCmd(a *app) *cobra.Command {
	r := &cobra.Command{
		Use:   "results",
		Short: "Read verdicts of replayed analyses",
	}
	r.AddCommand(&cobra.Command{
		Use:   "next",
		Short: "Print and remove the oldest stored verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, ok, err := a.results.Next(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no stored results")
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	})
	return r
}
