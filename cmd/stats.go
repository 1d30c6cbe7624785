package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/cinefluent/internal/provider"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var apiName string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache, queue and provider usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			cache, err := a.svc.GetCacheStats(cmd.Context())
			if err != nil {
				return err
			}
			queue := a.queue.Stats()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, renderTable(out,
				[]string{"Cache", "Entries"},
				[][]string{
					{"total", humanize.Comma(int64(cache.TotalEntries))},
					{"active", humanize.Comma(int64(cache.ActiveEntries))},
					{"expired", humanize.Comma(int64(cache.ExpiredEntries))},
					{"languages", humanize.Comma(int64(cache.LanguagesCached))},
					{"movies", humanize.Comma(int64(cache.MoviesCached))},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			fmt.Fprintln(out, renderTable(out,
				[]string{"Jobs", "Count"},
				[][]string{
					{"queued", strconv.Itoa(queue.Queued)},
					{"processing", strconv.Itoa(queue.Processing)},
					{"completed", strconv.Itoa(queue.Completed)},
					{"failed", strconv.Itoa(queue.Failed)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))

			rows, err := a.svc.GetUsage(cmd.Context(), apiName, time.Time{})
			if err != nil {
				return err
			}
			usage := make([][]string, 0, len(rows))
			for _, u := range rows {
				remaining, reset := "-", "-"
				if u.RateLimitRemaining != nil {
					remaining = humanize.Comma(int64(*u.RateLimitRemaining))
				}
				if u.RateLimitReset != nil {
					reset = humanize.Time(*u.RateLimitReset)
				}
				usage = append(usage, []string{
					u.Endpoint,
					humanize.Comma(int64(u.RequestCount)),
					humanize.Comma(int64(u.SuccessCount)),
					humanize.Comma(int64(u.ErrorCount)),
					remaining,
					reset,
				})
			}
			fmt.Fprintf(out, "%s usage today\n", apiName)
			fmt.Fprintln(out, renderTable(out,
				[]string{"Endpoint", "Requests", "Success", "Errors", "Remaining", "Reset"},
				usage,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&apiName, "api", provider.OpenSubtitlesName, "Provider whose usage is shown")
	return cmd
}
