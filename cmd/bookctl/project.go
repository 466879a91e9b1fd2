package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"marketbook/internal/booking"
	"marketbook/internal/config"
	"marketbook/internal/export"
	"marketbook/internal/model"
	"marketbook/internal/resource"
	"marketbook/internal/slots"
)

// projectSetup projects a market from the catalog alone, with no bookings.
func projectSetup(cmd *cobra.Command, setup config.MarketSetup, from, to model.Date, resourceID string) ([]model.AvailableDay, error) {
	day, _, err := today(cmd)
	if err != nil {
		return nil, err
	}
	in := slots.ProjectionInput{
		Pattern:     setup.Pattern,
		Today:       day,
		From:        from,
		To:          to,
		Exclusions:  setup.Exclusions,
		ClosedDates: setup.ClosedDates,
	}
	return resource.Project(&setup.Market, in, resourceID)
}

func windowFlags(cmd *cobra.Command) {
	cmd.Flags().String("market", "", "Market id")
	cmd.Flags().String("from", "", "First date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Last date (YYYY-MM-DD)")
	cmd.Flags().String("resource", "", "Resource id (select mode)")
	_ = cmd.MarkFlagRequired("market")
}

func projectWindow(cmd *cobra.Command) (config.MarketSetup, []model.AvailableDay, error) {
	marketID, _ := cmd.Flags().GetString("market")
	resourceID, _ := cmd.Flags().GetString("resource")
	from, err := dateFlag(cmd, "from")
	if err != nil {
		return config.MarketSetup{}, nil, err
	}
	to, err := dateFlag(cmd, "to")
	if err != nil {
		return config.MarketSetup{}, nil, err
	}
	setup, err := loadSetup(cmd, marketID)
	if err != nil {
		return config.MarketSetup{}, nil, err
	}
	days, err := projectSetup(cmd, setup, from, to, resourceID)
	return setup, days, err
}

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Print projected availability of a market",
		RunE: func(cmd *cobra.Command, args []string) error {
			setup, days, err := projectWindow(cmd)
			if err != nil {
				return err
			}
			withSlots, _ := cmd.Flags().GetBool("slots")

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tDAY\tHOURS\tBREAKS\tFREE\tSTATUS")
			for _, d := range days {
				hours := "-"
				if d.WorkHours != nil {
					hours = d.WorkHours.String()
				}
				status := "open"
				if !d.Available {
					status = d.ClosedReason
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", d.Date, d.Date.Weekday(), hours, joinRanges(d.Breaks), joinRanges(d.FreeRanges), status)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if !withSlots {
				return nil
			}
			minutes := booking.SlotMinutes(&setup.Market)
			now, err := clockNow(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range days {
				if !d.Available {
					continue
				}
				fmt.Fprintf(out, "%s %s slots:\n", d.Date, slots.FormatDuration(minutes))
				cut := slots.GenerateSlots(d, minutes, now)
				for _, run := range slots.FindConsecutiveSlots(cut) {
					lengths := slots.GetDurationOptions(cut, run[0].Start)
					if len(lengths) == 0 {
						continue
					}
					starts := make([]string, len(run))
					for i, sl := range run {
						starts[i] = sl.Start.String()
					}
					fmt.Fprintf(out, "  %s-%s  up to %s  starts %s\n",
						run[0].Start, run[len(run)-1].End, slots.FormatDuration(lengths[len(lengths)-1]), strings.Join(starts, " "))
				}
			}
			return nil
		},
	}
	windowFlags(cmd)
	cmd.Flags().Bool("slots", false, "Also list free slot runs with their longest booking")
	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a time range can be picked",
		RunE: func(cmd *cobra.Command, args []string) error {
			marketID, _ := cmd.Flags().GetString("market")
			resourceID, _ := cmd.Flags().GetString("resource")
			rangeStr, _ := cmd.Flags().GetString("range")
			date, err := dateFlag(cmd, "date")
			if err != nil {
				return err
			}
			iv, err := parseRange(rangeStr)
			if err != nil {
				return err
			}

			setup, err := loadSetup(cmd, marketID)
			if err != nil {
				return err
			}
			days, err := projectSetup(cmd, setup, date, date, resourceID)
			if err != nil {
				return err
			}
			if len(days) == 0 {
				return fmt.Errorf("%s is outside the booking horizon", date)
			}

			opts := booking.OptionsFor(&setup.Market)
			candidate := model.SelectedBooking{Date: date, StartTime: iv.Start, EndTime: iv.End}
			if opts.PerResource {
				candidate.ResourceID = resourceID
			}
			if err := booking.Check(days[0], candidate, nil, opts); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "rejected: %s\n", booking.Reason(err))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s %s\n", date, iv)
			return nil
		},
	}
	cmd.Flags().String("market", "", "Market id")
	cmd.Flags().String("date", "", "Date (YYYY-MM-DD)")
	cmd.Flags().String("range", "", "Time range HH:MM-HH:MM")
	cmd.Flags().String("resource", "", "Resource id (select mode)")
	_ = cmd.MarkFlagRequired("market")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("range")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write projected availability to an .xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			setup, days, err := projectWindow(cmd)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = setup.Market.ID + "-availability.xlsx"
			}
			if err := export.SaveAvailability(out, &setup.Market, days); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d days to %s\n", len(days), out)
			return nil
		},
	}
	windowFlags(cmd)
	cmd.Flags().String("out", "", "Output file (default <market>-availability.xlsx)")
	return cmd
}

func parseRange(s string) (model.Interval, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return model.Interval{}, fmt.Errorf("range %q: want HH:MM-HH:MM", s)
	}
	return model.NewInterval(strings.TrimSpace(start), strings.TrimSpace(end))
}

func joinRanges(ivs []model.Interval) string {
	if len(ivs) == 0 {
		return "-"
	}
	parts := make([]string, len(ivs))
	for i, iv := range ivs {
		parts[i] = iv.String()
	}
	return strings.Join(parts, ",")
}
