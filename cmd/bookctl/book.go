package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"marketbook/internal/backend"
	"marketbook/internal/booking"
	"marketbook/internal/config"
	"marketbook/internal/model"
	"marketbook/internal/resource"
)

func bookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book slots for an order through the marketplace API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			orderID, _ := cmd.Flags().GetString("order")
			marketID, _ := cmd.Flags().GetString("market")
			resourceID, _ := cmd.Flags().GetString("resource")
			ranges, _ := cmd.Flags().GetStringSlice("range")
			startRaw, _ := cmd.Flags().GetString("start")
			count, _ := cmd.Flags().GetInt("count")
			date, err := dateFlag(cmd, "date")
			if err != nil {
				return err
			}

			var start *model.Clock
			if startRaw != "" {
				c, err := model.ParseClock(startRaw)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				start = &c
			}

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cmd)

			client := backend.NewClient(cfg.API.BaseURL, cfg.API.APIKey, logger)
			client.SetTimeout(cfg.APITimeout())
			if cfg.API.RateLimitRPS > 0 {
				client.UseRateLimit(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst)
			}
			if cfg.Redis.Address != "" && cfg.CacheTTL() > 0 {
				rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
				defer rdb.Close()
				client.UseRedisCache(rdb, cfg.CacheTTL())
			}

			return runBooking(cmd.Context(), cmd, client, bookRequest{
				OrderID:    orderID,
				MarketID:   marketID,
				ResourceID: resourceID,
				Date:       date,
				Ranges:     ranges,
				Start:      start,
				Count:      count,
			})
		},
	}
	cmd.Flags().String("config", "configs/config.yaml", "Path to the service config (API and Redis)")
	cmd.Flags().String("order", "", "Order id")
	cmd.Flags().String("market", "", "Market id")
	cmd.Flags().String("date", "", "Date (YYYY-MM-DD)")
	cmd.Flags().String("resource", "", "Resource id (select mode)")
	cmd.Flags().StringSlice("range", nil, "Time range HH:MM-HH:MM (repeatable)")
	cmd.Flags().String("start", "", "Start of a run of consecutive slots (HH:MM)")
	cmd.Flags().Int("count", 1, "Number of consecutive slots booked from --start")
	for _, name := range []string{"order", "market", "date"} {
		_ = cmd.MarkFlagRequired(name)
	}
	cmd.MarkFlagsOneRequired("range", "start")
	cmd.MarkFlagsMutuallyExclusive("range", "start")
	return cmd
}

type bookRequest struct {
	OrderID    string
	MarketID   string
	ResourceID string
	Date       model.Date
	Ranges     []string
	// Start and Count book a run of slots instead of explicit ranges.
	Start *model.Clock
	Count int
}

// runBooking drives a booking session the way an interactive client does:
// pick the date, optionally the resource, wait for availability, stage and submit.
func runBooking(ctx context.Context, cmd *cobra.Command, client *backend.Client, req bookRequest) error {
	out := cmd.OutOrStdout()

	market, err := client.Market(ctx, req.MarketID)
	if err != nil {
		return err
	}
	session := booking.NewSession(market)
	defer session.Close()

	ticket, err := session.SelectDate(ctx, req.Date)
	if err != nil {
		return err
	}
	if resource.RequiresSelection(market) {
		if req.ResourceID == "" {
			return fmt.Errorf("%w: pass --resource", resource.ErrResourceRequired)
		}
		if ticket, err = session.SelectResource(ctx, req.ResourceID); err != nil {
			return err
		}
	}

	resp, err := client.AvailableSlots(ticket.Ctx, req.OrderID, req.Date, req.Date, session.ResourceID())
	if err != nil {
		return err
	}
	session.Resolve(ticket, resp.AvailableDays)

	for _, raw := range req.Ranges {
		iv, err := parseRange(raw)
		if err != nil {
			return err
		}
		pick, err := session.Stage(iv.Start, iv.End)
		if err != nil {
			return fmt.Errorf("%s: %w", raw, err)
		}
		fmt.Fprintf(out, "staged %s\n", pick.Label)
	}
	if req.Start != nil {
		pick, err := session.StageRun(*req.Start, req.Count)
		if err != nil {
			return fmt.Errorf("%d slot(s) from %s: %w", req.Count, *req.Start, err)
		}
		fmt.Fprintf(out, "staged %s\n", pick.Label)
	}

	logger := newLogger(cmd)
	res, err := session.Submit(ctx, booking.NewSubmitter(client, market, &logger), req.OrderID)
	if err != nil {
		if backend.IsRetryable(err) {
			return fmt.Errorf("%w (retry later)", err)
		}
		var be *backend.Error
		if errors.As(err, &be) && be.Code != "" {
			fmt.Fprintf(out, "rejected: %s\n", be.Code)
		}
		return err
	}

	fmt.Fprintf(out, "%s: %d booking(s)\n", res.Status, len(res.BookingIDs))
	for _, id := range res.BookingIDs {
		fmt.Fprintln(out, id)
	}
	return nil
}
