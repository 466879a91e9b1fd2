package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"marketbook/internal/model"
	"marketbook/internal/pattern"
)

// MemberConfig is one bookable specialist of a market.
type MemberConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Avatar   string `yaml:"avatar,omitempty"`
	Role     string `yaml:"role,omitempty"`
	Status   string `yaml:"status"`
	IsActive bool   `yaml:"is_active"`
}

// DayConfig is the template for one weekday. Ranges are "HH:MM-HH:MM".
type DayConfig struct {
	Enabled   bool     `yaml:"enabled"`
	WorkHours string   `yaml:"work_hours,omitempty"`
	Breaks    []string `yaml:"breaks,omitempty"`
}

// PatternConfig is a weekly pattern keyed by lowercase weekday name.
type PatternConfig struct {
	SubscribeAheadDays *int                 `yaml:"subscribe_ahead_days,omitempty"`
	Days               map[string]DayConfig `yaml:"days"`
}

// ExclusionConfig suppresses one recurring break on one date.
type ExclusionConfig struct {
	Date  string `yaml:"date"`
	Break string `yaml:"break"`
}

// HolidayConfig represents a date on which markets are closed.
type HolidayConfig struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

// MarketConfig represents a single market.
type MarketConfig struct {
	ID                      string            `yaml:"id"`
	Name                    string            `yaml:"name"`
	ResourceBookingMode     string            `yaml:"resource_booking_mode,omitempty"`
	CheckinRequiresApproval bool              `yaml:"checkin_requires_approval"`
	ConcurrentSlots         int               `yaml:"concurrent_slots,omitempty"`
	WorkDurationPerClient   int               `yaml:"work_duration_per_client,omitempty"`
	OwnerChatID             int64             `yaml:"owner_chat_id,omitempty"`
	Members                 []MemberConfig    `yaml:"members,omitempty"`
	Pattern                 *PatternConfig    `yaml:"pattern,omitempty"`
	Exclusions              []ExclusionConfig `yaml:"exclusions,omitempty"`
	Holidays                []HolidayConfig   `yaml:"holidays,omitempty"`
	Orders                  []string          `yaml:"orders,omitempty"`
}

// DefaultsConfig applies to markets without an explicit pattern.
type DefaultsConfig struct {
	SubscribeAheadDays    int    `yaml:"subscribe_ahead_days"`
	WorkHours             string `yaml:"work_hours"`
	WorkDurationPerClient int    `yaml:"work_duration_per_client"`
}

// MarketsConfig is the root of markets.yaml.
type MarketsConfig struct {
	Markets  []MarketConfig  `yaml:"markets"`
	Defaults DefaultsConfig  `yaml:"defaults"`
	Holidays []HolidayConfig `yaml:"holidays"`
}

// MarketSetup is a market compiled into domain types.
type MarketSetup struct {
	Market      model.Market
	OwnerChatID int64
	Pattern     *pattern.WeeklyPattern
	Exclusions  model.BreakExclusions
	ClosedDates []model.Date
	Orders      []string
}

// LoadMarketsConfig loads and validates markets configuration from YAML file.
func LoadMarketsConfig(path string) (*MarketsConfig, error) {
	if path == "" {
		path = "configs/markets.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markets config: %w", err)
	}

	return ParseMarketsConfig(data)
}

// ParseMarketsConfig parses and validates markets YAML.
func ParseMarketsConfig(data []byte) (*MarketsConfig, error) {
	var cfg MarketsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse markets config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate markets config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *MarketsConfig) Validate() error {
	if len(c.Markets) == 0 {
		return fmt.Errorf("no markets defined")
	}

	if c.Defaults.SubscribeAheadDays < 0 {
		return fmt.Errorf("defaults.subscribe_ahead_days cannot be negative")
	}
	if c.Defaults.WorkHours != "" {
		if _, err := parseRange(c.Defaults.WorkHours); err != nil {
			return fmt.Errorf("defaults.work_hours: %w", err)
		}
	}
	if _, err := parseHolidays(c.Holidays, "holiday"); err != nil {
		return err
	}

	ids := make(map[string]bool)
	orders := make(map[string]string)

	for i := range c.Markets {
		m := &c.Markets[i]
		if m.ID == "" {
			return fmt.Errorf("market[%d]: id is required", i)
		}
		if ids[m.ID] {
			return fmt.Errorf("market[%d]: duplicate id '%s'", i, m.ID)
		}
		ids[m.ID] = true

		if m.Name == "" {
			return fmt.Errorf("market[%d]: name is required", i)
		}
		if !model.ResourceBookingMode(m.ResourceBookingMode).Valid() {
			return fmt.Errorf("market[%d]: unknown resource_booking_mode '%s'", i, m.ResourceBookingMode)
		}
		if m.ConcurrentSlots < 0 {
			return fmt.Errorf("market[%d]: concurrent_slots cannot be negative", i)
		}
		if m.WorkDurationPerClient < 0 {
			return fmt.Errorf("market[%d]: work_duration_per_client cannot be negative", i)
		}

		if err := validateMembers(m.Members, fmt.Sprintf("market[%d]", i)); err != nil {
			return err
		}

		for _, o := range m.Orders {
			if owner, ok := orders[o]; ok {
				return fmt.Errorf("market[%d]: order '%s' already belongs to market '%s'", i, o, owner)
			}
			orders[o] = m.ID
		}

		if _, err := c.setup(m); err != nil {
			return fmt.Errorf("market[%d]: %w", i, err)
		}
	}

	return nil
}

func validateMembers(members []MemberConfig, prefix string) error {
	seen := make(map[string]bool)
	for j, mem := range members {
		if mem.ID == "" {
			return fmt.Errorf("%s.members[%d]: id is required", prefix, j)
		}
		if seen[mem.ID] {
			return fmt.Errorf("%s.members[%d]: duplicate id '%s'", prefix, j, mem.ID)
		}
		seen[mem.ID] = true

		switch mem.Status {
		case model.MemberAccepted, model.MemberInvited, model.MemberDeclined:
		default:
			return fmt.Errorf("%s.members[%d]: unknown status '%s'", prefix, j, mem.Status)
		}
	}
	return nil
}

// Setups compiles every market.
func (c *MarketsConfig) Setups() ([]MarketSetup, error) {
	out := make([]MarketSetup, 0, len(c.Markets))
	for i := range c.Markets {
		s, err := c.setup(&c.Markets[i])
		if err != nil {
			return nil, fmt.Errorf("market '%s': %w", c.Markets[i].ID, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Setup compiles one market by id.
func (c *MarketsConfig) Setup(id string) (MarketSetup, error) {
	m := c.GetMarketByID(id)
	if m == nil {
		return MarketSetup{}, fmt.Errorf("market '%s' not found", id)
	}
	return c.setup(m)
}

func (c *MarketsConfig) setup(m *MarketConfig) (MarketSetup, error) {
	p, err := c.buildPattern(m)
	if err != nil {
		return MarketSetup{}, err
	}

	excl := model.BreakExclusions{}
	for j, x := range m.Exclusions {
		d, err := model.ParseDate(x.Date)
		if err != nil {
			return MarketSetup{}, fmt.Errorf("exclusions[%d]: %w", j, err)
		}
		br, err := parseRange(x.Break)
		if err != nil {
			return MarketSetup{}, fmt.Errorf("exclusions[%d].break: %w", j, err)
		}
		excl.Add(d, br)
	}

	global, err := parseHolidays(c.Holidays, "holiday")
	if err != nil {
		return MarketSetup{}, err
	}
	local, err := parseHolidays(m.Holidays, "holidays")
	if err != nil {
		return MarketSetup{}, err
	}
	closed := mergeDates(global, local)

	members := make([]model.Resource, 0, len(m.Members))
	for _, mem := range m.Members {
		members = append(members, model.Resource{
			ID:       mem.ID,
			Name:     mem.Name,
			Avatar:   mem.Avatar,
			Role:     mem.Role,
			Status:   mem.Status,
			IsActive: mem.IsActive,
		})
	}

	duration := m.WorkDurationPerClient
	if duration == 0 {
		duration = c.Defaults.WorkDurationPerClient
	}

	return MarketSetup{
		Market: model.Market{
			ID:                      m.ID,
			Name:                    m.Name,
			ResourceBookingMode:     model.ResourceBookingMode(m.ResourceBookingMode),
			CheckinRequiresApproval: m.CheckinRequiresApproval,
			ConcurrentSlots:         m.ConcurrentSlots,
			WorkDurationPerClient:   duration,
			Members:                 members,
		},
		OwnerChatID: m.OwnerChatID,
		Pattern:     p,
		Exclusions:  excl,
		ClosedDates: closed,
		Orders:      append([]string(nil), m.Orders...),
	}, nil
}

// buildPattern goes through the pattern edit operations so every loaded
// pattern passes the same checks as an interactive edit.
func (c *MarketsConfig) buildPattern(m *MarketConfig) (*pattern.WeeklyPattern, error) {
	p := pattern.New()
	if c.Defaults.SubscribeAheadDays > 0 {
		p.SubscribeAheadDays = c.Defaults.SubscribeAheadDays
	}

	if m.Pattern == nil {
		if c.Defaults.WorkHours != "" {
			work, err := parseRange(c.Defaults.WorkHours)
			if err != nil {
				return nil, err
			}
			if err := p.ApplyDefaultsToWorkdays(work.Start, work.End); err != nil {
				return nil, err
			}
		}
		return p, nil
	}

	if m.Pattern.SubscribeAheadDays != nil {
		p.SubscribeAheadDays = *m.Pattern.SubscribeAheadDays
	}
	for name, dc := range m.Pattern.Days {
		day, err := model.ParseWeekday(name)
		if err != nil {
			return nil, fmt.Errorf("pattern.days: %w", err)
		}
		sched := pattern.DaySchedule{Enabled: dc.Enabled}
		if dc.WorkHours != "" {
			work, err := parseRange(dc.WorkHours)
			if err != nil {
				return nil, fmt.Errorf("pattern.days.%s.work_hours: %w", name, err)
			}
			sched.WorkHours = &work
		}
		for k, b := range dc.Breaks {
			br, err := parseRange(b)
			if err != nil {
				return nil, fmt.Errorf("pattern.days.%s.breaks[%d]: %w", name, k, err)
			}
			sched.Breaks = append(sched.Breaks, br)
		}
		if err := p.SetDay(day, sched); err != nil {
			return nil, fmt.Errorf("pattern: %w", err)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("pattern: %w", err)
	}
	return p, nil
}

// GetMarketByID returns market config by ID.
func (c *MarketsConfig) GetMarketByID(id string) *MarketConfig {
	for i := range c.Markets {
		if c.Markets[i].ID == id {
			return &c.Markets[i]
		}
	}
	return nil
}

// IsHoliday checks if a date is a global holiday.
func (c *MarketsConfig) IsHoliday(date model.Date) (bool, string) {
	for _, h := range c.Holidays {
		if h.Date == date.String() {
			return true, h.Name
		}
	}
	return false, ""
}

// String returns a summary of the configuration.
func (c *MarketsConfig) String() string {
	members := 0
	for _, m := range c.Markets {
		members += len(m.Members)
	}
	return fmt.Sprintf("MarketsConfig: %d markets (%d members), %d holidays",
		len(c.Markets), members, len(c.Holidays))
}

func parseRange(s string) (model.Interval, error) {
	start, end, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return model.Interval{}, fmt.Errorf("invalid range '%s', expected HH:MM-HH:MM", s)
	}
	iv, err := model.NewInterval(strings.TrimSpace(start), strings.TrimSpace(end))
	if err != nil {
		return model.Interval{}, fmt.Errorf("invalid range '%s': %w", s, err)
	}
	if !iv.Valid() {
		return model.Interval{}, fmt.Errorf("invalid range '%s': start must be before end", s)
	}
	return iv, nil
}

func parseHolidays(hs []HolidayConfig, prefix string) ([]model.Date, error) {
	out := make([]model.Date, 0, len(hs))
	for i, h := range hs {
		if h.Date == "" {
			return nil, fmt.Errorf("%s[%d]: date is required", prefix, i)
		}
		d, err := model.ParseDate(h.Date)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", prefix, i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func mergeDates(a, b []model.Date) []model.Date {
	seen := make(map[model.Date]bool, len(a)+len(b))
	out := make([]model.Date, 0, len(a)+len(b))
	for _, d := range append(append([]model.Date{}, a...), b...) {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
