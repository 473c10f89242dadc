package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
	"github.com/iliyamo/restaurant-ordering/internal/utils"
)

const (
	defaultTopItems = 10
	maxRangeDays    = 92
)

// HourBucket is one wall-clock hour of a day. Revenue and Orders count
// completed orders only.
type HourBucket struct {
	Hour    int
	Revenue decimal.Decimal
	Orders  int
}

// DayBucket is one calendar day of a range.
type DayBucket struct {
	Day     string
	Revenue decimal.Decimal
	Orders  int
}

// TopItem is a menu line ranked by quantity sold.
type TopItem struct {
	Name    string
	Qty     int
	Revenue decimal.Decimal
}

// DayStats is the rollup of a single restaurant-local day.
type DayStats struct {
	Day       string
	Total     decimal.Decimal
	Orders    int // every order created that day
	Completed int
	Canceled  int
	Buckets   []HourBucket // always 24
	TopItems  []TopItem
}

// RangeStats is the rollup of an inclusive range of days.
type RangeStats struct {
	From      string
	To        string
	Total     decimal.Decimal
	Orders    int
	Completed int
	Canceled  int
	Days      []DayBucket
	TopItems  []TopItem
}

// AggregateDay rolls orders up into 24 local-hour buckets. Orders whose
// local date is not day are ignored. The two instants of a repeated DST hour
// share a bucket and the skipped hour stays empty, so the buckets always sum
// to Total.
func AggregateDay(day string, orders []model.Order, loc *time.Location, topN int) DayStats {
	st := DayStats{Day: day, Total: decimal.Zero, Buckets: make([]HourBucket, 24)}
	for h := range st.Buckets {
		st.Buckets[h] = HourBucket{Hour: h, Revenue: decimal.Zero}
	}
	var kept []model.Order
	for _, o := range orders {
		if utils.LocalDay(o.CreatedAt, loc) != day {
			continue
		}
		st.Orders++
		switch o.Status {
		case model.OrderCanceled:
			st.Canceled++
		case model.OrderCompleted:
			st.Completed++
			st.Total = st.Total.Add(o.Total)
			b := &st.Buckets[utils.LocalHour(o.CreatedAt, loc)]
			b.Revenue = b.Revenue.Add(o.Total)
			b.Orders++
			kept = append(kept, o)
		}
	}
	st.TopItems = topItems(kept, topN)
	return st
}

// AggregateRange rolls orders up per local day over days, which must be
// consecutive calendar dates.
func AggregateRange(days []string, orders []model.Order, loc *time.Location, topN int) RangeStats {
	st := RangeStats{Total: decimal.Zero, Days: make([]DayBucket, len(days))}
	if len(days) > 0 {
		st.From, st.To = days[0], days[len(days)-1]
	}
	index := make(map[string]int, len(days))
	for i, d := range days {
		index[d] = i
		st.Days[i] = DayBucket{Day: d, Revenue: decimal.Zero}
	}
	var kept []model.Order
	for _, o := range orders {
		i, ok := index[utils.LocalDay(o.CreatedAt, loc)]
		if !ok {
			continue
		}
		st.Orders++
		switch o.Status {
		case model.OrderCanceled:
			st.Canceled++
		case model.OrderCompleted:
			st.Completed++
			st.Total = st.Total.Add(o.Total)
			st.Days[i].Revenue = st.Days[i].Revenue.Add(o.Total)
			st.Days[i].Orders++
			kept = append(kept, o)
		}
	}
	st.TopItems = topItems(kept, topN)
	return st
}

// topItems ranks item names by quantity, ties broken by name.
func topItems(orders []model.Order, n int) []TopItem {
	if n <= 0 {
		n = defaultTopItems
	}
	byName := make(map[string]*TopItem)
	for _, o := range orders {
		for _, it := range o.Items {
			ti, ok := byName[it.Name]
			if !ok {
				ti = &TopItem{Name: it.Name, Revenue: decimal.Zero}
				byName[it.Name] = ti
			}
			ti.Qty += it.Qty
			ti.Revenue = ti.Revenue.Add(it.LineTotal())
		}
	}
	out := make([]TopItem, 0, len(byName))
	for _, ti := range byName {
		out = append(out, *ti)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Qty != out[j].Qty {
			return out[i].Qty > out[j].Qty
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// StatsService reads orders for a local day or range and aggregates them.
type StatsService struct {
	orders *repository.OrderRepo
	loc    *time.Location
	topN   int
	now    func() time.Time
}

func NewStatsService(orders *repository.OrderRepo, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.UTC
	}
	return &StatsService{orders: orders, loc: loc, topN: defaultTopItems, now: time.Now}
}

// Day returns the rollup of day, today when empty.
func (s *StatsService) Day(ctx context.Context, day string) (DayStats, error) {
	if day == "" {
		day = utils.Today(s.now(), s.loc)
	}
	from, to, err := utils.DayBounds(day, s.loc)
	if err != nil {
		return DayStats{}, invalid("invalid_day", "%v", err)
	}
	orders, err := s.orders.ListCreatedBetween(ctx, from, to)
	if err != nil {
		return DayStats{}, err
	}
	return AggregateDay(day, orders, s.loc, s.topN), nil
}

// Range returns the per-day rollup from first through last inclusive.
func (s *StatsService) Range(ctx context.Context, first, last string) (RangeStats, error) {
	if first == "" || last == "" {
		return RangeStats{}, invalid("range_required", "from and to are required")
	}
	from, to, err := utils.RangeBounds(first, last, s.loc)
	if err != nil {
		return RangeStats{}, invalid("invalid_range", "%v", err)
	}
	n, err := utils.DayCount(first, last)
	if err != nil {
		return RangeStats{}, invalid("invalid_range", "%v", err)
	}
	if n > maxRangeDays {
		return RangeStats{}, invalid("range_too_long", "at most %d days", maxRangeDays)
	}
	days, err := utils.DaysBetween(first, last, s.loc)
	if err != nil {
		return RangeStats{}, invalid("invalid_range", "%v", err)
	}
	orders, err := s.orders.ListCreatedBetween(ctx, from, to)
	if err != nil {
		return RangeStats{}, err
	}
	return AggregateRange(days, orders, s.loc, s.topN), nil
}
