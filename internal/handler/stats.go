package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/service"
)

// StatsService is the part of *service.StatsService the HTTP layer uses.
type StatsService interface {
	Day(ctx context.Context, day string) (service.DayStats, error)
	Range(ctx context.Context, first, last string) (service.RangeStats, error)
}

// StatsHandler serves the owner dashboard rollups.
type StatsHandler struct {
	Stats StatsService
}

func NewStatsHandler(s StatsService) *StatsHandler {
	return &StatsHandler{Stats: s}
}

// Day handles GET /api/stats/day?day=YYYY-MM-DD.
func (h *StatsHandler) Day(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.Stats.Day(ctx, c.QueryParam("day"))
	if err != nil {
		return fail(c, err)
	}
	buckets := make([]hourBucketResp, len(st.Buckets))
	for i, b := range st.Buckets {
		buckets[i] = hourBucketResp{Hour: b.Hour, Revenue: b.Revenue.StringFixed(2), Orders: b.Orders}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ok":        true,
		"day":       st.Day,
		"total":     st.Total.StringFixed(2),
		"orders":    st.Orders,
		"completed": st.Completed,
		"canceled":  st.Canceled,
		"buckets":   buckets,
		"top_items": toTopItems(st.TopItems),
	})
}

// Range handles GET /api/stats/range?from=&to=.
func (h *StatsHandler) Range(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.Stats.Range(ctx, c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return fail(c, err)
	}
	days := make([]dayBucketResp, len(st.Days))
	for i, d := range st.Days {
		days[i] = dayBucketResp{Day: d.Day, Revenue: d.Revenue.StringFixed(2), Orders: d.Orders}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ok":        true,
		"from":      st.From,
		"to":        st.To,
		"total":     st.Total.StringFixed(2),
		"orders":    st.Orders,
		"completed": st.Completed,
		"canceled":  st.Canceled,
		"days":      days,
		"top_items": toTopItems(st.TopItems),
	})
}
