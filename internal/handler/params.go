package handler

import (
	"strconv"
	"time"

	"budstack-service/internal/model"

	"github.com/labstack/echo/v4"
)

const defaultAnalyticsDays = 30

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, model.NewValidationError(name, "must be a positive integer")
	}
	return uint(id), nil
}

// pagination reads page and page_size; the repositories clamp the values
func pagination(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	return page, pageSize
}

func queryBool(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, model.NewValidationError(name, "must be true or false")
	}
	return &v, nil
}

func queryDays(c echo.Context) (int, error) {
	raw := c.QueryParam("days")
	if raw == "" {
		return defaultAnalyticsDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewValidationError("days", "must be an integer")
	}
	return days, nil
}

// queryTime accepts RFC3339 timestamps or plain dates
func queryTime(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, model.NewValidationError(name, "must be a date (YYYY-MM-DD) or RFC3339 timestamp")
}
