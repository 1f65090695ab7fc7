package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// uintParam reads a positive integer path parameter.
func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// intQuery reads an optional integer query parameter.
func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// dayQuery parses a YYYY-MM-DD query parameter as a UTC day, defaulting to today.
func dayQuery(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return time.ParseInLocation("2006-01-02", raw, time.UTC)
}
