package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/payvault/pkg/db/pagination"
)

func parseID(raw string) (snowflake.ID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return snowflake.ID(value), true
}

func pageFromQuery(c *gin.Context) pagination.Page {
	return pagination.Parse(c.Query("page"), c.Query("page_size"))
}
