package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ellypaws/macrotune/pkg/api/paths"
)

var headHandlers = pathHandler{
	paths.Base: handler{head, withCache},
}

func head(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
