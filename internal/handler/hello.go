package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ilyaseen19/krios-sub001/pkg/logger"
)

func Hello(c echo.Context) error {
	log := logger.FromEcho(c)
	log.Info("Hello from sync-service")
	return c.JSON(http.StatusOK, echo.Map{"message": "hello from sync"})
}
