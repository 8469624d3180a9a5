package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/ischoolgo/core/attendance"
)

type attendanceApi struct {
	service *attendance.Service
}

func registerAttendanceAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *attendance.Service) {
	api := attendanceApi{service: svc}

	ag := g.Group("/attendance", auth)
	ag.POST("", api.attendanceRecord)
	ag.GET("/stats", api.attendanceStats)
}

func (api *attendanceApi) attendanceRecord(ctx echo.Context) error {
	data := new(attendance.NewRecord)
	if err := bindBody(ctx, data, "attendance"); err != nil {
		return err
	}
	rec, err := api.service.Record(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) attendanceStats(ctx echo.Context) error {
	filter := new(attendance.StatsFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	stats, err := api.service.Stats(ctx.Request().Context(), *filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}
