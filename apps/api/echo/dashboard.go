package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/ischoolgo/core/stats"
)

type dashboardApi struct {
	service *stats.Service
}

func registerDashboardAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *stats.Service) {
	api := dashboardApi{service: svc}

	dg := g.Group("/dashboard", auth)
	dg.GET("/overview", api.dashboardOverview)
	dg.GET("/revenue", api.dashboardRevenue)
	dg.GET("/enrollment-trends", api.dashboardEnrollmentTrends)
	dg.GET("/top-groups", api.dashboardTopGroups)
}

func (api *dashboardApi) dashboardOverview(ctx echo.Context) error {
	overview, err := api.service.Overview(ctx.Request().Context(), ctx.QueryParam("timeframe"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, overview)
}

func (api *dashboardApi) dashboardRevenue(ctx echo.Context) error {
	revenue, err := api.service.Revenue(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, revenue)
}

func (api *dashboardApi) dashboardEnrollmentTrends(ctx echo.Context) error {
	trends, err := api.service.EnrollmentTrends(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, trends)
}

func (api *dashboardApi) dashboardTopGroups(ctx echo.Context) error {
	groups, err := api.service.TopGroups(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, groups)
}
