package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/ischoolgo/core/payment"
)

type paymentApi struct {
	service *payment.Service
}

func registerPaymentAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *payment.Service) {
	api := paymentApi{service: svc}

	pg := g.Group("/payments", auth)
	pg.GET("", api.paymentQuery)
	pg.POST("", api.paymentCreate)
	pg.GET("/stats", api.paymentStats)
	pg.GET("/:id", api.paymentRetrieve)
	pg.PUT("/:id", api.paymentUpdate)
	pg.PATCH("/:id/status", api.paymentUpdateStatus)
}

func (api *paymentApi) paymentQuery(ctx echo.Context) error {
	filter := new(payment.QueryFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	page, err := bindPage(ctx)
	if err != nil {
		return err
	}

	payments, err := api.service.List(ctx.Request().Context(), *filter, page)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *paymentApi) paymentCreate(ctx echo.Context) error {
	data := new(payment.NewPayment)
	if err := bindBody(ctx, data, "payment"); err != nil {
		return err
	}
	p, err := api.service.Create(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *paymentApi) paymentRetrieve(ctx echo.Context) error {
	p, err := api.service.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *paymentApi) paymentUpdate(ctx echo.Context) error {
	data := new(payment.UpdatePayment)
	if err := bindBody(ctx, data, "payment"); err != nil {
		return err
	}
	p, err := api.service.Update(ctx.Request().Context(), ctx.Param("id"), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *paymentApi) paymentUpdateStatus(ctx echo.Context) error {
	data := new(payment.UpdateStatus)
	if err := bindBody(ctx, data, "payment status"); err != nil {
		return err
	}
	p, err := api.service.UpdateStatus(ctx.Request().Context(), ctx.Param("id"), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *paymentApi) paymentStats(ctx echo.Context) error {
	filter := new(payment.StatsFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	stats, err := api.service.Stats(ctx.Request().Context(), *filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}
