package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/ischoolgo/core/attendance"
	"github.com/trezcool/ischoolgo/core/group"
)

type groupApi struct {
	service    *group.Service
	attendance *attendance.Service
}

func registerGroupAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *group.Service, attSvc *attendance.Service) {
	api := groupApi{service: svc, attendance: attSvc}

	gg := g.Group("/groups", auth)
	gg.GET("", api.groupQuery)
	gg.POST("", api.groupCreate)
	gg.GET("/:id", api.groupRetrieve)
	gg.PUT("/:id", api.groupUpdate)
	gg.GET("/:id/students", api.groupStudents)
	gg.GET("/:id/attendance", api.groupAttendance)
	gg.POST("/:id/attendance", api.groupRecordAttendance)
}

func (api *groupApi) groupQuery(ctx echo.Context) error {
	filter := new(group.QueryFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	page, err := bindPage(ctx)
	if err != nil {
		return err
	}
	var ord Ordering
	ord.Bind(ctx)

	groups, err := api.service.List(ctx.Request().Context(), *filter, page, ord.Orderings)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) groupCreate(ctx echo.Context) error {
	data := new(group.NewGroup)
	if err := bindBody(ctx, data, "group"); err != nil {
		return err
	}
	grp, err := api.service.Create(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) groupRetrieve(ctx echo.Context) error {
	grp, err := api.service.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) groupUpdate(ctx echo.Context) error {
	data := new(group.UpdateGroup)
	if err := bindBody(ctx, data, "group"); err != nil {
		return err
	}
	grp, err := api.service.Update(ctx.Request().Context(), ctx.Param("id"), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) groupStudents(ctx echo.Context) error {
	members, err := api.service.Students(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, members)
}

// groupAttendance returns the roster of the group on `?date=`, missing facts reported as not_recorded.
func (api *groupApi) groupAttendance(ctx echo.Context) error {
	roster, err := api.attendance.ByGroupAndDate(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam("date"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, roster)
}

func (api *groupApi) groupRecordAttendance(ctx echo.Context) error {
	data := new(attendance.BulkRecord)
	if err := bindBody(ctx, data, "attendance"); err != nil {
		return err
	}
	records, err := api.attendance.RecordBulk(ctx.Request().Context(), ctx.Param("id"), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, records)
}
