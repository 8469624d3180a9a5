package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/ischoolgo/core/attendance"
	"github.com/trezcool/ischoolgo/core/student"
)

type studentApi struct {
	service    *student.Service
	attendance *attendance.Service
}

func registerStudentAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *student.Service, attSvc *attendance.Service) {
	api := studentApi{service: svc, attendance: attSvc}

	sg := g.Group("/students", auth)
	sg.GET("", api.studentQuery)
	sg.POST("", api.studentCreate)
	sg.GET("/:id", api.studentRetrieve)
	sg.PUT("/:id", api.studentUpdate)
	sg.DELETE("/:id", api.studentDestroy)
	sg.GET("/:id/attendance", api.studentAttendance)
}

type deletionResponse struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
}

func (api *studentApi) studentQuery(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	page, err := bindPage(ctx)
	if err != nil {
		return err
	}
	var ord Ordering
	ord.Bind(ctx)

	students, err := api.service.List(ctx.Request().Context(), *filter, page, ord.Orderings)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) studentCreate(ctx echo.Context) error {
	data := new(student.NewStudent)
	if err := bindBody(ctx, data, "student"); err != nil {
		return err
	}
	s, err := api.service.Create(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *studentApi) studentRetrieve(ctx echo.Context) error {
	s, err := api.service.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) studentUpdate(ctx echo.Context) error {
	data := new(student.UpdateStudent)
	if err := bindBody(ctx, data, "student"); err != nil {
		return err
	}
	s, err := api.service.Update(ctx.Request().Context(), ctx.Param("id"), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) studentDestroy(ctx echo.Context) error {
	mode, err := api.service.Delete(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	msg := "student deleted"
	if mode == student.SoftDeleted {
		msg = "student has attendance or payment history and was marked inactive"
	}
	return ctx.JSON(http.StatusOK, deletionResponse{Message: msg, Mode: string(mode)})
}

func (api *studentApi) studentAttendance(ctx echo.Context) error {
	filter := new(attendance.HistoryFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	history, err := api.attendance.StudentHistory(ctx.Request().Context(), ctx.Param("id"), *filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, history)
}
