package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/ischoolgo/core/ai"
)

type aiApi struct {
	service *ai.Service
}

func registerAIAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *ai.Service) {
	api := aiApi{service: svc}

	ag := g.Group("/ai", auth)
	ag.POST("/chat", api.aiChat)
	ag.POST("/marketing", api.aiMarketing)
	ag.POST("/students/:id/analysis", api.aiStudentAnalysis)
	ag.POST("/at-risk", api.aiAtRisk)
}

func (api *aiApi) aiChat(ctx echo.Context) error {
	data := new(ai.ChatRequest)
	if err := bindBody(ctx, data, "chat request"); err != nil {
		return err
	}
	resp, err := api.service.Chat(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *aiApi) aiMarketing(ctx echo.Context) error {
	data := new(ai.MarketingRequest)
	if err := bindBody(ctx, data, "marketing request"); err != nil {
		return err
	}
	content, err := api.service.GenerateMarketing(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, content)
}

func (api *aiApi) aiStudentAnalysis(ctx echo.Context) error {
	analysis, err := api.service.AnalyzeStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, analysis)
}

func (api *aiApi) aiAtRisk(ctx echo.Context) error {
	report, err := api.service.PredictAtRisk(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, report)
}
