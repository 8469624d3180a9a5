package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ischoolgo/core/user"
)

type userApi struct {
	service *user.Service
	tokens  *TokenIssuer
}

func registerUserAPI(g *echo.Group, auth echo.MiddlewareFunc, tokens *TokenIssuer, svc *user.Service) {
	api := userApi{service: svc, tokens: tokens}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.userLogin)
	ug.POST("/password-reset", api.userResetPassword)
	ug.POST("/password-reset-confirm", api.userConfirmPasswordReset)

	// authed endpoints
	ag := ug.Group("", auth)
	ag.POST("/token-refresh", api.userRefreshToken)
	ag.POST("/logout", api.userLogout)
	ag.GET("/me", api.userMe)
	ag.GET("/roles", api.userQueryRoles)
	ag.POST("/register", api.userCreate)
	ag.GET("", api.userQuery)
	ag.GET("/:id", api.userRetrieve)
	ag.PUT("/:id", api.userUpdate)
	ag.DELETE("/:id", api.userDestroy)
}

type (
	loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	tokenResponse struct {
		Token string `json:"token"`
	}

	passwordResetRequest struct {
		Email string `json:"email"`
	}

	messageResponse struct {
		Message string `json:"message"`
	}
)

// Handlers

func (api *userApi) userLogin(ctx echo.Context) error {
	data := new(loginRequest)
	if err := bindBody(ctx, data, "login request"); err != nil {
		return err
	}
	if data.Email == "" || data.Password == "" {
		return errAuthenticationFailed
	}

	token, err := authenticate(ctx, api.tokens, api.service, data.Email, data.Password)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tokenResponse{Token: token})
}

func (api *userApi) userRefreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.tokens, api.service)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tokenResponse{Token: token})
}

func (api *userApi) userLogout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	token, _ := ctx.Get(contextTokenKey).(string)
	if err = api.service.SignOut(ctx.Request().Context(), token, claims.ExpiresAt.Time); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) userMe(ctx echo.Context) error {
	usr, err := api.service.CurrentUser(ctx.Request().Context())
	if err != nil {
		if err == user.ErrNotFound {
			return errUnauthorized
		}
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

// userResetPassword answers the same way whether the email is known or not.
func (api *userApi) userResetPassword(ctx echo.Context) error {
	data := new(passwordResetRequest)
	if err := bindBody(ctx, data, "password reset request"); err != nil {
		return err
	}
	if data.Email != "" {
		err := api.service.RequestPasswordReset(ctx.Request().Context(), data.Email)
		if err != nil && err != user.ErrNotFound && errors.Cause(err) != user.ErrAccountInactive {
			return err
		}
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "if the account exists, a reset link has been sent"})
}

func (api *userApi) userConfirmPasswordReset(ctx echo.Context) error {
	data := new(user.ResetUserPassword)
	if err := bindBody(ctx, data, "password reset"); err != nil {
		return err
	}
	if _, err := api.service.ResetPassword(ctx.Request().Context(), *data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "password has been reset"})
}

func (api *userApi) userQueryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) userCreate(ctx echo.Context) error {
	data := new(user.NewUser)
	if err := bindBody(ctx, data, "user"); err != nil {
		return err
	}
	usr, err := api.service.Register(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) userQuery(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	var ord Ordering
	ord.Bind(ctx)

	users, err := api.service.Query(ctx.Request().Context(), filter, ord.Orderings)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) userRetrieve(ctx echo.Context) error {
	usr, err := api.service.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) userUpdate(ctx echo.Context) error {
	data := new(user.UpdateUser)
	if err := bindBody(ctx, data, "user"); err != nil {
		return err
	}
	usr, err := api.service.Update(ctx.Request().Context(), ctx.Param("id"), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) userDestroy(ctx echo.Context) error {
	n, err := api.service.Delete(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if n == 0 {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}
