package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/user"
)

var errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")

// errorBody is the body of every error response but validation field maps.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code    int
			message interface{}
		)

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
			code = origErr.Code
			msg, ok := origErr.Message.(string)
			if !ok {
				msg = http.StatusText(code)
			}
			message = errorBody{Error: msg}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			code = http.StatusBadRequest
			if len(origErr.Fields) > 0 {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = errorBody{Error: core.ErrorTitle(origErr), Message: origErr.Error()}
			}
		case *core.NotFoundError:
			code = http.StatusNotFound
			message = errorBody{Error: core.ErrorTitle(origErr), Message: origErr.Error()}
		case *core.ForbiddenError:
			code = http.StatusForbidden
			message = errorBody{Error: core.ErrorTitle(origErr), Message: origErr.Error()}
		case *core.ConflictError:
			code = http.StatusConflict
			message = errorBody{Error: core.ErrorTitle(origErr), Message: origErr.Error()}
		case *core.ExternalServiceError:
			code = http.StatusBadGateway
			message = errorBody{Error: core.ErrorTitle(origErr), Message: origErr.Error()}
			logger.Warn("external service failed", err, requestActor(ctx))
		case *core.StoreError:
			// the operation only; driver details stay in the logs
			code = http.StatusInternalServerError
			message = errorBody{Error: core.ErrorTitle(origErr), Message: origErr.Op}
			logger.Error("store failed", err, requestActor(ctx))
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = errorBody{Error: core.ErrorTitle(origErr)}
			logger.Error(msg, errors.Wrap(err, msg), requestActor(ctx))

			if core.IsShutdown(err) && signalShutdown != nil {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			if body, ok := message.(errorBody); ok {
				body.Message = err.Error()
				message = body
			}
		}

		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func requestActor(ctx echo.Context) user.Actor {
	if claims, err := getContextClaims(ctx); err == nil {
		return claims.Actor()
	}
	return user.Actor{}
}
