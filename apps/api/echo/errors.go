package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/coursegen/core"
	"github.com/trezcool/coursegen/core/course"
	"github.com/trezcool/coursegen/core/ledger"
)

var errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *course.InvalidStateTransitionError:
			code = http.StatusConflict
			message = origErr.Error()
		case *course.RefinementLimitExceededError:
			code = http.StatusUnprocessableEntity
			message = origErr.Error()
		case *course.GenerationFailedError:
			code = http.StatusBadGateway
			message = origErr.Error()
		case *ledger.GatewayError:
			code = http.StatusBadGateway
			message = origErr.Error()
		default:
			switch origErr {
			case course.ErrNotFound, course.ErrChapterNotFound, course.ErrContentNotFound, ledger.ErrEntryNotFound:
				code = http.StatusNotFound
				message = origErr.Error()
			case course.ErrChapterNotReady:
				code = http.StatusConflict
				message = origErr.Error()
			case course.ErrConcurrencyConflict:
				code = http.StatusConflict
				message = origErr.Error()
			case ledger.ErrInsufficientPoints:
				code = http.StatusBadRequest
				message = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var uid string
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					uid = claims.Subject
				}
				logger.Error(msg, errors.Wrap(err, msg), uid)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
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
