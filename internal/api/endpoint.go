package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "stream-monetization-workers/internal/common/errors"
	"stream-monetization-workers/internal/common/logger"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type errorResponse struct {
	Error *apperrors.StandardError `json:"error"`
}

// endpoint decodes the JSON body into I, applies path bindings, validates
// and runs exec. Errors are rendered with StatusFor.
func endpoint[I, O any](log logger.Logger, exec Executor[I, O], bind func(*http.Request, *I)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLog := log.WithFields(map[string]interface{}{
			"requestId": middleware.GetReqID(r.Context()),
			"path":      r.URL.Path,
		})

		if exec == nil {
			writeError(w, r, &apperrors.StandardError{
				Code:    apperrors.ErrCodeInternal,
				Message: "handler not configured",
			}, http.StatusServiceUnavailable)
			return
		}

		input := new(I)
		if err := json.NewDecoder(r.Body).Decode(input); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, r, apperrors.NewInvalidInputError("invalid request body: "+err.Error()), http.StatusBadRequest)
			return
		}
		if bind != nil {
			bind(r, input)
		}
		if err := validate.Struct(input); err != nil {
			writeError(w, r, apperrors.NewInvalidInputError(describeValidation(err)), http.StatusBadRequest)
			return
		}

		output, err := exec.Execute(r.Context(), input)
		if err != nil {
			stdErr := apperrors.Normalize(err)
			status := StatusFor(stdErr)
			if status >= http.StatusInternalServerError {
				reqLog.Error("request failed", map[string]interface{}{"code": stdErr.Code, "error": err.Error()})
			} else {
				reqLog.Info("request rejected", map[string]interface{}{"code": stdErr.Code, "details": stdErr.Details})
			}
			writeError(w, r, stdErr, status)
			return
		}

		render.JSON(w, r, output)
	}
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(err *apperrors.StandardError) int {
	switch err.Code {
	case apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeViewerNotFound, apperrors.ErrCodeTemplateNotFound, apperrors.ErrCodeEventNotFound,
		apperrors.ErrCodeConversionNotFound, apperrors.ErrCodeSuggestionNotFound, apperrors.ErrCodeSendNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeBusinessRule, apperrors.ErrCodeInvalidStatusChange, apperrors.ErrCodeRefundNotAllowed:
		return http.StatusConflict
	case apperrors.ErrCodePaymentProviderFailed, apperrors.ErrCodeExternalService,
		apperrors.ErrCodeNotificationSendFailed, apperrors.ErrCodeTimeout:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err *apperrors.StandardError, status int) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err})
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
