// Package errors provides standardized error handling for job workers and
// the HTTP surface.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	ErrCodeViewerNotFound     ErrorCode = "VIEWER_NOT_FOUND"
	ErrCodeTemplateNotFound   ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeEventNotFound      ErrorCode = "EVENT_NOT_FOUND"
	ErrCodeConversionNotFound ErrorCode = "CONVERSION_NOT_FOUND"
	ErrCodeSuggestionNotFound ErrorCode = "SUGGESTION_NOT_FOUND"
	ErrCodeSendNotFound       ErrorCode = "NOTIFICATION_SEND_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInvalidStatusChange    ErrorCode = "INVALID_STATUS_TRANSITION"

	ErrCodePaymentProviderFailed ErrorCode = "PAYMENT_PROVIDER_FAILED"
	ErrCodeRefundNotAllowed      ErrorCode = "REFUND_NOT_ALLOWED"

	ErrCodeBusinessRule    ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// AsStandardError unwraps err looking for a *StandardError.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details, false)
}

func NewViewerNotFoundError(viewerID string) *StandardError {
	return newError(ErrCodeViewerNotFound, "Viewer not found", fmt.Sprintf("viewer %s", viewerID), false)
}

func NewTemplateNotFoundError(templateID string) *StandardError {
	return newError(ErrCodeTemplateNotFound, "Notification template not found", fmt.Sprintf("template %s", templateID), false)
}

func NewEventNotFoundError(eventID string) *StandardError {
	return newError(ErrCodeEventNotFound, "Event not found", fmt.Sprintf("event %s", eventID), false)
}

func NewConversionNotFoundError(ref string) *StandardError {
	return newError(ErrCodeConversionNotFound, "Conversion not found", ref, false)
}

func NewSuggestionNotFoundError(suggestionID string) *StandardError {
	return newError(ErrCodeSuggestionNotFound, "Suggestion not found", fmt.Sprintf("suggestion %s", suggestionID), false)
}

func NewSendNotFoundError(ref string) *StandardError {
	return newError(ErrCodeSendNotFound, "Notification send not found", ref, false)
}

func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, fmt.Sprintf("Query '%s' failed", operation), err.Error(), true)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert failed", err.Error(), true)
}

func NewInvalidStatusTransitionError(from, to string) *StandardError {
	return newError(ErrCodeInvalidStatusChange, "Invalid status transition", fmt.Sprintf("%s -> %s", from, to), false)
}

func NewPaymentProviderError(operation string, err error) *StandardError {
	return newError(ErrCodePaymentProviderFailed, fmt.Sprintf("Payment provider '%s' failed", operation), err.Error(), true)
}

func NewRefundNotAllowedError(conversionID, status string) *StandardError {
	return newError(ErrCodeRefundNotAllowed, "Refund not allowed", fmt.Sprintf("conversion %s has status %s", conversionID, status), false)
}

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

// ==========================
// 4. Classification
// ==========================

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:             "INVALID_INPUT",
	ErrCodeViewerNotFound:           "VIEWER_NOT_FOUND",
	ErrCodeTemplateNotFound:         "TEMPLATE_NOT_FOUND",
	ErrCodeEventNotFound:            "EVENT_NOT_FOUND",
	ErrCodeConversionNotFound:       "CONVERSION_NOT_FOUND",
	ErrCodeSuggestionNotFound:       "SUGGESTION_NOT_FOUND",
	ErrCodeSendNotFound:             "NOTIFICATION_SEND_NOT_FOUND",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
	ErrCodeDatabaseInsertFailed:     "DATABASE_INSERT_FAILED",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
	ErrCodeInvalidStatusChange:      "INVALID_STATUS_TRANSITION",
	ErrCodePaymentProviderFailed:    "PAYMENT_PROVIDER_FAILED",
	ErrCodeRefundNotAllowed:         "REFUND_NOT_ALLOWED",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeNotificationSendFailed,
		ErrCodePaymentProviderFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeTimeout:
		return 2

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func IsNotFound(code ErrorCode) bool {
	return strings.HasSuffix(string(code), "_NOT_FOUND")
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case IsNotFound(code):
		return "NOT_FOUND"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "PAYMENT") || strings.Contains(codeStr, "REFUND"):
		return "PAYMENT"
	case strings.Contains(codeStr, "EXTERNAL") || strings.Contains(codeStr, "TIMEOUT"):
		return "EXTERNAL"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "BUSINESS"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
