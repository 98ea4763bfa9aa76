// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/later/internal/middleware"
	"github.com/hitoshi/later/internal/model"
)

// writeAPIErrorResponse はAPIErrorを統一フォーマットのJSONで書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeUnauthorized は所有者を特定できない場合の401レスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMalformedURL, model.ErrCodeInvalidRequest, model.ErrCodeInvalidFilter:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked, model.ErrCodeAccessForbidden:
		return http.StatusForbidden
	case model.ErrCodeUnknownStatusCode, model.ErrCodeAccessDenied,
		model.ErrCodeUpstreamError, model.ErrCodeConnectionFailure:
		return http.StatusBadGateway
	case model.ErrCodeUnsupportedContentType:
		return http.StatusUnprocessableEntity
	case model.ErrCodeInterruptedOperation:
		return http.StatusServiceUnavailable
	case model.ErrCodeUserNotFound, model.ErrCodeItemNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateEmail:
		return http.StatusConflict
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
