// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: owner, validation, resolve, system
	Action   string // ユーザー向け対処方法

	// UpstreamStatus はUPSTREAM_ERRORの場合のリモートHTTPステータス。
	UpstreamStatus int
	// ContentType はUNSUPPORTED_CONTENT_TYPEの場合に宣言されていたContent-Type。
	ContentType string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	// URL解決（Resolver）
	ErrCodeMalformedURL           = "MALFORMED_URL"
	ErrCodeSSRFBlocked            = "SSRF_BLOCKED"
	ErrCodeUnknownStatusCode      = "UNKNOWN_STATUS_CODE"
	ErrCodeAccessDenied           = "ACCESS_DENIED"
	ErrCodeUpstreamError          = "UPSTREAM_ERROR"
	ErrCodeUnsupportedContentType = "UNSUPPORTED_CONTENT_TYPE"
	ErrCodeConnectionFailure      = "CONNECTION_FAILURE"
	ErrCodeInterruptedOperation   = "INTERRUPTED_OPERATION"

	// 取り込み・編集
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeItemNotFound    = "ITEM_NOT_FOUND"
	ErrCodeAccessForbidden = "ACCESS_FORBIDDEN"
	ErrCodeDuplicateEmail  = "DUPLICATE_EMAIL"

	// リクエスト検証
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeInvalidFilter  = "INVALID_FILTER"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
)

// IsCode はerrがAPIErrorであり、かつ指定コードを持つかを判定する。
func IsCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewMalformedURLError はURL構文エラーを生成する。
func NewMalformedURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeMalformedURL,
		Message:  fmt.Sprintf("URLの形式が正しくありません: %s", reason),
		Category: "validation",
		Action:   "http:// または https:// で始まる正しいURLを入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewUnknownStatusCodeError はリモートが未知のステータスコードを返した場合のエラーを生成する。
func NewUnknownStatusCodeError(status int) *APIError {
	return &APIError{
		Code:           ErrCodeUnknownStatusCode,
		Message:        fmt.Sprintf("リモートサーバーが不明なステータスコードを返しました: %d", status),
		Category:       "resolve",
		Action:         "URLが正しいか確認してください。",
		UpstreamStatus: status,
	}
}

// NewAccessDeniedError はリモートが401を返した場合のエラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:           ErrCodeAccessDenied,
		Message:        "リモートサーバーへのアクセスが拒否されました（401）。",
		Category:       "resolve",
		Action:         "認証なしで閲覧できるURLを指定してください。",
		UpstreamStatus: 401,
	}
}

// NewUpstreamError はリモートが4xx/5xxを返した場合のエラーを生成する。
func NewUpstreamError(status int) *APIError {
	return &APIError{
		Code:           ErrCodeUpstreamError,
		Message:        fmt.Sprintf("リモートサーバーがエラーを返しました: %d", status),
		Category:       "resolve",
		Action:         "URLが正しいか確認し、しばらく待ってから再度お試しください。",
		UpstreamStatus: status,
	}
}

// NewUnsupportedContentTypeError はtext/image/video以外のコンテンツ種別のエラーを生成する。
func NewUnsupportedContentTypeError(contentType string) *APIError {
	return &APIError{
		Code:        ErrCodeUnsupportedContentType,
		Message:     fmt.Sprintf("対応していないコンテンツ種別です: %s", contentType),
		Category:    "resolve",
		Action:      "記事・画像・動画のURLを指定してください。",
		ContentType: contentType,
	}
}

// NewConnectionFailureError は接続失敗・タイムアウト・読み取り失敗のエラーを生成する。
func NewConnectionFailureError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeConnectionFailure,
		Message:  fmt.Sprintf("URLへの接続に失敗しました: %s", reason),
		Category: "resolve",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewInterruptedOperationError は呼び出し元のキャンセルで処理が中断された場合のエラーを生成する。
func NewInterruptedOperationError() *APIError {
	return &APIError{
		Code:     ErrCodeInterruptedOperation,
		Message:  "URLの解決処理が中断されました。",
		Category: "system",
		Action:   "再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "owner",
		Action:   "X-Later-User-Id ヘッダーのユーザーIDを確認してください。",
	}
}

// NewItemNotFoundError はアイテム未検出エラーを生成する。
func NewItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定されたアイテムが見つかりません: %s", itemID),
		Category: "owner",
		Action:   "アイテムIDを確認してください。",
	}
}

// NewAccessForbiddenError は他ユーザーのアイテムを操作しようとした場合のエラーを生成する。
func NewAccessForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessForbidden,
		Message:  "このアイテムを操作する権限がありません。",
		Category: "owner",
		Action:   "自分が登録したアイテムのみ編集できます。",
	}
}

// NewDuplicateEmailError は登録済みのメールアドレスでユーザーを作成しようとした場合のエラーを生成する。
func NewDuplicateEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "validation",
		Action:   "別のメールアドレスを指定してください。",
	}
}

// NewInvalidRequestError はリクエスト内容が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidFilterError は無効なフィルタエラーを生成する。
func NewInvalidFilterError(filter string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効なフィルタです: %s", filter),
		Category: "validation",
		Action:   "state は all/unread/read、contentType は all/article/image/video、sort は newest/oldest/title のいずれかを指定してください。",
	}
}

// NewUnauthorizedError はユーザーIDが指定されていない場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ユーザーIDが指定されていません。",
		Category: "owner",
		Action:   "X-Later-User-Id ヘッダーを付与してください。",
	}
}
