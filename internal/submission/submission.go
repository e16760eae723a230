// Package submission はお問い合わせフォームの受付内容の永続化と取得を提供します。
package submission

import "time"

// エラー種別コード。ハンドラーがHTTPステータスへ変換する際に参照します。
const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeStorage      = "STORAGE_ERROR"
)

// Submission は1件のお問い合わせを表します。
// 登録後に更新・削除されることはありません。
type Submission struct {
	ID          int64     `json:"id"`
	FullName    string    `json:"full_name"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Message     string    `json:"message"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Error は入力不正・ストレージ障害を種別付きで表すエラーです。
type Error struct {
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap は元のエラーを返します。
func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}
