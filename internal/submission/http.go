package submission

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
)

// Inserter は受付内容を保存できるストアが実装します。
type Inserter interface {
	Insert(ctx context.Context, sub *Submission) error
}

// Lister は保存済みの受付内容を取得できるストアが実装します。
type Lister interface {
	ListAll(ctx context.Context) ([]Submission, error)
}

type submitRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Message  string `json:"message"`
}

// SubmitHandler は POST /api/submit のハンドラーを返します。
// full_name・phone・message は必須、email は任意（指定時は形式を検証して
// 正規化したうえで保存）です。
func SubmitHandler(svc Inserter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "Invalid request body",
			})
			return
		}

		if strings.TrimSpace(req.FullName) == "" ||
			strings.TrimSpace(req.Phone) == "" ||
			strings.TrimSpace(req.Message) == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "Required fields missing",
			})
			return
		}

		email := ""
		if strings.TrimSpace(req.Email) != "" {
			normalized, err := normalizeEmail(req.Email)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"success": false,
					"message": "Invalid email address",
				})
				return
			}
			email = normalized
		}

		sub := &Submission{
			FullName: strings.TrimSpace(req.FullName),
			Phone:    strings.TrimSpace(req.Phone),
			Email:    email,
			Message:  strings.TrimSpace(req.Message),
		}

		if err := svc.Insert(c.Request.Context(), sub); err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Submission received",
		})
	}
}

// listItem は一覧APIのレスポンス1行です。内部採番のidは返しません。
type listItem struct {
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Message     string `json:"message"`
	SubmittedAt string `json:"submitted_at"`
}

// ListHandler は GET /api/admin/submissions のハンドラーを返します。
// 認証ミドルウェアの内側に配線する前提です。
func ListHandler(svc Lister) gin.HandlerFunc {
	return func(c *gin.Context) {
		submissions, err := svc.ListAll(c.Request.Context())
		if err != nil {
			respondWithError(c, err)
			return
		}

		data := make([]listItem, 0, len(submissions))
		for _, sub := range submissions {
			data = append(data, listItem{
				FullName:    sub.FullName,
				Phone:       sub.Phone,
				Email:       sub.Email,
				Message:     sub.Message,
				SubmittedAt: sub.SubmittedAt.UTC().Format("2006-01-02 15:04:05"),
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    data,
		})
	}
}

// normalizeEmail はメールアドレスを検証し、保存用に正規化して返します。
func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(addr.Address), nil
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr) && apiErr.Code == CodeInvalidInput:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": apiErr.Message,
		})
	default:
		// 内部詳細はクライアントに返さずサーバーログにのみ残す
		log.Printf("submission storage error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Server error",
		})
	}
}
