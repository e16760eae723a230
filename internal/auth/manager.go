// Package auth は管理者認証とセッションの発行・検証・破棄を提供します。
package auth

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/contact-desk/internal/config"
)

const (
	SessionCookieName  = "cd_session"
	sessionKeyUser     = "auth_user"
	sessionKeyIssuedAt = "issued_at"
)

// セッションは発行から24時間で無効化する（絶対期限）。
var maxSessionLifetime = 24 * time.Hour

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func SessionMaxAgeSeconds() int {
	return int(maxSessionLifetime.Seconds())
}

// ContextUserKey は、ハンドラー間でログイン済みユーザー名を共有するためのキーです。
const ContextUserKey = "auth.user"

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	cfg       *config.Config
	dummyHash []byte
}

// NewManager は認証マネージャーを作成します。
// ユーザー名が一致しない場合でも同等コストの比較を必ず行えるよう、
// 設定済みハッシュとコストを揃えたダミーハッシュをここで用意します。
func NewManager(cfg *config.Config) *Manager {
	cost := bcrypt.DefaultCost
	if c, err := bcrypt.Cost([]byte(cfg.AdminPasswordHash)); err == nil {
		cost = c
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("contact-desk.dummy-credential"), cost)
	if err != nil {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("contact-desk.dummy-credential"), bcrypt.DefaultCost)
	}
	return &Manager{
		cfg:       cfg,
		dummyHash: dummy,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login は POST /api/admin/login のハンドラーです。
func (m *Manager) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Username and password are required",
		})
		return
	}

	if err := m.ensureCredentials(); err != nil {
		log.Printf("login rejected: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Server error",
		})
		return
	}

	if !m.verify(req.Username, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "Invalid credentials",
		})
		return
	}

	session := sessions.Default(c)
	session.Set(sessionKeyUser, m.cfg.AdminUsername)
	session.Set(sessionKeyIssuedAt, time.Now().Unix())
	if err := session.Save(); err != nil {
		log.Printf("failed to save session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Server error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Logout は POST /api/admin/logout のハンドラーです。
// 既に破棄済み・存在しないセッションに対しても成功を返します。
func (m *Manager) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		log.Printf("failed to clear session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Server error",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CheckAuth は GET /api/admin/check-auth のハンドラーです。
// セッションの有無に関わらず常に200で認証状態を返します。
func (m *Manager) CheckAuth(c *gin.Context) {
	_, ok := m.sessionUser(c)
	c.JSON(http.StatusOK, gin.H{"authenticated": ok})
}

// RequireLogin はセッションを検証するミドルウェアを返します。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := m.sessionUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Unauthorized",
			})
			return
		}
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// sessionUser はセッションからログイン済みユーザー名を取り出します。
// 期限切れのセッションはその場で破棄し、未認証として扱います。
func (m *Manager) sessionUser(c *gin.Context) (string, bool) {
	session := sessions.Default(c)
	user, ok := session.Get(sessionKeyUser).(string)
	if !ok || user == "" {
		return "", false
	}

	issuedAt := readUnix(session.Get(sessionKeyIssuedAt))
	if issuedAt.IsZero() || time.Since(issuedAt) > maxSessionLifetime {
		session.Clear()
		_ = session.Save()
		return "", false
	}

	return user, true
}

func (m *Manager) ensureCredentials() error {
	if m.cfg.AdminUsername == "" {
		return errors.New("ADMIN_USERNAME is not configured")
	}
	if m.cfg.AdminPasswordHash == "" {
		return errors.New("ADMIN_PASSWORD_HASH is not configured")
	}
	if m.cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is not configured")
	}
	return nil
}

// verify は資格情報を検証します。ユーザー名の一致に関わらず
// bcrypt比較をちょうど1回実行し、応答時間からユーザー名の存在が
// 推測できないようにしています。平文もハッシュもログには残しません。
func (m *Manager) verify(username, password string) bool {
	hash := []byte(m.cfg.AdminPasswordHash)
	userOK := username == m.cfg.AdminUsername
	if !userOK || len(hash) == 0 {
		hash = m.dummyHash
	}
	passOK := bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
	return userOK && passOK
}

func readUnix(v interface{}) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	case float64:
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}
