package submission

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	full_name TEXT NOT NULL,
	phone TEXT NOT NULL,
	email TEXT,
	message TEXT NOT NULL,
	submitted_at DATETIME NOT NULL
);
`

// Store は受付内容をSQLiteデータベースに永続化します。
type Store struct {
	db *sql.DB
}

// NewStore は保存先ディレクトリを作成し、データベースを開いてスキーマを初期化します。
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// 書き込みはSQLite側で直列化される。コネクションを1本に絞って
	// 並行アクセス時の SQLITE_BUSY を避ける。
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create submissions table: %w", err)
	}
	return nil
}

// Close はデータベース接続を閉じます。
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert は受付内容を1件保存します。必須項目が欠けている場合は
// CodeInvalidInput のエラーを返し、行は追加されません。
// 成功を返した時点で行は永続化されています。IDとSubmittedAtは
// 保存時にこちらで採番・設定します。
func (s *Store) Insert(ctx context.Context, sub *Submission) error {
	if strings.TrimSpace(sub.FullName) == "" ||
		strings.TrimSpace(sub.Phone) == "" ||
		strings.TrimSpace(sub.Message) == "" {
		return newError(CodeInvalidInput, "Required fields missing", nil)
	}

	sub.SubmittedAt = time.Now().UTC()

	email := sql.NullString{String: sub.Email, Valid: sub.Email != ""}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (full_name, phone, email, message, submitted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sub.FullName, sub.Phone, email, sub.Message, sub.SubmittedAt,
	)
	if err != nil {
		return newError(CodeStorage, "failed to insert submission", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return newError(CodeStorage, "failed to read submission id", err)
	}
	sub.ID = id
	return nil
}

// ListAll は全件を新しい順に返します。submitted_at が同時刻の場合は
// 採番された id の降順で並べます。
func (s *Store) ListAll(ctx context.Context) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, full_name, phone, COALESCE(email, ''), message, submitted_at
		 FROM submissions
		 ORDER BY submitted_at DESC, id DESC`,
	)
	if err != nil {
		return nil, newError(CodeStorage, "failed to list submissions", err)
	}
	defer rows.Close()

	var submissions []Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.ID, &sub.FullName, &sub.Phone, &sub.Email, &sub.Message, &sub.SubmittedAt); err != nil {
			return nil, newError(CodeStorage, "failed to scan submission", err)
		}
		submissions = append(submissions, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, newError(CodeStorage, "failed to iterate submissions", err)
	}
	return submissions, nil
}

// Count は保存済みの件数を返します。
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&n); err != nil {
		return 0, newError(CodeStorage, "failed to count submissions", err)
	}
	return n, nil
}
