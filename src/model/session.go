package model

import (
	"database/sql"
	"time"
)

type Session struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Token        string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Session) CreateSession(db *sql.DB) error {
	s.CreatedAt = time.Now()
	res, err := db.Exec(`
		INSERT INTO sessions (user_id, token, refresh_token, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.UserID, s.Token, s.RefreshToken, s.ExpiresAt, s.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

func GetSessionByToken(db *sql.DB, token string) (*Session, error) {
	row := db.QueryRow(`
		SELECT id, user_id, token, refresh_token, expires_at, created_at
		FROM sessions WHERE token = ? AND expires_at > CURRENT_TIMESTAMP`, token)

	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.Token, &s.RefreshToken, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func GetSessionByRefreshToken(db *sql.DB, refreshToken string) (*Session, error) {
	row := db.QueryRow(`
		SELECT id, user_id, token, refresh_token, expires_at, created_at
		FROM sessions WHERE refresh_token = ? AND expires_at > CURRENT_TIMESTAMP`, refreshToken)

	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.Token, &s.RefreshToken, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSessionTokens swaps in a fresh token pair after a refresh.
func (s *Session) UpdateSessionTokens(db *sql.DB, token, refreshToken string, expiresAt time.Time) error {
	_, err := db.Exec(`
		UPDATE sessions SET token = ?, refresh_token = ?, expires_at = ? WHERE id = ?`,
		token, refreshToken, expiresAt, s.ID,
	)
	if err != nil {
		return err
	}
	s.Token = token
	s.RefreshToken = refreshToken
	s.ExpiresAt = expiresAt
	return nil
}

func DeleteSessionByToken(db *sql.DB, token string) error {
	_, err := db.Exec("DELETE FROM sessions WHERE token = ?", token)
	return err
}

func DeleteExpiredSessions(db *sql.DB) error {
	_, err := db.Exec("DELETE FROM sessions WHERE expires_at <= CURRENT_TIMESTAMP")
	return err
}
