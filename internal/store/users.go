package store

import (
	"database/sql"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// HasUsers reports whether the control panel requires a login.
func (s *Store) HasUsers() (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// EnsureUser creates the user, or updates the password if it already exists.
func (s *Store) EnsureUser(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE username = ?`, string(hash), username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = s.db.Exec(`INSERT INTO users (username, password_hash) VALUES (?, ?)`, username, string(hash))
	return err
}

// Authenticate checks credentials. A nil user with nil error means bad credentials.
func (s *Store) Authenticate(username, password string) (*User, error) {
	var u User
	var hash string
	err := s.db.QueryRow(
		`SELECT id, username, password_hash FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, nil
	}
	return &u, nil
}

// SaveWebSession persists a login token.
func (s *Store) SaveWebSession(token string, userID int64, expiry time.Time) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO web_sessions (token, user_id, expiry) VALUES (?, ?, ?)`,
		token, userID, expiry.UTC().Format(time.RFC3339))
	return err
}

// ValidWebSession reports whether token exists and has not expired.
func (s *Store) ValidWebSession(token string, now time.Time) bool {
	var expiry string
	err := s.db.QueryRow(`SELECT expiry FROM web_sessions WHERE token = ?`, token).Scan(&expiry)
	if err != nil {
		return false
	}
	t, err := time.Parse(time.RFC3339, expiry)
	if err != nil || now.After(t) {
		s.DeleteWebSession(token)
		return false
	}
	return true
}

func (s *Store) DeleteWebSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM web_sessions WHERE token = ?`, token)
	return err
}
