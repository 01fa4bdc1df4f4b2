package store

import "log/slog"

const (
	keyMicConsent = "mic_consent"

	consentGranted = "granted"
	consentPending = "pending"
)

// Granted reports whether the user allowed microphone recording.
func (s *Store) Granted() bool {
	v, err := s.getSetting(keyMicConsent)
	if err != nil {
		slog.Error("read consent failed", "err", err)
		return false
	}
	return v == consentGranted
}

// Request marks a pending consent prompt for the control panel.
// It never downgrades an existing grant.
func (s *Store) Request() {
	if s.Granted() {
		return
	}
	if err := s.setSetting(keyMicConsent, consentPending); err != nil {
		slog.Error("request consent failed", "err", err)
		return
	}
	slog.Info("🎤 microphone permission requested")
}

// Pending reports whether a consent prompt is waiting for an answer.
func (s *Store) Pending() bool {
	v, err := s.getSetting(keyMicConsent)
	return err == nil && v == consentPending
}

func (s *Store) Grant() error {
	return s.setSetting(keyMicConsent, consentGranted)
}

func (s *Store) Revoke() error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, keyMicConsent)
	return err
}
