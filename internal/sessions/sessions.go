// Package sessions manages shopper sessions across channels.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/matthieukhl/loom/internal/audit"
	"github.com/matthieukhl/loom/internal/database"
	"github.com/matthieukhl/loom/internal/models"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrInvalidChannel = errors.New("invalid channel")
)

var channels = map[string]bool{
	models.ChannelMobile:   true,
	models.ChannelWeb:      true,
	models.ChannelWhatsApp: true,
}

type Service struct {
	db       *database.DB
	recorder audit.Recorder
}

func NewService(db *database.DB, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{db: db, recorder: recorder}
}

func normalizeChannel(channel string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(channel))
	if c == "" {
		return models.ChannelMobile, nil
	}
	if !channels[c] {
		return "", fmt.Errorf("%w: %q", ErrInvalidChannel, channel)
	}
	return c, nil
}

// Create starts a new session on channel, defaulting to mobile.
func (s *Service) Create(ctx context.Context, channel string) (*models.Session, error) {
	c, err := normalizeChannel(channel)
	if err != nil {
		return nil, err
	}

	session := &models.Session{ID: uuid.New().String(), Channel: c}
	_, err = s.db.ExecContext(ctx, "INSERT INTO sessions (id, channel) VALUES (?, ?)", session.ID, session.Channel)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.recorder.Record(ctx, session.ID, models.AgentSales, models.ActionSessionCreated, map[string]any{
		"message": "Session started on " + session.Channel,
		"channel": session.Channel,
	})
	return session, nil
}

// Ensure creates the session if it does not exist yet.
func Ensure(ctx context.Context, ex database.Execer, sessionID string) error {
	_, err := ex.ExecContext(ctx, "INSERT IGNORE INTO sessions (id, channel) VALUES (?, ?)", sessionID, models.ChannelMobile)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

// Get loads one session.
func (s *Service) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	var (
		session models.Session
		stage   sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, channel, current_stage, created_at FROM sessions WHERE id = ?", sessionID,
	).Scan(&session.ID, &session.Channel, &stage, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	session.CurrentStage = stage.String
	return &session, nil
}

// SetStage records where the shopper is in the flow.
func (s *Service) SetStage(ctx context.Context, sessionID, stage string) error {
	return s.update(ctx, sessionID, "UPDATE sessions SET current_stage = ? WHERE id = ?", stage)
}

// SwitchChannel moves the session to another channel.
func (s *Service) SwitchChannel(ctx context.Context, sessionID, channel string) error {
	c, err := normalizeChannel(channel)
	if err != nil {
		return err
	}
	if err := s.update(ctx, sessionID, "UPDATE sessions SET channel = ? WHERE id = ?", c); err != nil {
		return err
	}
	s.recorder.Record(ctx, sessionID, models.AgentSales, models.ActionChannelSwitched, map[string]any{
		"message": "Conversation moved to " + c,
		"channel": c,
	})
	return nil
}

func (s *Service) update(ctx context.Context, sessionID, query, value string) error {
	res, err := s.db.ExecContext(ctx, query, value, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	// MySQL reports zero affected rows when the value is unchanged.
	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", sessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	return nil
}
