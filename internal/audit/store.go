package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/matthieukhl/loom/internal/database"
	"github.com/matthieukhl/loom/internal/models"
)

// TimelineLimit caps the global timeline.
const TimelineLimit = 100

// feedActions are the events shown in the per-session agent feed.
var feedActions = []string{
	models.ActionMessage,
	models.ActionOrderConfirmation,
	models.ActionOrderPlaced,
	models.ActionAddToCart,
}

var uuidRe = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Store reads and writes the agent_events table.
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Append inserts one event.
func (s *Store) Append(ctx context.Context, event models.AgentEvent) error {
	query := `
		INSERT INTO agent_events (id, session_id, agent_name, action, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.SessionID, event.AgentName, event.Action, string(event.Metadata), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert agent event: %w", err)
	}
	return nil
}

// ChatMessage is one line of a rendered conversation.
type ChatMessage struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// History renders a session's events as a conversation, oldest first.
func (s *Store) History(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	query := `
		SELECT agent_name, action, metadata, created_at
		FROM agent_events
		WHERE session_id = ?
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	history := []ChatMessage{}
	for rows.Next() {
		var (
			agent, action string
			metadata      sql.NullString
			msg           ChatMessage
		)
		if err := rows.Scan(&agent, &action, &metadata, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		msg.Role = "ai"
		if agent == models.AgentCustomer || agent == "User" {
			msg.Role = "user"
		}
		msg.Action = action
		msg.Text = messageText(metadata.String)
		history = append(history, msg)
	}
	return history, rows.Err()
}

func messageText(raw string) string {
	var meta struct {
		Message string `json:"message"`
	}
	if raw == "" || json.Unmarshal([]byte(raw), &meta) != nil || meta.Message == "" {
		return "..."
	}
	return meta.Message
}

// Timeline returns the most recent events across all sessions.
func (s *Store) Timeline(ctx context.Context) ([]models.AgentEvent, error) {
	query := `
		SELECT id, session_id, agent_name, action, metadata, created_at
		FROM agent_events
		ORDER BY created_at DESC
		LIMIT ?
	`
	return s.queryEvents(ctx, query, TimelineLimit)
}

// AgentFeed returns a session's customer-visible events, newest first.
// Session ids that are not UUIDs yield an empty feed.
func (s *Store) AgentFeed(ctx context.Context, sessionID string) ([]models.AgentEvent, error) {
	if !uuidRe.MatchString(sessionID) {
		return []models.AgentEvent{}, nil
	}
	query := `
		SELECT id, session_id, agent_name, action, metadata, created_at
		FROM agent_events
		WHERE session_id = ? AND action IN (?, ?, ?, ?)
		ORDER BY created_at DESC
	`
	args := []any{sessionID}
	for _, a := range feedActions {
		args = append(args, a)
	}
	return s.queryEvents(ctx, query, args...)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]models.AgentEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent events: %w", err)
	}
	defer rows.Close()

	events := []models.AgentEvent{}
	for rows.Next() {
		var (
			e        models.AgentEvent
			metadata sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.AgentName, &e.Action, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent event: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			e.Metadata = json.RawMessage(metadata.String)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

var _ Sink = (*Store)(nil)
