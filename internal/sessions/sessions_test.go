package sessions

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/matthieukhl/loom/internal/database"
	"github.com/matthieukhl/loom/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	sessionID, agent, action string
}

type fakeRecorder struct {
	events []recorded
}

func (f *fakeRecorder) Record(_ context.Context, sessionID, agent, action string, _ map[string]any) {
	f.events = append(f.events, recorded{sessionID, agent, action})
}

func newService(t *testing.T) (*Service, sqlmock.Sqlmock, *fakeRecorder) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	rec := &fakeRecorder{}
	return NewService(database.Wrap(db), rec), mock, rec
}

func TestCreate(t *testing.T) {
	svc, mock, rec := newService(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions (id, channel)")).
		WithArgs(sqlmock.AnyArg(), models.ChannelWhatsApp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := svc.Create(context.Background(), "WhatsApp")
	require.NoError(t, err)
	assert.Len(t, session.ID, 36)
	assert.Equal(t, models.ChannelWhatsApp, session.Channel)
	require.Len(t, rec.events, 1)
	assert.Equal(t, models.ActionSessionCreated, rec.events[0].action)
}

func TestCreate_DefaultsToMobile(t *testing.T) {
	svc, mock, _ := newService(t)
	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(sqlmock.AnyArg(), models.ChannelMobile).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := svc.Create(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, models.ChannelMobile, session.Channel)
}

func TestCreate_InvalidChannel(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Create(context.Background(), "fax")
	assert.ErrorIs(t, err, ErrInvalidChannel)
}

func TestEnsure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO sessions")).
		WithArgs("s1", models.ChannelMobile).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Ensure(context.Background(), database.Wrap(db), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	svc, mock, _ := newService(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE id = ?")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "channel", "current_stage", "created_at"}).
			AddRow("s1", "web", nil, time.Now()))

	session, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "web", session.Channel)
	assert.Empty(t, session.CurrentStage)

	mock.ExpectQuery("FROM sessions").WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "channel", "current_stage", "created_at"}))
	_, err = svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSwitchChannel(t *testing.T) {
	svc, mock, rec := newService(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET channel = ?")).
		WithArgs(models.ChannelWeb, "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.SwitchChannel(context.Background(), "s1", "web"))
	require.Len(t, rec.events, 1)
	assert.Equal(t, models.ActionChannelSwitched, rec.events[0].action)
}

func TestSetStage_UnchangedValue(t *testing.T) {
	svc, mock, _ := newService(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET current_stage = ?")).
		WithArgs("checkout", "s1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM sessions")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	assert.NoError(t, svc.SetStage(context.Background(), "s1", "checkout"))
}

func TestSetStage_Missing(t *testing.T) {
	svc, mock, _ := newService(t)
	mock.ExpectExec("UPDATE sessions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM sessions").WillReturnRows(sqlmock.NewRows([]string{"1"}))

	assert.ErrorIs(t, svc.SetStage(context.Background(), "ghost", "browse"), ErrNotFound)
}
