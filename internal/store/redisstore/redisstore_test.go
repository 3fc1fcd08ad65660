package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-checkin/internal/status"
	"ticket-checkin/internal/store"
	"ticket-checkin/models"
)

var created = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func setupTestStore() (*Store, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	return New(db), mock
}

func testTicket() *models.Ticket {
	return &models.Ticket{
		ID:            "tk-1",
		EventID:       "ev-1",
		AttendeeName:  "Ada Lovelace",
		AttendeeEmail: "ada@example.com",
		Secret:        "s3cr3t",
		Status:        models.TicketIssued,
		CreatedAt:     created,
	}
}

func ticketReply(t *models.Ticket) []interface{} {
	return ticketFields(t)
}

func createTicketKeys() []string {
	return []string{
		"{checkin}:event:ev-1",
		"{checkin}:ticket:tk-1",
		"{checkin}:ticket:secret:s3cr3t",
		"{checkin}:event:ev-1:tickets",
		"{checkin}:tickets",
		"{checkin}:event:ev-1:counts",
	}
}

func casKeys() []string {
	return []string{
		"{checkin}:ticket:tk-1",
		"{checkin}:event:ev-1:counts",
		"{checkin}:scanlogs",
		"{checkin}:event:ev-1:scanlogs",
		"{checkin}:ticket:tk-1:scanlogs",
	}
}

func TestStore_CreateTicket(t *testing.T) {
	tests := []struct {
		name    string
		reply   int64
		wantErr error
	}{
		{"created", 1, nil},
		{"secret or id taken", 0, status.ErrUniquenessViolation},
		{"unknown event", -1, status.ErrEventNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := setupTestStore()
			defer mock.ClearExpect()

			tk := testTicket()
			args := append([]interface{}{"tk-1", created.UnixMicro(), "issued"}, ticketFields(tk)...)
			mock.ExpectEval(createTicketScript, createTicketKeys(), args...).SetVal(tt.reply)

			err := s.CreateTicket(context.Background(), tk)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_CreateTicket_ConnectionError(t *testing.T) {
	s, mock := setupTestStore()
	defer mock.ClearExpect()

	tk := testTicket()
	args := append([]interface{}{"tk-1", created.UnixMicro(), "issued"}, ticketFields(tk)...)
	mock.ExpectEval(createTicketScript, createTicketKeys(), args...).SetErr(errors.New("dial tcp: connection refused"))

	err := s.CreateTicket(context.Background(), tk)
	require.Error(t, err)
	assert.False(t, status.Classified(err))
}

func TestStore_CreateEvent_Duplicate(t *testing.T) {
	s, mock := setupTestStore()
	defer mock.ClearExpect()

	event := &models.Event{ID: "ev-1", Name: "Gig", StartsAt: created, CreatedAt: created}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	mock.ExpectEval(createEventScript, []string{"{checkin}:event:ev-1", "{checkin}:events"}, string(payload), created.UnixMicro(), "ev-1").SetVal(int64(0))

	err = s.CreateEvent(context.Background(), event)
	assert.ErrorIs(t, err, status.ErrUniquenessViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetEvent(t *testing.T) {
	s, mock := setupTestStore()
	defer mock.ClearExpect()

	mock.ExpectGet("{checkin}:event:ev-1").SetVal(`{"id":"ev-1","name":"Gig","starts_at":"2026-05-01T12:00:00Z","ends_at":null,"created_at":"2026-04-01T12:00:00Z"}`)
	mock.ExpectGet("{checkin}:event:missing").RedisNil()

	event, err := s.GetEvent(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "Gig", event.Name)
	assert.True(t, created.Equal(event.StartsAt))

	_, err = s.GetEvent(context.Background(), "missing")
	assert.ErrorIs(t, err, status.ErrEventNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetTicketBySecret(t *testing.T) {
	s, mock := setupTestStore()
	defer mock.ClearExpect()

	tk := testTicket()
	mock.ExpectGet("{checkin}:ticket:secret:s3cr3t").SetVal("tk-1")
	mock.ExpectHGetAll("{checkin}:ticket:tk-1").SetVal(map[string]string{
		"id":             tk.ID,
		"event_id":       tk.EventID,
		"attendee_name":  tk.AttendeeName,
		"attendee_email": tk.AttendeeEmail,
		"secret":         tk.Secret,
		"status":         "issued",
		"checked_in_at":  "",
		"created_at":     "2026-05-01T12:00:00Z",
	})
	mock.ExpectGet("{checkin}:ticket:secret:unknown").RedisNil()

	got, err := s.GetTicketBySecret(context.Background(), "s3cr3t")
	require.NoError(t, err)
	assert.Equal(t, tk.ID, got.ID)
	assert.Equal(t, tk.AttendeeEmail, got.AttendeeEmail)
	assert.Equal(t, models.TicketIssued, got.Status)
	assert.Nil(t, got.CheckedInAt)
	assert.True(t, created.Equal(got.CreatedAt))

	_, err = s.GetTicketBySecret(context.Background(), "unknown")
	assert.ErrorIs(t, err, status.ErrTicketNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ConditionalUpdateStatus_Success(t *testing.T) {
	s, mock := setupTestStore()
	defer mock.ClearExpect()

	at := created.Add(time.Hour)
	entry := &models.ScanLog{ID: "log-1", TicketID: "tk-1", EventID: "ev-1", ScannerID: "gate-2", Result: models.ScanSuccess, ScannedAt: at}
	payload, err := encodeScanLog(entry)
	require.NoError(t, err)

	after := testTicket()
	after.Status = models.TicketCheckedIn
	after.CheckedInAt = &at

	mock.ExpectEval(conditionalUpdateScript, casKeys(),
		"issued", "checked_in", formatTime(at), payload,
	).SetVal(ticketReply(after))

	got, err := s.ConditionalUpdateStatus(context.Background(), store.ConditionalUpdate{
		TicketID:    "tk-1",
		EventID:     "ev-1",
		Expected:    models.TicketIssued,
		Next:        models.TicketCheckedIn,
		CheckedInAt: &at,
		Log:         entry,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketCheckedIn, got.Status)
	require.NotNil(t, got.CheckedInAt)
	assert.True(t, at.Equal(*got.CheckedInAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ConditionalUpdateStatus_Conflicts(t *testing.T) {
	tests := []struct {
		name    string
		reply   int64
		wantErr error
	}{
		{"status moved", 0, status.ErrPreconditionFailed},
		{"ticket vanished", -1, status.ErrTicketNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := setupTestStore()
			defer mock.ClearExpect()

			at := created
			mock.ExpectEval(conditionalUpdateScript, casKeys(),
				"issued", "checked_in", formatTime(at), "",
			).SetVal(tt.reply)

			_, err := s.ConditionalUpdateStatus(context.Background(), store.ConditionalUpdate{
				TicketID:    "tk-1",
				EventID:     "ev-1",
				Expected:    models.TicketIssued,
				Next:        models.TicketCheckedIn,
				CheckedInAt: &at,
			})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_ConditionalUpdateStatus_ResolvesEvent(t *testing.T) {
	s, mock := setupTestStore()
	defer mock.ClearExpect()

	at := created
	mock.ExpectHGet("{checkin}:ticket:tk-1", "event_id").SetVal("ev-1")
	mock.ExpectEval(conditionalUpdateScript, casKeys(),
		"issued", "checked_in", formatTime(at), "",
	).SetVal(int64(0))

	_, err := s.ConditionalUpdateStatus(context.Background(), store.ConditionalUpdate{
		TicketID:    "tk-1",
		Expected:    models.TicketIssued,
		Next:        models.TicketCheckedIn,
		CheckedInAt: &at,
	})
	assert.ErrorIs(t, err, status.ErrPreconditionFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_OverrideStatus(t *testing.T) {
	s, mock := setupTestStore()
	defer mock.ClearExpect()

	revoked := testTicket()
	revoked.Status = models.TicketRevoked

	mock.ExpectHGet("{checkin}:ticket:tk-1", "event_id").SetVal("ev-1")
	mock.ExpectEval(overrideStatusScript, []string{"{checkin}:ticket:tk-1", "{checkin}:event:ev-1:counts"}, "revoked").
		SetVal(ticketReply(revoked))
	mock.ExpectHGet("{checkin}:ticket:missing", "event_id").RedisNil()

	got, err := s.OverrideStatus(context.Background(), "tk-1", models.TicketRevoked)
	require.NoError(t, err)
	assert.Equal(t, models.TicketRevoked, got.Status)
	assert.Nil(t, got.CheckedInAt)

	_, err = s.OverrideStatus(context.Background(), "missing", models.TicketRevoked)
	assert.ErrorIs(t, err, status.ErrTicketNotFound)

	_, err = s.OverrideStatus(context.Background(), "tk-1", models.TicketCheckedIn)
	assert.ErrorIs(t, err, status.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CountTickets(t *testing.T) {
	s, mock := setupTestStore()
	defer mock.ClearExpect()

	mock.ExpectHGetAll("{checkin}:event:ev-1:counts").SetVal(map[string]string{
		"issued":     "3",
		"checked_in": "2",
		"revoked":    "0",
	})

	stats, err := s.CountTickets(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, models.EventStats{Total: 5, Issued: 3, CheckedIn: 2}, *stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AppendScanLog(t *testing.T) {
	s, mock := setupTestStore()
	defer mock.ClearExpect()

	entry := &models.ScanLog{ID: "log-1", TicketID: "tk-1", EventID: "ev-1", Result: models.ScanDuplicate, ScannedAt: created, AttendeeName: "dropped"}
	payload, err := encodeScanLog(entry)
	require.NoError(t, err)
	assert.NotContains(t, payload, "dropped")

	mock.ExpectTxPipeline()
	mock.ExpectLPush("{checkin}:scanlogs", payload).SetVal(1)
	mock.ExpectLPush("{checkin}:event:ev-1:scanlogs", payload).SetVal(1)
	mock.ExpectLPush("{checkin}:ticket:tk-1:scanlogs", payload).SetVal(1)
	mock.ExpectTxPipelineExec()

	require.NoError(t, s.AppendScanLog(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AppendScanLog_UnknownSecret(t *testing.T) {
	s, mock := setupTestStore()
	defer mock.ClearExpect()

	entry := &models.ScanLog{ID: "log-2", Result: models.ScanInvalid, ScannedAt: created}
	payload, err := encodeScanLog(entry)
	require.NoError(t, err)

	mock.ExpectTxPipeline()
	mock.ExpectLPush("{checkin}:scanlogs", payload).SetVal(1)
	mock.ExpectTxPipelineExec()

	require.NoError(t, s.AppendScanLog(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListScanLogs(t *testing.T) {
	s, mock := setupTestStore()
	defer mock.ClearExpect()

	first, _ := encodeScanLog(&models.ScanLog{ID: "l2", TicketID: "tk-1", EventID: "ev-1", Result: models.ScanDuplicate, ScannedAt: created.Add(time.Minute)})
	second, _ := encodeScanLog(&models.ScanLog{ID: "l1", TicketID: "tk-1", EventID: "ev-1", Result: models.ScanSuccess, ScannedAt: created})

	mock.ExpectLRange("{checkin}:event:ev-1:scanlogs", 0, 49).SetVal([]string{first, second})
	mock.ExpectHGet("{checkin}:ticket:tk-1", "attendee_name").SetVal("Ada Lovelace")

	logs, err := s.ListScanLogs(context.Background(), store.ScanLogFilter{EventID: "ev-1", Limit: 50})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "l2", logs[0].ID)
	assert.Equal(t, "Ada Lovelace", logs[0].AttendeeName)
	assert.Equal(t, "Ada Lovelace", logs[1].AttendeeName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// clusterHashTag returns the part of key Redis Cluster hashes to pick a slot.
func clusterHashTag(key string) string {
	start := strings.IndexByte(key, '{')
	if start < 0 {
		return key
	}
	end := strings.IndexByte(key[start+1:], '}')
	if end <= 0 {
		return key
	}
	return key[start+1 : start+1+end]
}

func TestKeys_ShareOneClusterSlot(t *testing.T) {
	keys := []string{
		eventsKey,
		ticketsKey,
		scanLogsKey,
		eventKey("ev-1"),
		eventTicketsKey("ev-1"),
		eventCountsKey("ev-1"),
		eventScanLogsKey("ev-1"),
		ticketKey("tk-1"),
		secretKey("s3cr3t"),
		ticketScanLogsKey("tk-1"),
	}

	for _, key := range keys {
		assert.Equal(t, "checkin", clusterHashTag(key), key)
	}
	// A secret containing braces must not move its key to another slot.
	assert.Equal(t, "checkin", clusterHashTag(secretKey("{other}")))
}
