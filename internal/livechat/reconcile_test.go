package livechat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-livechat/internal/domain"
)

var t0 = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func TestReconcile_DedupIsIdempotent(t *testing.T) {
	tr := NewTranscript()
	batch := []domain.Message{adminMsg("a1", t0), adminMsg("a2", t0.Add(time.Second))}

	first := Reconcile(batch, tr, time.Time{}, false)
	require.Len(t, first.New, 2)
	require.Equal(t, 2, tr.Len())

	second := Reconcile(batch, tr, first.Cursor, false)
	require.Empty(t, second.New)
	require.Zero(t, second.Unread)
	require.Equal(t, 2, tr.Len())
	require.Equal(t, first.Cursor, second.Cursor)
}

func TestReconcile_DedupWithinBatch(t *testing.T) {
	tr := NewTranscript()
	res := Reconcile([]domain.Message{adminMsg("a1", t0), adminMsg("a1", t0)}, tr, time.Time{}, false)
	require.Len(t, res.New, 1)
	require.Equal(t, 1, res.Unread)
}

func TestReconcile_FiltersSenders(t *testing.T) {
	tr := NewTranscript()
	batch := []domain.Message{
		{ID: "c1", SenderType: domain.SenderCustomer, CreatedAt: t0},
		{ID: "s1", SenderType: domain.SenderSupport, CreatedAt: t0},
		{ID: "u1", SenderType: domain.SenderType("bot"), CreatedAt: t0},
		{ID: "", SenderType: domain.SenderAdmin, CreatedAt: t0},
		adminMsg("a1", t0),
	}
	res := Reconcile(batch, tr, time.Time{}, true)
	require.Len(t, res.New, 1)
	require.Equal(t, "a1", res.New[0].ID)
	require.False(t, tr.Has("c1"))
}

func TestReconcile_ClosureMixedWithAdmin(t *testing.T) {
	tr := NewTranscript()
	batch := []domain.Message{adminMsg("a1", t0), systemMsg("sys1", t0.Add(time.Second)), adminMsg("a2", t0.Add(2*time.Second))}
	res := Reconcile(batch, tr, time.Time{}, false)
	require.True(t, res.Closure)
	require.Len(t, res.New, 3)
	require.Equal(t, 2, res.Admin)
	require.Equal(t, t0.Add(2*time.Second), res.Cursor)

	again := Reconcile(batch, tr, res.Cursor, false)
	require.False(t, again.Closure, "a system message seen before is not a new closure")
}

func TestReconcile_CursorIsMonotonic(t *testing.T) {
	tr := NewTranscript()
	cursor := t0.Add(time.Hour)
	res := Reconcile([]domain.Message{adminMsg("old", t0)}, tr, cursor, false)
	require.Len(t, res.New, 1)
	require.Equal(t, cursor, res.Cursor)

	res = Reconcile([]domain.Message{systemMsg("sys", t0.Add(2*time.Hour))}, tr, cursor, false)
	require.Equal(t, cursor, res.Cursor, "only admin messages move the cursor")
}

func TestReconcile_UnreadOnlyWhenViewNotOpen(t *testing.T) {
	tr := NewTranscript()
	res := Reconcile([]domain.Message{adminMsg("a1", t0), systemMsg("x", t0)}, tr, time.Time{}, true)
	require.Zero(t, res.Unread)

	res = Reconcile([]domain.Message{adminMsg("a2", t0), adminMsg("a3", t0)}, tr, time.Time{}, false)
	require.Equal(t, 2, res.Unread)
}

func TestTranscript_ReplaceIDKeepsPosition(t *testing.T) {
	tr := NewTranscript()
	tr.Append(adminMsg("a1", t0))
	tr.Append(domain.Message{ID: "tmp_1", SenderType: domain.SenderCustomer, Body: "Hi"})
	tr.Append(adminMsg("a2", t0))

	require.True(t, tr.ReplaceID("tmp_1", "srv1"))
	msgs := tr.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, "srv1", msgs[1].ID)
	require.Equal(t, "Hi", msgs[1].Body)
	require.False(t, tr.Has("tmp_1"))
	require.True(t, tr.Has("srv1"))

	require.False(t, tr.ReplaceID("tmp_missing", "srv2"))
}

func TestTranscript_ReplaceIDWithKnownServerID(t *testing.T) {
	tr := NewTranscript()
	tr.Append(domain.Message{ID: "srv1", SenderType: domain.SenderCustomer})
	tr.Append(domain.Message{ID: "tmp_1", SenderType: domain.SenderCustomer})
	tr.Append(adminMsg("a1", t0))

	require.True(t, tr.ReplaceID("tmp_1", "srv1"))
	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "srv1", msgs[0].ID)
	require.Equal(t, "a1", msgs[1].ID)
	require.True(t, tr.Has("a1"))
}

func TestTranscript_MessagesIsACopy(t *testing.T) {
	tr := NewTranscript()
	tr.Append(adminMsg("a1", t0))
	msgs := tr.Messages()
	msgs[0].Body = "mutated"
	require.Equal(t, "reply a1", tr.Messages()[0].Body)
}
