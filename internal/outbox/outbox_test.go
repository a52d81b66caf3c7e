package outbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"smartattend/internal/attendance"
	"smartattend/internal/i18n"
	"smartattend/internal/queue"
	"smartattend/internal/roster"
)

func TestDeliver(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{
		Dir:       filepath.Join(dir, "out"),
		Recipient: "admin@school.test",
		Language:  func(context.Context) i18n.Language { return i18n.English },
	}
	c := attendance.Confirmation{
		ClassID:   "bac Eco + gestion 2",
		Teacher:   "Karim",
		Time:      "10:30",
		Timestamp: 1767261000000,
		Records: []attendance.Record{
			{StudentID: "s1", IsPresent: true},
			{StudentID: "s2"},
		},
		Students: []roster.Student{{ID: "s1", Name: "Nour"}, {ID: "s2", Name: "Yassine"}},
	}

	files, err := w.Deliver(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "bac_Eco___gestion_2-1767261000000.txt"), files.Text)

	raw, err := os.ReadFile(files.Text)
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.HasPrefix(text, "Time : 10:30\nTeacher : Karim\n\nPresents : Nour\n\nAbsents : Yassine\n\nBillet : None"))
	assert.Contains(t, text, "mailto:admin@school.test?subject=Attendance%20Report%20-%20bac%20Eco%20%2B%20gestion%202")

	f, err := excelize.OpenFile(files.Workbook)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	assert.Equal(t, []string{"Yassine", "no", "no"}, rows[5])
}

func TestDeliverDefaultsToFrench(t *testing.T) {
	w := &Writer{Dir: t.TempDir()}
	files, err := w.Deliver(context.Background(), attendance.Confirmation{ClassID: "C1", Time: "08:00", Timestamp: 1})
	require.NoError(t, err)
	raw, err := os.ReadFile(files.Text)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "Heure : 08:00"))
}

func TestRunDeliversConfirmedSessions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dir := t.TempDir()
	w := &Writer{Dir: dir, Recipient: "admin@school.test"}
	q := queue.NewInMemory(4)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, q) }()

	require.NoError(t, q.Publish(ctx, queue.Message{Type: "checkin", Body: []byte(`{}`)}))
	msg, err := queue.Encode(attendance.EventSessionConfirmed, attendance.Confirmation{ClassID: "C1", Time: "08:00", Timestamp: 42})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, msg))

	path := filepath.Join(dir, "C1-42.txt")
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
