package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(path string, op Op) Event {
	return Event{Path: path, Op: op, Timestamp: time.Now()}
}

func waitBatch(t *testing.T, d *Debouncer) []Event {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("no batch emitted")
		return nil
	}
}

func TestDebouncer_EmitsAfterQuietWindow(t *testing.T) {
	// Given: a short debounce window
	d := NewDebouncer(30*time.Millisecond, nil)
	defer d.Stop()

	// When: a burst of events for different paths
	d.Add(ev("a.md", OpModify))
	d.Add(ev("b.md", OpCreate))

	// Then: one batch with both arrives after the window
	batch := waitBatch(t, d)
	assert.Len(t, batch, 2)
}

func TestDebouncer_TimerResetsOnEveryEvent(t *testing.T) {
	// Given: a window of 80ms
	d := NewDebouncer(80*time.Millisecond, nil)
	defer d.Stop()

	// When: events keep arriving every 30ms for a while
	for i := 0; i < 5; i++ {
		d.Add(ev("a.md", OpModify))
		time.Sleep(30 * time.Millisecond)

		// Then: no batch is emitted while events keep coming
		select {
		case <-d.Output():
			t.Fatal("batch emitted before quiet window elapsed")
		default:
		}
	}

	// And: once quiet, exactly one batch arrives
	batch := waitBatch(t, d)
	assert.Len(t, batch, 1)
}

func TestDebouncer_CoalescesCreateModify(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	d.Add(ev("a.md", OpCreate))
	d.Add(ev("a.md", OpModify))
	d.Add(ev("a.md", OpModify))

	batch := waitBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Op)
}

func TestDebouncer_CreateDeleteCancelsOut(t *testing.T) {
	// Given: a create followed by a delete inside one window
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	d.Add(ev("temp.md", OpCreate))
	d.Add(ev("temp.md", OpDelete))
	d.Add(ev("other.md", OpModify))

	// Then: the cancelled path never reaches the batch
	batch := waitBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "other.md", batch[0].Path)
}

func TestDebouncer_ModifyDeleteBecomesDelete(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	d.Add(ev("a.md", OpModify))
	d.Add(ev("a.md", OpDelete))

	batch := waitBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpDelete, batch[0].Op)
}

func TestDebouncer_DeleteCreateBecomesModify(t *testing.T) {
	// An editor save implemented as remove-then-write is one change.
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	d.Add(ev("a.md", OpDelete))
	d.Add(ev("a.md", OpCreate))

	batch := waitBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Op)
}

func TestDebouncer_SeparateBurstsSeparateBatches(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	d.Add(ev("a.md", OpModify))
	first := waitBatch(t, d)

	d.Add(ev("b.md", OpModify))
	second := waitBatch(t, d)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, "a.md", first[0].Path)
	assert.Equal(t, "b.md", second[0].Path)
}

func TestDebouncer_StopIsIdempotentAndClosesOutput(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, nil)
	d.Stop()
	d.Stop()

	_, open := <-d.Output()
	assert.False(t, open)

	// Events after stop are ignored.
	d.Add(ev("a.md", OpModify))
}
