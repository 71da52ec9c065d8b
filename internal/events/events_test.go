package events

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingSink holds every delivery until release is closed.
type blockingSink struct {
	Recorder
	release chan struct{}
}

func (b *blockingSink) StatusMessage(text string) {
	<-b.release
	b.Recorder.StatusMessage(text)
}

type panickingSink struct {
	Recorder
}

func (p *panickingSink) StatusMessage(text string) {
	if text == "boom" {
		panic("sink failure")
	}
	p.Recorder.StatusMessage(text)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(rec, nil)

	for i := 0; i < 100; i++ {
		d.StatusMessage(fmt.Sprintf("msg %d", i))
	}
	d.CopyCompleted(CopyCompleted{RecordID: 7})
	d.SummaryUpdated(7, "title")
	d.Close()

	statuses := rec.Statuses()
	require.Len(t, statuses, 100)
	for i, s := range statuses {
		assert.Equal(t, fmt.Sprintf("msg %d", i), s)
	}

	order := rec.Order()
	assert.Equal(t, "copy", order[100])
	assert.Equal(t, "summary", order[101])

	summary, ok := rec.Summary(7)
	assert.True(t, ok)
	assert.Equal(t, "title", summary)
}

func TestDispatcherDoesNotBlockEmitter(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(sink, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			d.StatusMessage("queued")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emitting blocked on a slow sink")
	}

	close(sink.release)
	d.Close()
	assert.Len(t, sink.Statuses(), 50)
}

func TestDispatcherConcurrentEmitters(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(rec, nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				d.StatusMessage("x")
			}
		}()
	}
	wg.Wait()
	d.Close()

	assert.Len(t, rec.Statuses(), 200)
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	sink := &panickingSink{}
	d := NewDispatcher(sink, nil)

	d.StatusMessage("before")
	d.StatusMessage("boom")
	d.StatusMessage("after")
	d.Close()

	assert.Equal(t, []string{"before", "after"}, sink.Statuses())
}

func TestDispatcherDropsAfterClose(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(rec, nil)
	d.Close()
	d.Close()

	d.StatusMessage("late")
	assert.Empty(t, rec.Statuses())
}
