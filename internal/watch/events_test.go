package watch

import (
	"testing"
	"time"
)

func TestBus_PublishAndReceive(t *testing.T) {
	b := NewBus()
	defer b.Close()

	end := time.Now()
	b.PublishDetected(SessionDetected{
		SessionID:      "sess-1",
		Provider:       "claude-code",
		FilePath:       "/tmp/sess-1.jsonl",
		SessionEndTime: &end,
	})
	b.PublishUpdated(SessionUpdated{SessionID: "sess-1"})
	b.PublishCompleted(SessionCompleted{SessionID: "sess-1"})

	select {
	case e := <-b.Detected():
		if e.SessionID != "sess-1" || e.Provider != "claude-code" {
			t.Errorf("detected event = %+v", e)
		}
	default:
		t.Fatal("no detected event buffered")
	}
	select {
	case e := <-b.Updated():
		if e.SessionID != "sess-1" {
			t.Errorf("updated event = %+v", e)
		}
	default:
		t.Fatal("no updated event buffered")
	}
	select {
	case e := <-b.Completed():
		if e.SessionID != "sess-1" {
			t.Errorf("completed event = %+v", e)
		}
	default:
		t.Fatal("no completed event buffered")
	}
}

func TestBus_FullChannelDropsInsteadOfBlocking(t *testing.T) {
	b := NewBus()
	defer b.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < busBuffer+10; i++ {
			b.PublishUpdated(SessionUpdated{SessionID: "sess"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a full bus")
	}

	drained := 0
	for range len(b.updated) {
		<-b.Updated()
		drained++
	}
	if drained != busBuffer {
		t.Errorf("drained %d events, want %d", drained, busBuffer)
	}
}

func TestBus_CloseReleasesConsumers(t *testing.T) {
	b := NewBus()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range b.Completed() {
		}
	}()

	b.Close()
	b.Close() // second close must be a no-op

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer not released on Close")
	}
}
