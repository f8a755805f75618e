package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all := s.Subscribe(ctx, "")
	hq := s.Subscribe(ctx, "hq")
	north := s.Subscribe(ctx, "north")

	s.Publish(VisitEvent{VisitID: "v1", BranchID: "hq", ToStatus: "CHECKED_IN", Timestamp: time.Now()})

	select {
	case evt := <-all:
		if evt.VisitID != "v1" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("unfiltered subscriber missed event")
	}
	select {
	case evt := <-hq:
		if evt.BranchID != "hq" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("branch subscriber missed event")
	}
	select {
	case evt := <-north:
		t.Fatalf("other-branch subscriber received event: %+v", evt)
	default:
	}
}

func TestSubscriberChannelClosedOnCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx, "")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}
