package notify

import "testing"

func TestHub_PublishDelivers(t *testing.T) {
	h := NewHub[int]()
	ch, cancel := h.Subscribe(1)
	defer cancel()

	h.Publish(42)

	select {
	case v := <-ch:
		if v != 42 {
			t.Errorf("received %d, want 42", v)
		}
	default:
		t.Fatal("expected a value on the subscriber channel")
	}
}

func TestHub_PublishDoesNotBlockWhenFull(t *testing.T) {
	h := NewHub[int]()
	ch, cancel := h.Subscribe(1)
	defer cancel()

	h.Publish(1)
	h.Publish(2) // dropped, buffer full

	if v := <-ch; v != 1 {
		t.Errorf("received %d, want 1", v)
	}
	select {
	case v := <-ch:
		t.Errorf("unexpected extra value %d", v)
	default:
	}
}

func TestHub_CancelUnsubscribes(t *testing.T) {
	h := NewHub[string]()
	ch, cancel := h.Subscribe(0)

	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}

	cancel()
	cancel() // second call is a no-op

	if h.Len() != 0 {
		t.Errorf("Len() after cancel = %d, want 0", h.Len())
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}

	// Publishing after cancel must not panic on the closed channel.
	h.Publish("late")
}
