package market

import "testing"

func TestTapeBoundAndOrder(t *testing.T) {
	tape := NewTape(30)
	for i := 1; i <= 35; i++ {
		tape.Push(Trade{ID: int64(i), Price: float64(i), Qty: 1, Time: int64(i) * 1000})
	}
	if tape.Len() != 30 {
		t.Fatalf("expected 30 trades got %d", tape.Len())
	}
	trades := tape.Trades()
	if trades[0].ID != 35 {
		t.Fatalf("newest trade should be first, got id %d", trades[0].ID)
	}
	if trades[29].ID != 6 {
		t.Fatalf("oldest retained trade should be 6, got %d", trades[29].ID)
	}
	for i := 1; i < len(trades); i++ {
		if trades[i].ID >= trades[i-1].ID {
			t.Fatalf("tape not most-recent-first at %d: %+v", i, trades[i])
		}
	}
}

func TestTapeRedeliveryCountedNotDeduped(t *testing.T) {
	tape := NewTape(5)
	tape.Push(Trade{ID: 7, Price: 1})
	tape.Push(Trade{ID: 7, Price: 2})
	if tape.Len() != 2 {
		t.Fatalf("redelivered trade must be inserted again, len=%d", tape.Len())
	}
	if tape.Redelivered() != 1 {
		t.Fatalf("expected 1 redelivery, got %d", tape.Redelivered())
	}
}
