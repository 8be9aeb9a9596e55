package transcript

import (
	"fmt"
	"testing"
	"time"
)

func TestHistory_BoundAndFIFO(t *testing.T) {
	h := NewHistory(3)

	for i := 0; i < 10; i++ {
		h.Append(Item{
			Speaker:   SpeakerAgent,
			Text:      fmt.Sprintf("line %d", i),
			Timestamp: time.Now(),
		})
		if h.Len() > 3 {
			t.Fatalf("after %d appends: len = %d, want <= 3", i+1, h.Len())
		}
	}

	items := h.Items()
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	// Oldest evicted first: the window holds the last three lines.
	for i, want := range []string{"line 7", "line 8", "line 9"} {
		if items[i].Text != want {
			t.Errorf("items[%d] = %q, want %q", i, items[i].Text, want)
		}
	}
}

func TestHistory_Last(t *testing.T) {
	h := NewHistory(3)

	if _, ok := h.Last(); ok {
		t.Error("Last on empty history should report false")
	}

	h.Append(Item{Speaker: SpeakerUser, Text: "first"})
	h.Append(Item{Speaker: SpeakerAgent, Text: "second"})

	last, ok := h.Last()
	if !ok || last.Text != "second" {
		t.Errorf("Last = %v, %v; want second, true", last, ok)
	}
}

func TestHistory_Clear(t *testing.T) {
	h := NewHistory(5)
	h.Append(Item{Text: "a"})
	h.Append(Item{Text: "b"})

	h.Clear()

	if h.Len() != 0 {
		t.Errorf("len after Clear = %d, want 0", h.Len())
	}
	if _, ok := h.Last(); ok {
		t.Error("Last after Clear should report false")
	}
}

func TestHistory_DefaultSize(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < 10; i++ {
		h.Append(Item{Text: fmt.Sprintf("%d", i)})
	}
	if h.Len() != DefaultHistorySize {
		t.Errorf("len = %d, want %d", h.Len(), DefaultHistorySize)
	}
}

func TestHistory_ItemsReturnsCopy(t *testing.T) {
	h := NewHistory(3)
	h.Append(Item{Text: "original"})

	items := h.Items()
	items[0].Text = "mutated"

	got, _ := h.Last()
	if got.Text != "original" {
		t.Error("Items should return a copy, not the backing slice")
	}
}
