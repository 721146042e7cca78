package stats

import "testing"

func TestRecordAndQuantiles(t *testing.T) {
	h := New(0, 2048, 3)
	for _, v := range []int64{10, 20, 30, 40, 50} {
		h.Record(v)
	}
	if h.TotalCount() != 5 {
		t.Fatalf("TotalCount = %d, want 5", h.TotalCount())
	}
	if h.Min() != 10 {
		t.Errorf("Min = %d, want 10", h.Min())
	}
	if h.Max() != 50 {
		t.Errorf("Max = %d, want 50", h.Max())
	}
	if got := h.ValueAtQuantile(0.5); got < 10 || got > 50 {
		t.Errorf("median = %d, out of expected range", got)
	}
}

func TestMerge(t *testing.T) {
	a := New(0, 2048, 3)
	b := New(0, 2048, 3)
	a.Record(10)
	b.Record(20)
	a.Merge(b)
	if a.TotalCount() != 2 {
		t.Errorf("TotalCount after merge = %d, want 2", a.TotalCount())
	}
}

func TestRecordOutOfRangeIsDroppedNotFatal(t *testing.T) {
	h := New(0, 100, 3)
	h.Record(-5) // below range
	if h.TotalCount() != 0 {
		t.Errorf("expected out-of-range value to be dropped, TotalCount = %d", h.TotalCount())
	}
}
