package resultpipe

import (
	"sync"
	"testing"
)

func TestSentinelRoundTrip(t *testing.T) {
	p := New(4)
	p.SendSentinel()
	r := p.Recv()
	if !r.IsSentinel() {
		t.Error("expected sentinel record")
	}
}

func TestNonSentinelRecordIsNotSentinel(t *testing.T) {
	var r Record
	r.Length = 1
	r.ID[0] = 1
	if r.IsSentinel() {
		t.Error("non-zero record reported as sentinel")
	}

	var r2 Record
	r2.Length = 3
	if r2.IsSentinel() {
		t.Error("record with nonzero length reported as sentinel")
	}
}

func TestConcurrentProducersPreserveWholeRecords(t *testing.T) {
	const producers = 8
	const perProducer = 50

	p := New(producers)
	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func(tag byte) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				var rec Record
				rec.Length = uint32(j + 1)
				for k := range rec.Payload[:rec.Length] {
					rec.Payload[k] = tag
				}
				rec.ID[0] = tag
				p.Send(rec)
			}
		}(byte(i + 1))
	}

	go func() {
		wg.Wait()
		p.SendSentinel()
	}()

	count := 0
	for {
		rec := p.Recv()
		if rec.IsSentinel() {
			break
		}
		tag := rec.ID[0]
		for k := 0; k < int(rec.Length); k++ {
			if rec.Payload[k] != tag {
				t.Fatalf("record corrupted: payload byte %d = %d, want tag %d (torn write)", k, rec.Payload[k], tag)
			}
		}
		count++
	}
	if count != producers*perProducer {
		t.Errorf("got %d records, want %d", count, producers*perProducer)
	}
}
