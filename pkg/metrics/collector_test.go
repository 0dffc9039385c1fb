package metrics

import (
	"sync"
	"testing"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()
	if collector == nil {
		t.Fatal("Expected non-nil collector")
	}
	snap := collector.Snapshot()
	if snap != (Snapshot{}) {
		t.Fatalf("expected zeroed snapshot, got %+v", snap)
	}
}

func TestCollector_AddressMarkCounters(t *testing.T) {
	collector := NewCollector()

	collector.IndexMark()
	collector.IDMark()
	collector.IDMark()
	collector.DataMark()
	collector.DeletedData()

	snap := collector.Snapshot()
	if snap.IAM != 1 {
		t.Errorf("expected IAM=1, got %d", snap.IAM)
	}
	if snap.IDAM != 2 {
		t.Errorf("expected IDAM=2, got %d", snap.IDAM)
	}
	if snap.DAM != 1 {
		t.Errorf("expected DAM=1, got %d", snap.DAM)
	}
	if snap.DDAM != 1 {
		t.Errorf("expected DDAM=1, got %d", snap.DDAM)
	}
}

func TestCollector_CRCCounters(t *testing.T) {
	collector := NewCollector()

	collector.CRCOK()
	collector.CRCOK()
	collector.CRCErr()

	snap := collector.Snapshot()
	if snap.CRCOK != 2 {
		t.Errorf("expected CRCOK=2, got %d", snap.CRCOK)
	}
	if snap.CRCErr != 1 {
		t.Errorf("expected CRCErr=1, got %d", snap.CRCErr)
	}
}

func TestCollector_PLLErrorCounters(t *testing.T) {
	collector := NewCollector()

	collector.ExtraPulse()
	collector.ClockError()
	collector.ClockError()
	collector.OutOfTolerance()
	collector.Interval()
	collector.Interval()
	collector.Interval()

	snap := collector.Snapshot()
	if snap.EiPW != 1 {
		t.Errorf("expected EiPW=1, got %d", snap.EiPW)
	}
	if snap.CkEr != 2 {
		t.Errorf("expected CkEr=2, got %d", snap.CkEr)
	}
	if snap.OoTI != 1 {
		t.Errorf("expected OoTI=1, got %d", snap.OoTI)
	}
	if snap.Intervals != 3 {
		t.Errorf("expected Intervals=3, got %d", snap.Intervals)
	}
}

func TestCollector_Reset(t *testing.T) {
	collector := NewCollector()

	collector.IDMark()
	collector.DataMark()
	collector.CRCOK()
	collector.Interval()

	collector.Reset()

	if collector.Snapshot() != (Snapshot{}) {
		t.Errorf("expected all counters zero after Reset, got %+v", collector.Snapshot())
	}
}

func TestCollector_Concurrent(t *testing.T) {
	collector := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IDMark()
			collector.DataMark()
			collector.Interval()
		}()
	}
	wg.Wait()

	snap := collector.Snapshot()
	if snap.IDAM != 10 {
		t.Errorf("expected IDAM=10, got %d", snap.IDAM)
	}
	if snap.DAM != 10 {
		t.Errorf("expected DAM=10, got %d", snap.DAM)
	}
	if snap.Intervals != 10 {
		t.Errorf("expected Intervals=10, got %d", snap.Intervals)
	}
}
