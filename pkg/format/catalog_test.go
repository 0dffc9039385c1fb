package format

import "testing"

func TestBuiltinMFMShiftIndexAdjustment(t *testing.T) {
	d, err := Build(Options{Kind: MFM, HeaderKind: Header4Byte, HeaderCRCWidth: 16, HeaderCRCPoly: 0x1021, HeaderCRCInit: 0xFFFF, DataCRCWidth: 16, DataCRCPoly: 0x1021, DataCRCInit: 0xFFFF})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(d.SyncMarks) != 2 {
		t.Fatalf("expected 2 sync mark variants, got %d", len(d.SyncMarks))
	}
	// variant 0: widths [3,4,3,4,3], common shift_index 16, last pulse 3 -> 13
	if d.SyncMarks[0].ShiftIndex != 16-3 {
		t.Fatalf("variant 0 shift index = %d, want %d", d.SyncMarks[0].ShiftIndex, 16-3)
	}
	// variant 1: widths [3,2,3,4,3,4], common shift_index 18, last pulse 4 -> 14
	if d.SyncMarks[1].ShiftIndex != 18-4 {
		t.Fatalf("variant 1 shift index = %d, want %d", d.SyncMarks[1].ShiftIndex, 18-4)
	}
}

func TestRLLDTC7287RequiresOptIn(t *testing.T) {
	_, err := Build(Options{Kind: RLLDTC7287, HeaderCRCWidth: 16, HeaderCRCPoly: 0x1021, HeaderCRCInit: 0xFFFF, DataCRCWidth: 16, DataCRCPoly: 0x1021, DataCRCInit: 0xFFFF})
	if err == nil {
		t.Fatalf("expected error without AllowExperimentalFormats")
	}
	_, err = Build(Options{Kind: RLLDTC7287, AllowExperimentalFormats: true, HeaderCRCWidth: 16, HeaderCRCPoly: 0x1021, HeaderCRCInit: 0xFFFF, DataCRCWidth: 16, DataCRCPoly: 0x1021, DataCRCInit: 0xFFFF})
	if err != nil {
		t.Fatalf("Build with opt-in: %v", err)
	}
}

func TestFMMarksAndLimits(t *testing.T) {
	d, err := Build(Options{Kind: FM, HeaderKind: Header3Byte, HeaderCRCWidth: 16, HeaderCRCPoly: 0x1021, HeaderCRCInit: 0xFFFF, DataCRCWidth: 16, DataCRCPoly: 0x1021, DataCRCInit: 0xFFFF})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if d.LimitsMin != 1 || d.LimitsMax != 2 {
		t.Fatalf("FM limits = [%d,%d], want [1,2]", d.LimitsMin, d.LimitsMax)
	}
	if d.IndexMarkByte == nil || *d.IndexMarkByte != 0xFC {
		t.Fatalf("FM IndexMarkByte wrong")
	}
	if !d.IsDataMark(0xFB) || !d.IsIDMark(0xFE) {
		t.Fatalf("FM ID/Data marks wrong")
	}
	if !d.IsDeletedData(0xF8) || !d.IsDeletedData(0xF9) || !d.IsDeletedData(0xFA) {
		t.Fatalf("FM deleted-data marks wrong")
	}
}

func TestValidateFileOptionsRejectsBadSectorSize(t *testing.T) {
	fo := FileOptions{
		Format: "MFM", HeaderFormat: "4", SectorSize: "auto",
		HeaderCRCSize: 16, DataCRCSize: 16, TimeUnit: "auto",
		Report: "no", PLLSyncTolerancePercent: 25, PLLKp: 0.5,
	}
	if err := validateFileOptions(&fo); err != nil {
		t.Fatalf("expected valid defaults to pass: %v", err)
	}
	fo.SectorSize = "100000"
	if err := validateFileOptions(&fo); err == nil {
		t.Fatalf("expected oversized sector_size to be rejected")
	}
}
