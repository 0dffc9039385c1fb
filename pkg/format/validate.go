package format

import "fmt"

var validFormats = map[string]bool{
	"FM": true, "MFM": true, "RLL_Seagate": true, "RLL_Adaptec": true,
	"RLL_Adaptec4070": true, "RLL_WD": true, "RLL_OMTI": true,
	"RLL_DTC7287_unknown": true, "custom": true,
}

var validHeaderFormats = map[string]bool{
	"3": true, "4": true, "Seagate": true, "OMTI": true,
	"Adaptec": true, "Adaptec4070": true, "DTC7287": true,
}

var validTimeUnits = map[string]bool{"ns": true, "us": true, "auto": true, "window": true}
var validReportTriggers = map[string]bool{"no": true, "IAM": true, "IDAM": true, "DAM": true, "DDAM": true}
var validSyncTolerances = map[int]bool{15: true, 20: true, 25: true, 33: true, 50: true}

// validateFileOptions walks every field spec.md §6 enumerates, the
// same way the teacher's pkg/config/validation.go walks every
// SystemConfig field: one check per constraint, first failure wins.
func validateFileOptions(fo *FileOptions) error {
	if !validFormats[fo.Format] {
		return fmt.Errorf("format must be one of the enumerated values, got %q", fo.Format)
	}
	if fo.Format != "custom" && !validHeaderFormats[fo.HeaderFormat] {
		return fmt.Errorf("header_format must be one of the enumerated values, got %q", fo.HeaderFormat)
	}
	if fo.SectorSize != "auto" {
		var n int
		if _, err := fmt.Sscanf(fo.SectorSize, "%d", &n); err != nil {
			return fmt.Errorf("sector_size must be \"auto\" or an integer, got %q", fo.SectorSize)
		}
		if n < 128 || n > 16384 {
			return fmt.Errorf("sector_size must be between 128 and 16384, got %d", n)
		}
	}
	if fo.HeaderCRCSize != 16 && fo.HeaderCRCSize != 32 {
		return fmt.Errorf("header_crc_size must be 16 or 32, got %d", fo.HeaderCRCSize)
	}
	switch fo.DataCRCSize {
	case 16, 32, 48, 56:
	default:
		return fmt.Errorf("data_crc_size must be 16, 32, 48, or 56, got %d", fo.DataCRCSize)
	}
	if !validTimeUnits[fo.TimeUnit] {
		return fmt.Errorf("time_unit must be one of ns, us, auto, window, got %q", fo.TimeUnit)
	}
	if !validReportTriggers[fo.Report] {
		return fmt.Errorf("report must be one of no, IAM, IDAM, DAM, DDAM, got %q", fo.Report)
	}
	if fo.Report != "no" && fo.ReportQty <= 0 {
		return fmt.Errorf("report_qty must be positive when report is enabled, got %d", fo.ReportQty)
	}
	if !validSyncTolerances[fo.PLLSyncTolerancePercent] {
		return fmt.Errorf("pll_sync_tolerance must be one of 15, 20, 25, 33, 50 (percent), got %d", fo.PLLSyncTolerancePercent)
	}
	if fo.PLLKp <= 0 {
		return fmt.Errorf("pll_kp must be positive, got %v", fo.PLLKp)
	}
	if fo.PLLKi < 0 {
		return fmt.Errorf("pll_ki must be non-negative, got %v", fo.PLLKi)
	}
	return nil
}
