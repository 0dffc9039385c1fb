package format

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/dbehnke/dmr-nexus/pkg/crc"
)

// FileOptions is the on-disk / environment-variable shape of Options,
// loaded with viper the same way the teacher's pkg/config.Config is:
// SetDefault ladder, SetEnvPrefix, then Unmarshal + validate.
type FileOptions struct {
	Format                   string `mapstructure:"format"`
	HeaderFormat             string `mapstructure:"header_format"`
	SectorSize               string `mapstructure:"sector_size"` // "auto" or a number
	HeaderCRCSize            int    `mapstructure:"header_crc_size"`
	HeaderCRCPoly            uint64 `mapstructure:"header_crc_poly"`
	HeaderCRCInit            uint64 `mapstructure:"header_crc_init"`
	DataCRCSize              int    `mapstructure:"data_crc_size"`
	DataCRCPoly              uint64 `mapstructure:"data_crc_poly"`
	DataCRCInit              uint64 `mapstructure:"data_crc_init"`
	TimeUnit                 string `mapstructure:"time_unit"`
	Report                   string `mapstructure:"report"`
	ReportQty                int    `mapstructure:"report_qty"`
	PLLSyncTolerancePercent  int    `mapstructure:"pll_sync_tolerance"`
	PLLKp                    float64 `mapstructure:"pll_kp"`
	PLLKi                    float64 `mapstructure:"pll_ki"`
	AllowExperimentalFormats bool    `mapstructure:"allow_experimental_formats"`
}

// Load reads configuration from configFile (or the default search
// path/env-prefix combination, mirroring the teacher's pkg/config.Load)
// and returns validated Options ready for Build.
func Load(configFile string) (Options, FileOptions, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("diskdecode")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/diskdecode")
	}

	v.SetEnvPrefix("DISKDECODE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// no file is fine, defaults apply
		} else if os.IsNotExist(err) {
			// explicitly named file missing is also fine
		} else {
			return Options{}, FileOptions{}, fmt.Errorf("format: read config: %w", err)
		}
	}

	var fo FileOptions
	if err := v.Unmarshal(&fo); err != nil {
		return Options{}, FileOptions{}, fmt.Errorf("format: unmarshal config: %w", err)
	}

	if err := validateFileOptions(&fo); err != nil {
		return Options{}, FileOptions{}, fmt.Errorf("format: validate config: %w", err)
	}

	opt, err := toOptions(fo)
	if err != nil {
		return Options{}, FileOptions{}, err
	}
	return opt, fo, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("format", "MFM")
	v.SetDefault("header_format", "4")
	v.SetDefault("sector_size", "auto")
	v.SetDefault("header_crc_size", 16)
	v.SetDefault("header_crc_poly", 0x1021)
	v.SetDefault("header_crc_init", 0xFFFF)
	v.SetDefault("data_crc_size", 16)
	v.SetDefault("data_crc_poly", 0x1021)
	v.SetDefault("data_crc_init", 0xFFFF)
	v.SetDefault("time_unit", "auto")
	v.SetDefault("report", "no")
	v.SetDefault("report_qty", 100)
	v.SetDefault("pll_sync_tolerance", 25)
	v.SetDefault("pll_kp", 0.5)
	v.SetDefault("pll_ki", 0.0005)
	v.SetDefault("allow_experimental_formats", false)
}

var formatKinds = map[string]Kind{
	"FM":                   FM,
	"MFM":                  MFM,
	"RLL_Seagate":          RLLSeagate,
	"RLL_Adaptec":          RLLAdaptec,
	"RLL_Adaptec4070":      RLLAdaptec4070,
	"RLL_WD":               RLLWD,
	"RLL_OMTI":             RLLOMTI,
	"RLL_DTC7287_unknown":  RLLDTC7287,
	"custom":               Custom,
}

var headerKinds = map[string]HeaderKind{
	"3":           Header3Byte,
	"4":           Header4Byte,
	"Seagate":     Header4ByteSeagate,
	"OMTI":        Header4ByteOMTI,
	"Adaptec":     Header4ByteAdaptec,
	"Adaptec4070": Header4ByteAdaptec4070,
	"DTC7287":     Header3ByteDTC7287,
}

func toOptions(fo FileOptions) (Options, error) {
	kind, ok := formatKinds[fo.Format]
	if !ok {
		return Options{}, fmt.Errorf("format: unknown format %q", fo.Format)
	}
	hk, ok := headerKinds[fo.HeaderFormat]
	if !ok {
		return Options{}, fmt.Errorf("format: unknown header_format %q", fo.HeaderFormat)
	}
	sectorSize := 0
	if fo.SectorSize != "auto" {
		if _, err := fmt.Sscanf(fo.SectorSize, "%d", &sectorSize); err != nil {
			return Options{}, fmt.Errorf("format: sector_size %q: %w", fo.SectorSize, err)
		}
	}
	return Options{
		Kind:                     kind,
		HeaderKind:               hk,
		HeaderCRCWidth:           crc.Width(fo.HeaderCRCSize),
		HeaderCRCPoly:            fo.HeaderCRCPoly,
		HeaderCRCInit:            fo.HeaderCRCInit,
		DataCRCWidth:             crc.Width(fo.DataCRCSize),
		DataCRCPoly:              fo.DataCRCPoly,
		DataCRCInit:              fo.DataCRCInit,
		SectorSize:               sectorSize,
		PLLKp:                    fo.PLLKp,
		PLLKi:                    fo.PLLKi,
		PLLSyncToleranceF:        float64(fo.PLLSyncTolerancePercent) / 100.0,
		AllowExperimentalFormats: fo.AllowExperimentalFormats,
	}, nil
}
