package models

import (
	"fmt"
	"strings"
)

// SleepStage classifies a sleep segment.
type SleepStage int

const (
	SleepStageUnknown SleepStage = iota
	SleepStageAwake
	SleepStageSleep
	SleepStageOutOfBed
	SleepStageLight
	SleepStageDeep
	SleepStageREM
)

// Stage codes as reported by the platform sleep API.
const (
	StageCodeAwake    = 1
	StageCodeSleep    = 2
	StageCodeOutOfBed = 3
	StageCodeLight    = 4
	StageCodeDeep     = 5
	StageCodeREM      = 6
)

var stageByCode = map[int]SleepStage{
	StageCodeAwake:    SleepStageAwake,
	StageCodeSleep:    SleepStageSleep,
	StageCodeOutOfBed: SleepStageOutOfBed,
	StageCodeLight:    SleepStageLight,
	StageCodeDeep:     SleepStageDeep,
	StageCodeREM:      SleepStageREM,
}

var stageNames = map[SleepStage]string{
	SleepStageUnknown:  "UNKNOWN",
	SleepStageAwake:    "AWAKE",
	SleepStageSleep:    "SLEEP",
	SleepStageOutOfBed: "OUT_OF_BED",
	SleepStageLight:    "LIGHT",
	SleepStageDeep:     "DEEP",
	SleepStageREM:      "REM",
}

// SleepStageFromCode maps a raw stage code. Codes outside the known set
// yield SleepStageUnknown.
func SleepStageFromCode(code int) SleepStage {
	if s, ok := stageByCode[code]; ok {
		return s
	}
	return SleepStageUnknown
}

// CountsAsSleep reports whether time in this stage counts toward total sleep.
func (s SleepStage) CountsAsSleep() bool {
	switch s {
	case SleepStageSleep, SleepStageLight, SleepStageDeep, SleepStageREM:
		return true
	}
	return false
}

func (s SleepStage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return stageNames[SleepStageUnknown]
}

func (s SleepStage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SleepStage) UnmarshalText(text []byte) error {
	name := strings.ToUpper(string(text))
	for stage, n := range stageNames {
		if n == name {
			*s = stage
			return nil
		}
	}
	return fmt.Errorf("%w: unknown sleep stage %q", ErrInvalidArgument, text)
}

// Canonical sleep stage names as exported from Apple Health in English.
const (
	HealthStageCore   = "Core"
	HealthStageDeep   = "Deep"
	HealthStageREM    = "REM"
	HealthStageAwake  = "Awake"
	HealthStageInBed  = "In Bed"
	HealthStageAsleep = "Asleep"
)

// healthStageCodes maps canonical Apple Health names to stage codes.
// "In Bed" is time in bed without sleep, so it is treated as awake.
var healthStageCodes = map[string]int{
	HealthStageCore:   StageCodeLight,
	HealthStageDeep:   StageCodeDeep,
	HealthStageREM:    StageCodeREM,
	HealthStageAwake:  StageCodeAwake,
	HealthStageInBed:  StageCodeAwake,
	HealthStageAsleep: StageCodeSleep,
}

// localizedStageNames maps lowercased localized sleep stage names to their
// canonical English equivalents. Covers: English, German, French, Spanish,
// Italian, Portuguese, Dutch, Japanese, Chinese (Simplified & Traditional), Korean.
var localizedStageNames = map[string]string{
	// English
	"core":   HealthStageCore,
	"deep":   HealthStageDeep,
	"rem":    HealthStageREM,
	"awake":  HealthStageAwake,
	"in bed": HealthStageInBed,
	"asleep": HealthStageAsleep,

	// German
	"kern":    HealthStageCore,
	"tief":    HealthStageDeep,
	"wach":    HealthStageAwake,
	"im bett": HealthStageInBed,

	// French
	"paradoxal": HealthStageREM,
	"profond":   HealthStageDeep,
	"léger":     HealthStageCore,
	"leger":     HealthStageCore,
	"éveillé":   HealthStageAwake,
	"eveille":   HealthStageAwake,
	"au lit":    HealthStageInBed,
	"endormi":   HealthStageAsleep,

	// Spanish
	"profundo":   HealthStageDeep,
	"principal":  HealthStageCore,
	"despierto":  HealthStageAwake,
	"despierta":  HealthStageAwake,
	"en la cama": HealthStageInBed,
	"dormido":    HealthStageAsleep,
	"dormida":    HealthStageAsleep,

	// Italian
	"profondo":     HealthStageDeep,
	"essenziale":   HealthStageCore,
	"sveglio":      HealthStageAwake,
	"sveglia":      HealthStageAwake,
	"a letto":      HealthStageInBed,
	"addormentato": HealthStageAsleep,

	// Portuguese
	"sono profundo": HealthStageDeep,
	"acordado":      HealthStageAwake,
	"acordada":      HealthStageAwake,
	"na cama":       HealthStageInBed,
	"dormindo":      HealthStageAsleep,

	// Dutch
	"diep":    HealthStageDeep,
	"wakker":  HealthStageAwake,
	"slapend": HealthStageAsleep,

	// Japanese
	"コア":   HealthStageCore,
	"深い":   HealthStageDeep,
	"レム":   HealthStageREM,
	"覚醒":   HealthStageAwake,
	"ベッドで": HealthStageInBed,

	// Chinese (Simplified)
	"核心":   HealthStageCore,
	"深度":   HealthStageDeep,
	"快速眼动": HealthStageREM,
	"清醒":   HealthStageAwake,
	"在床上":  HealthStageInBed,

	// Chinese (Traditional)
	"核心睡眠": HealthStageCore,
	"深層":   HealthStageDeep,
	"快速動眼": HealthStageREM,

	// Korean
	"코어":   HealthStageCore,
	"깊은":   HealthStageDeep,
	"렘":    HealthStageREM,
	"깨어있음": HealthStageAwake,
	"침대에서": HealthStageInBed,
}

// StageCodeFromName maps a possibly-localized Apple Health stage name to a
// stage code. Returns false if the name is not recognized.
func StageCodeFromName(raw string) (int, bool) {
	canonical, ok := localizedStageNames[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return 0, false
	}
	return healthStageCodes[canonical], true
}
