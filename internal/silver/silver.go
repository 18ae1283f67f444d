// Package silver holds the built-in silver tables derived from the feed
// topics: laps, carTelemetry and raceControlMessages.
package silver

import (
	"time"

	"github.com/leapstack-labs/livef1/internal/livetiming"
	"github.com/leapstack-labs/livef1/internal/registry"
	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/leapstack-labs/livef1/pkg/frame"
)

// Built-in table names.
const (
	Laps                = "laps"
	CarTelemetry        = "carTelemetry"
	RaceControlMessages = "raceControlMessages"
)

// Specs returns the built-in silver table specs.
func Specs() []registry.TableSpec {
	return []registry.TableSpec{
		{
			Name:        Laps,
			Level:       core.LevelSilver,
			Sources:     []string{"TimingData"},
			Func:        generateLaps,
			Description: "One row per completed lap with sector times, speed traps and pit stops",
			Origin:      "builtin",
		},
		{
			Name:        CarTelemetry,
			Level:       core.LevelSilver,
			Sources:     []string{"CarData.z", "Position.z", Laps},
			Func:        generateCarTelemetry,
			Description: "Car channels joined with the nearest position sample and lap number",
			Origin:      "builtin",
		},
		{
			Name:        RaceControlMessages,
			Level:       core.LevelSilver,
			Sources:     []string{"RaceControlMessages"},
			Func:        generateRaceControlMessages,
			Description: "Race control messages with penalty classification and driver numbers",
			Origin:      "builtin",
		},
	}
}

// Register adds the built-in silver tables to reg.
func Register(reg *registry.TableRegistry) error {
	for _, spec := range Specs() {
		if err := reg.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

// offset parses a feed timestamp cell. ok is false for keyframe rows.
func offset(v any) (time.Duration, bool) {
	s, isString := v.(string)
	if !isString || s == "" {
		if d, isDur := v.(time.Duration); isDur {
			return d, true
		}
		return 0, false
	}
	d, err := livetiming.ParseOffset(s)
	return d, err == nil
}

// duration parses a lap or sector time such as "1:32.456" or "31.2".
func duration(v any) (time.Duration, bool) {
	if frame.IsNull(v) {
		return 0, false
	}
	return offset(v)
}

// utc parses an ISO-8601 feed timestamp.
func utc(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		ts, err := time.Parse(time.RFC3339Nano, t)
		return ts, err == nil
	}
	return time.Time{}, false
}

func nullable(d *time.Duration) any {
	if d == nil {
		return nil
	}
	return *d
}
