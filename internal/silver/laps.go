package silver

import (
	"context"
	"time"

	"github.com/leapstack-labs/livef1/internal/lake"
	"github.com/leapstack-labs/livef1/pkg/frame"
)

var lapColumns = []string{
	"SessionKey", "DriverNo", "LapNo", "LapTime",
	"Sector1Time", "Sector2Time", "Sector3Time",
	"SpeedI1", "SpeedI2", "SpeedFL", "SpeedST",
	"PitIn", "PitOut", "NoPits", "LapStartTime",
}

var speedTraps = [][2]string{
	{"Speeds_I1_Value", "SpeedI1"},
	{"Speeds_I2_Value", "SpeedI2"},
	{"Speeds_FL_Value", "SpeedFL"},
	{"Speeds_ST_Value", "SpeedST"},
}

// sectorGap is how long a sector update may lag the previous one before it
// is taken to belong to a new lap.
const sectorGap = 10 * time.Second

type lap struct {
	number  int
	lapTime *time.Duration
	sectors [3]*time.Duration
	speeds  map[string]any
	pitIn   *time.Duration
	pitOut  *time.Duration
	noPits  int
	start   *time.Duration
}

type lapFolder struct {
	laps []*lap
	cur  *lap
	last time.Duration
}

func newLapFolder() *lapFolder {
	return &lapFolder{cur: &lap{number: 1, speeds: map[string]any{}}}
}

// next closes the current lap and opens the following one.
func (f *lapFolder) next() {
	c := f.cur
	if c.lapTime == nil && c.sectors[0] != nil && c.sectors[1] != nil && c.sectors[2] != nil {
		sum := *c.sectors[0] + *c.sectors[1] + *c.sectors[2]
		c.lapTime = &sum
	}
	f.laps = append(f.laps, c)
	f.cur = &lap{number: c.number + 1, noPits: c.noPits, speeds: map[string]any{}}
}

func (f *lapFolder) apply(rec frame.Record) {
	ts, _ := offset(rec["timestamp"])

	if frame.Bool(rec["Stopped"]) {
		f.next()
		return
	}

	if lt, ok := duration(rec["LastLapTime_Value"]); ok {
		switch {
		case !frame.IsNull(rec["Sectors_2_Value"]):
			f.cur.lapTime = &lt
		case !frame.IsNull(rec["Sectors_2_PreviousValue"]) && len(f.laps) > 0:
			f.laps[len(f.laps)-1].lapTime = &lt
		}
	}

	for _, st := range speedTraps {
		if v := rec[st[0]]; !frame.IsNull(v) {
			if n, ok := frame.Float(v); ok {
				f.cur.speeds[st[1]] = n
			} else {
				f.cur.speeds[st[1]] = v
			}
		}
	}

	if v, ok := rec["InPit"]; ok && frame.Bool(v) {
		f.cur.pitIn = &ts
	}
	if v, ok := rec["PitOut"]; ok && frame.Bool(v) {
		f.cur.pitOut = &ts
		f.cur.noPits++
	}

	for n := range 3 {
		d, ok := duration(rec[sectorKey(n, "Value")])
		if !ok {
			continue
		}
		switch cur := f.cur.sectors[n]; {
		case cur == nil:
			f.cur.sectors[n] = &d
			f.last = ts
			if n == 2 {
				f.next()
				f.cur.start = &ts
			}
		case *cur == d:
		case ts-f.last > sectorGap:
			f.next()
			f.cur.sectors[n] = &d
			f.last = ts
		}
	}
	for n := range 3 {
		d, ok := duration(rec[sectorKey(n, "PreviousValue")])
		if !ok || ts-f.last <= sectorGap {
			continue
		}
		f.cur.sectors[n] = &d
		f.last = ts
		if n == 2 {
			f.next()
		}
	}
}

func sectorKey(n int, field string) string {
	return "Sectors_" + string(rune('0'+n)) + "_" + field
}

// finish fills missing sectors from the lap time and chains lap start
// times from the previous lap's start plus its lap time.
func (f *lapFolder) finish() []*lap {
	for _, l := range f.laps {
		if l.number <= 1 || l.lapTime == nil {
			continue
		}
		// Missing sectors take whatever the lap time leaves after the others,
		// in order, so a second gap in the same lap gets nothing.
		for i, s := range l.sectors {
			if s != nil {
				continue
			}
			var known time.Duration
			for _, o := range l.sectors {
				if o != nil {
					known += *o
				}
			}
			if d := *l.lapTime - known; d > 0 {
				l.sectors[i] = &d
			}
		}
	}
	for i := len(f.laps) - 1; i > 0; i-- {
		prev := f.laps[i-1]
		if prev.start != nil && prev.lapTime != nil {
			s := *prev.start + *prev.lapTime
			f.laps[i].start = &s
		}
	}
	return f.laps
}

func generateLaps(_ context.Context, in lake.Inputs) (*frame.Frame, error) {
	timing, err := in.Frame("TimingData")
	if err != nil {
		return nil, err
	}
	out := frame.New(lapColumns...)
	for _, g := range timing.GroupBy("DriverNo") {
		if frame.IsNull(g.Key) {
			continue
		}
		folder := newLapFolder()
		var sessionKey any
		for _, rec := range g.Frame.Records() {
			sessionKey = rec["SessionKey"]
			folder.apply(rec)
		}
		for _, l := range folder.finish() {
			rec := frame.Record{
				"SessionKey":   sessionKey,
				"DriverNo":     g.Key,
				"LapNo":        l.number,
				"LapTime":      nullable(l.lapTime),
				"Sector1Time":  nullable(l.sectors[0]),
				"Sector2Time":  nullable(l.sectors[1]),
				"Sector3Time":  nullable(l.sectors[2]),
				"PitIn":        nullable(l.pitIn),
				"PitOut":       nullable(l.pitOut),
				"NoPits":       l.noPits,
				"LapStartTime": nullable(l.start),
			}
			for _, st := range speedTraps {
				rec[st[1]] = l.speeds[st[1]]
			}
			out.Append(rec)
		}
	}
	return out, nil
}
