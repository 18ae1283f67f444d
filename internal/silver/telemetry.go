package silver

import (
	"context"
	"sort"
	"time"

	"github.com/leapstack-labs/livef1/internal/lake"
	"github.com/leapstack-labs/livef1/pkg/frame"
)

var telemetryColumns = []string{
	"SessionKey", "timestamp", "Utc", "DriverNo", "LapNo",
	"RPM", "Speed", "nGear", "Throttle", "Brake", "DRS",
	"X", "Y", "Z", "Status",
}

var positionColumns = []string{"X", "Y", "Z", "Status"}

type sample struct {
	at  time.Time
	rec frame.Record
}

type lapStart struct {
	number int
	start  time.Duration
}

func generateCarTelemetry(_ context.Context, in lake.Inputs) (*frame.Frame, error) {
	car, err := in.Frame("CarData.z")
	if err != nil {
		return nil, err
	}
	pos, err := in.Frame("Position.z")
	if err != nil {
		return nil, err
	}
	laps, err := in.Frame(Laps)
	if err != nil {
		return nil, err
	}

	positions := make(map[string][]sample)
	for _, rec := range pos.Records() {
		at, ok := utc(rec["Utc"])
		if !ok {
			continue
		}
		drv := frame.String(rec["DriverNo"])
		positions[drv] = append(positions[drv], sample{at, rec})
	}
	for _, s := range positions {
		sort.SliceStable(s, func(i, j int) bool { return s[i].at.Before(s[j].at) })
	}

	starts := make(map[string][]lapStart)
	for _, rec := range laps.Records() {
		d, ok := rec["LapStartTime"].(time.Duration)
		if !ok {
			continue
		}
		n, _ := frame.Int(rec["LapNo"])
		drv := frame.String(rec["DriverNo"])
		starts[drv] = append(starts[drv], lapStart{n, d})
	}
	for _, s := range starts {
		sort.SliceStable(s, func(i, j int) bool { return s[i].start < s[j].start })
	}

	out := frame.New(telemetryColumns...)
	for _, rec := range car.Records() {
		drv := frame.String(rec["DriverNo"])
		row := rec.Clone()
		row["LapNo"] = nil
		for _, c := range positionColumns {
			row[c] = nil
		}
		if at, ok := utc(rec["Utc"]); ok {
			if p := nearest(positions[drv], at); p != nil {
				for _, c := range positionColumns {
					row[c] = p[c]
				}
			}
		}
		if ts, ok := offset(rec["timestamp"]); ok {
			row["LapNo"] = lapAt(starts[drv], ts)
		}
		out.Append(row)
	}
	return out.SortBy("DriverNo", "Utc"), nil
}

// nearest returns the sample closest in time to at.
func nearest(samples []sample, at time.Time) frame.Record {
	if len(samples) == 0 {
		return nil
	}
	i := sort.Search(len(samples), func(i int) bool { return !samples[i].at.Before(at) })
	switch {
	case i == 0:
		return samples[0].rec
	case i == len(samples):
		return samples[i-1].rec
	}
	if at.Sub(samples[i-1].at) <= samples[i].at.Sub(at) {
		return samples[i-1].rec
	}
	return samples[i].rec
}

// lapAt returns the number of the last lap started at or before ts.
func lapAt(starts []lapStart, ts time.Duration) any {
	i := sort.Search(len(starts), func(i int) bool { return starts[i].start > ts })
	if i == 0 {
		return nil
	}
	return starts[i-1].number
}
