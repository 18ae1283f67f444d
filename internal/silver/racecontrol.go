package silver

import (
	"context"
	"regexp"
	"strings"

	"github.com/leapstack-labs/livef1/internal/lake"
	"github.com/leapstack-labs/livef1/pkg/frame"
)

var raceControlColumns = []string{
	"SessionKey", "timestamp", "Utc", "Lap", "Category", "Flag", "Scope",
	"Sector", "Status", "Message", "DriverNo", "PenaltyType", "PenaltySeconds",
}

// Penalty types. Order matters: the first match wins.
var penaltyTypes = []struct {
	match []string
	name  string
}{
	{[]string{"DRIVE THROUGH PENALTY", "DRIVE-THROUGH PENALTY"}, "DRIVE THROUGH PENALTY"},
	{[]string{"STOP/GO PENALTY", "STOP GO PENALTY", "STOP AND GO PENALTY"}, "STOP GO PENALTY"},
	{[]string{"GRID PENALTY", "GRID DROP"}, "GRID PENALTY"},
	{[]string{"TIME PENALTY"}, "TIME PENALTY"},
}

var (
	carNumberRe = regexp.MustCompile(`\bCAR (\d+)\b`)
	secondsRe   = regexp.MustCompile(`\b(\d+) SECOND`)
)

func penaltyType(msg string) any {
	if !strings.Contains(msg, "PENALTY") && !strings.Contains(msg, "GRID DROP") {
		return nil
	}
	if strings.Contains(msg, "NO FURTHER") || strings.Contains(msg, "SERVED") {
		return nil
	}
	for _, p := range penaltyTypes {
		for _, m := range p.match {
			if strings.Contains(msg, m) {
				return p.name
			}
		}
	}
	return nil
}

func generateRaceControlMessages(_ context.Context, in lake.Inputs) (*frame.Frame, error) {
	rcm, err := in.Frame("RaceControlMessages")
	if err != nil {
		return nil, err
	}
	out := frame.New(raceControlColumns...)
	for _, rec := range rcm.Records() {
		msg := strings.ToUpper(frame.String(rec["Message"]))
		row := rec.Clone()
		delete(row, "RacingNumber")

		row["DriverNo"] = nil
		if n := frame.String(rec["RacingNumber"]); n != "" {
			row["DriverNo"] = n
		} else if m := carNumberRe.FindStringSubmatch(msg); m != nil {
			row["DriverNo"] = m[1]
		}

		pt := penaltyType(msg)
		row["PenaltyType"] = pt
		row["PenaltySeconds"] = nil
		if pt == "TIME PENALTY" {
			if m := secondsRe.FindStringSubmatch(msg); m != nil {
				row["PenaltySeconds"], _ = frame.Int(m[1])
			}
		}
		for _, c := range raceControlColumns {
			if _, ok := row[c]; !ok {
				row[c] = nil
			}
		}
		out.Append(row)
	}
	return out, nil
}
