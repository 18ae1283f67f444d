// Package livetiming knows the F1 live-timing feed: which topics exist, how
// their payloads are encoded and how each one flattens into records.
package livetiming

import "sort"

// Topic describes one feed topic.
type Topic struct {
	Name        string
	Description string
	// Stream selects the .jsonStream archive over the single keyframe.
	Stream bool
	// Compressed topics carry base64 raw-deflate payloads (.z suffix).
	Compressed bool
}

var catalog = []Topic{
	{Name: "SessionInfo", Description: "Details about the current session"},
	{Name: "ArchiveStatus", Description: "Status of archived session data"},
	{Name: "TrackStatus", Description: "Current status of the track", Stream: true},
	{Name: "SessionData", Description: "Session lap and status series", Stream: true},
	{Name: "ContentStreams", Description: "Available content streams"},
	{Name: "AudioStreams", Description: "Available audio streams"},
	{Name: "ExtrapolatedClock", Description: "Remaining session time", Stream: true},
	{Name: "DriverList", Description: "Drivers participating in the session"},
	{Name: "TimingDataF1", Description: "F1 timing data", Stream: true},
	{Name: "TimingData", Description: "Sector, lap and speed trap timing", Stream: true},
	{Name: "LapSeries", Description: "Race position per lap", Stream: true},
	{Name: "TopThree", Description: "Top three drivers", Stream: true},
	{Name: "TimingAppData", Description: "Tyre stints and lap times from the timing app", Stream: true},
	{Name: "TimingStats", Description: "Best times and speed trap rankings", Stream: true},
	{Name: "SessionStatus", Description: "Session start, stop and finish", Stream: true},
	{Name: "TyreStintSeries", Description: "Tyre stints per driver", Stream: true},
	{Name: "Heartbeat", Description: "Feed heartbeat", Stream: true},
	{Name: "Position.z", Description: "Car positions on track", Stream: true, Compressed: true},
	{Name: "WeatherData", Description: "Weather conditions", Stream: true},
	{Name: "WeatherDataSeries", Description: "Weather conditions series", Stream: true},
	{Name: "CarData.z", Description: "Car telemetry channels", Stream: true, Compressed: true},
	{Name: "TeamRadio", Description: "Team radio captures", Stream: true},
	{Name: "TlaRcm", Description: "Race control ticker messages", Stream: true},
	{Name: "RaceControlMessages", Description: "Race control messages", Stream: true},
	{Name: "PitLaneTimeCollection", Description: "Pit lane times", Stream: true},
	{Name: "CurrentTyres", Description: "Current tyre per driver", Stream: true},
	{Name: "DriverRaceInfo", Description: "Race position, gaps and overtakes", Stream: true},
}

// Topics returns the known topics sorted by name.
func Topics() []Topic {
	out := make([]Topic, len(catalog))
	copy(out, catalog)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupTopic returns the catalog entry for name.
func LookupTopic(name string) (Topic, bool) {
	for _, t := range catalog {
		if t.Name == name {
			return t, true
		}
	}
	return Topic{}, false
}
