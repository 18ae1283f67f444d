package silver_test

import (
	"context"
	"testing"
	"time"

	"github.com/leapstack-labs/livef1/internal/lake"
	"github.com/leapstack-labs/livef1/internal/registry"
	"github.com/leapstack-labs/livef1/internal/silver"
	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/leapstack-labs/livef1/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLake(t *testing.T, bronze map[string][]frame.Record) *lake.DataLake {
	t.Helper()
	l := lake.New(nil)
	for name, recs := range bronze {
		_, err := l.CreateBronzeTable(name, nil, recs)
		require.NoError(t, err)
	}
	reg := registry.NewTableRegistry()
	require.NoError(t, silver.Register(reg))
	require.NoError(t, reg.Install(l))
	return l
}

func timing(ts, drv string, fields frame.Record) frame.Record {
	rec := frame.Record{"SessionKey": 9472, "timestamp": ts, "DriverNo": drv}
	for k, v := range fields {
		rec[k] = v
	}
	return rec
}

func timingRecords() []frame.Record {
	return []frame.Record{
		timing("00:01:00.000", "1", frame.Record{"Sectors_0_Value": "30.000"}),
		timing("00:01:30.000", "1", frame.Record{"Sectors_1_Value": "31.000"}),
		timing("00:02:00.000", "1", frame.Record{"Sectors_2_Value": "32.000", "LastLapTime_Value": "1:35.000", "Speeds_ST_Value": "310"}),
		timing("00:02:30.000", "1", frame.Record{"Sectors_0_Value": "29.500"}),
		timing("00:02:40.000", "1", frame.Record{"InPit": true}),
		timing("00:02:50.000", "1", frame.Record{"PitOut": true, "InPit": false}),
		timing("00:03:00.000", "1", frame.Record{"Sectors_2_Value": "31.000", "LastLapTime_Value": "1:30.000"}),
		timing("00:01:05.000", "44", frame.Record{"Sectors_0_Value": "30.100"}),
	}
}

func sec(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

func TestSpecs(t *testing.T) {
	reg := registry.NewTableRegistry()
	require.NoError(t, silver.Register(reg))
	assert.Equal(t, 3, reg.Count())

	spec, ok := reg.Get(silver.CarTelemetry)
	require.True(t, ok)
	assert.Equal(t, core.LevelSilver, spec.Level)
	assert.Equal(t, []string{"CarData.z", "Position.z", "laps"}, spec.Sources)
}

func TestLaps(t *testing.T) {
	l := newLake(t, map[string][]frame.Record{"TimingData": timingRecords()})
	df, err := l.Load(context.Background(), core.LevelSilver, silver.Laps)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"SessionKey", "DriverNo", "LapNo", "LapTime",
		"Sector1Time", "Sector2Time", "Sector3Time",
		"SpeedI1", "SpeedI2", "SpeedFL", "SpeedST",
		"PitIn", "PitOut", "NoPits", "LapStartTime",
	}, df.Columns())
	require.Equal(t, 2, df.Len(), "driver 44 never completes a lap")

	lap1 := df.Row(0)
	assert.Equal(t, "1", lap1["DriverNo"])
	assert.Equal(t, 9472, lap1["SessionKey"])
	assert.Equal(t, 1, lap1["LapNo"])
	assert.Equal(t, sec(95), lap1["LapTime"])
	assert.Equal(t, sec(30), lap1["Sector1Time"])
	assert.Equal(t, sec(31), lap1["Sector2Time"])
	assert.Equal(t, sec(32), lap1["Sector3Time"])
	assert.Equal(t, 310.0, lap1["SpeedST"])
	assert.Nil(t, lap1["SpeedI1"])
	assert.Nil(t, lap1["LapStartTime"])
	assert.Equal(t, 0, lap1["NoPits"])

	lap2 := df.Row(1)
	assert.Equal(t, 2, lap2["LapNo"])
	assert.Equal(t, sec(90), lap2["LapTime"])
	assert.Equal(t, sec(29.5), lap2["Sector1Time"])
	assert.Equal(t, sec(29.5), lap2["Sector2Time"], "derived from lap time")
	assert.Equal(t, sec(31), lap2["Sector3Time"])
	assert.Equal(t, sec(160), lap2["PitIn"])
	assert.Equal(t, sec(170), lap2["PitOut"])
	assert.Equal(t, 1, lap2["NoPits"])
	assert.Equal(t, sec(120), lap2["LapStartTime"])
}

func TestLapsDerivedLapTimeAndStop(t *testing.T) {
	recs := []frame.Record{
		timing("00:01:00.000", "16", frame.Record{"Sectors_0_Value": "30.000"}),
		timing("00:01:30.000", "16", frame.Record{"Sectors_1_Value": "31.000"}),
		timing("00:02:00.000", "16", frame.Record{"Sectors_2_Value": "32.000"}),
		timing("00:02:30.000", "16", frame.Record{"Sectors_0_Value": "29.000"}),
		timing("00:03:00.000", "16", frame.Record{"Sectors_1_Value": "30.000"}),
		timing("00:03:30.000", "16", frame.Record{"Sectors_2_Value": "31.000", "LastLapTime_Value": "1:29.000"}),
		timing("00:03:40.000", "16", frame.Record{"Stopped": true}),
	}
	l := newLake(t, map[string][]frame.Record{"TimingData": recs})
	df, err := l.Load(context.Background(), core.LevelSilver, silver.Laps)
	require.NoError(t, err)
	require.Equal(t, 3, df.Len())

	assert.Equal(t, sec(93), df.Value(0, "LapTime"), "sum of sectors")
	assert.Equal(t, sec(89), df.Value(1, "LapTime"), "feed lap time wins")
	assert.Equal(t, sec(120), df.Value(1, "LapStartTime"))

	assert.Equal(t, 3, df.Value(2, "LapNo"))
	assert.Nil(t, df.Value(2, "LapTime"))
	assert.Nil(t, df.Value(2, "Sector1Time"))
	assert.Equal(t, sec(209), df.Value(2, "LapStartTime"), "previous start plus lap time")
}

func TestLapsRepeatedSectorIsIgnored(t *testing.T) {
	recs := []frame.Record{
		timing("00:01:00.000", "1", frame.Record{"Sectors_0_Value": "30.000"}),
		timing("00:01:20.000", "1", frame.Record{"Sectors_0_Value": "30.000"}),
		timing("00:01:30.000", "1", frame.Record{"Sectors_1_Value": "31.000"}),
		timing("00:02:00.000", "1", frame.Record{"Sectors_2_Value": "32.000"}),
	}
	l := newLake(t, map[string][]frame.Record{"TimingData": recs})
	df, err := l.Load(context.Background(), core.LevelSilver, silver.Laps)
	require.NoError(t, err)
	require.Equal(t, 1, df.Len())
	assert.Equal(t, sec(93), df.Value(0, "LapTime"))
}

func TestCarTelemetry(t *testing.T) {
	car := []frame.Record{
		{"SessionKey": 9472, "timestamp": "00:02:05.000", "Utc": "2024-03-02T15:02:05.000Z", "DriverNo": "1", "Speed": 305, "RPM": 11000},
		{"SessionKey": 9472, "timestamp": "00:01:50.000", "Utc": "2024-03-02T15:01:50.000Z", "DriverNo": "1", "Speed": 300, "RPM": 10900},
		{"SessionKey": 9472, "timestamp": "00:01:50.000", "Utc": "2024-03-02T15:01:50.000Z", "DriverNo": "44", "Speed": 290},
	}
	pos := []frame.Record{
		{"Utc": "2024-03-02T15:01:49.9000000Z", "DriverNo": "1", "X": 1, "Y": 10, "Z": 0, "Status": "OnTrack"},
		{"Utc": "2024-03-02T15:02:05.3000000Z", "DriverNo": "1", "X": 2, "Y": 20, "Z": 0, "Status": "OnTrack"},
	}
	l := newLake(t, map[string][]frame.Record{
		"TimingData": timingRecords(),
		"CarData.z":  car,
		"Position.z": pos,
	})

	df, err := l.Load(context.Background(), core.LevelSilver, silver.CarTelemetry)
	require.NoError(t, err)
	require.Equal(t, 3, df.Len())
	assert.Equal(t, []string{"SessionKey", "timestamp", "Utc", "DriverNo", "LapNo"}, df.Columns()[:5])

	first := df.Row(0)
	assert.Equal(t, "1", first["DriverNo"])
	assert.Equal(t, 300, first["Speed"])
	assert.Equal(t, 1, first["X"])
	assert.Nil(t, first["LapNo"], "before any recorded lap start")

	second := df.Row(1)
	assert.Equal(t, 305, second["Speed"])
	assert.Equal(t, 2, second["X"])
	assert.Equal(t, 2, second["LapNo"])

	other := df.Row(2)
	assert.Equal(t, "44", other["DriverNo"])
	assert.Nil(t, other["X"])

	assert.True(t, l.Silver().HasData(silver.Laps), "laps is generated as a dependency")
}

func TestRaceControlMessages(t *testing.T) {
	rcm := []frame.Record{
		{"SessionKey": 9472, "timestamp": "01:30:00.000", "Category": "Other", "Message": "5 SECOND TIME PENALTY FOR CAR 1 (VER) - CAUSING A COLLISION", "Lap": 12},
		{"SessionKey": 9472, "timestamp": "01:31:00.000", "Category": "Flag", "Flag": "BLUE", "Message": "WAVED BLUE FLAG FOR CAR 2 (SAR)", "RacingNumber": "2"},
		{"SessionKey": 9472, "timestamp": "01:32:00.000", "Category": "Other", "Message": "DRIVE THROUGH PENALTY FOR CAR 44 (HAM)"},
		{"SessionKey": 9472, "timestamp": "01:33:00.000", "Category": "Other", "Message": "STOP/GO PENALTY FOR CAR 16 (LEC)"},
		{"SessionKey": 9472, "timestamp": "01:34:00.000", "Category": "Other", "Message": "CAR 31 (OCO) 3 PLACE GRID PENALTY FOR NEXT EVENT"},
		{"SessionKey": 9472, "timestamp": "01:35:00.000", "Category": "Other", "Message": "FIA STEWARDS: 5 SECOND TIME PENALTY FOR CAR 1 (VER) SERVED"},
		{"SessionKey": 9472, "timestamp": "01:36:00.000", "Category": "Flag", "Flag": "GREEN", "Message": "GREEN LIGHT - PIT EXIT OPEN"},
	}
	l := newLake(t, map[string][]frame.Record{"RaceControlMessages": rcm})
	df, err := l.Load(context.Background(), core.LevelSilver, silver.RaceControlMessages)
	require.NoError(t, err)
	require.Equal(t, len(rcm), df.Len())
	assert.False(t, df.HasColumn("RacingNumber"))

	tests := []struct {
		row     int
		driver  any
		penalty any
		seconds any
	}{
		{0, "1", "TIME PENALTY", 5},
		{1, "2", nil, nil},
		{2, "44", "DRIVE THROUGH PENALTY", nil},
		{3, "16", "STOP GO PENALTY", nil},
		{4, "31", "GRID PENALTY", nil},
		{5, "1", nil, nil},
		{6, nil, nil, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.driver, df.Value(tt.row, "DriverNo"), "row %d driver", tt.row)
		assert.Equal(t, tt.penalty, df.Value(tt.row, "PenaltyType"), "row %d penalty", tt.row)
		assert.Equal(t, tt.seconds, df.Value(tt.row, "PenaltySeconds"), "row %d seconds", tt.row)
	}
	assert.Equal(t, 12, df.Value(0, "Lap"))
}
