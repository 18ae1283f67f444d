package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/livef1/internal/feed"
	"github.com/leapstack-labs/livef1/internal/lake"
	"github.com/leapstack-labs/livef1/internal/registry"
	"github.com/leapstack-labs/livef1/internal/session"
	"github.com/leapstack-labs/livef1/internal/testutil"
	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/leapstack-labs/livef1/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	season  map[string]any
	feeds   map[string]feed.Feed
	topics  map[string]any
	indexes int
	fetched []string
	streams map[string]bool
}

func (f *fakeFetcher) SeasonIndex(_ context.Context, year int) (map[string]any, error) {
	if f.season == nil {
		return nil, &feed.NotFoundError{URL: "season"}
	}
	return f.season, nil
}

func (f *fakeFetcher) SessionIndex(_ context.Context, _ string) (map[string]feed.Feed, error) {
	f.indexes++
	return f.feeds, nil
}

func (f *fakeFetcher) Topic(_ context.Context, _ string, _ feed.Feed, topic string, stream bool) (any, error) {
	f.fetched = append(f.fetched, topic)
	if f.streams == nil {
		f.streams = map[string]bool{}
	}
	f.streams[topic] = stream
	raw, ok := f.topics[topic]
	if !ok {
		return nil, &core.TopicNotFoundError{Topic: topic}
	}
	return raw, nil
}

func seasonDoc() map[string]any {
	return map[string]any{
		"Year": 2024,
		"Meetings": []any{
			map[string]any{
				"Key":          1229,
				"Number":       1,
				"Name":         "Bahrain Grand Prix",
				"OfficialName": "FORMULA 1 GULF AIR BAHRAIN GRAND PRIX 2024",
				"Location":     "Sakhir",
				"Country":      map[string]any{"Key": 36, "Code": "BRN", "Name": "Bahrain"},
				"Circuit":      map[string]any{"Key": 63, "ShortName": "Sakhir"},
				"Sessions": []any{
					map[string]any{"Key": 9468, "Type": "Practice", "Number": 1, "Name": "Practice 1", "Path": "2024/bah/fp1/"},
					map[string]any{"Key": 9472, "Type": "Race", "Name": "Race", "Path": "2024/bah/race/", "ArchiveStatus": map[string]any{"Status": "Complete"}},
				},
			},
			map[string]any{
				"Key":      1232,
				"Number":   "21",
				"Name":     "São Paulo Grand Prix",
				"Location": "São Paulo",
				"Country":  map[string]any{"Name": "Brazil"},
				"Sessions": []any{
					map[string]any{"Key": 9630, "Type": "Qualifying", "Name": "Sprint Qualifying", "Path": "2024/sao/sq/"},
					map[string]any{"Key": 9636, "Type": "Qualifying", "Name": "Qualifying", "Path": "2024/sao/q/"},
				},
			},
		},
	}
}

func TestNewSeason(t *testing.T) {
	s, err := session.NewSeason(2024, seasonDoc(), session.Config{})
	require.NoError(t, err)
	require.Len(t, s.Meetings, 2)

	bah := s.Meetings[0]
	assert.Equal(t, 1229, bah.Key)
	assert.Equal(t, "BRN", bah.Country.Code)
	assert.Equal(t, "Sakhir", bah.Circuit.ShortName)
	assert.Same(t, s, bah.Season)
	require.Len(t, bah.Sessions, 2)
	assert.Equal(t, 9472, bah.Sessions[1].Key())
	assert.Same(t, bah, bah.Sessions[1].Meeting)
	assert.Contains(t, bah.Sessions[1].Info.Extra, "ArchiveStatus")

	// weakly typed input accepts numeric strings
	assert.Equal(t, 21, s.Meetings[1].Number)
}

func TestNewSeasonRejectsMalformedMeeting(t *testing.T) {
	_, err := session.NewSeason(2024, map[string]any{"Meetings": []any{"nope"}}, session.Config{})
	require.Error(t, err)
}

func TestSeasonMeeting(t *testing.T) {
	s, err := session.NewSeason(2024, seasonDoc(), session.Config{})
	require.NoError(t, err)

	tests := []struct {
		query string
		want  int
	}{
		{"Sakhir", 1229},
		{"bahrain", 1229},
		{"1229", 1229},
		{"1", 1229},
		{"sao paulo", 1232},
		{"SÃO PAULO", 1232},
		{"Brazil", 1232},
		{"paulo grand", 1232},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			m, err := s.Meeting(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Key)
		})
	}

	_, err = s.Meeting("Monaco")
	assert.ErrorIs(t, err, session.ErrMeetingNotFound)
}

func TestMeetingSession(t *testing.T) {
	s, err := session.NewSeason(2024, seasonDoc(), session.Config{})
	require.NoError(t, err)
	bah, sao := s.Meetings[0], s.Meetings[1]

	got, err := bah.Session("race")
	require.NoError(t, err)
	assert.Equal(t, 9472, got.Key())

	got, err = bah.Session("practice 1")
	require.NoError(t, err)
	assert.Equal(t, 9468, got.Key())

	got, err = sao.Session("9636")
	require.NoError(t, err)
	assert.Equal(t, "Qualifying", got.Info.Name)

	// two qualifying-type sessions: the exact name wins
	got, err = sao.Session("qualifying")
	require.NoError(t, err)
	assert.Equal(t, 9636, got.Key())

	_, err = bah.Session("Sprint")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestLoadSession(t *testing.T) {
	f := &fakeFetcher{season: seasonDoc()}
	s, err := session.LoadSession(context.Background(), 2024, "Bahrain", "Race", session.Config{Client: f})
	require.NoError(t, err)
	assert.Equal(t, 9472, s.Key())
	assert.Equal(t, "2024 Bahrain Grand Prix Race", s.String())

	_, err = session.LoadSeason(context.Background(), 2024, session.Config{})
	require.Error(t, err)

	_, err = session.LoadSeason(context.Background(), 1900, session.Config{Client: &fakeFetcher{}})
	var nf *feed.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func raceSession(t *testing.T, f *fakeFetcher, tables *registry.TableRegistry) *session.Session {
	t.Helper()
	return session.NewSession(session.Info{Key: 9472, Name: "Race", Path: "2024/bah/race/"}, session.Config{
		Client: f,
		Tables: tables,
		Logger: testutil.NewTestLogger(t),
	})
}

func TestSessionGetRaw(t *testing.T) {
	f := &fakeFetcher{
		feeds: map[string]feed.Feed{
			"DriverList": {KeyFramePath: "DriverList.json", StreamPath: "DriverList.jsonStream"},
			"TimingData": {KeyFramePath: "TimingData.json", StreamPath: "TimingData.jsonStream"},
			"NewTopic":   {KeyFramePath: "NewTopic.json", StreamPath: "NewTopic.jsonStream"},
		},
		topics: map[string]any{"DriverList": map[string]any{}, "TimingData": []any{}, "NewTopic": []any{}},
	}
	s := raceSession(t, f, nil)
	ctx := context.Background()

	for _, topic := range []string{"DriverList", "TimingData", "NewTopic"} {
		_, err := s.GetRaw(ctx, topic)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.indexes, "topic index is fetched once")
	assert.False(t, f.streams["DriverList"])
	assert.True(t, f.streams["TimingData"])
	assert.True(t, f.streams["NewTopic"])

	_, err := s.GetRaw(ctx, "Missing")
	assert.ErrorIs(t, err, core.ErrTopicNotFound)

	topics, err := s.Topics(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"DriverList", "NewTopic", "TimingData"}, topics)
}

func TestSessionGetRawWithoutPath(t *testing.T) {
	s := session.NewSession(session.Info{Key: 1}, session.Config{Client: &fakeFetcher{}})
	_, err := s.GetRaw(context.Background(), "DriverList")
	require.Error(t, err)
}

func TestSessionLakeAndDrivers(t *testing.T) {
	f := &fakeFetcher{
		feeds: map[string]feed.Feed{"DriverList": {KeyFramePath: "DriverList.json"}},
		topics: map[string]any{"DriverList": map[string]any{
			"1":  map[string]any{"RacingNumber": "1", "Tla": "VER", "FullName": "Max VERSTAPPEN", "TeamName": "Red Bull Racing", "Line": 1},
			"16": map[string]any{"RacingNumber": "16", "Tla": "LEC", "TeamName": "Ferrari", "Line": 2},
		}},
	}
	s := raceSession(t, f, nil)

	l1, err := s.Lake()
	require.NoError(t, err)
	l2, err := s.Lake()
	require.NoError(t, err)
	assert.Same(t, l1, l2)

	drivers, err := s.Drivers(context.Background())
	require.NoError(t, err)
	require.Len(t, drivers, 2)
	assert.Equal(t, "VER", drivers["1"].Tla)
	assert.Equal(t, "Ferrari", drivers["16"].TeamName)
	assert.Contains(t, drivers["16"].Extra, "Line")
	assert.NotContains(t, drivers["16"].Extra, "SessionKey")

	_, err = s.Drivers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"DriverList"}, f.fetched, "bronze table is memoized")
}

func TestSessionGenerate(t *testing.T) {
	f := &fakeFetcher{
		feeds: map[string]feed.Feed{"DriverList": {KeyFramePath: "DriverList.json"}},
		topics: map[string]any{"DriverList": map[string]any{
			"44": map[string]any{"Tla": "HAM"},
		}},
	}
	reg := registry.NewTableRegistry()
	require.NoError(t, reg.Register(registry.TableSpec{
		Name:    "driverCount",
		Level:   core.LevelSilver,
		Sources: []string{"DriverList"},
		Func: func(_ context.Context, in lake.Inputs) (*frame.Frame, error) {
			df, err := in.Frame("DriverList")
			if err != nil {
				return nil, err
			}
			out := frame.New("Drivers")
			out.Append(frame.Record{"Drivers": df.Len()})
			return out, nil
		},
	}))
	require.NoError(t, reg.Register(registry.TableSpec{
		Name:    "broken",
		Level:   core.LevelGold,
		Sources: []string{"driverCount"},
		Func: func(context.Context, lake.Inputs) (*frame.Frame, error) {
			return nil, errors.New("boom")
		},
	}))
	s := raceSession(t, f, reg)
	ctx := context.Background()

	require.NoError(t, s.Generate(ctx, session.GenerateOptions{Silver: true}))
	df, err := s.Load(ctx, core.LevelSilver, "driverCount")
	require.NoError(t, err)
	assert.Equal(t, 1, df.Value(0, "Drivers"))

	err = s.Generate(ctx, session.GenerateOptions{Silver: true, Gold: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrGeneration)
	assert.Contains(t, err.Error(), "boom")
}

func TestSessionCreateTables(t *testing.T) {
	s := raceSession(t, &fakeFetcher{feeds: map[string]feed.Feed{}}, nil)

	b, err := s.CreateSilverTable("constant", nil, true)
	require.NoError(t, err)
	_, err = b.Do(func(_ context.Context, in lake.Inputs) (*frame.Frame, error) {
		out := frame.New("SessionKey")
		out.Append(frame.Record{"SessionKey": in.Session.Key()})
		return out, nil
	})
	require.NoError(t, err)

	g, err := s.CreateGoldTable("summary", []string{"constant"}, false)
	require.NoError(t, err)
	_, err = g.Do(func(_ context.Context, in lake.Inputs) (*frame.Frame, error) {
		return in.Frame("constant")
	})
	require.NoError(t, err)

	df, err := s.Load(context.Background(), core.LevelGold, "summary")
	require.NoError(t, err)
	assert.Equal(t, 9472, df.Value(0, "SessionKey"))
}
