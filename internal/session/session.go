package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/livef1/internal/feed"
	"github.com/leapstack-labs/livef1/internal/lake"
	"github.com/leapstack-labs/livef1/internal/livetiming"
	"github.com/leapstack-labs/livef1/internal/registry"
	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/leapstack-labs/livef1/pkg/frame"
)

// Fetcher reads the live-timing archive. *feed.Client implements it.
type Fetcher interface {
	SeasonIndex(ctx context.Context, year int) (map[string]any, error)
	SessionIndex(ctx context.Context, sessionPath string) (map[string]feed.Feed, error)
	Topic(ctx context.Context, sessionPath string, f feed.Feed, topic string, stream bool) (any, error)
}

// Config wires a season and its sessions to the archive.
type Config struct {
	Client Fetcher
	// Parsers defaults to livetiming.NewParserRegistry().
	Parsers *registry.ParserRegistry
	// Tables are installed into every session lake. Nil installs none.
	Tables   *registry.TableRegistry
	Logger   *slog.Logger
	Observer lake.Observer
}

func (c *Config) defaults() {
	if c.Parsers == nil {
		c.Parsers = livetiming.NewParserRegistry()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// LoadSeason fetches and decodes the season index for year.
func LoadSeason(ctx context.Context, year int, cfg Config) (*Season, error) {
	if cfg.Client == nil {
		return nil, errors.New("session: config has no client")
	}
	cfg.defaults()
	doc, err := cfg.Client.SeasonIndex(ctx, year)
	if err != nil {
		return nil, err
	}
	return NewSeason(year, doc, cfg)
}

// LoadMeeting loads the season and returns the meeting matching query.
func LoadMeeting(ctx context.Context, year int, query string, cfg Config) (*Meeting, error) {
	s, err := LoadSeason(ctx, year, cfg)
	if err != nil {
		return nil, err
	}
	return s.Meeting(query)
}

// LoadSession loads the season and returns the session matching
// sessionQuery within the meeting matching meetingQuery.
func LoadSession(ctx context.Context, year int, meetingQuery, sessionQuery string, cfg Config) (*Session, error) {
	m, err := LoadMeeting(ctx, year, meetingQuery, cfg)
	if err != nil {
		return nil, err
	}
	return m.Session(sessionQuery)
}

// NewSeason decodes a season index document.
func NewSeason(year int, doc map[string]any, cfg Config) (*Season, error) {
	cfg.defaults()
	season := &Season{Year: year, Extra: map[string]any{}}
	for k, v := range doc {
		if k != "Meetings" && k != "Year" {
			season.Extra[k] = v
		}
	}
	raw, _ := doc["Meetings"].([]any)
	for i, item := range raw {
		md, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("season %d: meeting %d is %T", year, i, item)
		}
		md = shallowCopy(md)
		sessions, _ := md["Sessions"].([]any)
		delete(md, "Sessions")

		m := &Meeting{Season: season}
		if err := decode(md, &m.MeetingInfo); err != nil {
			return nil, fmt.Errorf("season %d: meeting %d: %w", year, i, err)
		}
		for j, sraw := range sessions {
			sd, ok := sraw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("meeting %s: session %d is %T", m.Name, j, sraw)
			}
			s := &Session{Meeting: m, cfg: cfg}
			if err := decode(sd, &s.Info); err != nil {
				return nil, fmt.Errorf("meeting %s: session %d: %w", m.Name, j, err)
			}
			m.Sessions = append(m.Sessions, s)
		}
		season.Meetings = append(season.Meetings, m)
	}
	return season, nil
}

// NewSession builds a standalone session, e.g. for a known archive path.
func NewSession(info Info, cfg Config) *Session {
	cfg.defaults()
	return &Session{Info: info, cfg: cfg}
}

func shallowCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Session is one timed session of a meeting. It implements lake.Session and
// owns the data lake built from its feed.
type Session struct {
	Info    Info
	Meeting *Meeting

	cfg Config

	mu    sync.Mutex
	feeds map[string]feed.Feed
	lake  *lake.DataLake
}

// Key returns the session key.
func (s *Session) Key() int { return s.Info.Key }

// Name returns "<meeting> <session>", or just the session name.
func (s *Session) Name() string {
	if s.Meeting != nil && s.Meeting.Name != "" {
		return s.Meeting.Name + " " + s.Info.Name
	}
	return s.Info.Name
}

// Type returns the session type, e.g. "Race".
func (s *Session) Type() string { return s.Info.Type }

// Path returns the session's archive path.
func (s *Session) Path() string { return s.Info.Path }

func (s *Session) index(ctx context.Context) (map[string]feed.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feeds != nil {
		return s.feeds, nil
	}
	if s.cfg.Client == nil {
		return nil, errors.New("session: config has no client")
	}
	if s.Info.Path == "" {
		return nil, fmt.Errorf("session %d has no archive path", s.Info.Key)
	}
	feeds, err := s.cfg.Client.SessionIndex(ctx, s.Info.Path)
	if err != nil {
		return nil, fmt.Errorf("session %d index: %w", s.Info.Key, err)
	}
	if feeds == nil {
		feeds = map[string]feed.Feed{}
	}
	s.feeds = feeds
	return feeds, nil
}

// Topics lists the topics the archive publishes for this session.
func (s *Session) Topics(ctx context.Context) ([]string, error) {
	feeds, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(feeds))
	for name := range feeds {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// GetRaw downloads one topic. The stream archive is used for topics the
// catalog marks as streaming, the keyframe otherwise.
func (s *Session) GetRaw(ctx context.Context, topic string) (any, error) {
	feeds, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	f, ok := feeds[topic]
	if !ok {
		return nil, &core.TopicNotFoundError{Topic: topic}
	}
	stream := true
	if t, ok := livetiming.LookupTopic(topic); ok {
		stream = t.Stream
	}
	s.cfg.Logger.Debug("fetching topic", "session", s.Info.Key, "topic", topic, "stream", stream)
	return s.cfg.Client.Topic(ctx, s.Info.Path, f, topic, stream)
}

// Lake returns the session's data lake, building it on first use.
func (s *Session) Lake() (*lake.DataLake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lake != nil {
		return s.lake, nil
	}
	opts := []lake.Option{
		lake.WithLogger(s.cfg.Logger.With("session", s.Info.Key)),
		lake.WithParsers(s.cfg.Parsers),
	}
	if s.cfg.Observer != nil {
		opts = append(opts, lake.WithObserver(s.cfg.Observer))
	}
	l := lake.New(s, opts...)
	if s.cfg.Tables != nil {
		if err := s.cfg.Tables.Install(l); err != nil {
			return nil, err
		}
	}
	s.lake = l
	return l, nil
}

// ResetLake drops the session's lake. The next Lake call builds a fresh one
// from the current table registry; the topic index stays cached.
func (s *Session) ResetLake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lake = nil
}

// Load returns the frame of a table, generating it and its dependencies
// when needed. Bronze names are feed topics.
func (s *Session) Load(ctx context.Context, level core.Level, name string) (*frame.Frame, error) {
	l, err := s.Lake()
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, level, name)
}

// GenerateOptions selects the levels Generate builds.
type GenerateOptions struct {
	Silver bool
	Gold   bool
}

// Generate builds every registered table of the selected levels. A failing
// table does not stop the others; all failures are joined.
func (s *Session) Generate(ctx context.Context, opts GenerateOptions) error {
	l, err := s.Lake()
	if err != nil {
		return err
	}
	var levels []core.Level
	if opts.Silver {
		levels = append(levels, core.LevelSilver)
	}
	if opts.Gold {
		levels = append(levels, core.LevelGold)
	}
	var errs []error
	for _, level := range levels {
		tables, err := l.Tables(level)
		if err != nil {
			return err
		}
		for _, t := range tables {
			if err := ctx.Err(); err != nil {
				return errors.Join(append(errs, err)...)
			}
			if _, err := l.GenerateTable(ctx, t.Name()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// CreateSilverTable starts a silver table definition on the session lake.
func (s *Session) CreateSilverTable(name string, sources []string, includeSession bool) (*lake.TableBuilder, error) {
	l, err := s.Lake()
	if err != nil {
		return nil, err
	}
	return l.CreateSilverTable(name, sources, includeSession), nil
}

// CreateGoldTable starts a gold table definition on the session lake.
func (s *Session) CreateGoldTable(name string, sources []string, includeSession bool) (*lake.TableBuilder, error) {
	l, err := s.Lake()
	if err != nil {
		return nil, err
	}
	return l.CreateGoldTable(name, sources, includeSession), nil
}

// Drivers returns the session's drivers keyed by car number.
func (s *Session) Drivers(ctx context.Context) (map[string]Driver, error) {
	df, err := s.Load(ctx, core.LevelBronze, "DriverList")
	if err != nil {
		return nil, err
	}
	out := make(map[string]Driver, df.Len())
	for _, rec := range df.Records() {
		var d Driver
		if err := decode(map[string]any(rec), &d); err != nil {
			return nil, fmt.Errorf("driver list: %w", err)
		}
		delete(d.Extra, "SessionKey")
		if d.Number == "" {
			continue
		}
		out[d.Number] = d
	}
	return out, nil
}

// String implements fmt.Stringer.
func (s *Session) String() string {
	parts := []string{}
	if s.Meeting != nil && s.Meeting.Season != nil {
		parts = append(parts, fmt.Sprint(s.Meeting.Season.Year))
	}
	parts = append(parts, s.Name())
	return strings.Join(parts, " ")
}
