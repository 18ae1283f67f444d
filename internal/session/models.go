// Package session models the season / meeting / session hierarchy of the
// live-timing archive. A Session owns the data lake for its feed.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Lookup errors.
var (
	ErrMeetingNotFound = errors.New("meeting not found")
	ErrSessionNotFound = errors.New("session not found")
)

// Country of a meeting.
type Country struct {
	Key  int    `mapstructure:"Key"`
	Code string `mapstructure:"Code"`
	Name string `mapstructure:"Name"`
}

// Circuit of a meeting.
type Circuit struct {
	Key       int    `mapstructure:"Key"`
	ShortName string `mapstructure:"ShortName"`
}

// MeetingInfo holds the fields the archive publishes for a meeting.
// Fields this version does not know land in Extra.
type MeetingInfo struct {
	Key          int            `mapstructure:"Key"`
	Code         string         `mapstructure:"Code"`
	Number       int            `mapstructure:"Number"`
	Location     string         `mapstructure:"Location"`
	OfficialName string         `mapstructure:"OfficialName"`
	Name         string         `mapstructure:"Name"`
	Country      Country        `mapstructure:"Country"`
	Circuit      Circuit        `mapstructure:"Circuit"`
	Extra        map[string]any `mapstructure:",remain"`
}

// Info holds the fields the archive publishes for a session.
type Info struct {
	Key       int            `mapstructure:"Key"`
	Type      string         `mapstructure:"Type"`
	Number    int            `mapstructure:"Number"`
	Name      string         `mapstructure:"Name"`
	StartDate string         `mapstructure:"StartDate"`
	EndDate   string         `mapstructure:"EndDate"`
	GmtOffset string         `mapstructure:"GmtOffset"`
	Path      string         `mapstructure:"Path"`
	Extra     map[string]any `mapstructure:",remain"`
}

// Driver is one entry of the DriverList topic.
type Driver struct {
	Number      string         `mapstructure:"DriverNo"`
	RacingNo    string         `mapstructure:"RacingNumber"`
	Tla         string         `mapstructure:"Tla"`
	FirstName   string         `mapstructure:"FirstName"`
	LastName    string         `mapstructure:"LastName"`
	FullName    string         `mapstructure:"FullName"`
	BroadcastAs string         `mapstructure:"BroadcastName"`
	TeamName    string         `mapstructure:"TeamName"`
	TeamColour  string         `mapstructure:"TeamColour"`
	Extra       map[string]any `mapstructure:",remain"`
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// Season is one championship year.
type Season struct {
	Year     int
	Meetings []*Meeting
	Extra    map[string]any
}

// Meeting is one event weekend.
type Meeting struct {
	MeetingInfo
	Season   *Season
	Sessions []*Session
}

// Meeting finds a meeting by location, name, official name, country or
// circuit, ignoring case and accents. A numeric query matches the meeting
// key or its number within the season.
func (s *Season) Meeting(query string) (*Meeting, error) {
	q := fold(query)
	if n, err := strconv.Atoi(query); err == nil {
		for _, m := range s.Meetings {
			if m.Key == n || m.Number == n {
				return m, nil
			}
		}
	}
	for _, m := range s.Meetings {
		for _, field := range []string{m.Location, m.Name, m.OfficialName, m.Country.Name, m.Circuit.ShortName} {
			if field != "" && fold(field) == q {
				return m, nil
			}
		}
	}
	for _, m := range s.Meetings {
		if q != "" && (strings.Contains(fold(m.Name), q) || strings.Contains(fold(m.OfficialName), q)) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in %d", ErrMeetingNotFound, query, s.Year)
}

// Session finds a session by name or type ignoring case and accents, or by key.
func (m *Meeting) Session(query string) (*Session, error) {
	q := fold(query)
	if n, err := strconv.Atoi(query); err == nil {
		for _, s := range m.Sessions {
			if s.Info.Key == n {
				return s, nil
			}
		}
	}
	for _, s := range m.Sessions {
		if fold(s.Info.Name) == q {
			return s, nil
		}
	}
	var byType []*Session
	for _, s := range m.Sessions {
		if fold(s.Info.Type) == q {
			byType = append(byType, s)
		}
	}
	if len(byType) == 1 {
		return byType[0], nil
	}
	return nil, fmt.Errorf("%w: %q at %s", ErrSessionNotFound, query, m.Name)
}

// fold lowercases s and strips diacritics, so "São Paulo" matches "sao paulo".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}
