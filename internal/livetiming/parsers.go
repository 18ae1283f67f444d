package livetiming

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/leapstack-labs/livef1/internal/registry"
	"github.com/leapstack-labs/livef1/pkg/frame"
)

// CarData.z channel codes.
var channelNames = map[string]string{
	"0":  "RPM",
	"2":  "Speed",
	"3":  "nGear",
	"4":  "Throttle",
	"5":  "Brake",
	"45": "DRS",
}

// NewParserRegistry returns a registry holding a parser for every topic the
// feed publishes.
func NewParserRegistry() *registry.ParserRegistry {
	r := registry.NewParserRegistry()
	for topic, fn := range map[string]registry.ParseFunc{
		"SessionInfo":           parseSessionInfo,
		"ArchiveStatus":         parseBasic,
		"TrackStatus":           parseSessionInfo,
		"SessionData":           parseSessionData,
		"ContentStreams":        listParser("Streams"),
		"AudioStreams":          listParser("Streams"),
		"ExtrapolatedClock":     parseBasic,
		"DriverList":            parseDriverList,
		"TimingDataF1":          parseTimingData,
		"TimingData":            parseTimingData,
		"LapSeries":             parseLapSeries,
		"TopThree":              parseTopThree,
		"TimingAppData":         parseTimingData,
		"TimingStats":           parseTimingData,
		"SessionStatus":         fieldParser("Status", "status"),
		"TyreStintSeries":       parseTyreStintSeries,
		"Heartbeat":             fieldParser("Utc", "utc"),
		"Position.z":            parsePosition,
		"WeatherData":           parseBasic,
		"WeatherDataSeries":     listParser("Series"),
		"CarData.z":             parseCarData,
		"TeamRadio":             listParser("Captures"),
		"TlaRcm":                fieldParser("Message", "Message"),
		"RaceControlMessages":   listParser("Messages"),
		"PitLaneTimeCollection": parsePitLaneTime,
		"CurrentTyres":          driverMapParser("Tyres"),
		"DriverRaceInfo":        driverMapParser(""),
	} {
		r.Register(topic, fn)
	}
	return r
}

// entries normalizes a raw payload into timestamped updates. A keyframe is a
// single update without a timestamp.
func entries(raw any) ([]Entry, error) {
	switch v := raw.(type) {
	case []Entry:
		return v, nil
	case map[string]any, string:
		return []Entry{{Data: v}}, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported payload type %T", raw)
}

func base(key int, e Entry) frame.Record {
	rec := frame.Record{"SessionKey": key, "timestamp": nil}
	if e.Timestamp != "" {
		rec["timestamp"] = e.Timestamp
	}
	return rec
}

func merge(rec frame.Record, info any) frame.Record {
	if m, ok := info.(map[string]any); ok {
		for k, v := range m {
			rec[k] = v
		}
	}
	return rec
}

type item struct {
	key string
	val any
}

// items iterates a JSON object in key order (numeric keys numerically) or a
// JSON array by index. Feed updates switch between the two shapes.
func items(v any) []item {
	switch c := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, func(a, b string) int { return frame.Compare(a, b) })
		out := make([]item, len(keys))
		for i, k := range keys {
			out[i] = item{k, c[k]}
		}
		return out
	case []any:
		out := make([]item, len(c))
		for i, x := range c {
			out[i] = item{strconv.Itoa(i), x}
		}
		return out
	}
	return nil
}

// flatten copies a nested object into rec with "_"-joined keys. Arrays are
// indexed from zero, so "Sectors_0_Value" names the same cell whether the
// update carried an array or an object keyed "0".
func flatten(rec frame.Record, prefix string, v map[string]any) {
	for _, it := range items(v) {
		key := prefix + it.key
		switch child := it.val.(type) {
		case map[string]any:
			flatten(rec, key+"_", child)
		case []any:
			for _, el := range items(child) {
				if m, ok := el.val.(map[string]any); ok {
					flatten(rec, key+"_"+el.key+"_", m)
				} else {
					rec[key+"_"+el.key] = el.val
				}
			}
		default:
			rec[key] = child
		}
	}
}

func parseBasic(raw any, key int) ([]frame.Record, error) {
	es, err := entries(raw)
	if err != nil {
		return nil, err
	}
	out := make([]frame.Record, 0, len(es))
	for _, e := range es {
		out = append(out, merge(base(key, e), e.Data))
	}
	return out, nil
}

func parseSessionInfo(raw any, key int) ([]frame.Record, error) {
	es, err := entries(raw)
	if err != nil {
		return nil, err
	}
	out := make([]frame.Record, 0, len(es))
	for _, e := range es {
		m, ok := e.Data.(map[string]any)
		if !ok {
			continue
		}
		rec := base(key, e)
		flatten(rec, "", m)
		out = append(out, rec)
	}
	return out, nil
}

// fieldParser emits one record per update holding a single field.
func fieldParser(field, column string) registry.ParseFunc {
	return func(raw any, key int) ([]frame.Record, error) {
		es, err := entries(raw)
		if err != nil {
			return nil, err
		}
		out := make([]frame.Record, 0, len(es))
		for _, e := range es {
			m, ok := e.Data.(map[string]any)
			if !ok {
				continue
			}
			v, ok := m[field]
			if !ok {
				continue
			}
			rec := base(key, e)
			rec[column] = v
			out = append(out, rec)
		}
		return out, nil
	}
}

// listParser emits one record per element of a list-or-object field.
func listParser(field string) registry.ParseFunc {
	return func(raw any, key int) ([]frame.Record, error) {
		es, err := entries(raw)
		if err != nil {
			return nil, err
		}
		var out []frame.Record
		for _, e := range es {
			m, ok := e.Data.(map[string]any)
			if !ok {
				continue
			}
			for _, it := range items(m[field]) {
				out = append(out, merge(base(key, e), it.val))
			}
		}
		return out, nil
	}
}

// driverMapParser emits one record per driver of a driver-keyed object,
// found under field or at the top level when field is empty.
func driverMapParser(field string) registry.ParseFunc {
	return func(raw any, key int) ([]frame.Record, error) {
		es, err := entries(raw)
		if err != nil {
			return nil, err
		}
		var out []frame.Record
		for _, e := range es {
			m, ok := e.Data.(map[string]any)
			if !ok {
				continue
			}
			src := any(m)
			if field != "" {
				src = m[field]
			}
			for _, it := range items(src) {
				if _, ok := it.val.(map[string]any); !ok {
					continue
				}
				rec := base(key, e)
				rec["DriverNo"] = it.key
				out = append(out, merge(rec, it.val))
			}
		}
		return out, nil
	}
}

func parseDriverList(raw any, key int) ([]frame.Record, error) {
	es, err := entries(raw)
	if err != nil {
		return nil, err
	}
	var out []frame.Record
	for _, e := range es {
		for _, it := range items(e.Data) {
			info, ok := it.val.(map[string]any)
			if !ok {
				continue
			}
			rec := frame.Record{"SessionKey": key, "DriverNo": it.key}
			out = append(out, merge(rec, info))
		}
	}
	return out, nil
}

func parseSessionData(raw any, key int) ([]frame.Record, error) {
	es, err := entries(raw)
	if err != nil {
		return nil, err
	}
	var out []frame.Record
	for _, e := range es {
		for _, series := range items(e.Data) {
			for _, it := range items(series.val) {
				if _, ok := it.val.(map[string]any); !ok {
					continue
				}
				rec := base(key, e)
				rec["Series"] = series.key
				out = append(out, merge(rec, it.val))
			}
		}
	}
	return out, nil
}

func parseTimingData(raw any, key int) ([]frame.Record, error) {
	es, err := entries(raw)
	if err != nil {
		return nil, err
	}
	var out []frame.Record
	for _, e := range es {
		m, ok := e.Data.(map[string]any)
		if !ok {
			continue
		}
		for _, it := range items(m["Lines"]) {
			info, ok := it.val.(map[string]any)
			if !ok {
				continue
			}
			rec := base(key, e)
			rec["DriverNo"] = it.key
			flatten(rec, "", info)
			out = append(out, rec)
		}
	}
	return out, nil
}

func parseLapSeries(raw any, key int) ([]frame.Record, error) {
	es, err := entries(raw)
	if err != nil {
		return nil, err
	}
	var out []frame.Record
	for _, e := range es {
		for _, drv := range items(e.Data) {
			m, ok := drv.val.(map[string]any)
			if !ok {
				continue
			}
			for _, lap := range items(m["LapPosition"]) {
				rec := base(key, e)
				rec["DriverNo"] = drv.key
				rec["Lap"] = lap.key
				rec["LapPosition"] = lap.val
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func parseTopThree(raw any, key int) ([]frame.Record, error) {
	es, err := entries(raw)
	if err != nil {
		return nil, err
	}
	var out []frame.Record
	for _, e := range es {
		m, ok := e.Data.(map[string]any)
		if !ok {
			continue
		}
		if _, withheld := m["Withheld"]; withheld {
			continue
		}
		for _, it := range items(m["Lines"]) {
			rec := base(key, e)
			rec["DriverAtPosition"] = it.key
			out = append(out, merge(rec, it.val))
		}
	}
	return out, nil
}

func parseTyreStintSeries(raw any, key int) ([]frame.Record, error) {
	es, err := entries(raw)
	if err != nil {
		return nil, err
	}
	var out []frame.Record
	for _, e := range es {
		m, ok := e.Data.(map[string]any)
		if !ok {
			continue
		}
		for _, drv := range items(m["Stints"]) {
			for _, stint := range items(drv.val) {
				rec := base(key, e)
				rec["DriverNo"] = drv.key
				rec["PitCount"] = stint.key
				out = append(out, merge(rec, stint.val))
			}
		}
	}
	return out, nil
}

func parsePitLaneTime(raw any, key int) ([]frame.Record, error) {
	es, err := entries(raw)
	if err != nil {
		return nil, err
	}
	var out []frame.Record
	for _, e := range es {
		m, ok := e.Data.(map[string]any)
		if !ok {
			continue
		}
		times, _ := m["PitTimes"].(map[string]any)
		if deleted, ok := times["_deleted"]; ok {
			for _, d := range items(deleted) {
				rec := base(key, e)
				rec["_deleted"] = d.val
				out = append(out, rec)
			}
			continue
		}
		for _, it := range items(times) {
			rec := base(key, e)
			rec["DriverNo"] = it.key
			out = append(out, merge(rec, it.val))
		}
	}
	return out, nil
}

// inflated decodes every compressed update of a .z topic.
func inflated(raw any) ([]Entry, error) {
	es, err := entries(raw)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(es))
	for _, e := range es {
		switch d := e.Data.(type) {
		case string:
			data, err := Inflate(d)
			if err != nil {
				return nil, fmt.Errorf("update at %s: %w", e.Timestamp, err)
			}
			out = append(out, Entry{Timestamp: e.Timestamp, Data: data})
		case map[string]any:
			out = append(out, e)
		}
	}
	return out, nil
}

func parsePosition(raw any, key int) ([]frame.Record, error) {
	es, err := inflated(raw)
	if err != nil {
		return nil, err
	}
	var out []frame.Record
	for _, e := range es {
		m, _ := e.Data.(map[string]any)
		for _, pos := range items(m["Position"]) {
			p, ok := pos.val.(map[string]any)
			if !ok {
				continue
			}
			for _, drv := range items(p["Entries"]) {
				rec := base(key, e)
				rec["Utc"] = p["Timestamp"]
				rec["DriverNo"] = drv.key
				out = append(out, merge(rec, drv.val))
			}
		}
	}
	return out, nil
}

func parseCarData(raw any, key int) ([]frame.Record, error) {
	es, err := inflated(raw)
	if err != nil {
		return nil, err
	}
	var out []frame.Record
	for _, e := range es {
		m, _ := e.Data.(map[string]any)
		for _, ent := range items(m["Entries"]) {
			entry, ok := ent.val.(map[string]any)
			if !ok {
				continue
			}
			for _, car := range items(entry["Cars"]) {
				c, ok := car.val.(map[string]any)
				if !ok {
					continue
				}
				rec := base(key, e)
				rec["Utc"] = entry["Utc"]
				rec["DriverNo"] = car.key
				for _, ch := range items(c["Channels"]) {
					name, ok := channelNames[ch.key]
					if !ok {
						name = "Channel" + ch.key
					}
					rec[name] = ch.val
				}
				out = append(out, rec)
			}
		}
	}
	return out, nil
}
