package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// Session coordinates of the archive served by BahrainRace.
const (
	Season     = 2024
	Meeting    = "bahrain"
	Session    = "race"
	SessionKey = 9472
)

// PenaltiesScript declares a gold table over raceControlMessages holding
// one row per time penalty.
const PenaltiesScript = `
def _penalties(raceControlMessages, session):
    return [
        {"SessionKey": session.key, "DriverNo": m["DriverNo"], "Seconds": m["PenaltySeconds"]}
        for m in raceControlMessages
        if m["PenaltyType"] != None
    ]

gold_table("penalties", ["silver.raceControlMessages"], _penalties, include_session=True)
`

// BahrainRace returns the files of a small archive: the 2024 season index,
// one race session publishing RaceControlMessages (two messages, one time
// penalty for car 22) and DriverList.
func BahrainRace() map[string]string {
	return map[string]string{
		"/static/2024/Index.json": `{"Year":2024,"Meetings":[{"Key":1229,"Name":"Bahrain Grand Prix","Location":"Sakhir",` +
			`"Sessions":[{"Key":9472,"Type":"Race","Name":"Race","Path":"2024/bah/race/"}]}]}`,
		"/static/2024/bah/race/Index.json": `{"Feeds":{` +
			`"RaceControlMessages":{"KeyFramePath":"RaceControlMessages.json","StreamPath":"RaceControlMessages.jsonStream"},` +
			`"DriverList":{"KeyFramePath":"DriverList.json","StreamPath":"DriverList.jsonStream"}}}`,
		"/static/2024/bah/race/RaceControlMessages.jsonStream": "\ufeff" +
			`00:00:01.000{"Messages":[{"Utc":"2024-03-02T15:00:01","Category":"Flag","Flag":"GREEN","Message":"GREEN LIGHT - PIT EXIT OPEN"}]}` + "\r\n" +
			`00:42:10.000{"Messages":{"1":{"Utc":"2024-03-02T15:42:10","Lap":12,"Category":"Other","Message":"5 SECOND TIME PENALTY FOR CAR 22 (TSU) - CAUSING A COLLISION"}}}` + "\r\n",
		"/static/2024/bah/race/RaceControlMessages.json": `{"Messages":[]}`,
		"/static/2024/bah/race/DriverList.json":          `{"22":{"RacingNumber":"22","Tla":"TSU","FullName":"Yuki TSUNODA"}}`,
	}
}

// ArchiveServer serves files by URL path and 404s everything else. The
// feed base URL is server.URL + "/static".
func ArchiveServer(t testing.TB, files map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}
