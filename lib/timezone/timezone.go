package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Africa/Casablanca")
	if err != nil {
		panic(err)
	}
}

// force timezone to the shop's locale because scheduler slots and the
// daily history windows are defined in shop time, not in whatever
// timezone the host happens to run in
func Now() time.Time {
	return time.Now().In(Location)
}
