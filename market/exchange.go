package market

import (
	"strings"
	"sync"
	"time"
	_ "time/tzdata"
)

// Exchange identifies a trading venue and the time zone its calendar runs in.
type Exchange struct {
	Code     string
	Location *time.Location
}

// DefaultExchange is used for assets that carry no exchange (crypto, forex).
var DefaultExchange = Exchange{Code: "", Location: time.UTC}

var (
	exchangeMu sync.RWMutex
	exchanges  = map[string]Exchange{}
)

func init() {
	for code, zone := range map[string]string{
		"US":     "America/New_York",
		"XNYS":   "America/New_York",
		"XNAS":   "America/New_York",
		"XAMS":   "Europe/Amsterdam",
		"XLON":   "Europe/London",
		"XTKS":   "Asia/Tokyo",
		"CRYPTO": "UTC",
		"FOREX":  "America/New_York",
	} {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			loc = time.UTC
		}
		exchanges[code] = Exchange{Code: code, Location: loc}
	}
}

// RegisterExchange adds or replaces an exchange.
func RegisterExchange(code string, loc *time.Location) Exchange {
	if loc == nil {
		loc = time.UTC
	}
	e := Exchange{Code: strings.ToUpper(code), Location: loc}
	exchangeMu.Lock()
	exchanges[e.Code] = e
	exchangeMu.Unlock()
	return e
}

// GetExchange returns the registered exchange for code. Unknown codes resolve
// to a UTC exchange carrying that code.
func GetExchange(code string) Exchange {
	if code == "" {
		return DefaultExchange
	}
	code = strings.ToUpper(code)
	exchangeMu.RLock()
	e, ok := exchanges[code]
	exchangeMu.RUnlock()
	if !ok {
		return Exchange{Code: code, Location: time.UTC}
	}
	return e
}

func (e Exchange) loc() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

// Date returns the exchange-local calendar date of t as midnight in the
// exchange time zone.
func (e Exchange) Date(t time.Time) time.Time {
	lt := t.In(e.loc())
	y, m, d := lt.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.loc())
}

// SameDay reports whether a and b fall on the same exchange-local date.
func (e Exchange) SameDay(a, b time.Time) bool {
	return e.Date(a).Equal(e.Date(b))
}

func (e Exchange) String() string { return e.Code }
