package ingest

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/huangsam/skysched/schema"
)

// mjdUnixEpoch is the Modified Julian Date of 1970-01-01T00:00:00Z.
const mjdUnixEpoch = 40587.0

var periodListKeys = []string{"dark_periods", "darkPeriods", "dark_period", "darkPeriod", "periods", "DarkPeriods"}

var (
	periodStartKeys = []string{
		"start", "startMjd", "start_mjd", "startTime", "start_time", "startTimeUtc", "startUTC", "startUtc",
	}
	periodStopKeys = []string{
		"stop", "stopMjd", "stop_mjd", "end", "endMjd", "end_mjd", "stopTime", "stop_time",
		"stopTimeUtc", "stopUTC", "stopUtc", "endTime", "end_time",
	}
)

// ErrNoPeriods is returned when a dark periods document has no list of periods.
var ErrNoPeriods = errors.New("could not find a dark periods array")

// ParseDarkPeriods reads dark periods from JSON. The list may be the document itself or
// sit under one of several keys; each period is an object with start/stop style keys or
// a two-element array. Times are MJD numbers, {"value": ...} objects or timestamps.
// Periods that cannot be read or whose stop is not after start are dropped.
func ParseDarkPeriods(data []byte) ([]schema.Period, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	list, ok := findPeriodList(doc)
	if !ok {
		return nil, ErrNoPeriods
	}

	periods := make([]schema.Period, 0, len(list))
	for _, item := range list {
		p, ok := parsePeriodValue(item)
		if !ok || p.Stop <= p.Start {
			continue
		}
		periods = append(periods, p)
	}
	return periods, nil
}

func findPeriodList(doc any) ([]any, bool) {
	switch v := doc.(type) {
	case []any:
		return v, true
	case map[string]any:
		for _, key := range periodListKeys {
			if arr, ok := v[key].([]any); ok {
				return arr, true
			}
		}
		// fall back to the first array value, in key order for stable results
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if arr, ok := v[k].([]any); ok {
				return arr, true
			}
		}
	}
	return nil, false
}

func parsePeriodValue(item any) (schema.Period, bool) {
	switch v := item.(type) {
	case map[string]any:
		start, ok1 := firstTime(v, periodStartKeys)
		stop, ok2 := firstTime(v, periodStopKeys)
		if !ok1 || !ok2 {
			return schema.Period{}, false
		}
		return schema.Period{Start: start, Stop: stop}, true
	case []any:
		if len(v) < 2 {
			return schema.Period{}, false
		}
		start, ok1 := parseTimeValue(v[0])
		stop, ok2 := parseTimeValue(v[1])
		if !ok1 || !ok2 {
			return schema.Period{}, false
		}
		return schema.Period{Start: start, Stop: stop}, true
	}
	return schema.Period{}, false
}

func firstTime(obj map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		if raw, ok := obj[k]; ok {
			return parseTimeValue(raw)
		}
	}
	return 0, false
}

// parseTimeValue returns an MJD from a number, a numeric string, an RFC 3339 or
// "YYYY-MM-DD HH:MM:SS" timestamp, or an object wrapping one under value/mjd/MJD.
func parseTimeValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case map[string]any:
		for _, k := range []string{"value", "mjd", "MJD"} {
			if inner, ok := v[k]; ok {
				return parseTimeValue(inner)
			}
		}
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return TimeToMJD(t), true
		}
		if t, err := time.Parse(time.DateTime, s); err == nil {
			return TimeToMJD(t), true
		}
	}
	return 0, false
}

// TimeToMJD converts a wall-clock time to a Modified Julian Date.
func TimeToMJD(t time.Time) float64 {
	return float64(t.UTC().UnixNano())/float64(24*time.Hour) + mjdUnixEpoch
}

// MJDToTime converts a Modified Julian Date to UTC.
func MJDToTime(mjd float64) time.Time {
	return time.Unix(0, int64((mjd-mjdUnixEpoch)*float64(24*time.Hour))).UTC()
}
