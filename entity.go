package sheetorm

import (
	"fmt"
	"strconv"
	"time"
)

// Entity is a decoded record: property name -> value, shaped by a Schema.
// A nil value means the cell is blank.
type Entity map[string]interface{}

// Clone returns a shallow copy of the entity
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	c := make(Entity, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}

// GetAsString returns the value as string or defaultValue if not found
func (e Entity) GetAsString(prop string, defaultValue string) string {
	v, ok := e[prop]
	if !ok || v == nil {
		return defaultValue
	}

	switch val := v.(type) {
	case string:
		return val
	case int, int64, float64:
		return fmt.Sprintf("%v", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case time.Time:
		return val.Format(time.RFC3339)
	case Link:
		return val.URL
	case *Link:
		return val.URL
	default:
		return fmt.Sprintf("%v", val)
	}
}

// GetAsInt64 returns the value as int64 or defaultValue if not found
func (e Entity) GetAsInt64(prop string, defaultValue int64) int64 {
	v, ok := e[prop]
	if !ok {
		return defaultValue
	}

	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// GetAsFloat64 returns the value as float64 or defaultValue if not found
func (e Entity) GetAsFloat64(prop string, defaultValue float64) float64 {
	v, ok := e[prop]
	if !ok {
		return defaultValue
	}

	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// GetAsBool returns the value as bool or defaultValue if not found
func (e Entity) GetAsBool(prop string, defaultValue bool) bool {
	v, ok := e[prop]
	if !ok {
		return defaultValue
	}

	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true" || val == "TRUE" || val == "1"
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	}
	return defaultValue
}

// spreadsheetEpoch is day zero of the serial date system used by Sheets and Excel
var spreadsheetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// GetAsTime returns the value as time.Time or defaultValue if not found.
// Numbers are read as spreadsheet serial days.
func (e Entity) GetAsTime(prop string, defaultValue time.Time) time.Time {
	v, ok := e[prop]
	if !ok {
		return defaultValue
	}

	switch val := v.(type) {
	case time.Time:
		return val
	case float64:
		return serialToTime(val)
	case int64:
		return serialToTime(float64(val))
	case int:
		return serialToTime(float64(val))
	case string:
		formats := []string{
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02",
			"2006/01/02 15:04:05",
			"2006/01/02",
		}
		for _, format := range formats {
			if t, err := time.Parse(format, val); err == nil {
				return t
			}
		}
	}
	return defaultValue
}

// GetAsLink returns the value as a Link, or false if the property holds no link
func (e Entity) GetAsLink(prop string) (Link, bool) {
	switch val := e[prop].(type) {
	case Link:
		return val, true
	case *Link:
		if val != nil {
			return *val, true
		}
	}
	return Link{}, false
}

func serialToTime(days float64) time.Time {
	return spreadsheetEpoch.Add(time.Duration(days * float64(24*time.Hour))).Round(time.Second)
}
