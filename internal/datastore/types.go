package datastore

import (
	"database/sql/driver"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date column kept in YYYY-MM-DD form. lib/pq hands
// date columns back as time.Time, which would otherwise format as a full
// timestamp.
type Date string

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = ""
	case time.Time:
		*d = Date(v.Format(dateLayout))
	case []byte:
		*d = Date(v)
	case string:
		*d = Date(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d == "" {
		return nil, nil
	}
	return string(d), nil
}

func (d Date) Time() (time.Time, error) {
	return time.Parse(dateLayout, string(d))
}

func Today(now time.Time) Date {
	return Date(now.Format(dateLayout))
}
