package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
)

// RawAmount is a token amount in base units. It is stored as decimal text
// because SQL integer columns are signed and a raw SPL amount can use all 64 bits.
type RawAmount uint64

// Value implements driver.Valuer.
func (a RawAmount) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(a), 10), nil
}

// Scan implements sql.Scanner.
func (a *RawAmount) Scan(src interface{}) error {
	var (
		v   uint64
		err error
	)
	switch s := src.(type) {
	case nil:
		v = 0
	case int64:
		if s < 0 {
			return fmt.Errorf("negative raw amount %d", s)
		}
		v = uint64(s)
	case string:
		v, err = strconv.ParseUint(s, 10, 64)
	case []byte:
		v, err = strconv.ParseUint(string(s), 10, 64)
	default:
		return fmt.Errorf("cannot scan %T into RawAmount", src)
	}
	if err != nil {
		return fmt.Errorf("invalid raw amount: %w", err)
	}
	*a = RawAmount(v)
	return nil
}
