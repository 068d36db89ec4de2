package period

import "errors"

// ErrInvalidPeriod is returned for strings that are not "YYYY-MM".
var ErrInvalidPeriod = errors.New("invalid period")
