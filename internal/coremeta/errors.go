package coremeta

import "errors"

var (
	errNotADictionary = errors.New("coremeta: buffer does not begin with a dictionary tag")
	errMalformed      = errors.New("coremeta: malformed dictionary entry")
)
