package repository

import "time"

// now is the timestamp written by repositories. Stored times are always UTC
// so that they compare correctly as text in SQLite.
func now() time.Time {
	return time.Now().UTC()
}
