package models

import "time"

// Record is a row mirrored from one of the tables.
type Record interface {
	RecordID() int64
	RecordUpdatedAt() time.Time
}
