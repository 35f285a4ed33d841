package sqlitestore

// eventRow is the GORM model backing the "events" logical key-value
// space of spec.md §6: key = EventId (hex), value = canonical event
// bytes.
type eventRow struct {
	ID       string `gorm:"primaryKey;size:64"`
	Sequence uint64 `gorm:"uniqueIndex;not null"`
	Payload  []byte `gorm:"not null"`
}

func (eventRow) TableName() string { return "events" }

// orderRow is the GORM model backing the "order" logical key-value
// space: key = monotonic sequence number, value = EventId.
type orderRow struct {
	Sequence uint64 `gorm:"primaryKey;autoIncrement:false"`
	EventID  string `gorm:"not null;size:64"`
}

func (orderRow) TableName() string { return "seq_order" }
