// Package types provides the core data types shared by the time tag writer.
package types

// Event is one detected occurrence on a channel.
type Event struct {
	// ChannelID identifies the detector channel that fired
	ChannelID uint16 `json:"channel_id"`

	// TimeTagPS is the time tag in picoseconds, counting up from the start of the measurement
	TimeTagPS uint64 `json:"time_tag_ps"`
}

// Row is the on-disk shape of an Event inside a Parquet file. Its parquet
// tags name the columns of TimeTagSchema.
//
// Channel is held in a uint32 because parquet-go cannot write Go uint16
// values. The file schema still declares the column as a 16-bit unsigned
// integer, see TimeTagSchema.
type Row struct {
	Channel uint32 `parquet:"channel"`
	TimeTag uint64 `parquet:"time_tag"`
}

// RowOf converts an event to its on-disk row.
func RowOf(e Event) Row {
	return Row{Channel: uint32(e.ChannelID), TimeTag: e.TimeTagPS}
}

// Event converts a row back to the event it was written from.
func (r Row) Event() Event {
	return Event{ChannelID: uint16(r.Channel), TimeTagPS: r.TimeTag}
}
