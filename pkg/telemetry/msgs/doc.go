// Package msgs defines the telemetry messages published by a board.
package msgs

// Telemetry is published over MQTT by the board daemon and consumed by
// monitors, never by the host test controller which only speaks frames.
// Frames are carried as their encoded wire bytes.
//
// Producer: hilboard
// Consumer: hilmon
