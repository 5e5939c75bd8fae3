package hciuart

import "time"

// Measurement is one correlated toggle: the captured toggle time against a
// reference time carried by the traffic.
type Measurement struct {
	Kind      string    `json:"kind"`
	Toggle    uint32    `json:"toggle_us"`
	Reference uint32    `json:"reference_us"`
	Delta     int32     `json:"delta_us"`
	Tag       uint8     `json:"tag"`
	Report    string    `json:"report"`
	At        time.Time `json:"at"`
}

type Journal interface {
	Append(Measurement) error
	Load() ([]Measurement, error)
	Clear() error
}
