package mnemo

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"
)

// Micro is a time.Time that serializes to/from Unix microseconds in JSON
// and is stored at microsecond precision everywhere on disk.
type Micro time.Time

// NowMicro returns the current time truncated to microsecond precision.
func NowMicro() Micro {
	return Micro(time.Now().UTC().Truncate(time.Microsecond))
}

// Time returns the underlying time.Time value.
func (m Micro) Time() time.Time {
	return time.Time(m)
}

// Before reports whether m is before t.
func (m Micro) Before(t Micro) bool {
	return time.Time(m).Before(time.Time(t))
}

// After reports whether m is after t.
func (m Micro) After(t Micro) bool {
	return time.Time(m).After(time.Time(t))
}

// Equal reports whether m and t represent the same time instant.
func (m Micro) Equal(t Micro) bool {
	return time.Time(m).Equal(time.Time(t))
}

// String returns the time formatted as a string.
func (m Micro) String() string {
	return time.Time(m).String()
}

// IsZero reports whether m represents the zero time instant.
func (m Micro) IsZero() bool {
	return time.Time(m).IsZero()
}

// Sub returns the duration m-t.
func (m Micro) Sub(t Micro) time.Duration {
	return time.Time(m).Sub(time.Time(t))
}

// Add returns the time m+d.
func (m Micro) Add(d time.Duration) Micro {
	return Micro(time.Time(m).Add(d))
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Micro) UnmarshalJSON(b []byte) error {
	var us int64
	if err := json.Unmarshal(b, &us); err != nil {
		return err
	}
	*m = Micro(time.UnixMicro(us).UTC())
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m Micro) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(m).UnixMicro())
}

// MarshalBinary implements encoding.BinaryMarshaler as 8 big-endian
// bytes of Unix microseconds; msgpack row encoding goes through it.
func (m Micro) MarshalBinary() ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, uint64(time.Time(m).UnixMicro())), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *Micro) UnmarshalBinary(b []byte) error {
	if len(b) != 8 {
		return fmt.Errorf("mnemo: Micro: want 8 bytes, got %d", len(b))
	}
	*m = Micro(time.UnixMicro(int64(binary.BigEndian.Uint64(b))).UTC())
	return nil
}
