package dieselshare

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// RecordSize is the length of an encoded Descriptor on this platform.
// Format, width, height, declared size, then the memory and semaphore handles.
const RecordSize = 4 + 4 + 4 + 8 + 2*handleWireSize

// Descriptor describes a shared surface: a fixed format/width/height/size
// triple agreed by name, plus this process's copies of the two kernel handles.
//
// Size is the creator's allocation size. Openers use it as is; binding a
// surface whose real allocation differs from Size is undefined.
type Descriptor struct {
	Format    Format
	Width     int32
	Height    int32
	Size      uint64
	Memory    Handle
	Semaphore Handle
}

// None is returned by broker operations that fail.
var None = Descriptor{Format: FormatNone, Memory: InvalidHandle, Semaphore: InvalidHandle}

func (d Descriptor) Valid() bool {
	return d.Format.Valid() && d.Width > 0 && d.Height > 0 && d.Size > 0 &&
		d.Memory.Valid() && d.Semaphore.Valid()
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %dx%d (%d bytes)", d.Format, d.Width, d.Height, d.Size)
}

// MarshalBinary encodes d as a fixed size little-endian record.
func (d Descriptor) MarshalBinary() ([]byte, error) {
	b := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(d.Format))
	binary.LittleEndian.PutUint32(b[4:], uint32(d.Width))
	binary.LittleEndian.PutUint32(b[8:], uint32(d.Height))
	binary.LittleEndian.PutUint64(b[12:], d.Size)
	putHandle(b[20:], d.Memory)
	putHandle(b[20+handleWireSize:], d.Semaphore)
	return b, nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary. The handle
// values are those of the encoding process and must be duplicated before use.
func (d *Descriptor) UnmarshalBinary(b []byte) error {
	if len(b) != RecordSize {
		return fmt.Errorf("descriptor record: got %d bytes, want %d", len(b), RecordSize)
	}
	f := Format(binary.LittleEndian.Uint32(b[0:]))
	if !f.Valid() {
		return fmt.Errorf("descriptor record: %w: %d", ErrBadFormat, uint32(f))
	}
	d.Format = f
	d.Width = int32(binary.LittleEndian.Uint32(b[4:]))
	d.Height = int32(binary.LittleEndian.Uint32(b[8:]))
	d.Size = binary.LittleEndian.Uint64(b[12:])
	d.Memory = getHandle(b[20:])
	d.Semaphore = getHandle(b[20+handleWireSize:])
	return nil
}

// Close closes this process's copies of the kernel handles. Other processes
// keep their duplicates.
func (d *Descriptor) Close() error {
	err := errors.Join(d.Memory.Close(), d.Semaphore.Close())
	d.Memory = InvalidHandle
	d.Semaphore = InvalidHandle
	return err
}
