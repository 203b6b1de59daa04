// internal/verification/ifd.go
package verification

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Limits on a single EXIF block. Camera and phone EXIF stays far below them.
const (
	maxIFDs       = 16
	maxIFDEntries = 4096
)

const (
	ifdEntrySize = 12

	tagExifIFD    = 0x8769
	tagGPSIFD     = 0x8825
	tagInteropIFD = 0xA005
)

// TIFF field type sizes in bytes, indexed by type id.
var tiffTypeSizes = map[uint16]uint64{
	1:  1, // BYTE
	2:  1, // ASCII
	3:  2, // SHORT
	4:  4, // LONG
	5:  8, // RATIONAL
	6:  1, // SBYTE
	7:  1, // UNDEFINED
	8:  2, // SSHORT
	9:  4, // SLONG
	10: 8, // SRATIONAL
	11: 4, // FLOAT
	12: 8, // DOUBLE
}

var errUnsafeIFD = errors.New("exif: unsafe ifd layout")

// checkIFDLayout walks the directory structure of a TIFF block before it is
// handed to the EXIF decoder. Every entry value must fit inside the block,
// directory chains must terminate and sub-IFD pointers must land inside the
// block. The decoder sizes allocations from entry counts, so a block that
// fails here is treated as having no metadata at all.
func checkIFDLayout(b []byte) error {
	if len(b) < 8 {
		return fmt.Errorf("%w: short header", errUnsafeIFD)
	}
	var order binary.ByteOrder
	switch {
	case bytes.HasPrefix(b, []byte("II*\x00")):
		order = binary.LittleEndian
	case bytes.HasPrefix(b, []byte("MM\x00*")):
		order = binary.BigEndian
	default:
		return fmt.Errorf("%w: not a tiff header", errUnsafeIFD)
	}

	size := uint64(len(b))
	var entriesSeen, outOfLine uint64
	visited := make(map[uint32]bool)
	pending := []uint32{order.Uint32(b[4:8])}
	// IFD0 starts the chain; only chained directories follow next pointers.
	chained := map[uint32]bool{pending[0]: true}

	for len(pending) > 0 {
		offset := pending[0]
		pending = pending[1:]

		if visited[offset] {
			return fmt.Errorf("%w: ifd loop at %d", errUnsafeIFD, offset)
		}
		visited[offset] = true
		if len(visited) > maxIFDs {
			return fmt.Errorf("%w: too many ifds", errUnsafeIFD)
		}
		if offset > 0x7FFFFFFF || uint64(offset)+2 > size {
			return fmt.Errorf("%w: ifd offset %d out of range", errUnsafeIFD, offset)
		}

		count := uint64(order.Uint16(b[offset : offset+2]))
		entries := uint64(offset) + 2
		end := entries + count*ifdEntrySize
		if end+4 > size {
			return fmt.Errorf("%w: ifd at %d truncated", errUnsafeIFD, offset)
		}

		entriesSeen += count
		if entriesSeen > maxIFDEntries {
			return fmt.Errorf("%w: too many entries", errUnsafeIFD)
		}

		for i := uint64(0); i < count; i++ {
			entry := b[entries+i*ifdEntrySize : entries+(i+1)*ifdEntrySize]
			tag := order.Uint16(entry[0:2])
			typ := order.Uint16(entry[2:4])
			n := uint64(order.Uint32(entry[4:8]))

			unit, known := tiffTypeSizes[typ]
			if !known {
				return fmt.Errorf("%w: tag 0x%04X has unknown type %d", errUnsafeIFD, tag, typ)
			}
			valueLen := unit * n
			if n == 0 || n > size || valueLen > size {
				return fmt.Errorf("%w: tag 0x%04X count %d exceeds block", errUnsafeIFD, tag, n)
			}
			if valueLen > 4 {
				if valueOffset := uint64(order.Uint32(entry[8:12])); valueOffset+valueLen > size {
					return fmt.Errorf("%w: tag 0x%04X value out of range", errUnsafeIFD, tag)
				}
				// Values may not overlap enough to add up past the block.
				outOfLine += valueLen
				if outOfLine > size {
					return fmt.Errorf("%w: tag values exceed block", errUnsafeIFD)
				}
			}

			switch tag {
			case tagExifIFD, tagGPSIFD, tagInteropIFD:
				var sub uint32
				switch typ {
				case 3:
					sub = uint32(order.Uint16(entry[8:10]))
				case 4, 9:
					sub = order.Uint32(entry[8:12])
				default:
					return fmt.Errorf("%w: tag 0x%04X is not an offset", errUnsafeIFD, tag)
				}
				pending = append(pending, sub)
			}
		}

		if chained[offset] {
			if next := order.Uint32(b[end : end+4]); next != 0 {
				chained[next] = true
				pending = append(pending, next)
			}
		}
	}
	return nil
}
