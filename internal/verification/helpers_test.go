package verification

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 30, G: 160, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 90, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

// withPNGChunk inserts a chunk right before IEND.
func withPNGChunk(t *testing.T, data []byte, kind string, payload []byte) []byte {
	t.Helper()
	require.Len(t, kind, 4)
	iend := len(data) - 12
	require.Equal(t, "IEND", string(data[iend+4:iend+8]))

	chunk := binary.BigEndian.AppendUint32(nil, uint32(len(payload)))
	chunk = append(chunk, kind...)
	chunk = append(chunk, payload...)
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(append([]byte(kind), payload...)))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:iend]...)
	out = append(out, chunk...)
	return append(out, data[iend:]...)
}

// padPNG grows data to exactly total bytes with a private ancillary chunk.
func padPNG(t *testing.T, data []byte, total int) []byte {
	t.Helper()
	n := total - len(data) - 12
	require.GreaterOrEqual(t, n, 0, "image already larger than %d bytes", total)
	out := withPNGChunk(t, data, "paDd", make([]byte, n))
	require.Len(t, out, total)
	return out
}

func pngText(keyword, text string) []byte {
	return append(append([]byte(keyword), 0), text...)
}

func pngInternationalText(keyword, text string) []byte {
	b := append([]byte(keyword), 0, 0, 0) // uncompressed
	b = append(b, 0)                      // empty language tag
	b = append(b, 0)                      // empty translated keyword
	return append(b, text...)
}

// withJPEGSegment inserts a marker segment right after SOI.
func withJPEGSegment(data []byte, marker byte, payload []byte) []byte {
	seg := []byte{0xFF, marker}
	seg = binary.BigEndian.AppendUint16(seg, uint16(len(payload)+2))
	seg = append(seg, payload...)

	out := make([]byte, 0, len(data)+len(seg))
	out = append(out, data[:2]...)
	out = append(out, seg...)
	return append(out, data[2:]...)
}

type exifEntry struct {
	tag   uint16
	value string
}

const (
	tagMake              = 0x010F
	tagModel             = 0x0110
	tagSoftware          = 0x0131
	tagDateTime          = 0x0132
	tagExifIFDPointer    = 0x8769
	tagDateTimeOriginal  = 0x9003
	tagDateTimeDigitized = 0x9004
)

// buildEXIF lays out a little-endian TIFF block with ASCII entries in IFD0 and,
// when sub is non-empty, an Exif sub-IFD.
func buildEXIF(ifd0, sub []exifEntry) []byte {
	out := []byte{'I', 'I', 0x2A, 0x00, 8, 0, 0, 0}

	count0 := len(ifd0)
	if len(sub) > 0 {
		count0++
	}
	data0Start := 8 + 2 + 12*count0 + 4
	subStart := data0Start + asciiDataLen(ifd0)

	out = appendIFD(out, ifd0, data0Start, len(sub) > 0, uint32(subStart))
	if len(sub) > 0 {
		out = appendIFD(out, sub, subStart+2+12*len(sub)+4, false, 0)
	}
	return out
}

func asciiDataLen(entries []exifEntry) int {
	n := 0
	for _, e := range entries {
		if l := len(e.value) + 1; l > 4 {
			n += l + l%2
		}
	}
	return n
}

func appendIFD(out []byte, entries []exifEntry, dataStart int, withSub bool, subOffset uint32) []byte {
	le := binary.LittleEndian
	n := len(entries)
	if withSub {
		n++
	}
	out = le.AppendUint16(out, uint16(n))

	var data []byte
	for _, e := range entries {
		val := append([]byte(e.value), 0)
		out = le.AppendUint16(out, e.tag)
		out = le.AppendUint16(out, 2) // ASCII
		out = le.AppendUint32(out, uint32(len(val)))
		if len(val) <= 4 {
			var inline [4]byte
			copy(inline[:], val)
			out = append(out, inline[:]...)
			continue
		}
		out = le.AppendUint32(out, uint32(dataStart+len(data)))
		data = append(data, val...)
		if len(val)%2 == 1 {
			data = append(data, 0)
		}
	}
	if withSub {
		out = le.AppendUint16(out, tagExifIFDPointer)
		out = le.AppendUint16(out, 4) // LONG
		out = le.AppendUint32(out, 1)
		out = le.AppendUint32(out, subOffset)
	}
	out = le.AppendUint32(out, 0)
	return append(out, data...)
}

func exifAPP1(tiffBlock []byte) []byte {
	return append([]byte("Exif\x00\x00"), tiffBlock...)
}

func xmpPacket(description string) string {
	return `<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="XMP Core 6.0.0">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about="" xmlns:xmp="http://ns.adobe.com/xap/1.0/" xmlns:dc="http://purl.org/dc/elements/1.1/" ` + description + `>
  </rdf:Description>
 </rdf:RDF>
</x:xmpmeta>
<?xpacket end="w"?>`
}
