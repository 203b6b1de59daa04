package verification

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ifdField struct {
	tag   uint16
	typ   uint16
	count uint32
	value uint32
}

// tiffHeader starts a little-endian TIFF block whose IFD0 lives at ifd0.
func tiffHeader(ifd0 uint32) []byte {
	return binary.LittleEndian.AppendUint32([]byte("II*\x00"), ifd0)
}

func appendRawIFD(out []byte, fields []ifdField, next uint32) []byte {
	le := binary.LittleEndian
	out = le.AppendUint16(out, uint16(len(fields)))
	for _, f := range fields {
		out = le.AppendUint16(out, f.tag)
		out = le.AppendUint16(out, f.typ)
		out = le.AppendUint32(out, f.count)
		out = le.AppendUint32(out, f.value)
	}
	return le.AppendUint32(out, next)
}

func ifdChain(n int) []byte {
	out := tiffHeader(8)
	for i := 0; i < n; i++ {
		next := uint32(8 + 6*(i+1))
		if i == n-1 {
			next = 0
		}
		out = appendRawIFD(out, nil, next)
	}
	return out
}

func hostileEXIFBlocks() map[string][]byte {
	oneShort := ifdField{tag: 0x0100, typ: 3, count: 1, value: 300}

	truncatedSub := appendRawIFD(tiffHeader(8), []ifdField{{tag: tagExifIFD, typ: 4, count: 1, value: 26}}, 0)
	truncatedSub = binary.LittleEndian.AppendUint16(truncatedSub, 64)

	return map[string][]byte{
		// SHORT count whose byte length wraps to an inline value in uint32.
		"wrapping short count": append(tiffHeader(8),
			0x01, 0x00, // one entry
			0x00, 0x01, 0x03, 0x00, 0x02, 0x00, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00),
		"padded short count":     appendRawIFD(tiffHeader(8), []ifdField{{tag: 0x0100, typ: 3, count: 0x80000002}}, 0),
		"huge long count":        appendRawIFD(tiffHeader(8), []ifdField{{tag: 0x0100, typ: 4, count: 0x40000001}}, 0),
		"wrapping rational":      appendRawIFD(tiffHeader(8), []ifdField{{tag: 0x011A, typ: 5, count: 0x20000001, value: 8}}, 0),
		"value past end":         appendRawIFD(tiffHeader(8), []ifdField{{tag: tagSoftware, typ: 2, count: 16, value: 0xFFF0}}, 0),
		"unknown type":           appendRawIFD(tiffHeader(8), []ifdField{{tag: tagSoftware, typ: 0x20, count: 1}}, 0),
		"self loop":              appendRawIFD(tiffHeader(8), []ifdField{oneShort}, 8),
		"two ifd cycle":          appendRawIFD(appendRawIFD(tiffHeader(8), []ifdField{oneShort}, 26), []ifdField{oneShort}, 8),
		"exif pointer to ifd0":   appendRawIFD(tiffHeader(8), []ifdField{{tag: tagExifIFD, typ: 4, count: 1, value: 8}}, 0),
		"exif pointer past end":  appendRawIFD(tiffHeader(8), []ifdField{{tag: tagExifIFD, typ: 4, count: 1, value: 0xFFFF}}, 0),
		"gps pointer not offset": appendRawIFD(tiffHeader(8), []ifdField{{tag: tagGPSIFD, typ: 2, count: 4}}, 0),
		"truncated sub ifd":      truncatedSub,
		"negative ifd0 offset":   append(tiffHeader(0x80000000), 0, 0, 0, 0, 0, 0),
		"overlapping values": appendRawIFD(tiffHeader(8), []ifdField{
			{tag: 0x9286, typ: 7, count: 40},
			{tag: 0x927C, typ: 7, count: 40},
			{tag: 0xA420, typ: 7, count: 40},
		}, 0),
		"too many ifds":  ifdChain(maxIFDs + 1),
		"ifd0 past end":  tiffHeader(8),
		"not a tiff":     []byte("\xFF\xD8\xFF\xE1\x00\x10Exif\x00\x00II*\x00"),
		"short header":   []byte("II*\x00"),
		"ifd0 truncated": append(tiffHeader(8), 0x05, 0x00),
	}
}

func TestCheckIFDLayout_RejectsHostileBlocks(t *testing.T) {
	for name, block := range hostileEXIFBlocks() {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, checkIFDLayout(block), errUnsafeIFD)
		})
	}
}

func TestCheckIFDLayout_AcceptsWellFormedBlocks(t *testing.T) {
	tests := map[string][]byte{
		"ifd0 only": buildEXIF([]exifEntry{{tagSoftware, "Android 14"}}, nil),
		"with exif sub ifd": buildEXIF(
			[]exifEntry{{tagMake, "Google"}, {tagModel, "Pixel 8"}},
			[]exifEntry{{tagDateTimeOriginal, "2024:05:01 10:15:00"}},
		),
		"thumbnail ifd1": appendRawIFD(
			appendRawIFD(tiffHeader(8), []ifdField{{tag: 0x0100, typ: 3, count: 1, value: 1080}}, 26),
			[]ifdField{{tag: 0x0201, typ: 4, count: 1, value: 0}}, 0),
		"chain at limit": ifdChain(maxIFDs),
	}
	for name, block := range tests {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, checkIFDLayout(block))
		})
	}
}

func TestVerify_HostileEXIFIsTreatedAsAbsent(t *testing.T) {
	v := newTestVerifier()
	containers := map[string]func(t *testing.T, block []byte) []byte{
		"png": func(t *testing.T, block []byte) []byte {
			return padPNG(t, withPNGChunk(t, encodePNG(t, 300, 300), "eXIf", block), 20*1024)
		},
		"jpeg": func(t *testing.T, block []byte) []byte {
			return withJPEGSegment(encodeJPEG(t, 300, 300), 0xE1, exifAPP1(block))
		},
		"webp": func(t *testing.T, block []byte) []byte {
			return webpWithChunks(map[string][]byte{
				"VP8 ": make([]byte, 11),
				"EXIF": exifAPP1(block),
			}, "VP8 ", "EXIF")
		},
		"tiff": func(t *testing.T, block []byte) []byte {
			return block
		},
	}

	for blockName, block := range hostileEXIFBlocks() {
		for containerName, wrap := range containers {
			t.Run(containerName+"/"+blockName, func(t *testing.T) {
				data := wrap(t, block)

				_, ok := parseEmbedded(data)
				assert.False(t, ok)

				result := v.Verify(submitted(data, "screenshot.png", testNow))
				assert.False(t, result.Metadata.HasEmbeddedMetadata)
				assert.Empty(t, result.Metadata.Software)
				assert.NotContains(t, result.Causes, CauseEditingSoftware)
				assert.NotContains(t, result.Causes, CauseCaptureDateMismatch)
			})
		}
	}
}

func TestVerify_PNGWithWrappingShortCount(t *testing.T) {
	block := hostileEXIFBlocks()["wrapping short count"]
	require.Len(t, block, 22)
	data := padPNG(t, withPNGChunk(t, encodePNG(t, 300, 300), "eXIf", block), 20*1024)

	result := newTestVerifier().Verify(submitted(data, "screenshot.png", testNow))
	assert.True(t, result.IsValid)
	assert.False(t, result.Metadata.HasEmbeddedMetadata)
}
