// internal/verification/metadata.go
package verification

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// Canonical field names shared by EXIF, XMP and PNG text sources.
const (
	fieldSoftware             = "Software"
	fieldProcessingSoftware   = "ProcessingSoftware"
	fieldCreatorTool          = "CreatorTool"
	fieldHistorySoftwareAgent = "HistorySoftwareAgent"
	fieldXMPToolkit           = "XMPToolkit"
	fieldCreator              = "Creator"
	fieldProducer             = "Producer"
	fieldApplication          = "Application"
	fieldImageDescription     = "ImageDescription"
	fieldComment              = "Comment"
	fieldUserComment          = "UserComment"
	fieldPrompt               = "Prompt"
	fieldParameters           = "Parameters"
	fieldMake                 = "Make"
	fieldModel                = "Model"
	fieldDateTimeOriginal     = "DateTimeOriginal"
	fieldCreateDate           = "CreateDate"
	fieldModifyDate           = "ModifyDate"
)

// Fields checked for editing-tool names before the generic string scan.
var priorityFields = []string{
	fieldSoftware,
	fieldProcessingSoftware,
	fieldCreatorTool,
	fieldHistorySoftwareAgent,
	fieldXMPToolkit,
	fieldCreator,
	fieldProducer,
	fieldApplication,
	fieldImageDescription,
	fieldComment,
	fieldUserComment,
	fieldPrompt,
	fieldParameters,
}

// Upper bound on inflated PNG text chunks.
const maxInflatedTextBytes = 1 << 20

var (
	pngSignature  = []byte("\x89PNG\r\n\x1a\n")
	exifHeader    = []byte("Exif\x00\x00")
	xmpJPEGHeader = []byte("http://ns.adobe.com/xap/1.0/\x00")
)

type tagValue struct {
	Name  string
	Value string
}

// embeddedMetadata is the flattened set of string tags found in an image.
// The first value seen for a name wins for lookups; every value is kept for
// the generic scan.
type embeddedMetadata struct {
	tags  []tagValue
	first map[string]string
}

func newEmbeddedMetadata() *embeddedMetadata {
	return &embeddedMetadata{first: make(map[string]string)}
}

func (m *embeddedMetadata) add(name, value string) {
	value = strings.TrimSpace(strings.Trim(value, "\x00"))
	if value == "" {
		return
	}
	m.tags = append(m.tags, tagValue{Name: name, Value: value})
	if _, ok := m.first[name]; !ok {
		m.first[name] = value
	}
}

func (m *embeddedMetadata) get(name string) string {
	return m.first[name]
}

func (m *embeddedMetadata) empty() bool {
	return len(m.tags) == 0
}

// parseEmbedded extracts embedded metadata from a JPEG, PNG, WebP or TIFF
// file. ok is false when nothing usable was found or the container could not
// be read; callers treat that as absent metadata.
func parseEmbedded(data []byte) (meta *embeddedMetadata, ok bool) {
	defer func() {
		// Panics from goexif on layouts that pass checkIFDLayout.
		if r := recover(); r != nil {
			meta, ok = nil, false
		}
	}()

	var read func([]byte, *embeddedMetadata) error
	switch {
	case bytes.HasPrefix(data, pngSignature):
		read = readPNGMetadata
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		read = readJPEGMetadata
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		read = readWebPMetadata
	case bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*")):
		read = readEXIF
	default:
		return nil, false
	}

	m := newEmbeddedMetadata()
	// Tags collected before a read error are still inspected.
	_ = read(data, m)
	if m.empty() {
		return nil, false
	}
	return m, true
}

func readPNGMetadata(data []byte, m *embeddedMetadata) error {
	pos := len(pngSignature)
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		kind := string(data[pos+4 : pos+8])
		start := pos + 8
		end := start + length
		if length < 0 || end+4 > len(data) || end < start {
			return fmt.Errorf("png chunk %q truncated", kind)
		}
		chunk := data[start:end]

		switch kind {
		case "eXIf":
			if err := readEXIF(bytes.TrimPrefix(chunk, exifHeader), m); err != nil {
				return err
			}
		case "tEXt":
			if key, text, found := bytes.Cut(chunk, []byte{0}); found {
				addPNGText(m, string(key), string(text))
			}
		case "zTXt":
			key, rest, found := bytes.Cut(chunk, []byte{0})
			if found && len(rest) > 1 {
				if text, err := inflate(rest[1:]); err == nil {
					addPNGText(m, string(key), string(text))
				}
			}
		case "iTXt":
			readPNGInternationalText(chunk, m)
		case "IEND":
			return nil
		}
		pos = end + 4
	}
	return nil
}

// readPNGInternationalText decodes an iTXt chunk:
// keyword 0 flag method language 0 translated-keyword 0 text.
func readPNGInternationalText(chunk []byte, m *embeddedMetadata) {
	key, rest, found := bytes.Cut(chunk, []byte{0})
	if !found || len(rest) < 2 {
		return
	}
	compressed := rest[0] == 1
	rest = rest[2:]
	_, rest, found = bytes.Cut(rest, []byte{0})
	if !found {
		return
	}
	_, text, found := bytes.Cut(rest, []byte{0})
	if !found {
		return
	}
	if compressed {
		inflated, err := inflate(text)
		if err != nil {
			return
		}
		text = inflated
	}
	addPNGText(m, string(key), string(text))
}

func addPNGText(m *embeddedMetadata, keyword, text string) {
	switch keyword {
	case "XML:com.adobe.xmp":
		readXMP([]byte(text), m)
	case "Software":
		m.add(fieldSoftware, text)
	case "Comment":
		m.add(fieldComment, text)
	case "Description":
		m.add(fieldImageDescription, text)
	case "Author":
		m.add(fieldCreator, text)
	case "Creation Time":
		m.add(fieldCreateDate, text)
	case "parameters":
		m.add(fieldParameters, text)
	case "prompt":
		m.add(fieldPrompt, text)
	default:
		m.add(keyword, text)
	}
}

func inflate(b []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxInflatedTextBytes))
}

func readJPEGMetadata(data []byte, m *embeddedMetadata) error {
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return fmt.Errorf("jpeg marker expected at offset %d", pos)
		}
		marker := data[pos+1]
		switch {
		case marker == 0xFF:
			// fill byte
			pos++
			continue
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			pos += 2
			continue
		case marker == 0xDA || marker == 0xD9:
			// Metadata segments all precede the first scan.
			return nil
		}

		length := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		start := pos + 4
		end := pos + 2 + length
		if length < 2 || end > len(data) {
			return fmt.Errorf("jpeg segment 0x%X truncated", marker)
		}
		segment := data[start:end]

		switch marker {
		case 0xE1:
			switch {
			case bytes.HasPrefix(segment, exifHeader):
				if err := readEXIF(segment[len(exifHeader):], m); err != nil {
					return err
				}
			case bytes.HasPrefix(segment, xmpJPEGHeader):
				readXMP(segment[len(xmpJPEGHeader):], m)
			}
		case 0xFE:
			m.add(fieldComment, string(segment))
		}
		pos = end
	}
	return nil
}

func readWebPMetadata(data []byte, m *embeddedMetadata) error {
	pos := 12
	for pos+8 <= len(data) {
		kind := string(data[pos : pos+4])
		length := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		start := pos + 8
		end := start + length
		if length < 0 || end > len(data) || end < start {
			return fmt.Errorf("webp chunk %q truncated", kind)
		}
		chunk := data[start:end]

		switch kind {
		case "EXIF":
			if err := readEXIF(bytes.TrimPrefix(chunk, exifHeader), m); err != nil {
				return err
			}
		case "XMP ":
			readXMP(chunk, m)
		}
		// chunks are padded to an even size
		pos = end + length%2
	}
	return nil
}

// EXIF tag names mapped onto the canonical fields.
var exifFieldNames = map[exif.FieldName]string{
	exif.Software:          fieldSoftware,
	exif.ImageDescription:  fieldImageDescription,
	exif.Artist:            fieldCreator,
	exif.UserComment:       fieldUserComment,
	exif.Make:              fieldMake,
	exif.Model:             fieldModel,
	exif.DateTimeOriginal:  fieldDateTimeOriginal,
	exif.DateTimeDigitized: fieldCreateDate,
	exif.DateTime:          fieldModifyDate,
}

type exifCollector struct {
	m *embeddedMetadata
}

func (c exifCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	field, known := exifFieldNames[name]
	if !known {
		field = string(name)
	}

	switch {
	case tag.Format() == tiff.StringVal:
		if v, err := tag.StringVal(); err == nil {
			c.m.add(field, v)
		}
	case name == exif.UserComment:
		c.m.add(field, decodeUserComment(tag.Val))
	}
	return nil
}

// decodeUserComment strips the 8 byte character code prefix. Only ASCII and
// undefined encodings are read as text.
func decodeUserComment(b []byte) string {
	if len(b) < 8 {
		return ""
	}
	code := string(bytes.TrimRight(b[:8], "\x00 "))
	if code != "ASCII" && code != "" {
		return ""
	}
	return string(b[8:])
}

// readEXIF decodes a TIFF structured EXIF block. Blocks whose directories do
// not fit inside b are skipped without decoding.
func readEXIF(b []byte, m *embeddedMetadata) error {
	b = bytes.TrimPrefix(b, exifHeader)
	if err := checkIFDLayout(b); err != nil {
		return err
	}
	x, err := exif.Decode(bytes.NewReader(b))
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return fmt.Errorf("decode exif: %w", err)
	}
	return x.Walk(exifCollector{m: m})
}

// XMP local names mapped onto the canonical fields.
var xmpFieldNames = map[string]string{
	"CreatorTool":       fieldCreatorTool,
	"softwareAgent":     fieldHistorySoftwareAgent,
	"xmptk":             fieldXMPToolkit,
	"creator":           fieldCreator,
	"Producer":          fieldProducer,
	"description":       fieldImageDescription,
	"Software":          fieldSoftware,
	"UserComment":       fieldUserComment,
	"Make":              fieldMake,
	"Model":             fieldModel,
	"DateTimeOriginal":  fieldDateTimeOriginal,
	"CreateDate":        fieldCreateDate,
	"DateTimeDigitized": fieldCreateDate,
	"DateCreated":       fieldCreateDate,
	"ModifyDate":        fieldModifyDate,
	"DateTime":          fieldModifyDate,
}

// RDF scaffolding that never carries a metadata value of its own.
var xmpStructural = map[string]bool{
	"RDF": true, "Description": true, "Seq": true, "Bag": true, "Alt": true,
	"li": true, "about": true, "parseType": true, "lang": true, "xmpmeta": true,
}

func xmpField(local string) string {
	if f, ok := xmpFieldNames[local]; ok {
		return f
	}
	return local
}

// readXMP walks an XMP packet and records both attribute and element values.
// Text inside rdf containers is attributed to the enclosing property.
func readXMP(packet []byte, m *embeddedMetadata) {
	dec := xml.NewDecoder(bytes.NewReader(packet))
	dec.Strict = false

	var stack []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			for _, attr := range t.Attr {
				if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" || xmpStructural[attr.Name.Local] {
					continue
				}
				m.add(xmpField(attr.Name.Local), attr.Value)
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if owner := xmpOwner(stack); owner != "" {
				m.add(xmpField(owner), string(t))
			}
		}
	}
}

func xmpOwner(stack []string) string {
	for i := len(stack) - 1; i >= 0; i-- {
		if !xmpStructural[stack[i]] {
			return stack[i]
		}
	}
	return ""
}
