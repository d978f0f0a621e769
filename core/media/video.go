package media

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/jvillegas/metasweep/core"
)

// DecodeVideo dispatches on the container family.
func DecodeVideo(data []byte, format core.FormatID) *core.ReportSection {
	switch format {
	case core.FmtMP4, core.FmtMOV:
		return decodeMP4(data, format)
	case core.FmtMKV, core.FmtWebM:
		return decodeEBML(data, format)
	case core.FmtAVI:
		return decodeAVI(data)
	case core.FmtFLV:
		return decodeFLV(data)
	}
	s := core.NewSection("Video")
	s.SetNotice("unsupported video container", core.LevelError)
	return s
}

// itunesAtomNames maps ilst item types to labels; authorship, tool and
// location atoms carry the risk flag.
var itunesAtomNames = map[string]struct {
	label     string
	sensitive bool
}{
	"\xa9nam": {"Title", false},
	"\xa9ART": {"Artist", true},
	"\xa9alb": {"Album", false},
	"\xa9day": {"Date", true},
	"\xa9too": {"Encoder", true},
	"\xa9cmt": {"Comment", true},
	"\xa9wrt": {"Composer", true},
	"\xa9gen": {"Genre", false},
	"\xa9xyz": {"GPSLocation", true},
	"\xa9cpy": {"Copyright", true},
}

// mp4Epoch is the ISOBMFF time origin.
var mp4Epoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)

func decodeMP4(data []byte, format core.FormatID) *core.ReportSection {
	title := "MP4"
	if format == core.FmtMOV {
		title = "QuickTime"
	}
	s := core.NewSection(title)
	r := core.NewReader(data)

	sawMoov := false
	core.WalkBoxes(r, 0, r.Len(), func(depth int, b core.Box) bool {
		switch b.Type {
		case "moov", "trak", "mdia":
			if b.Type == "moov" {
				sawMoov = true
			}
			return true
		case "mvhd":
			decodeMVHD(r, b, s)
		case "udta":
			decodeUDTA(r, b, s)
		}
		return false
	})

	if !sawMoov {
		s.SetNotice("no movie header found", core.LevelError)
		return s
	}
	if len(s.Risks()) > 0 {
		s.SetNotice("identifying metadata found", core.LevelWarning)
	} else {
		s.SetNotice("no identifying metadata found", core.LevelSuccess)
	}
	return s
}

// decodeMVHD reads creation/modification times (seconds since 1904) and
// duration from the movie header, both fullbox versions.
func decodeMVHD(r *core.Reader, b core.Box, s *core.ReportSection) {
	p, ok := r.Slice(b.Payload.Offset, b.Payload.Length)
	if !ok || len(p) < 4 {
		return
	}
	be := binary.BigEndian
	var created, modified, duration uint64
	var timescale uint32
	switch p[0] {
	case 0:
		if len(p) < 20 {
			return
		}
		created = uint64(be.Uint32(p[4:8]))
		modified = uint64(be.Uint32(p[8:12]))
		timescale = be.Uint32(p[12:16])
		duration = uint64(be.Uint32(p[16:20]))
	case 1:
		if len(p) < 32 {
			return
		}
		created = be.Uint64(p[4:12])
		modified = be.Uint64(p[12:20])
		timescale = be.Uint32(p[20:24])
		duration = be.Uint64(p[24:32])
	default:
		return
	}

	if created > 0 {
		s.AddRisk("CreationTime", mp4Epoch.Add(time.Duration(created)*time.Second).Format(time.RFC3339))
	}
	if modified > 0 && modified != created {
		s.AddRisk("ModificationTime", mp4Epoch.Add(time.Duration(modified)*time.Second).Format(time.RFC3339))
	}
	if timescale > 0 && duration > 0 {
		secs := duration / uint64(timescale)
		s.Add("Duration", formatDuration(int(secs)), core.LevelInfo)
	}
}

// decodeUDTA walks udta→meta→ilst for iTunes-style metadata atoms.
func decodeUDTA(r *core.Reader, b core.Box, s *core.ReportSection) {
	core.WalkBoxes(r, b.Payload.Offset, b.Payload.Offset+b.Payload.Length, func(depth int, child core.Box) bool {
		if child.Type == "meta" {
			// meta is a full box.
			decodeILST(r, child.Payload.Offset+4, child.Payload.Offset+child.Payload.Length, s)
			return false
		}
		// QuickTime keeps bare atoms (©nam etc.) directly under udta.
		if info, ok := itunesAtomNames[child.Type]; ok {
			if p, okk := r.Slice(child.Payload.Offset, child.Payload.Length); okk && len(p) > 4 {
				addAtomValue(s, info.label, string(p[4:]), info.sensitive)
			}
		}
		return false
	})
}

func decodeILST(r *core.Reader, start, end int64, s *core.ReportSection) {
	core.WalkBoxes(r, start, end, func(depth int, b core.Box) bool {
		if b.Type == "ilst" {
			return true
		}
		if depth == 0 {
			return false
		}
		info, ok := itunesAtomNames[b.Type]
		if !ok {
			return false
		}
		// The value lives in a nested data box: 8 bytes of type and
		// locale, then the payload.
		core.WalkBoxes(r, b.Payload.Offset, b.Payload.Offset+b.Payload.Length, func(_ int, d core.Box) bool {
			if d.Type != "data" {
				return false
			}
			if p, okk := r.Slice(d.Payload.Offset, d.Payload.Length); okk && len(p) > 8 {
				addAtomValue(s, info.label, string(p[8:]), info.sensitive)
			}
			return false
		})
		return false
	})
}

func addAtomValue(s *core.ReportSection, label, value string, sensitive bool) {
	value = strings.TrimSpace(strings.TrimRight(value, "\x00"))
	if value == "" {
		return
	}
	if sensitive {
		s.AddRisk(label, value)
	} else {
		s.Add(label, value, core.LevelInfo)
	}
}

// EBML element ids decoded by the minimal matroska scan.
var ebmlStringElements = map[uint16]struct {
	label     string
	sensitive bool
}{
	0x4282: {"DocType", false},
	0x4D80: {"MuxingApp", true},
	0x5741: {"WritingApp", true},
	0x7BA9: {"Title", false},
}

// decodeEBML scans the head of a Matroska/WebM stream for the short
// string elements of the EBML and segment-info headers. A full EBML
// parser is not needed for metadata triage.
func decodeEBML(data []byte, format core.FormatID) *core.ReportSection {
	title := "Matroska"
	if format == core.FmtWebM {
		title = "WebM"
	}
	s := core.NewSection(title)
	if len(data) < 4 || !bytes.Equal(data[0:4], []byte{0x1A, 0x45, 0xDF, 0xA3}) {
		s.SetNotice("not a valid EBML stream", core.LevelError)
		return s
	}

	window := data
	if len(window) > 64<<10 {
		window = window[:64<<10]
	}
	seen := map[uint16]bool{}
	for i := 0; i+3 < len(window); i++ {
		id := uint16(window[i])<<8 | uint16(window[i+1])
		info, ok := ebmlStringElements[id]
		if !ok || seen[id] {
			continue
		}
		// Size is a one-byte varint for the short strings we care about.
		sizeByte := window[i+2]
		if sizeByte&0x80 == 0 {
			continue
		}
		size := int(sizeByte & 0x7F)
		if size == 0 || i+3+size > len(window) {
			continue
		}
		val := strings.TrimRight(string(window[i+3:i+3+size]), "\x00")
		if !printableASCIIOrUTF8(val) {
			continue
		}
		seen[id] = true
		if info.sensitive {
			s.AddRisk(info.label, val)
		} else {
			s.Add(info.label, val, core.LevelInfo)
		}
	}

	if len(s.Risks()) > 0 {
		s.SetNotice("identifying metadata found", core.LevelWarning)
	} else {
		s.SetNotice("no identifying metadata found", core.LevelSuccess)
	}
	return s
}

func printableASCIIOrUTF8(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0xFFFD {
			return false
		}
	}
	return len(s) > 0
}

// aviInfoNames maps RIFF INFO chunk ids inside AVI containers.
var aviInfoNames = map[string]struct {
	label     string
	sensitive bool
}{
	"INAM": {"Title", false},
	"IART": {"Artist", true},
	"ISFT": {"Software", true},
	"ICMT": {"Comment", true},
	"ICOP": {"Copyright", true},
	"ICRD": {"CreationDate", true},
	"IENG": {"Engineer", true},
}

func decodeAVI(data []byte) *core.ReportSection {
	s := core.NewSection("AVI")
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("AVI ")) {
		s.SetNotice("not a valid AVI container", core.LevelError)
		return s
	}

	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		if size < 0 || offset+8+size > len(data) {
			break
		}
		payload := data[offset+8 : offset+8+size]
		if id == "LIST" && len(payload) >= 4 {
			switch string(payload[:4]) {
			case "INFO":
				decodeRIFFInfo(payload[4:], s)
			case "hdrl":
				decodeAVIHeader(payload[4:], s)
			}
		}
		offset += 8 + size
		if size%2 != 0 {
			offset++
		}
	}

	if len(s.Risks()) > 0 {
		s.SetNotice("identifying metadata found", core.LevelWarning)
	} else {
		s.SetNotice("no identifying metadata found", core.LevelSuccess)
	}
	return s
}

// decodeRIFFInfo walks the sub-chunks of a LIST INFO payload.
func decodeRIFFInfo(data []byte, s *core.ReportSection) {
	offset := 0
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		if size < 0 || offset+8+size > len(data) {
			break
		}
		val := strings.TrimRight(string(data[offset+8:offset+8+size]), "\x00")
		if info, ok := aviInfoNames[id]; ok && val != "" {
			if info.sensitive {
				s.AddRisk(info.label, val)
			} else {
				s.Add(info.label, val, core.LevelInfo)
			}
		}
		offset += 8 + size
		if size%2 != 0 {
			offset++
		}
	}
}

// decodeAVIHeader reads the avih main header inside LIST hdrl.
func decodeAVIHeader(data []byte, s *core.ReportSection) {
	if len(data) < 8 || !bytes.Equal(data[0:4], []byte("avih")) {
		return
	}
	size := int(binary.LittleEndian.Uint32(data[4:8]))
	if size < 40 || 8+size > len(data) {
		return
	}
	hdr := data[8 : 8+size]
	le := binary.LittleEndian
	if us := le.Uint32(hdr[0:4]); us > 0 {
		fps := 1e6 / float64(us)
		s.Add("FrameRate", fmt.Sprintf("%.2f fps", fps), core.LevelInfo)
	}
	s.Add("Frames", fmt.Sprintf("%d", le.Uint32(hdr[16:20])), core.LevelInfo)
	s.Add("Dimensions", fmt.Sprintf("%d x %d", le.Uint32(hdr[32:36]), le.Uint32(hdr[36:40])), core.LevelInfo)
}

func decodeFLV(data []byte) *core.ReportSection {
	s := core.NewSection("FLV")
	if len(data) < 9 || !bytes.HasPrefix(data, []byte("FLV")) {
		s.SetNotice("not a valid FLV stream", core.LevelError)
		return s
	}
	s.Add("Version", fmt.Sprintf("%d", data[3]), core.LevelInfo)
	var streams []string
	if data[4]&0x04 != 0 {
		streams = append(streams, "audio")
	}
	if data[4]&0x01 != 0 {
		streams = append(streams, "video")
	}
	if len(streams) > 0 {
		s.Add("Streams", strings.Join(streams, ", "), core.LevelInfo)
	}
	s.SetNotice("container carries no authorship metadata", core.LevelSuccess)
	return s
}

// StripMP4 removes the moov-level udta box, patching the moov size so the
// container stays well-formed.
func StripMP4(data []byte) ([]byte, bool, error) {
	r := core.NewReader(data)
	var moov core.Box
	found := false
	core.WalkBoxes(r, 0, r.Len(), func(depth int, b core.Box) bool {
		if depth == 0 && b.Type == "moov" {
			moov = b
			found = true
		}
		return false
	})
	if !found {
		return nil, false, core.ErrNotAContainer
	}
	// The size patch below assumes compact 8-byte headers; boxes with
	// 64-bit sizes are left alone.
	if v, ok := r.U32(moov.Payload.Offset-8, binary.BigEndian); !ok || int64(v) != moov.Payload.Length+8 {
		return data, false, nil
	}

	var cut []core.Region
	core.WalkBoxes(r, moov.Payload.Offset, moov.Payload.Offset+moov.Payload.Length, func(depth int, b core.Box) bool {
		if depth == 0 && b.Type == "udta" {
			if v, ok := r.U32(b.Payload.Offset-8, binary.BigEndian); ok && int64(v) == b.Payload.Length+8 {
				cut = append(cut, core.Region{Offset: b.Payload.Offset - 8, Length: b.Payload.Length + 8})
			}
		}
		return false
	})
	if len(cut) == 0 {
		return data, false, nil
	}

	removed := int64(0)
	for _, c := range cut {
		removed += c.Length
	}

	out := make([]byte, 0, int64(len(data))-removed)
	pos := int64(0)
	for _, c := range cut {
		out = append(out, data[pos:c.Offset]...)
		pos = c.Offset + c.Length
	}
	out = append(out, data[pos:]...)

	// moov header sits 8 bytes before its payload; shrink its size field.
	moovHeader := moov.Payload.Offset - 8
	oldSize := binary.BigEndian.Uint32(out[moovHeader : moovHeader+4])
	binary.BigEndian.PutUint32(out[moovHeader:moovHeader+4], oldSize-uint32(removed))
	return out, true, nil
}

func formatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	}
	return fmt.Sprintf("%dm %02ds", m, s)
}
