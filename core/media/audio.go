// Package media handles audio and video container metadata: ID3 tags,
// vorbis comments, MP4/iTunes atoms, EBML headers and RIFF INFO lists.
package media

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"

	"github.com/jvillegas/metasweep/core"
)

// DecodeAudio reads tags through the generic tag reader, then adds
// MP3-specific ID3 frame detail and ID3v1 trailer detection.
func DecodeAudio(data []byte, format core.FormatID) *core.ReportSection {
	s := core.NewSection(strings.ToUpper(string(format)))

	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err == nil {
		addAudioTags(m, s)
	}
	if format == core.FmtMP3 {
		decodeID3Detail(data, s)
	}
	if err != nil && s.Len() == 0 {
		s.SetNotice("no tag container found", core.LevelSuccess)
		return s
	}

	if len(s.Risks()) > 0 {
		s.SetNotice("identifying metadata found", core.LevelWarning)
	} else {
		s.SetNotice("no identifying metadata found", core.LevelSuccess)
	}
	return s
}

func addAudioTags(m tag.Metadata, s *core.ReportSection) {
	s.Add("TagFormat", string(m.Format()), core.LevelMuted)
	if v := m.Title(); v != "" {
		s.Add("Title", v, core.LevelInfo)
	}
	if v := m.Artist(); v != "" {
		s.AddRisk("Artist", v)
	}
	if v := m.AlbumArtist(); v != "" {
		s.AddRisk("AlbumArtist", v)
	}
	if v := m.Album(); v != "" {
		s.Add("Album", v, core.LevelInfo)
	}
	if v := m.Composer(); v != "" {
		s.AddRisk("Composer", v)
	}
	if y := m.Year(); y != 0 {
		s.Add("Year", fmt.Sprintf("%d", y), core.LevelInfo)
	}
	if v := m.Genre(); v != "" {
		s.Add("Genre", v, core.LevelInfo)
	}
	if n, total := m.Track(); n != 0 {
		val := fmt.Sprintf("%d", n)
		if total != 0 {
			val = fmt.Sprintf("%d/%d", n, total)
		}
		s.Add("Track", val, core.LevelInfo)
	}
	if v := m.Comment(); v != "" {
		s.AddRisk("Comment", v)
	}
	if pic := m.Picture(); pic != nil {
		s.Add("EmbeddedPicture", fmt.Sprintf("%s, %d bytes", pic.MIMEType, len(pic.Data)), core.LevelInfo)
	}
}

// decodeID3Detail reports the raw ID3v2 frame inventory and the legacy
// ID3v1 trailer, which the generic reader folds away.
func decodeID3Detail(data []byte, s *core.ReportSection) {
	t, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{Parse: true})
	if err == nil {
		var ids []string
		for id := range t.AllFrames() {
			ids = append(ids, id)
		}
		if len(ids) > 0 {
			s.Add("ID3v2Version", fmt.Sprintf("2.%d", t.Version()), core.LevelMuted)
			s.Add("ID3v2Frames", fmt.Sprintf("%d", len(ids)), core.LevelMuted)
		}
		if v := t.GetTextFrame("TCOP").Text; v != "" {
			s.AddRisk("Copyright", v)
		}
		if v := t.GetTextFrame("TENC").Text; v != "" {
			s.AddRisk("EncodedBy", v)
		}
		if v := t.GetTextFrame("TSSE").Text; v != "" {
			s.AddRisk("EncodingSettings", v)
		}
	}
	if hasID3v1(data) {
		s.Add("ID3v1", "present", core.LevelWarning)
	}
}

func hasID3v1(data []byte) bool {
	return len(data) >= 128 && bytes.Equal(data[len(data)-128:len(data)-125], []byte("TAG"))
}

// HasMP3Tags reports whether the stream still carries an ID3v2 header or
// an ID3v1 trailer, the post-strip verification check.
func HasMP3Tags(data []byte) bool {
	return bytes.HasPrefix(data, []byte("ID3")) || hasID3v1(data)
}

// StripMP3 removes every ID3v2 frame in place on path and truncates a
// trailing ID3v1 block. The audio frames are untouched.
func StripMP3(path string) (bool, error) {
	changed := false

	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return false, err
	}
	if t.Count() > 0 {
		t.DeleteAllFrames()
		if err := t.Save(); err != nil {
			t.Close()
			return false, err
		}
		changed = true
	}
	if err := t.Close(); err != nil {
		return changed, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return changed, err
	}
	if hasID3v1(data) {
		if err := os.Truncate(path, int64(len(data)-128)); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

// StripWAV rebuilds the RIFF container without LIST INFO and id3 chunks.
func StripWAV(data []byte) ([]byte, bool, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, false, core.ErrNotAContainer
	}

	var body bytes.Buffer
	changed := false
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		if size < 0 || offset+8+size > len(data) {
			break
		}
		drop := id == "id3 " || id == "ID3 " ||
			(id == "LIST" && size >= 4 && string(data[offset+8:offset+12]) == "INFO")
		if drop {
			changed = true
		} else {
			body.Write(data[offset : offset+8+size])
			if size%2 != 0 {
				body.WriteByte(0)
			}
		}
		offset += 8 + size
		if size%2 != 0 {
			offset++
		}
	}
	if !changed {
		return data, false, nil
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(body.Len()+4))
	out.Write(sizeBuf[:])
	out.WriteString("WAVE")
	out.Write(body.Bytes())
	return out.Bytes(), true, nil
}
