package core

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"strings"
)

// FormatID enumerates every recognised format.
type FormatID string

const (
	FmtJPEG FormatID = "jpeg"
	FmtPNG  FormatID = "png"
	FmtGIF  FormatID = "gif"
	FmtWebP FormatID = "webp"
	FmtTIFF FormatID = "tiff"
	FmtBMP  FormatID = "bmp"
	FmtHEIF FormatID = "heif"
	FmtSVG  FormatID = "svg"

	FmtMP3  FormatID = "mp3"
	FmtFLAC FormatID = "flac"
	FmtOGG  FormatID = "ogg"
	FmtM4A  FormatID = "m4a"
	FmtWAV  FormatID = "wav"
	FmtAIFF FormatID = "aiff"

	FmtMP4 FormatID = "mp4"
	FmtMOV FormatID = "mov"
	FmtMKV FormatID = "mkv"
	FmtWebM FormatID = "webm"
	FmtAVI FormatID = "avi"
	FmtFLV FormatID = "flv"

	FmtPDF  FormatID = "pdf"
	FmtDOCX FormatID = "docx"
	FmtXLSX FormatID = "xlsx"
	FmtPPTX FormatID = "pptx"
	FmtODF  FormatID = "odf"
	FmtEPUB FormatID = "epub"
	FmtZIP  FormatID = "zip"

	FmtText FormatID = "text"
	FmtCSV  FormatID = "csv"

	FmtUnknown FormatID = "unknown"
)

// sniffLen is the magic-byte prefix window.
const sniffLen = 256

// extMap maps lowercase extensions to format IDs (probe fallback).
var extMap = map[string]FormatID{
	".jpg":  FmtJPEG,
	".jpeg": FmtJPEG,
	".png":  FmtPNG,
	".gif":  FmtGIF,
	".webp": FmtWebP,
	".tiff": FmtTIFF,
	".tif":  FmtTIFF,
	".bmp":  FmtBMP,
	".heic": FmtHEIF,
	".heif": FmtHEIF,
	".avif": FmtHEIF,
	".svg":  FmtSVG,

	".mp3":  FmtMP3,
	".flac": FmtFLAC,
	".ogg":  FmtOGG,
	".oga":  FmtOGG,
	".opus": FmtOGG,
	".m4a":  FmtM4A,
	".aac":  FmtM4A,
	".wav":  FmtWAV,
	".wave": FmtWAV,
	".aif":  FmtAIFF,
	".aiff": FmtAIFF,

	".mp4":  FmtMP4,
	".m4v":  FmtMP4,
	".mov":  FmtMOV,
	".qt":   FmtMOV,
	".mkv":  FmtMKV,
	".webm": FmtWebM,
	".avi":  FmtAVI,
	".flv":  FmtFLV,

	".pdf":  FmtPDF,
	".docx": FmtDOCX,
	".docm": FmtDOCX,
	".xlsx": FmtXLSX,
	".xlsm": FmtXLSX,
	".pptx": FmtPPTX,
	".pptm": FmtPPTX,
	".odt":  FmtODF,
	".ods":  FmtODF,
	".odp":  FmtODF,
	".epub": FmtEPUB,
	".zip":  FmtZIP,

	".csv": FmtCSV,
	".tsv": FmtCSV,
	".txt": FmtText,
	".log": FmtText,
	".md":  FmtText,
}

// DetectFormat classifies a file by magic bytes, falling back to extension
// when the probe is inconclusive.
func DetectFormat(path string) (FormatID, error) {
	f, err := os.Open(path)
	if err != nil {
		return FmtUnknown, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && n == 0 {
		return FmtUnknown, err
	}
	return DetectBytes(buf[:n], path), nil
}

// DetectBytes classifies by the magic prefix of b. For ZIP containers the
// internal part names disambiguate OOXML vs ODF vs EPUB, which requires
// re-reading the archive directory from path when b is only a prefix.
func DetectBytes(b []byte, path string) FormatID {
	if id := detectMagic(b); id != FmtUnknown {
		if id == FmtZIP {
			return detectZIPSubtype(b, path)
		}
		return id
	}
	dot := strings.LastIndex(path, ".")
	if dot >= 0 {
		ext := strings.ToLower(path[dot:])
		if id, ok := extMap[ext]; ok {
			return id
		}
	}
	if looksTextual(b) {
		return FmtText
	}
	return FmtUnknown
}

func detectMagic(b []byte) FormatID {
	if len(b) < 4 {
		return FmtUnknown
	}
	switch {
	// JPEG: FF D8 FF
	case b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return FmtJPEG
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	case bytes.HasPrefix(b, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return FmtPNG
	// GIF: GIF87a or GIF89a
	case bytes.HasPrefix(b, []byte("GIF87a")) || bytes.HasPrefix(b, []byte("GIF89a")):
		return FmtGIF
	// WebP: RIFF????WEBP
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return FmtWebP
	// TIFF classic and BigTIFF, both byte orders
	case bytes.HasPrefix(b, []byte{0x49, 0x49, 0x2A, 0x00}) ||
		bytes.HasPrefix(b, []byte{0x4D, 0x4D, 0x00, 0x2A}) ||
		bytes.HasPrefix(b, []byte{0x49, 0x49, 0x2B, 0x00}) ||
		bytes.HasPrefix(b, []byte{0x4D, 0x4D, 0x00, 0x2B}):
		return FmtTIFF
	// BMP: BM
	case b[0] == 0x42 && b[1] == 0x4D:
		return FmtBMP
	// MP3: ID3 tag or MPEG sync
	case bytes.HasPrefix(b, []byte("ID3")):
		return FmtMP3
	// FLAC: fLaC
	case bytes.HasPrefix(b, []byte("fLaC")):
		return FmtFLAC
	// OGG: OggS
	case bytes.HasPrefix(b, []byte("OggS")):
		return FmtOGG
	// WAV: RIFF????WAVE
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE")):
		return FmtWAV
	// AIFF: FORM????AIFF / AIFC
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("FORM")) &&
		(bytes.Equal(b[8:12], []byte("AIFF")) || bytes.Equal(b[8:12], []byte("AIFC"))):
		return FmtAIFF
	// ISOBMFF: ftyp box at offset 4, brand decides HEIF vs MP4 family
	case len(b) >= 12 && bytes.Equal(b[4:8], []byte("ftyp")):
		return detectFtypBrand(b)
	// MKV/WebM: EBML header 0x1A45DFA3
	case binary.BigEndian.Uint32(b[0:4]) == 0x1A45DFA3:
		return detectEBMLSubtype(b)
	// AVI: RIFF????AVI
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("AVI ")):
		return FmtAVI
	// FLV
	case bytes.HasPrefix(b, []byte("FLV")):
		return FmtFLV
	// PDF: %PDF
	case bytes.HasPrefix(b, []byte("%PDF")):
		return FmtPDF
	// ZIP-packaged formats: PK, refined by an internal part-name probe
	case b[0] == 'P' && b[1] == 'K' && (b[2] == 0x03 || b[2] == 0x05 || b[2] == 0x07):
		return FmtZIP
	// SVG: substring heuristic within the sniff window
	case bytes.Contains(b, []byte("<svg")):
		return FmtSVG
	}
	return FmtUnknown
}

var heifBrands = map[string]bool{
	"heic": true, "heix": true, "heim": true, "heis": true,
	"hevc": true, "hevx": true, "mif1": true, "msf1": true,
	"avif": true, "avis": true,
}

func detectFtypBrand(b []byte) FormatID {
	brand := string(b[8:12])
	if heifBrands[strings.ToLower(strings.TrimSpace(brand))] {
		return FmtHEIF
	}
	switch brand {
	case "M4A ", "M4B ":
		return FmtM4A
	case "qt  ":
		return FmtMOV
	default:
		return FmtMP4
	}
}

// detectEBMLSubtype scans the EBML header for the DocType string.
func detectEBMLSubtype(b []byte) FormatID {
	if bytes.Contains(b, []byte("webm")) {
		return FmtWebM
	}
	return FmtMKV
}

// detectZIPSubtype opens the archive directory and classifies by
// well-known part names: mimetype (ODF/EPUB) or docProps parts (OOXML).
func detectZIPSubtype(prefix []byte, path string) FormatID {
	r, err := zip.OpenReader(path)
	if err != nil {
		return zipSubtypeByExt(path)
	}
	defer r.Close()
	return classifyZIPParts(&r.Reader, path)
}

func classifyZIPParts(r *zip.Reader, path string) FormatID {
	hasContentTypes := false
	var probe FormatID
	for _, f := range r.File {
		switch {
		case f.Name == "mimetype":
			rc, err := f.Open()
			if err != nil {
				continue
			}
			mt, _ := io.ReadAll(io.LimitReader(rc, 128))
			rc.Close()
			s := string(mt)
			switch {
			case strings.HasPrefix(s, "application/vnd.oasis.opendocument"):
				return FmtODF
			case strings.HasPrefix(s, "application/epub"):
				return FmtEPUB
			}
		case f.Name == "[Content_Types].xml":
			hasContentTypes = true
		case strings.HasPrefix(f.Name, "word/"):
			probe = FmtDOCX
		case strings.HasPrefix(f.Name, "xl/"):
			probe = FmtXLSX
		case strings.HasPrefix(f.Name, "ppt/"):
			probe = FmtPPTX
		case f.Name == "meta.xml" || f.Name == "content.xml":
			if probe == "" {
				probe = FmtODF
			}
		}
	}
	if hasContentTypes && probe != "" {
		return probe
	}
	if probe != "" {
		return probe
	}
	return zipSubtypeByExt(path)
}

func zipSubtypeByExt(path string) FormatID {
	dot := strings.LastIndex(path, ".")
	if dot >= 0 {
		if id, ok := extMap[strings.ToLower(path[dot:])]; ok {
			return id
		}
	}
	return FmtZIP
}

// looksTextual reports whether the prefix contains no NUL bytes and mostly
// printable content, the fallback for plain text/CSV classification.
func looksTextual(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	printable := 0
	for _, c := range b {
		if c == 0 {
			return false
		}
		if c >= 0x20 || c == '\n' || c == '\r' || c == '\t' {
			printable++
		}
	}
	return printable*100/len(b) >= 90
}

// MediaTypeFor returns the broad media category for a format.
func MediaTypeFor(id FormatID) string {
	switch id {
	case FmtJPEG, FmtPNG, FmtGIF, FmtWebP, FmtTIFF, FmtBMP, FmtHEIF, FmtSVG:
		return "image"
	case FmtMP3, FmtFLAC, FmtOGG, FmtM4A, FmtWAV, FmtAIFF:
		return "audio"
	case FmtMP4, FmtMOV, FmtMKV, FmtWebM, FmtAVI, FmtFLV:
		return "video"
	case FmtPDF, FmtDOCX, FmtXLSX, FmtPPTX, FmtODF, FmtEPUB, FmtZIP:
		return "document"
	case FmtText, FmtCSV:
		return "text"
	default:
		return "unknown"
	}
}

// FormatName returns the human-readable name for a format.
func FormatName(id FormatID) string {
	switch id {
	case FmtHEIF:
		return "HEIC/HEIF"
	case FmtODF:
		return "ODF"
	case FmtWebP:
		return "WebP"
	case FmtWebM:
		return "WebM"
	case FmtText:
		return "Text"
	case FmtCSV:
		return "CSV"
	case FmtUnknown:
		return "Unknown"
	default:
		return strings.ToUpper(string(id))
	}
}
