package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/document"
	"github.com/jvillegas/metasweep/core/image"
	"github.com/jvillegas/metasweep/core/media"
	"github.com/jvillegas/metasweep/core/textfile"
	"github.com/jvillegas/metasweep/internal/utils"
)

// maxInspectBytes caps how much of a file is loaded for byte-level
// decoders. ZIP-packaged formats stream from disk instead.
const maxInspectBytes = 256 << 20

// Inspect detects the file's format, runs the matching decoder, and
// returns the normalized report.
func Inspect(path string) (*core.MetadataReport, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	format, err := core.DetectFormat(path)
	if err != nil {
		return nil, err
	}
	utils.Log.WithField("path", path).WithField("format", format).Debug("Inspecting file")

	report := &core.MetadataReport{Path: path, Format: core.FormatName(format)}
	report.AddSystem("Name", filepath.Base(path), core.LevelInfo)
	report.AddSystem("Size", fmt.Sprintf("%d bytes", info.Size()), core.LevelInfo)
	report.AddSystem("Modified", info.ModTime().Format(time.RFC3339), core.LevelInfo)
	report.AddSystem("Mode", info.Mode().Perm().String(), core.LevelMuted)
	report.AddSystem("Format", core.FormatName(format), core.LevelInfo)
	report.AddSystem("MediaType", core.MediaTypeFor(format), core.LevelMuted)

	switch format {
	case core.FmtDOCX, core.FmtXLSX, core.FmtPPTX:
		report.AddSection(document.DecodeOOXML(path, format))
		return report, nil
	case core.FmtODF:
		report.AddSection(document.DecodeODF(path))
		return report, nil
	case core.FmtEPUB:
		report.AddSection(document.DecodeEPUB(path))
		return report, nil
	case core.FmtUnknown:
		report.AddError("unrecognized format")
		return report, nil
	}

	if info.Size() > maxInspectBytes {
		report.AddError("file too large to inspect")
		return report, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case core.FmtJPEG:
		report.AddSection(image.DecodeJPEG(data))
	case core.FmtPNG:
		report.AddSection(image.DecodePNG(data))
	case core.FmtGIF:
		report.AddSection(image.DecodeGIF(data))
	case core.FmtWebP:
		report.AddSection(image.DecodeWebP(data))
	case core.FmtTIFF:
		report.AddSection(image.DecodeTIFF(data))
	case core.FmtBMP:
		report.AddSection(image.DecodeBMP(data))
	case core.FmtHEIF:
		report.AddSection(image.DecodeHEIF(data))
	case core.FmtSVG:
		report.AddSection(image.DecodeSVG(data))
	case core.FmtPDF:
		report.AddSection(document.DecodePDF(data))
	case core.FmtMP3, core.FmtFLAC, core.FmtOGG, core.FmtM4A, core.FmtWAV, core.FmtAIFF:
		report.AddSection(media.DecodeAudio(data, format))
	case core.FmtMP4, core.FmtMOV, core.FmtMKV, core.FmtWebM, core.FmtAVI, core.FmtFLV:
		report.AddSection(media.DecodeVideo(data, format))
	case core.FmtText, core.FmtCSV:
		report.AddSection(textfile.DecodeText(data, format))
	case core.FmtZIP:
		report.AddError("generic ZIP archive carries no known metadata parts")
	default:
		report.AddError("no decoder for format " + string(format))
	}
	return report, nil
}
