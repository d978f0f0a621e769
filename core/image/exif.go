// Package image decodes and strips metadata for raster and vector image
// formats: JPEG, PNG, GIF, WebP, TIFF/BigTIFF, BMP, HEIC/HEIF, SVG.
package image

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/jvillegas/metasweep/core"
)

// exifSensitive is the fixed, hand-curated set of EXIF fields flagged as
// privacy risks. Preserved as configuration data, not inferred.
var exifSensitive = map[string]bool{
	"Artist":            true,
	"Make":              true,
	"Model":             true,
	"Software":          true,
	"ImageDescription":  true,
	"UserComment":       true,
	"Copyright":         true,
	"DateTime":          true,
	"DateTimeOriginal":  true,
	"DateTimeDigitized": true,
	"CameraOwnerName":   true,
	"BodySerialNumber":  true,
	"LensSerialNumber":  true,
	"SerialNumber":      true,
	"OwnerName":         true,
	"HostComputer":      true,
}

// decodeEXIF walks an EXIF block (JPEG stream or raw TIFF payload) into the
// section. Absence of EXIF is not an error: the section is left untouched.
func decodeEXIF(data []byte, s *core.ReportSection) bool {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return false
	}
	x.Walk(&exifWalker{section: s})
	addGPS(x, s)
	return true
}

type exifWalker struct {
	section *core.ReportSection
}

func (w *exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	key := string(name)
	if strings.HasPrefix(key, "GPS") {
		// GPS fields are formatted separately from the raw rationals.
		return nil
	}
	val := tag.String()
	if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
		val = val[1 : len(val)-1]
	}
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}
	if exifSensitive[key] {
		w.section.AddRisk(key, val)
	} else {
		w.section.Add(key, val, core.LevelInfo)
	}
	return nil
}

// DMS is a degrees/minutes/seconds coordinate.
type DMS struct {
	Degrees float64
	Minutes float64
	Seconds float64
}

// Normalize carries overflowing seconds into minutes and overflowing
// minutes into degrees before formatting.
func (d DMS) Normalize() DMS {
	for d.Seconds >= 60 {
		d.Seconds -= 60
		d.Minutes++
	}
	for d.Minutes >= 60 {
		d.Minutes -= 60
		d.Degrees++
	}
	return d
}

// Format renders the normalized coordinate, appending the reference
// letter (N/S/E/W) when present.
func (d DMS) Format(ref string) string {
	n := d.Normalize()
	s := fmt.Sprintf("%.0f° %.0f' %.2f\"", n.Degrees, n.Minutes, n.Seconds)
	if ref != "" {
		s += " " + ref
	}
	return s
}

func addGPS(x *exif.Exif, s *core.ReportSection) {
	if lat, ok := gpsDMS(x, exif.GPSLatitude); ok {
		s.AddRisk("GPSLatitude", lat.Format(gpsRef(x, exif.GPSLatitudeRef)))
	}
	if lon, ok := gpsDMS(x, exif.GPSLongitude); ok {
		s.AddRisk("GPSLongitude", lon.Format(gpsRef(x, exif.GPSLongitudeRef)))
	}
	if tag, err := x.Get(exif.GPSAltitude); err == nil && tag.Count > 0 {
		if r, err := tag.Rat(0); err == nil {
			alt, _ := r.Float64()
			s.AddRisk("GPSAltitude", fmt.Sprintf("%.1f m", alt))
		}
	}
	if tag, err := x.Get(exif.GPSDateStamp); err == nil {
		if v, err := tag.StringVal(); err == nil && v != "" {
			s.AddRisk("GPSDateStamp", v)
		}
	}
}

// gpsDMS reads two or three rational components; a missing third component
// means zero seconds.
func gpsDMS(x *exif.Exif, field exif.FieldName) (DMS, bool) {
	tag, err := x.Get(field)
	if err != nil || tag.Count < 2 {
		return DMS{}, false
	}
	var parts [3]float64
	for i := 0; i < int(tag.Count) && i < 3; i++ {
		r, err := tag.Rat(i)
		if err != nil {
			return DMS{}, false
		}
		parts[i], _ = r.Float64()
	}
	return DMS{Degrees: parts[0], Minutes: parts[1], Seconds: parts[2]}, true
}

// gpsRef looks the reference letter up independently of the coordinate.
func gpsRef(x *exif.Exif, field exif.FieldName) string {
	tag, err := x.Get(field)
	if err != nil {
		return ""
	}
	v, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}
