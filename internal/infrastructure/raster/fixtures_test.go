package raster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
)

type tiffEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// Типы отсчётов тестовых GeoTIFF
const (
	sampleU8 = iota
	sampleU16
	sampleF32
)

// tiffFixture описание тестового GeoTIFF
type tiffFixture struct {
	width, height, bands int
	sample               int // sampleU8, sampleU16 или sampleF32
	pixel                func(x, y, b int) float64
	scale                [3]float64
	tie                  [6]float64

	rowsPerStrip int  // 0 = одна полоса на весь растр
	tile         int  // сторона тайла, 0 = полосы
	separate     bool // planar=2, каждый канал отдельно
	deflate      bool
	predictor    bool // горизонтальный разностный предиктор
	noGeoKeys    bool
}

// writeGeoTIFF пишет несжатый 8-битный GeoTIFF с тегами Tiepoint и PixelScale
func writeGeoTIFF(t *testing.T, path string, width, height, bands int, pixel func(x, y, b int) uint8, scale [3]float64, tie [6]float64) {
	t.Helper()
	writeTIFF(t, path, tiffFixture{
		width:  width,
		height: height,
		bands:  bands,
		sample: sampleU8,
		pixel:  func(x, y, b int) float64 { return float64(pixel(x, y, b)) },
		scale:  scale,
		tie:    tie,
	})
}

var le = binary.LittleEndian

func shorts(vs ...uint16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		le.PutUint16(b[2*i:], v)
	}
	return b
}

func longs(vs ...uint32) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		le.PutUint32(b[4*i:], v)
	}
	return b
}

func doubles(vs ...float64) []byte {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		le.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return b
}

// writeTIFF пишет GeoTIFF по описанию f
func writeTIFF(t *testing.T, path string, f tiffFixture) {
	t.Helper()

	bps := map[int]int{sampleU8: 1, sampleU16: 2, sampleF32: 4}[f.sample]
	format := uint16(1)
	if f.sample == sampleF32 {
		format = 3
	}

	cw, ch := f.width, f.height
	if f.rowsPerStrip > 0 {
		ch = f.rowsPerStrip
	}
	if f.tile > 0 {
		cw, ch = f.tile, f.tile
	}
	across := (f.width + cw - 1) / cw
	down := (f.height + ch - 1) / ch

	planes, spc := 1, f.bands
	if f.separate {
		planes, spc = f.bands, 1
	}

	var chunks [][]byte
	for p := 0; p < planes; p++ {
		for r := 0; r < down; r++ {
			for c := 0; c < across; c++ {
				rows := ch
				if f.tile == 0 {
					rows = min(ch, f.height-r*ch)
				}
				chunks = append(chunks, encodeChunk(t, f, bps, spc, p, c*cw, r*ch, cw, rows))
			}
		}
	}

	bits := make([]uint16, f.bands)
	formats := make([]uint16, f.bands)
	for i := range bits {
		bits[i] = uint16(8 * bps)
		formats[i] = format
	}
	photometric := uint16(1)
	if f.bands >= 3 {
		photometric = 2
	}
	compression := uint16(1)
	if f.deflate {
		compression = 8
	}
	predictor := uint16(1)
	if f.predictor {
		predictor = 2
	}
	planar := uint16(1)
	if f.separate {
		planar = 2
	}

	n := uint32(len(chunks))
	placeholder := make([]byte, 4*len(chunks))
	entries := []tiffEntry{
		{256, 4, 1, longs(uint32(f.width))},
		{257, 4, 1, longs(uint32(f.height))},
		{258, 3, uint32(f.bands), shorts(bits...)},
		{259, 3, 1, shorts(compression)},
		{262, 3, 1, shorts(photometric)},
		{277, 3, 1, shorts(uint16(f.bands))},
		{284, 3, 1, shorts(planar)},
		{317, 3, 1, shorts(predictor)},
		{339, 3, uint32(f.bands), shorts(formats...)},
		{33550, 12, 3, doubles(f.scale[:]...)},
		{33922, 12, 6, doubles(f.tie[:]...)},
	}
	if f.tile > 0 {
		entries = append(entries,
			tiffEntry{322, 4, 1, longs(uint32(cw))},
			tiffEntry{323, 4, 1, longs(uint32(ch))},
			tiffEntry{324, 4, n, placeholder},
			tiffEntry{325, 4, n, append([]byte(nil), placeholder...)},
		)
	} else {
		entries = append(entries,
			tiffEntry{273, 4, n, placeholder},
			tiffEntry{278, 4, 1, longs(uint32(ch))},
			tiffEntry{279, 4, n, append([]byte(nil), placeholder...)},
		)
	}
	if f.bands > 3 {
		// ExtraSamples=0: лишние каналы без назначения, как у Planet analytic
		extra := make([]uint16, f.bands-3)
		entries = append(entries, tiffEntry{338, 3, uint32(len(extra)), shorts(extra...)})
	}
	if !f.noGeoKeys {
		entries = append(entries, tiffEntry{34735, 3, 4, shorts(1, 1, 0, 0)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	ifdSize := 2 + len(entries)*ifdEntrySize + 4
	extraOffset := 8 + ifdSize
	extraLen := 0
	valueOffsets := make([]uint32, len(entries))
	for i, e := range entries {
		if len(e.data) > 4 {
			valueOffsets[i] = uint32(extraOffset + extraLen)
			extraLen += len(e.data)
		}
	}

	pos := uint32(extraOffset + extraLen)
	chunkOffsets := make([]uint32, len(chunks))
	chunkCounts := make([]uint32, len(chunks))
	for i, c := range chunks {
		chunkOffsets[i] = pos
		chunkCounts[i] = uint32(len(c))
		pos += uint32(len(c))
	}
	for i, e := range entries {
		switch e.tag {
		case 273, 324:
			entries[i].data = longs(chunkOffsets...)
		case 279, 325:
			entries[i].data = longs(chunkCounts...)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("II")
	buf.Write(shorts(42))
	buf.Write(longs(8))
	buf.Write(shorts(uint16(len(entries))))
	for i, e := range entries {
		buf.Write(shorts(e.tag, e.typ))
		buf.Write(longs(e.count))
		if len(e.data) <= 4 {
			v := make([]byte, 4)
			copy(v, e.data)
			buf.Write(v)
		} else {
			buf.Write(longs(valueOffsets[i]))
		}
	}
	buf.Write(longs(0))
	for _, e := range entries {
		if len(e.data) > 4 {
			buf.Write(e.data)
		}
	}
	for _, c := range chunks {
		buf.Write(c)
	}

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// encodeChunk кодирует один кусок: тайлы за краем растра заполняются нулями
func encodeChunk(t *testing.T, f tiffFixture, bps, spc, plane, x0, y0, cols, rows int) []byte {
	t.Helper()

	samples := make([]uint32, 0, cols*rows*spc)
	var floats []float32
	for y := y0; y < y0+rows; y++ {
		for x := x0; x < x0+cols; x++ {
			for s := 0; s < spc; s++ {
				b := s
				if f.separate {
					b = plane
				}
				var v float64
				if x < f.width && y < f.height {
					v = f.pixel(x, y, b)
				}
				if f.sample == sampleF32 {
					floats = append(floats, float32(v))
				} else {
					samples = append(samples, uint32(v))
				}
			}
		}
	}

	if f.predictor && f.sample != sampleF32 {
		stride := cols * spc
		mask := uint32(1)<<(8*bps) - 1
		for r := 0; r < rows; r++ {
			row := samples[r*stride : (r+1)*stride]
			for i := stride - 1; i >= spc; i-- {
				row[i] = (row[i] - row[i-spc]) & mask
			}
		}
	}

	raw := make([]byte, 0, cols*rows*spc*bps)
	switch f.sample {
	case sampleU8:
		for _, v := range samples {
			raw = append(raw, uint8(v))
		}
	case sampleU16:
		for _, v := range samples {
			raw = le.AppendUint16(raw, uint16(v))
		}
	case sampleF32:
		for _, v := range floats {
			raw = le.AppendUint32(raw, math.Float32bits(v))
		}
	}

	if !f.deflate {
		return raw
	}
	var out bytes.Buffer
	zw := zlib.NewWriter(&out)
	_, err := zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return out.Bytes()
}

// writeENVI пишет одноканальный float32 big-endian файл ENVI
func writeENVI(t *testing.T, hdrPath string, width, height int, value func(x, y int) float32) {
	t.Helper()
	header := fmt.Sprintf(`ENVI
description = {Test band
  written by fixture}
samples = %d
lines = %d
bands = 1
header offset = 0
file type = ENVI Standard
data type = 4
interleave = bsq
byte order = 1
`, width, height)
	require.NoError(t, os.MkdirAll(filepath.Dir(hdrPath), 0o755))
	require.NoError(t, os.WriteFile(hdrPath, []byte(header), 0o644))

	data := make([]byte, 4*width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			binary.BigEndian.PutUint32(data[4*(y*width+x):], math.Float32bits(value(x, y)))
		}
	}
	require.NoError(t, os.WriteFile(strings.TrimSuffix(hdrPath, ".hdr")+".img", data, 0o644))
}

type dimapFixture struct {
	width, height int
	bands         []string
	value         func(band, x, y int) float32
	tiePoints     bool   // сетки latitude/longitude 2x2
	imageToModel  string // аффинное геокодирование, если сеток нет
}

// writeDIMAP пишет продукт BEAM-DIMAP и возвращает путь к .dim
func writeDIMAP(t *testing.T, dir, name string, f dimapFixture) string {
	t.Helper()
	dataDir := name + ".data"

	var files, infos strings.Builder
	for i, band := range f.bands {
		b := i
		writeENVI(t, filepath.Join(dir, dataDir, band+".hdr"), f.width, f.height, func(x, y int) float32 {
			return f.value(b, x, y)
		})
		fmt.Fprintf(&files, `<Data_File><DATA_FILE_PATH href="%s/%s.hdr"/><BAND_INDEX>%d</BAND_INDEX></Data_File>`, dataDir, band, i)
		fmt.Fprintf(&infos, `<Spectral_Band_Info><BAND_INDEX>%d</BAND_INDEX><BAND_NAME>%s</BAND_NAME><DATA_TYPE>float32</DATA_TYPE></Spectral_Band_Info>`, i, band)
	}

	var grids string
	if f.tiePoints {
		stepX := float64(f.width - 1)
		stepY := float64(f.height - 1)
		writeENVI(t, filepath.Join(dir, dataDir, "tie_point_grids", "latitude.hdr"), 2, 2, func(_, y int) float32 {
			return 21 - float32(y)
		})
		writeENVI(t, filepath.Join(dir, dataDir, "tie_point_grids", "longitude.hdr"), 2, 2, func(x, _ int) float32 {
			return 105 + float32(x)
		})
		fmt.Fprintf(&files, `<Tie_Point_Grid_File><TIE_POINT_GRID_FILE_PATH href="%s/tie_point_grids/latitude.hdr"/><TIE_POINT_GRID_INDEX>0</TIE_POINT_GRID_INDEX></Tie_Point_Grid_File>`, dataDir)
		fmt.Fprintf(&files, `<Tie_Point_Grid_File><TIE_POINT_GRID_FILE_PATH href="%s/tie_point_grids/longitude.hdr"/><TIE_POINT_GRID_INDEX>1</TIE_POINT_GRID_INDEX></Tie_Point_Grid_File>`, dataDir)
		grids = fmt.Sprintf(`<Tie_Point_Grids><NUM_TIE_POINT_GRIDS>2</NUM_TIE_POINT_GRIDS>
<Tie_Point_Grid_Info><TIE_POINT_GRID_INDEX>0</TIE_POINT_GRID_INDEX><TIE_POINT_GRID_NAME>latitude</TIE_POINT_GRID_NAME><NCOLS>2</NCOLS><NROWS>2</NROWS><OFFSET_X>0</OFFSET_X><OFFSET_Y>0</OFFSET_Y><STEP_X>%[1]g</STEP_X><STEP_Y>%[2]g</STEP_Y></Tie_Point_Grid_Info>
<Tie_Point_Grid_Info><TIE_POINT_GRID_INDEX>1</TIE_POINT_GRID_INDEX><TIE_POINT_GRID_NAME>longitude</TIE_POINT_GRID_NAME><NCOLS>2</NCOLS><NROWS>2</NROWS><OFFSET_X>0</OFFSET_X><OFFSET_Y>0</OFFSET_Y><STEP_X>%[1]g</STEP_X><STEP_Y>%[2]g</STEP_Y></Tie_Point_Grid_Info>
</Tie_Point_Grids>`, stepX, stepY)
	}

	var geoposition string
	if f.imageToModel != "" {
		geoposition = "<Geoposition><IMAGE_TO_MODEL_TRANSFORM>" + f.imageToModel + "</IMAGE_TO_MODEL_TRANSFORM></Geoposition>"
	}

	doc := fmt.Sprintf(`<?xml version="1.0" encoding="ISO-8859-1"?>
<Dimap_Document name="%s.dim">
%s
<Raster_Dimensions><NCOLS>%d</NCOLS><NROWS>%d</NROWS><NBANDS>%d</NBANDS></Raster_Dimensions>
<Data_Access><DATA_FILE_FORMAT>ENVI</DATA_FILE_FORMAT>%s</Data_Access>
%s
<Image_Interpretation>%s</Image_Interpretation>
</Dimap_Document>`, name, geoposition, f.width, f.height, len(f.bands), files.String(), grids, infos.String())

	path := filepath.Join(dir, name+".dim")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}
