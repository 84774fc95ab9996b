package raster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Теги TIFF/GeoTIFF, нужные для раскладки пикселей и привязки
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagModelTransform  = 34264
	tagGeoKeyDirectory = 34735
)

const (
	compressionNone       = 1
	compressionLZW        = 5
	compressionDeflate    = 8
	compressionDeflateOld = 32946

	predictorNone       = 1
	predictorHorizontal = 2

	planarChunky   = 1
	planarSeparate = 2

	sampleFormatUint   = 1
	sampleFormatInt    = 2
	sampleFormatIEEEFP = 3
)

const (
	tiffMagic            = 42
	bigTIFFMagic         = 43
	ifdEntrySize         = 12
	maxTagValuesInMemory = 1 << 22
)

// размеры типов TIFF в байтах
var tiffTypeSize = map[uint16]int{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8, 16: 8,
}

// geoTags первый IFD файла: раскладка полос или тайлов и теги привязки
type geoTags struct {
	order           binary.ByteOrder
	width           int
	height          int
	samplesPerPixel int
	bitsPerSample   []float64
	sampleFormat    int
	compression     int
	predictor       int
	planar          int
	rowsPerStrip    int
	tileWidth       int
	tileLength      int
	offsets         []float64 // полосы или тайлы
	byteCounts      []float64
	pixelScale      []float64
	tiepoints       []float64
	transform       []float64
	hasGeoKeys      bool
}

// readGeoTags разбирает первый IFD файла TIFF
func readGeoTags(r io.ReaderAt) (*geoTags, error) {
	header := make([]byte, 8)
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("read tiff header: %w", err)
	}

	var order binary.ByteOrder
	switch string(header[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, errors.New("not a tiff file")
	}

	switch order.Uint16(header[2:4]) {
	case tiffMagic:
	case bigTIFFMagic:
		return nil, errors.New("bigtiff is not supported")
	default:
		return nil, errors.New("bad tiff magic number")
	}

	ifdOffset := int64(order.Uint32(header[4:8]))
	countBuf := make([]byte, 2)
	if _, err := r.ReadAt(countBuf, ifdOffset); err != nil {
		return nil, fmt.Errorf("read ifd: %w", err)
	}
	count := int(order.Uint16(countBuf))

	entries := make([]byte, count*ifdEntrySize)
	if _, err := r.ReadAt(entries, ifdOffset+2); err != nil {
		return nil, fmt.Errorf("read ifd entries: %w", err)
	}

	tags := &geoTags{
		order:           order,
		samplesPerPixel: 1,
		sampleFormat:    sampleFormatUint,
		compression:     compressionNone,
		predictor:       predictorNone,
		planar:          planarChunky,
	}
	for i := 0; i < count; i++ {
		e := entries[i*ifdEntrySize : (i+1)*ifdEntrySize]
		tag := order.Uint16(e[0:2])
		if tag == tagGeoKeyDirectory {
			tags.hasGeoKeys = true
			continue
		}
		if !knownTag(tag) {
			continue
		}

		values, err := readTagValues(r, order, e)
		if err != nil {
			return nil, fmt.Errorf("tag %d: %w", tag, err)
		}
		if len(values) == 0 {
			continue
		}

		switch tag {
		case tagImageWidth:
			tags.width = int(values[0])
		case tagImageLength:
			tags.height = int(values[0])
		case tagBitsPerSample:
			tags.bitsPerSample = values
		case tagCompression:
			tags.compression = int(values[0])
		case tagSamplesPerPixel:
			tags.samplesPerPixel = int(values[0])
		case tagRowsPerStrip:
			tags.rowsPerStrip = int(values[0])
		case tagPlanarConfig:
			tags.planar = int(values[0])
		case tagPredictor:
			tags.predictor = int(values[0])
		case tagTileWidth:
			tags.tileWidth = int(values[0])
		case tagTileLength:
			tags.tileLength = int(values[0])
		case tagStripOffsets, tagTileOffsets:
			tags.offsets = values
		case tagStripByteCounts, tagTileByteCounts:
			tags.byteCounts = values
		case tagSampleFormat:
			tags.sampleFormat = int(values[0])
		case tagModelPixelScale:
			tags.pixelScale = values
		case tagModelTiepoint:
			tags.tiepoints = values
		case tagModelTransform:
			tags.transform = values
		}
	}

	if tags.rowsPerStrip <= 0 || tags.rowsPerStrip > tags.height {
		tags.rowsPerStrip = tags.height
	}
	return tags, nil
}

func knownTag(tag uint16) bool {
	switch tag {
	case tagImageWidth, tagImageLength, tagBitsPerSample, tagCompression, tagStripOffsets,
		tagSamplesPerPixel, tagRowsPerStrip, tagStripByteCounts, tagPlanarConfig, tagPredictor,
		tagTileWidth, tagTileLength, tagTileOffsets, tagTileByteCounts, tagSampleFormat,
		tagModelPixelScale, tagModelTiepoint, tagModelTransform:
		return true
	}
	return false
}

// validate отклоняет раскладки, которые декодер не читает
func (t *geoTags) validate() error {
	if t.width <= 0 || t.height <= 0 {
		return fmt.Errorf("bad image size %dx%d", t.width, t.height)
	}
	if !t.hasGeoKeys {
		return errors.New("missing GeoKeyDirectory, not a GeoTIFF")
	}
	if t.samplesPerPixel <= 0 {
		return fmt.Errorf("bad samples per pixel %d", t.samplesPerPixel)
	}

	if len(t.bitsPerSample) == 0 {
		return errors.New("missing BitsPerSample")
	}
	bits := int(t.bitsPerSample[0])
	for _, b := range t.bitsPerSample[1:] {
		if int(b) != bits {
			return fmt.Errorf("mixed bit depths %v are not supported", t.bitsPerSample)
		}
	}
	switch t.sampleFormat {
	case sampleFormatUint, sampleFormatInt:
		if bits != 8 && bits != 16 && bits != 32 {
			return fmt.Errorf("unsupported integer bit depth %d", bits)
		}
	case sampleFormatIEEEFP:
		if bits != 32 && bits != 64 {
			return fmt.Errorf("unsupported float bit depth %d", bits)
		}
	default:
		return fmt.Errorf("unsupported sample format %d", t.sampleFormat)
	}

	switch t.compression {
	case compressionNone, compressionLZW, compressionDeflate, compressionDeflateOld:
	default:
		return fmt.Errorf("unsupported compression %d", t.compression)
	}
	switch t.predictor {
	case predictorNone:
	case predictorHorizontal:
		if t.sampleFormat == sampleFormatIEEEFP {
			return errors.New("horizontal predictor on float samples is not supported")
		}
	default:
		return fmt.Errorf("unsupported predictor %d", t.predictor)
	}
	if t.planar != planarChunky && t.planar != planarSeparate {
		return fmt.Errorf("unsupported planar configuration %d", t.planar)
	}

	want := t.chunksPerPlane()
	if t.planar == planarSeparate {
		want *= t.samplesPerPixel
	}
	if len(t.offsets) != want || len(t.byteCounts) != want {
		return fmt.Errorf("expected %d data chunks, got %d offsets and %d byte counts", want, len(t.offsets), len(t.byteCounts))
	}
	return nil
}

// readTagValues читает числовые значения записи IFD
func readTagValues(r io.ReaderAt, order binary.ByteOrder, entry []byte) ([]float64, error) {
	typ := order.Uint16(entry[2:4])
	count := int(order.Uint32(entry[4:8]))
	size, ok := tiffTypeSize[typ]
	if !ok {
		return nil, fmt.Errorf("unknown tiff type %d", typ)
	}
	if count <= 0 || count > maxTagValuesInMemory {
		return nil, nil
	}

	raw := entry[8:12]
	if n := size * count; n > 4 {
		raw = make([]byte, n)
		if _, err := r.ReadAt(raw, int64(order.Uint32(entry[8:12]))); err != nil {
			return nil, err
		}
	}

	values := make([]float64, count)
	for i := range values {
		b := raw[i*size:]
		switch typ {
		case 1, 2, 7:
			values[i] = float64(b[0])
		case 6:
			values[i] = float64(int8(b[0]))
		case 3:
			values[i] = float64(order.Uint16(b))
		case 8:
			values[i] = float64(int16(order.Uint16(b)))
		case 4:
			values[i] = float64(order.Uint32(b))
		case 9:
			values[i] = float64(int32(order.Uint32(b)))
		case 5:
			values[i] = ratio(float64(order.Uint32(b)), float64(order.Uint32(b[4:])))
		case 10:
			values[i] = ratio(float64(int32(order.Uint32(b))), float64(int32(order.Uint32(b[4:]))))
		case 11:
			values[i] = float64(math.Float32frombits(order.Uint32(b)))
		case 12:
			values[i] = math.Float64frombits(order.Uint64(b))
		case 16:
			values[i] = float64(order.Uint64(b))
		}
	}
	return values, nil
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
