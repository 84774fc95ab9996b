package raster

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/image/tiff/lzw"
)

// Раскладка данных TIFF: полосы на всю ширину или тайлы.
// При planar=2 каждый канал лежит в своих кусках, канал за каналом.

func (t *geoTags) tiled() bool {
	return t.tileWidth > 0 && t.tileLength > 0
}

// chunkSize номинальный размер куска в пикселях
func (t *geoTags) chunkSize() (w, h int) {
	if t.tiled() {
		return t.tileWidth, t.tileLength
	}
	return t.width, t.rowsPerStrip
}

func (t *geoTags) chunksAcross() int {
	w, _ := t.chunkSize()
	return (t.width + w - 1) / w
}

func (t *geoTags) chunksDown() int {
	_, h := t.chunkSize()
	return (t.height + h - 1) / h
}

func (t *geoTags) chunksPerPlane() int {
	if t.width <= 0 || t.height <= 0 {
		return 0
	}
	return t.chunksAcross() * t.chunksDown()
}

// chunkSamples сколько отсчётов на пиксель внутри одного куска
func (t *geoTags) chunkSamples() int {
	if t.planar == planarSeparate {
		return 1
	}
	return t.samplesPerPixel
}

func (t *geoTags) bytesPerSample() int {
	return int(t.bitsPerSample[0]) / 8
}

// locate возвращает кусок и индекс отсчёта в нём для пикселя (x, y) канала band
func (t *geoTags) locate(x, y, band int) (chunk, sample int) {
	cw, ch := t.chunkSize()
	row, col := y/ch, x/cw
	chunk = row*t.chunksAcross() + col

	s := band
	if t.planar == planarSeparate {
		chunk += band * t.chunksPerPlane()
		s = 0
	}
	lx, ly := x-col*cw, y-row*ch
	return chunk, (ly*cw+lx)*t.chunkSamples() + s
}

// chunkRow номер ряда кусков, в котором лежит строка y
func (t *geoTags) chunkRow(y int) int {
	_, ch := t.chunkSize()
	return y / ch
}

// chunkRows фактическое число строк куска: последняя полоса бывает короче, тайлы нет
func (t *geoTags) chunkRows(chunk int) int {
	_, ch := t.chunkSize()
	if t.tiled() {
		return ch
	}
	row := (chunk % t.chunksPerPlane()) / t.chunksAcross()
	return min(ch, t.height-row*ch)
}

// decodeChunk читает, распаковывает и восстанавливает предиктор одного куска
func (t *geoTags) decodeChunk(r io.ReaderAt, chunk int) ([]byte, error) {
	if chunk < 0 || chunk >= len(t.offsets) {
		return nil, fmt.Errorf("chunk %d out of range", chunk)
	}
	raw := make([]byte, int64(t.byteCounts[chunk]))
	// ReadAt может вернуть io.EOF вместе с полным куском в конце файла
	if n, err := r.ReadAt(raw, int64(t.offsets[chunk])); n < len(raw) {
		return nil, fmt.Errorf("read chunk %d: %v", chunk, err)
	}

	cw, _ := t.chunkSize()
	rows := t.chunkRows(chunk)
	want := cw * rows * t.chunkSamples() * t.bytesPerSample()

	var (
		data []byte
		err  error
	)
	switch t.compression {
	case compressionNone:
		data = raw
	case compressionLZW:
		rc := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		data, err = readExactly(rc, want)
		rc.Close()
	case compressionDeflate, compressionDeflateOld:
		var rc io.ReadCloser
		if rc, err = zlib.NewReader(bytes.NewReader(raw)); err == nil {
			data, err = readExactly(rc, want)
			rc.Close()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decompress chunk %d: %w", chunk, err)
	}
	if len(data) < want {
		return nil, fmt.Errorf("chunk %d: %d bytes, expected %d", chunk, len(data), want)
	}
	data = data[:want]

	if t.predictor == predictorHorizontal {
		t.undoHorizontal(data, cw, rows)
	}
	return data, nil
}

func readExactly(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// undoHorizontal восстанавливает значения после горизонтального разностного предиктора
func (t *geoTags) undoHorizontal(data []byte, cols, rows int) {
	spp := t.chunkSamples()
	bps := t.bytesPerSample()
	stride := cols * spp
	order := t.order

	for y := 0; y < rows; y++ {
		row := y * stride
		for i := spp; i < stride; i++ {
			cur, prev := (row+i)*bps, (row+i-spp)*bps
			switch bps {
			case 1:
				data[cur] += data[prev]
			case 2:
				order.PutUint16(data[cur:], order.Uint16(data[cur:])+order.Uint16(data[prev:]))
			case 4:
				order.PutUint32(data[cur:], order.Uint32(data[cur:])+order.Uint32(data[prev:]))
			}
		}
	}
}

// sampleReader выбирает преобразование отсчёта в float32 по формату и разрядности
func (t *geoTags) sampleReader() func(data []byte, i int) float32 {
	order := t.order
	bits := int(t.bitsPerSample[0])

	switch {
	case t.sampleFormat == sampleFormatIEEEFP && bits == 32:
		return func(d []byte, i int) float32 { return math.Float32frombits(order.Uint32(d[4*i:])) }
	case t.sampleFormat == sampleFormatIEEEFP:
		return func(d []byte, i int) float32 { return float32(math.Float64frombits(order.Uint64(d[8*i:]))) }
	case t.sampleFormat == sampleFormatInt && bits == 8:
		return func(d []byte, i int) float32 { return float32(int8(d[i])) }
	case t.sampleFormat == sampleFormatInt && bits == 16:
		return func(d []byte, i int) float32 { return float32(int16(order.Uint16(d[2*i:]))) }
	case t.sampleFormat == sampleFormatInt:
		return func(d []byte, i int) float32 { return float32(int32(order.Uint32(d[4*i:]))) }
	case bits == 8:
		return func(d []byte, i int) float32 { return float32(d[i]) }
	case bits == 16:
		return func(d []byte, i int) float32 { return float32(order.Uint16(d[2*i:])) }
	default:
		return func(d []byte, i int) float32 { return float32(order.Uint32(d[4*i:])) }
	}
}
