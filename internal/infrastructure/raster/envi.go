package raster

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// enviImage одноканальный файл ENVI (.hdr + .img), в таком виде BEAM-DIMAP хранит каналы
type enviImage struct {
	file         *os.File
	samples      int
	lines        int
	headerOffset int64
	dataType     int
	order        binary.ByteOrder
}

// размер отсчёта по коду типа данных ENVI
var enviTypeSize = map[int]int{
	1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 12: 2, 13: 4, 14: 8, 15: 8,
}

// openENVI читает заголовок hdrPath и открывает соседний .img
func openENVI(hdrPath string) (*enviImage, error) {
	header, err := parseENVIHeader(hdrPath)
	if err != nil {
		return nil, err
	}

	img := &enviImage{order: binary.LittleEndian}
	if img.samples, err = headerInt(header, "samples"); err != nil {
		return nil, err
	}
	if img.lines, err = headerInt(header, "lines"); err != nil {
		return nil, err
	}
	if img.dataType, err = headerInt(header, "data type"); err != nil {
		return nil, err
	}
	if _, ok := enviTypeSize[img.dataType]; !ok {
		return nil, fmt.Errorf("%s: unsupported envi data type %d", hdrPath, img.dataType)
	}
	if bands, ok := header["bands"]; ok && bands != "1" {
		return nil, fmt.Errorf("%s: expected a single band per file, got %s", hdrPath, bands)
	}
	if v, ok := header["header offset"]; ok {
		off, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: header offset: %w", hdrPath, err)
		}
		img.headerOffset = off
	}
	if header["byte order"] == "1" {
		img.order = binary.BigEndian
	}

	imgPath := strings.TrimSuffix(hdrPath, ".hdr") + ".img"
	img.file, err = os.Open(imgPath)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// readRow читает отрезок строки y начиная со столбца x длиной n
func (e *enviImage) readRow(y, x, n int, dst []float32) error {
	size := enviTypeSize[e.dataType]
	buf := make([]byte, n*size)
	off := e.headerOffset + (int64(y)*int64(e.samples)+int64(x))*int64(size)
	if _, err := e.file.ReadAt(buf, off); err != nil {
		return fmt.Errorf("read row %d: %w", y, err)
	}
	for i := 0; i < n; i++ {
		dst[i] = e.decode(buf[i*size:])
	}
	return nil
}

// readAll читает весь канал в плоский буфер
func (e *enviImage) readAll() ([]float32, error) {
	out := make([]float32, e.samples*e.lines)
	for y := 0; y < e.lines; y++ {
		if err := e.readRow(y, 0, e.samples, out[y*e.samples:(y+1)*e.samples]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *enviImage) decode(b []byte) float32 {
	switch e.dataType {
	case 1:
		return float32(b[0])
	case 2:
		return float32(int16(e.order.Uint16(b)))
	case 3:
		return float32(int32(e.order.Uint32(b)))
	case 4:
		return math.Float32frombits(e.order.Uint32(b))
	case 5:
		return float32(math.Float64frombits(e.order.Uint64(b)))
	case 12:
		return float32(e.order.Uint16(b))
	case 13:
		return float32(e.order.Uint32(b))
	case 14:
		return float32(int64(e.order.Uint64(b)))
	case 15:
		return float32(e.order.Uint64(b))
	}
	return 0
}

func (e *enviImage) Close() error {
	return e.file.Close()
}

// parseENVIHeader разбирает пары "ключ = значение"; значения в фигурных скобках
// могут занимать несколько строк
func parseENVIHeader(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make(map[string]string)
	scanner := bufio.NewScanner(f)
	first := true
	var key, pending string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			first = false
			if line != "ENVI" {
				return nil, fmt.Errorf("%s: not an envi header", path)
			}
			continue
		}
		if key != "" {
			pending += " " + line
			if strings.Contains(line, "}") {
				header[key] = strings.TrimSpace(pending)
				key, pending = "", ""
			}
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "{") && !strings.Contains(v, "}") {
			key, pending = k, v
			continue
		}
		header[k] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return header, nil
}

func headerInt(header map[string]string, key string) (int, error) {
	v, ok := header[key]
	if !ok {
		return 0, fmt.Errorf("envi header has no %q", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("envi header %q: %w", key, err)
	}
	return n, nil
}
