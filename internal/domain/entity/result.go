package entity

import "path/filepath"

// PredictionResult итог обработки одного снимка
type PredictionResult struct {
	Source      string      // путь к исходному растру
	Basename    string      // имя файла без расширения, используется для выходных файлов
	OutputDir   string      // каталог выходных файлов
	ImageType   ImageType   // тип снимка, с которым шёл инференс
	Info        RasterInfo  // размеры растра
	Tiles       int         // сколько тайлов обработано
	Detections  []Detection // детекции в глобальных пиксельных координатах
	Records     []Record    // охват + точки, пусто для профиля preview-only
	PreviewPath string      // путь к сохранённому превью, пусто если не сохранялось
	Warnings    int         // число записей с предупреждениями
}

// Extent возвращает запись охвата, если она есть
func (r *PredictionResult) Extent() (Record, bool) {
	if len(r.Records) == 0 || !r.Records[0].IsExtent() {
		return Record{}, false
	}
	return r.Records[0], true
}

// Points возвращает записи детекций без записи охвата
func (r *PredictionResult) Points() []Record {
	if _, ok := r.Extent(); ok {
		return r.Records[1:]
	}
	return r.Records
}

// OutputFile путь выходного файла <OutputDir>/<Basename><suffix>
func (r *PredictionResult) OutputFile(suffix string) string {
	return filepath.Join(r.OutputDir, r.Basename+suffix)
}

// Суффиксы выходных файлов
const (
	SuffixCSV     = ".csv"
	SuffixGeoJSON = ".geojson"
	SuffixPreview = "_vis.png"
)
