package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/geo"
	"sat-detect/internal/domain/port"
)

const (
	runsCollection       = "runs"
	detectionsCollection = "detections"
)

// MongoRecordStore пишет прогоны в MongoDB.
// Детекции лежат отдельными документами с GeoJSON полем location под индексом 2dsphere.
type MongoRecordStore struct {
	client     *mongo.Client
	runs       *mongo.Collection
	detections *mongo.Collection
}

// GeoPoint точка GeoJSON
type GeoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

// GeoPolygon полигон GeoJSON
type GeoPolygon struct {
	Type        string        `bson:"type"`
	Coordinates [][][]float64 `bson:"coordinates"`
}

// RunDocument документ коллекции runs
type RunDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Source      string             `bson:"source"`
	Basename    string             `bson:"basename"`
	CreatedAt   time.Time          `bson:"created_at"`
	Width       int                `bson:"width"`
	Height      int                `bson:"height"`
	Tiles       int                `bson:"tiles"`
	Extent      *GeoPolygon        `bson:"extent,omitempty"`
	UTMFallback bool               `bson:"utm_fallback"`
	Warning     string             `bson:"warning,omitempty"`
}

// DetectionDocument документ коллекции detections.
// location заполняется только для координат в географическом диапазоне,
// иначе исходные значения лежат в coord_a/coord_b.
type DetectionDocument struct {
	RunID       primitive.ObjectID `bson:"run_id"`
	Seq         int                `bson:"seq"`
	Location    *GeoPoint          `bson:"location,omitempty"`
	CoordA      float64            `bson:"coord_a"`
	CoordB      float64            `bson:"coord_b"`
	Width       float64            `bson:"width"`
	Height      float64            `bson:"height"`
	Score       float32            `bson:"score"`
	Label       int                `bson:"label"`
	UTMFallback bool               `bson:"utm_fallback"`
	Warning     string             `bson:"warning,omitempty"`
}

// NewMongoRecordStore подключается к MongoDB и создаёт индексы
func NewMongoRecordStore(ctx context.Context, uri, database string) (*MongoRecordStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}

	db := client.Database(database)
	store := &MongoRecordStore{
		client:     client,
		runs:       db.Collection(runsCollection),
		detections: db.Collection(detectionsCollection),
	}

	_, err = store.detections.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("error creating indexes: %w", err)
	}

	return store, nil
}

// Write сохраняет документ прогона и документы детекций
func (s *MongoRecordStore) Write(ctx context.Context, result *entity.PredictionResult) error {
	run, detections := BuildMongoDocuments(result, time.Now().UTC())

	if _, err := s.runs.InsertOne(ctx, run); err != nil {
		return fmt.Errorf("error inserting run: %w", err)
	}
	if len(detections) == 0 {
		return nil
	}

	docs := make([]interface{}, len(detections))
	for i := range detections {
		docs[i] = detections[i]
	}
	if _, err := s.detections.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		// документ прогона без детекций не нужен
		s.runs.DeleteOne(ctx, bson.M{"_id": run.ID})
		return fmt.Errorf("error inserting detections: %w", err)
	}
	return nil
}

// Close закрывает соединение
func (s *MongoRecordStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// BuildMongoDocuments раскладывает результат на документ прогона и документы детекций
func BuildMongoDocuments(result *entity.PredictionResult, now time.Time) (RunDocument, []DetectionDocument) {
	run := RunDocument{
		ID:        primitive.NewObjectID(),
		Source:    result.Source,
		Basename:  result.Basename,
		CreatedAt: now,
		Width:     result.Info.Width,
		Height:    result.Info.Height,
		Tiles:     result.Tiles,
	}
	if extent, ok := result.Extent(); ok {
		run.UTMFallback = extent.UTMFallback
		run.Warning = extent.Warning
		if geo.InRange(extent.A, extent.B) && geo.InRange(extent.A2, extent.B2) {
			run.Extent = &GeoPolygon{Type: "Polygon", Coordinates: [][][]float64{{
				{extent.A, extent.B},
				{extent.A2, extent.B},
				{extent.A2, extent.B2},
				{extent.A, extent.B2},
				{extent.A, extent.B},
			}}}
		}
	}

	points := result.Points()
	docs := make([]DetectionDocument, len(points))
	for i, r := range points {
		docs[i] = DetectionDocument{
			RunID:       run.ID,
			Seq:         i,
			CoordA:      r.A,
			CoordB:      r.B,
			Width:       r.Width,
			Height:      r.Height,
			Score:       r.Score,
			Label:       r.Label,
			UTMFallback: r.UTMFallback,
			Warning:     r.Warning,
		}
		if geo.InRange(r.A, r.B) {
			docs[i].Location = &GeoPoint{Type: "Point", Coordinates: []float64{r.A, r.B}}
		}
	}
	return run, docs
}

var _ port.RecordSink = (*MongoRecordStore)(nil)
