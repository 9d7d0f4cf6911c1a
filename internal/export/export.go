// Package export writes point-in-time snapshots of the counts table to
// object storage.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wordtally/apiserver/internal/services"
	"github.com/wordtally/apiserver/internal/storage"
	"github.com/wordtally/apiserver/types"
)

const snapshotPageSize = services.MaxLimit

// Snapshot is the exported document.
type Snapshot struct {
	ExportedAt time.Time         `json:"exportedAt"`
	TotalRows  int               `json:"totalRows"`
	Counts     []types.WordCount `json:"counts"`
}

// Exporter pages through the counts table and uploads one JSON
// document per run.
type Exporter struct {
	counts  services.CountRepository
	objects storage.ObjectStorage
	logger  *logrus.Logger
}

// NewExporter constructs an Exporter.
func NewExporter(counts services.CountRepository, objects storage.ObjectStorage, logger *logrus.Logger) *Exporter {
	return &Exporter{
		counts:  counts,
		objects: objects,
		logger:  logger,
	}
}

// Run exports the full counts table and returns the object key it was
// written under.
func (e *Exporter) Run(ctx context.Context) (string, error) {
	if err := e.objects.EnsureBucket(ctx); err != nil {
		return "", fmt.Errorf("export: ensure bucket: %w", err)
	}

	snapshot := Snapshot{ExportedAt: time.Now().UTC()}
	query := types.ListQuery{Page: 1, Limit: snapshotPageSize, Order: types.OrderDesc}

	for {
		counts, total, err := e.counts.List(ctx, query)
		if err != nil {
			return "", fmt.Errorf("export: list counts: %w", err)
		}
		snapshot.TotalRows = total
		snapshot.Counts = append(snapshot.Counts, counts...)

		if len(counts) < query.Limit || len(snapshot.Counts) >= total {
			break
		}
		query.Page++
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("export: encode snapshot: %w", err)
	}

	key := fmt.Sprintf("counts-%s.json", snapshot.ExportedAt.Format("20060102-150405"))
	if err := e.objects.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return "", fmt.Errorf("export: upload snapshot: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"key":    key,
		"bucket": e.objects.Bucket(),
		"rows":   len(snapshot.Counts),
	}).Info("counts snapshot exported")

	return key, nil
}
