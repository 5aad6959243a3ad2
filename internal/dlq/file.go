package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gregoryhugaerts/mini-siem/internal/models"
)

// FileQueue appends failed batches as NDJSON, one file per day. Suitable
// for a single instance; use the JetStream backend when running more.
type FileQueue struct {
	basePath string
	mu       sync.Mutex
}

func NewFileQueue(basePath string) (*FileQueue, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("create dlq directory: %w", err)
	}
	return &FileQueue{basePath: basePath}, nil
}

func (q *FileQueue) Write(ctx context.Context, batch *models.Batch, cause error) error {
	entry := Entry{
		BatchID:  batch.ID,
		Shard:    batch.Shard,
		FailedAt: time.Now().UTC(),
		Reason:   cause.Error(),
		Events:   batch.Events,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}
	line = append(line, '\n')

	q.mu.Lock()
	defer q.mu.Unlock()

	name := filepath.Join(q.basePath, "failed-batches-"+entry.FailedAt.Format("2006-01-02")+".ndjson")
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open dlq file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append dlq entry: %w", err)
	}
	return nil
}

func (q *FileQueue) Close() error {
	return nil
}
