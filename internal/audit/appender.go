// Package audit keeps a hash-chained JSONL journal of environment lifecycle
// events.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vem-project/vem/pkg/errclass"
	"github.com/vem-project/vem/pkg/model"
)

// maxLineSize bounds a single journal line.
const maxLineSize = 1 << 20

// Appender records lifecycle events.
type Appender interface {
	Append(eventType model.AuditEventType, envName string, details map[string]any) error
}

// FileAppender appends audit records to a JSONL file with hash chain.
type FileAppender struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileAppender creates a new FileAppender.
func NewFileAppender(path string) *FileAppender {
	return &FileAppender{path: path, now: time.Now}
}

// Path returns the journal location.
func (a *FileAppender) Path() string { return a.path }

// Append adds a new audit record to the log.
func (a *FileAppender) Append(eventType model.AuditEventType, envName string, details map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return fmt.Errorf("lock audit log: %w", err)
	}
	defer unlockFile(file)

	prevHash, err := lastRecordHash(file)
	if err != nil {
		return fmt.Errorf("get last record hash: %w", err)
	}

	record := &model.AuditRecord{
		Timestamp:   a.now().UTC(),
		EventType:   eventType,
		Environment: envName,
		Details:     details,
		PrevHash:    prevHash,
	}
	recordHash, err := computeRecordHash(record)
	if err != nil {
		return fmt.Errorf("compute record hash: %w", err)
	}
	record.RecordHash = recordHash

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync audit log: %w", err)
	}
	return nil
}

// ReadAll returns every record in journal order. A missing journal is empty.
func (a *FileAppender) ReadAll() ([]model.AuditRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	var records []model.AuditRecord
	err = scanRecords(file, func(lineNo int, r model.AuditRecord, perr error) error {
		if perr != nil {
			return fmt.Errorf("audit log line %d: %w", lineNo, perr)
		}
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Tail returns the last n records, or all of them when n <= 0.
func (a *FileAppender) Tail(n int) ([]model.AuditRecord, error) {
	records, err := a.ReadAll()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}

// Verify checks every record hash and the links between records. It returns
// the number of records checked.
func (a *FileAppender) Verify() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	var (
		count    int
		prevHash model.HashValue
	)
	err = scanRecords(file, func(lineNo int, r model.AuditRecord, perr error) error {
		if perr != nil {
			return errclass.ErrAuditChainBroken.WithMessagef("line %d is not a valid record", lineNo).Wrap(perr)
		}
		if r.PrevHash != prevHash {
			return errclass.ErrAuditChainBroken.WithMessagef("line %d does not follow the previous record", lineNo)
		}
		want, err := computeRecordHash(&r)
		if err != nil {
			return err
		}
		if r.RecordHash != want {
			return errclass.ErrAuditChainBroken.WithMessagef("line %d has been modified", lineNo)
		}
		prevHash = r.RecordHash
		count++
		return nil
	})
	return count, err
}

func scanRecords(r io.Reader, fn func(lineNo int, rec model.AuditRecord, err error) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec model.AuditRecord
		err := json.Unmarshal(scanner.Bytes(), &rec)
		if err := fn(lineNo, rec, err); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan audit log: %w", err)
	}
	return nil
}

func lastRecordHash(file *os.File) (model.HashValue, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek to start: %w", err)
	}

	var lastHash model.HashValue
	err := scanRecords(file, func(_ int, rec model.AuditRecord, err error) error {
		if err == nil {
			lastHash = rec.RecordHash
		}
		return nil // skip malformed lines
	})
	return lastHash, err
}

// computeRecordHash hashes the record with RecordHash cleared. encoding/json
// writes struct fields in declaration order and map keys sorted, so the
// encoding is stable across a write and a re-read.
func computeRecordHash(record *model.AuditRecord) (model.HashValue, error) {
	hashRecord := *record
	hashRecord.RecordHash = ""

	data, err := json.Marshal(&hashRecord)
	if err != nil {
		return "", fmt.Errorf("marshal for hash: %w", err)
	}

	hash := sha256.Sum256(data)
	return model.HashValue(hex.EncodeToString(hash[:])), nil
}
