package audit_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vem-project/vem/internal/audit"
	"github.com/vem-project/vem/pkg/errclass"
	"github.com/vem-project/vem/pkg/model"
)

func newAppender(t *testing.T) (*audit.FileAppender, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	return audit.NewFileAppender(logPath), logPath
}

func TestFileAppender_AppendCreatesJSONL(t *testing.T) {
	appender, logPath := newAppender(t)

	err := appender.Append(model.EventTypeEnvironmentCreate, "work", nil)
	require.NoError(t, err)

	file, err := os.Open(logPath)
	require.NoError(t, err)
	defer file.Close()

	scanner := bufio.NewScanner(file)
	require.True(t, scanner.Scan())

	var record model.AuditRecord
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
	assert.Equal(t, model.EventTypeEnvironmentCreate, record.EventType)
	assert.Equal(t, "work", record.Environment)
	assert.False(t, record.Timestamp.IsZero())
}

func TestFileAppender_HashChain(t *testing.T) {
	appender, _ := newAppender(t)

	require.NoError(t, appender.Append(model.EventTypeEnvironmentCreate, "work", nil))
	require.NoError(t, appender.Append(model.EventTypeEnvironmentSwitch, "work", map[string]any{"previous": "play"}))

	records, err := appender.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, model.HashValue(""), records[0].PrevHash)
	assert.Equal(t, records[0].RecordHash, records[1].PrevHash)
	assert.NotEmpty(t, records[0].RecordHash)
	assert.NotEmpty(t, records[1].RecordHash)
	assert.Equal(t, "play", records[1].Details["previous"])
}

func TestFileAppender_ConcurrentAppends(t *testing.T) {
	appender, _ := newAppender(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			appender.Append(model.EventTypeEnvironmentUpdate, "work", map[string]any{"idx": idx})
		}(i)
	}
	wg.Wait()

	records, err := appender.ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 10)

	n, err := appender.Verify()
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestFileAppender_ReadAll_Missing(t *testing.T) {
	appender, _ := newAppender(t)

	records, err := appender.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records)

	n, err := appender.Verify()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFileAppender_Tail(t *testing.T) {
	appender, _ := newAppender(t)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, appender.Append(model.EventTypeEnvironmentCreate, name, nil))
	}

	last, err := appender.Tail(2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "b", last[0].Environment)
	assert.Equal(t, "c", last[1].Environment)

	all, err := appender.Tail(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFileAppender_Verify_DetectsTampering(t *testing.T) {
	appender, logPath := newAppender(t)
	require.NoError(t, appender.Append(model.EventTypeEnvironmentCreate, "work", nil))
	require.NoError(t, appender.Append(model.EventTypeEnvironmentRemove, "work", nil))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), `"environment_remove"`, `"environment_update"`, 1)
	require.NoError(t, os.WriteFile(logPath, []byte(tampered), 0644))

	_, err = appender.Verify()
	require.ErrorIs(t, err, errclass.ErrAuditChainBroken)
}

func TestFileAppender_Verify_DetectsDroppedRecord(t *testing.T) {
	appender, logPath := newAppender(t)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, appender.Append(model.EventTypeEnvironmentCreate, name, nil))
	}

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.SplitAfter(string(data), "\n")
	require.NoError(t, os.WriteFile(logPath, []byte(lines[0]+lines[2]), 0644))

	_, err = appender.Verify()
	require.ErrorIs(t, err, errclass.ErrAuditChainBroken)
}

func TestFileAppender_SkipsMalformedTailWhenAppending(t *testing.T) {
	appender, logPath := newAppender(t)
	require.NoError(t, appender.Append(model.EventTypeEnvironmentCreate, "work", nil))

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{truncated\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, appender.Append(model.EventTypeEnvironmentSwitch, "work", nil))

	_, err = appender.ReadAll()
	require.Error(t, err)
	_, err = appender.Verify()
	require.ErrorIs(t, err, errclass.ErrAuditChainBroken)
}
