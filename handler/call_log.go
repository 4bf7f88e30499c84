package handler

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/resttable/resttable/core"
)

// callLogEntry is one line of the call log.
type callLogEntry struct {
	Time       string `json:"time"`
	Connection string `json:"connection"`
	Backend    string `json:"backend"`
	CallID     string `json:"call_id"`
	Query      string `json:"query"`
	State      string `json:"state"`
	Rows       *int   `json:"rows,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`

	started time.Time
}

func newCallLogEntry(conn *core.Connection, call *core.Call) *callLogEntry {
	entry := &callLogEntry{
		Time:       call.GetTimestamp().UTC().Format(time.RFC3339Nano),
		Connection: conn.GetName(),
		Backend:    conn.GetType(),
		CallID:     string(call.GetID()),
		Query:      call.GetQuery().String(),
		State:      call.GetState().String(),
		DurationMS: call.GetTimeTaken().Milliseconds(),
		started:    call.GetTimestamp(),
	}
	if err := call.Err(); err != nil {
		entry.Error = err.Error()
	}
	if result, err := call.GetResult(); err == nil {
		n := result.Len()
		entry.Rows = &n
	}
	return entry
}

// storeCallLog appends the calls of this session to path, one json object
// per line in call order, so that the history of many cli runs can be
// grepped or tailed.
func (h *Handler) storeCallLog(path string) error {
	var entries []*callLogEntry

	for _, c := range h.GetConnections(nil) {
		calls, err := h.ConnectionGetCalls(c.GetID())
		if err != nil {
			continue
		}
		for _, call := range calls {
			entries = append(entries, newCallLogEntry(c, call))
		}
	}
	if len(entries) < 1 {
		return nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].started.Before(entries[j].started)
	})

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("os.OpenFile: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("enc.Encode: %w", err)
		}
	}

	return nil
}
