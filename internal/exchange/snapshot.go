package exchange

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/arduino-trader/internal/domain"
)

// snapshot is the authoritative on-disk state of the virtual ledger,
// per spec.md §6: a single JSON file overwritten atomically after every
// order.
type snapshot struct {
	Balances         map[string]float64 `json:"balances"`
	OrderHistory     []domain.Order     `json:"order_history"`
	OrderIDCounter   int                `json:"order_id_counter"`
}

// loadSnapshot reads the snapshot file if present; a missing file is
// not an error, it just means a fresh ledger.
func loadSnapshot(path string) (*snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("exchange: read snapshot: %w", err)
	}

	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("exchange: parse snapshot: %w", err)
	}
	return &s, nil
}

// writeSnapshot persists the snapshot via write-temp-then-rename so a
// crash mid-write never corrupts the previous snapshot.
func writeSnapshot(path string, s snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("exchange: mkdir snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("exchange: marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("exchange: write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("exchange: rename snapshot: %w", err)
	}
	return nil
}

// replayEntry is one msgpack-encoded record in the append-only replay
// log — a denormalized sibling of the JSON snapshot, not its source of
// truth. The log is only written; nothing in the repository reads it.
type replayEntry struct {
	Order     domain.Order       `msgpack:"order"`
	Balances  map[string]float64 `msgpack:"balances"`
}

// appendReplayLog appends one msgpack-encoded entry to the replay log
// file. Best-effort observability only — failures here are logged by
// the caller but never roll back the snapshot write.
func appendReplayLog(path string, entry replayEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("exchange: mkdir replay log dir: %w", err)
	}
	encoded, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("exchange: marshal replay entry: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("exchange: open replay log: %w", err)
	}
	defer file.Close()

	// Length-prefix each entry so the log can be streamed back entry by
	// entry without a framing ambiguity.
	length := uint32(len(encoded))
	header := []byte{byte(length >> 24), byte(length >> 16), byte(length >> 8), byte(length)}
	if _, err := file.Write(header); err != nil {
		return fmt.Errorf("exchange: write replay header: %w", err)
	}
	if _, err := file.Write(encoded); err != nil {
		return fmt.Errorf("exchange: write replay entry: %w", err)
	}
	return nil
}
