package tracefile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ethereum-optimism/rvtrace/rvgo/isa"
)

// WriteJSON writes the trace as a JSON array, one record per line.
func WriteJSON(w io.Writer, trace *isa.Trace) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	if _, err := bw.WriteString("[\n"); err != nil {
		return err
	}
	for i, c := range trace.Cycles() {
		if i > 0 {
			if _, err := bw.WriteString(","); err != nil {
				return err
			}
		}
		// Encode terminates every record with a newline
		if err := enc.Encode(NewRecord(c)); err != nil {
			return fmt.Errorf("failed to encode cycle %d: %w", i, err)
		}
	}
	if _, err := bw.WriteString("]\n"); err != nil {
		return err
	}
	return bw.Flush()
}

func WriteFile(path string, trace *isa.Trace) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open trace output %q: %w", path, err)
	}
	if err := WriteJSON(f, trace); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write trace %q: %w", path, err)
	}
	return f.Close()
}

// ReadFile decodes a trace file written by WriteFile.
func ReadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace %q: %w", path, err)
	}
	var out []Record
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode trace %q: %w", path, err)
	}
	return out, nil
}
