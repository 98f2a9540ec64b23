package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

var OutFilePerm = os.FileMode(0o644)

// openOutput opens path for writing. "-" is stdout, which is never closed.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, OutFilePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to open output %q: %w", path, err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// writeJSON writes v to path as two-space indented JSON followed by a blank line.
// An empty path writes nothing.
func writeJSON(path string, v any) error {
	if path == "" {
		return nil
	}
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to encode %q: %w", path, err)
	}
	if _, err := out.Write([]byte{'\n'}); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return out.Close()
}
