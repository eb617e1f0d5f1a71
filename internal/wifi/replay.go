package wifi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LoadBatches reads scan batches from JSONL: one JSON array of samples per
// line. Blank lines and #-comments are skipped.
func LoadBatches(r io.Reader) ([][]RawSample, error) {
	var batches [][]RawSample
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		var batch []RawSample
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, fmt.Errorf("parse batch on line %d: %w", line, err)
		}
		batches = append(batches, batch)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batches: %w", err)
	}
	return batches, nil
}

// LoadBatchesFile reads scan batches from a JSONL file.
func LoadBatchesFile(path string) ([][]RawSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()
	return LoadBatches(f)
}
