package exec

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"incresql/internal/types"
)

// FileScanExec iterates JSON and CSV files under Directory in
// lexicographic filename order, surfacing one `data` column holding each
// record re-encoded as self-describing JSON text (spec.md 4.6/4.8). A
// `.json` file is treated as one JSON value per line (JSON Lines); a
// `.csv` file's header row names each record's fields.
type FileScanExec struct {
	files []string
	idx   int

	cur    []jsonRecord
	curIdx int

	row  types.Row
	freq types.Frequency
	ok   bool
}

type jsonRecord []byte

func NewFileScan(directory string, serdeOptions map[string]string) (*FileScanExec, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, errStorage("file_scan", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".json" || ext == ".csv" {
			files = append(files, filepath.Join(directory, e.Name()))
		}
	}
	sort.Strings(files)
	return &FileScanExec{files: files, idx: -1}, nil
}

func (f *FileScanExec) Advance() error {
	f.ok = false
	for {
		if f.curIdx < len(f.cur) {
			f.row = types.Row{types.NewText(string(f.cur[f.curIdx]))}
			f.freq = 1
			f.ok = true
			f.curIdx++
			return nil
		}
		f.idx++
		if f.idx >= len(f.files) {
			return nil
		}
		records, err := loadFile(f.files[f.idx])
		if err != nil {
			return errStorage("file_scan", err)
		}
		f.cur, f.curIdx = records, 0
	}
}

func loadFile(path string) ([]jsonRecord, error) {
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return loadCSV(path)
	}
	return loadJSONLines(path)
}

func loadJSONLines(path string) ([]jsonRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []jsonRecord
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var v interface{}
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			return nil, fmt.Errorf("file_scan: %s: %w", path, err)
		}
		canon, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out = append(out, jsonRecord(canon))
	}
	return out, nil
}

func loadCSV(path string) ([]jsonRecord, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	out := make([]jsonRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		obj := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(row) {
				obj[h] = row[i]
			}
		}
		encoded, err := json.Marshal(obj)
		if err != nil {
			return nil, err
		}
		out = append(out, jsonRecord(encoded))
	}
	return out, nil
}

func (f *FileScanExec) Get() (types.Row, types.Frequency, bool) {
	if !f.ok {
		return nil, 0, false
	}
	return f.row, f.freq, true
}

func (f *FileScanExec) ColumnCount() int { return 1 }
