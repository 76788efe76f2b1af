package dataset

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFromJSONBareArray(t *testing.T) {
	ds, err := FromJSON([]byte(`[{"b": 1, "a": "x"}, {"b": 2, "a": "y"}]`))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if ds.RowCount() != 2 {
		t.Fatalf("RowCount = %d, want 2", ds.RowCount())
	}
	if !reflect.DeepEqual(ds.Columns, []string{"a", "b"}) {
		t.Errorf("Columns = %v, want inferred sorted [a b]", ds.Columns)
	}
}

func TestFromJSONEnvelope(t *testing.T) {
	ds, err := FromJSON([]byte(`{"data": [{"a": 1}], "columns": ["a"]}`))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if ds.RowCount() != 1 || len(ds.Columns) != 1 {
		t.Errorf("unexpected shape: rows=%d columns=%v", ds.RowCount(), ds.Columns)
	}
}

func TestFromJSONRejectsScalar(t *testing.T) {
	if _, err := FromJSON([]byte(`42`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`[{"v": 3}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	ds, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if ds.RowCount() != 1 {
		t.Errorf("RowCount = %d, want 1", ds.RowCount())
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
