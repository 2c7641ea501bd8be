package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoad_ReturnsEmptyIndexWhenFileMissing는 인덱스 파일이 없을 때의 동작을 검증합니다.
func TestLoad_ReturnsEmptyIndexWhenFileMissing(t *testing.T) {
	// 인덱스 파일이 없으면 에러 대신 빈 인덱스가 반환되어야 한다.
	idx, err := Load(filepath.Join(t.TempDir(), "nested", "hash_index.json"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if idx.Len() != 0 {
		t.Fatalf("expected empty index, got %d", idx.Len())
	}
}

// TestIndexRecordAndLookup는 Record/Lookup 동작을 검증합니다.
func TestIndexRecordAndLookup(t *testing.T) {
	// 처음 기록된 목적지가 유지되고 이후 기록은 무시되어야 한다.
	idx := New(filepath.Join(t.TempDir(), "hash_index.json"))
	idx.Record("abc", "/dest/2023/04/05/a.jpg")
	idx.Record("abc", "/dest/2023/04/05/a_1.jpg")

	dest, ok := idx.Lookup("abc")
	if !ok {
		t.Fatal("expected digest to be found")
	}
	if dest != "/dest/2023/04/05/a.jpg" {
		t.Fatalf("unexpected dest: %s", dest)
	}
	if _, ok := idx.Lookup("missing"); ok {
		t.Fatal("expected missing digest to be absent")
	}
}

// TestIndexSaveAndLoad_RoundTrip는 저장 후 재로드 동작을 검증합니다.
func TestIndexSaveAndLoad_RoundTrip(t *testing.T) {
	// 저장한 인덱스를 다시 로드했을 때 매핑이 유지되어야 하고 임시 파일은 남지 않아야 한다.
	filePath := filepath.Join(t.TempDir(), "nested", "hash_index.json")
	idx := New(filePath)
	idx.Record("d1", "/dest/a.jpg")

	if err := idx.Save(); err != nil {
		t.Fatalf("failed to save index: %v", err)
	}
	if _, err := os.Stat(filePath + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("expected temp file to be renamed away")
	}

	loaded, err := Load(filePath)
	if err != nil {
		t.Fatalf("failed to load index: %v", err)
	}
	if dest, ok := loaded.Lookup("d1"); !ok || dest != "/dest/a.jpg" {
		t.Fatalf("unexpected loaded entry: %q %v", dest, ok)
	}
}

// TestIndexSave_MergesWithOnDiskState는 저장 시 병합 동작을 검증합니다.
func TestIndexSave_MergesWithOnDiskState(t *testing.T) {
	// 다른 인스턴스가 먼저 저장한 항목도 저장 후 남아 있어야 한다.
	filePath := filepath.Join(t.TempDir(), "hash_index.json")

	first := New(filePath)
	first.Record("d1", "/dest/a.jpg")

	second := New(filePath)
	second.Record("d2", "/dest/b.jpg")
	if err := second.Save(); err != nil {
		t.Fatalf("failed to save second: %v", err)
	}
	if err := first.Save(); err != nil {
		t.Fatalf("failed to save first: %v", err)
	}

	loaded, err := Load(filePath)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("expected merged index of 2, got %d", loaded.Len())
	}
}

// TestLoad_ReturnsErrorOnInvalidJSON는 깨진 인덱스 파일 처리를 검증합니다.
func TestLoad_ReturnsErrorOnInvalidJSON(t *testing.T) {
	// 인덱스 JSON이 깨져 있으면 Load는 에러를 반환해야 한다.
	filePath := filepath.Join(t.TempDir(), "hash_index.json")
	if err := os.WriteFile(filePath, []byte("{"), 0644); err != nil {
		t.Fatalf("failed to write broken index: %v", err)
	}

	if _, err := Load(filePath); err == nil {
		t.Fatal("expected unmarshal error")
	}
}

// TestIndexSave_ReturnsErrorWhenParentIsFile는 저장 실패 경로를 검증합니다.
func TestIndexSave_ReturnsErrorWhenParentIsFile(t *testing.T) {
	// 부모 경로가 파일이면 Save의 MkdirAll 단계에서 실패해야 한다.
	tmpDir := t.TempDir()
	parentAsFile := filepath.Join(tmpDir, "not-dir")
	if err := os.WriteFile(parentAsFile, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create blocking file: %v", err)
	}

	idx := New(filepath.Join(parentAsFile, "hash_index.json"))
	idx.Record("d1", "/dest/a.jpg")
	if err := idx.Save(); err == nil {
		t.Fatal("expected save error")
	}
}
