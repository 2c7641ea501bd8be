package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

// TestHistoryStore_AddTrimsTo100는 실행 히스토리 개수 제한을 검증합니다.
func TestHistoryStore_AddTrimsTo100(t *testing.T) {
	// 실행 히스토리는 최신 100개까지만 유지해야 한다.
	s := NewHistoryStore(filepath.Join(t.TempDir(), "run_history.json"))

	for i := 0; i < 105; i++ {
		entry := types.RunHistoryEntry{ID: fmt.Sprintf("%d", i), Status: types.RunStatusCompleted}
		if err := s.Add(entry); err != nil {
			t.Fatalf("add history entry failed at %d: %v", i, err)
		}
	}

	history, err := s.Load()
	if err != nil {
		t.Fatalf("load run history failed: %v", err)
	}

	if len(history.Entries) != 100 {
		t.Fatalf("expected 100 entries, got %d", len(history.Entries))
	}
	if history.Entries[0].ID != "104" {
		t.Fatalf("expected newest id 104, got %s", history.Entries[0].ID)
	}
	if history.Entries[len(history.Entries)-1].ID != "5" {
		t.Fatalf("expected oldest id 5, got %s", history.Entries[len(history.Entries)-1].ID)
	}
}

// TestHistoryStore_LoadReturnsEmptyWhenMissing는 파일이 없을 때 빈 히스토리를 검증합니다.
func TestHistoryStore_LoadReturnsEmptyWhenMissing(t *testing.T) {
	// 히스토리 파일이 없으면 에러 없이 빈 목록을 반환해야 한다.
	s := NewHistoryStore(filepath.Join(t.TempDir(), "missing.json"))
	history, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history.Entries) != 0 {
		t.Fatalf("expected empty history, got %d", len(history.Entries))
	}
}

// TestHistoryStore_SaveAndLoad_RoundTrip는 요약 정보 저장/복원을 검증합니다.
func TestHistoryStore_SaveAndLoad_RoundTrip(t *testing.T) {
	// 하위 디렉터리를 만들어 저장하고, 요약 필드가 그대로 복원되어야 한다.
	path := filepath.Join(t.TempDir(), "nested", "run_history.json")
	s := NewHistoryStore(path)

	entry := types.RunHistoryEntry{
		ID:      "run-1",
		Source:  "/takeout",
		Status:  types.RunStatusCanceled,
		Summary: types.RunSummary{Filed: 3, Duplicates: 2},
	}
	if err := s.Add(entry); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	history, err := s.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	got := history.Entries[0]
	if got.ID != "run-1" || got.Status != types.RunStatusCanceled || got.Summary.Filed != 3 || got.Summary.Duplicates != 2 {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if history.UpdatedAt.IsZero() {
		t.Fatal("expected updated_at to be set")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected tmp file to be gone, got %v", err)
	}
}

// TestHistoryStore_SaveReturnsRenameError는 rename 실패를 검증합니다.
func TestHistoryStore_SaveReturnsRenameError(t *testing.T) {
	// 대상 파일명이 디렉터리면 rename 단계에서 실패해야 한다.
	path := filepath.Join(t.TempDir(), "run_history.json")
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("failed to create target dir: %v", err)
	}

	if err := NewHistoryStore(path).Save(&types.RunHistory{}); err == nil {
		t.Fatal("expected rename error")
	}
}

// TestHistoryStore_LoadReturnsReadAndUnmarshalErrors는 로드 에러 전달을 검증합니다.
func TestHistoryStore_LoadReturnsReadAndUnmarshalErrors(t *testing.T) {
	// read 에러와 unmarshal 에러를 각각 반환하고, Add도 로드 실패를 전달해야 한다.
	t.Run("read_error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run_history.json")
		if err := os.MkdirAll(path, 0755); err != nil {
			t.Fatalf("failed to create dir path: %v", err)
		}

		s := NewHistoryStore(path)
		if _, err := s.Load(); err == nil {
			t.Fatal("expected read error")
		}
		if err := s.Add(types.RunHistoryEntry{ID: "x"}); err == nil {
			t.Fatal("expected add load error")
		}
	})

	t.Run("unmarshal_error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run_history.json")
		if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
			t.Fatalf("failed to write broken history: %v", err)
		}

		if _, err := NewHistoryStore(path).Load(); err == nil {
			t.Fatal("expected unmarshal error")
		}
	})
}
