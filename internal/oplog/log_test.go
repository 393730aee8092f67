package oplog

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestAddAndMerge(t *testing.T) {
	sub := New()
	sub.Add(KindSave, 0, "0000000000000001")
	sub.Add(KindSaveInsert, 1)

	log := New()
	log.Add(KindEdit, 0)
	log.Add(KindEditFetching, -3, "ignored depth")
	log.Merge(sub, 1)
	log.Merge(nil, 1)
	log.Merge(log, 1)
	log.Add(KindEditSuccess, 0)

	entries := log.Entries()
	wantKinds := []Kind{KindEdit, KindEditFetching, KindSave, KindSaveInsert, KindEditSuccess}
	if got := log.Kinds(); !reflect.DeepEqual(got, wantKinds) {
		t.Fatalf("Expected kinds %v, got %v", wantKinds, got)
	}
	wantDepths := []int{0, 0, 1, 2, 0}
	for i, e := range entries {
		if e.Depth != wantDepths[i] {
			t.Errorf("Entry %d: expected depth %d, got %d", i, wantDepths[i], e.Depth)
		}
	}
	if entries[2].Message() != "Saving key 0000000000000001" {
		t.Errorf("Unexpected message %q", entries[2].Message())
	}

	// Merging copies: later changes to sub do not leak in.
	sub.Add(KindSaveSuccess, 0)
	if log.Len() != 5 {
		t.Errorf("Expected 5 entries after changing sub, got %d", log.Len())
	}
	if !log.Contains(KindSaveInsert) || log.Contains(KindSaveSuccess) {
		t.Error("Contains reported the wrong kinds")
	}
	if last, ok := log.Last(); !ok || last.Kind != KindEditSuccess {
		t.Errorf("Expected last entry edit.success, got %+v", last)
	}
}

func TestNilLog(t *testing.T) {
	var log *Log
	if log.Len() != 0 || log.Entries() != nil || log.Kinds() != nil || log.Contains(KindEdit) || log.Clone() != nil {
		t.Error("Expected nil log to behave as empty")
	}
	if _, ok := log.Last(); ok {
		t.Error("Expected no last entry")
	}
}

func TestClone(t *testing.T) {
	log := New()
	log.Add(KindEditFetching, 1, "A")

	clone := log.Clone()
	clone.Add(KindEditSuccess, 0)
	clone.entries[0].Params[0] = "B"

	if log.Len() != 1 || log.Entries()[0].Params[0] != "A" {
		t.Error("Expected clone to be independent")
	}
	if clone.ID != log.ID {
		t.Error("Expected clone to keep the log id")
	}
}

func TestKinds(t *testing.T) {
	for k, info := range kinds {
		if KindByName(info.name) != k {
			t.Errorf("KindByName(%q) did not round trip", info.name)
		}
	}
	if KindByName("no.such.kind") != KindUnknown {
		t.Error("Expected unknown names to map to KindUnknown")
	}
	if Kind(9999).Name() != "unknown" || Kind(9999).Level() != LevelDebug {
		t.Error("Expected unregistered kinds to render as unknown")
	}
	if KindEditErrorKeyNotFound.Level() != LevelError || KindEditSuccess.Level() != LevelOK {
		t.Error("Unexpected levels")
	}
	if got := KindEditErrorInvalid.Format([]string{"empty user id"}); got != "Invalid change-set: empty user id" {
		t.Errorf("Unexpected format %q", got)
	}
}

func TestJSON(t *testing.T) {
	log := New()
	log.Add(KindEdit, 0)
	log.Add(KindEditFetching, 1, "0000000000000001")

	data, err := json.Marshal(log)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw struct {
		Entries []struct {
			Kind string `json:"kind"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if raw.Entries[1].Kind != "edit.fetching" {
		t.Errorf("Expected kinds to serialize by name, got %q", raw.Entries[1].Kind)
	}

	var restored Log
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if restored.ID != log.ID || !reflect.DeepEqual(restored.Entries(), log.Entries()) {
		t.Errorf("Expected restored log to match, got %+v", restored.Entries())
	}
}
