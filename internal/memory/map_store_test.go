package memory_test

import (
	"encoding/json"
	"testing"

	"github.com/ShayCichocki/crewline/internal/memory"
	"github.com/ShayCichocki/crewline/internal/memory/memorytest"
)

func TestMapStore_Contract(t *testing.T) {
	memorytest.RunStoreContract(t, func(t *testing.T) memory.Store {
		return memory.NewMapStore()
	})
}

func TestMapStore_IncrementDecodedNumbers(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int64
	}{
		{"float64 from json", float64(4), 5},
		{"json.Number", json.Number("41"), 42},
		{"int", 9, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memory.NewMapStore()
			s.Set("n", tt.value)
			got, err := s.Increment("n", 1)
			if err != nil {
				t.Fatalf("Increment() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Increment() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMapStore_GetListIsCopy(t *testing.T) {
	s := memory.NewMapStore()
	s.AppendToList("l", "a")
	list := s.GetList("l")
	list[0] = "mutated"
	if got := s.GetList("l")[0]; got != "a" {
		t.Errorf("GetList()[0] = %v, want a", got)
	}
}
