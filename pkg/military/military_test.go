package military

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testDatabase = `{
	"AE01CE": ["99-0401", "C17", "10", "Boeing C-17A Globemaster III"],
	"A12345": ["N12345", "B738", "00", "Boeing 737-800"],
	"43C6E2": ["ZK-533", "HAWK", "10", "BAe Hawk T2"],
	"ABCDEF": ["N999", "C172"]
}`

func TestLoadFiltersMilitaryFlag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testDatabase)
	}))
	defer server.Close()

	db := New(server.URL)
	if err := db.Load(context.Background()); err != nil {
		t.Fatalf("Expected load to succeed, got: %v", err)
	}

	if db.Size() != 2 {
		t.Errorf("Expected 2 military aircraft, got %d", db.Size())
	}
	if !db.IsMilitary("AE01CE") {
		t.Error("Expected AE01CE to be military")
	}
	if db.IsMilitary("A12345") {
		t.Error("Expected civilian A12345 to not be military")
	}
	if db.IsMilitary("ABCDEF") {
		t.Error("Expected short entry to be skipped")
	}
}

func TestLookupCaseInsensitive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testDatabase)
	}))
	defer server.Close()

	db := New(server.URL)
	if err := db.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Track ids are canonicalized lowercase; the database keys uppercase.
	entry, ok := db.Lookup("ae01ce")
	if !ok {
		t.Fatal("Expected lowercase lookup to match")
	}
	if entry.Type != "C17" {
		t.Errorf("Expected type C17, got %q", entry.Type)
	}
	if !db.IsMilitary(" ae01ce ") {
		t.Error("Expected whitespace-tolerant lookup")
	}
}

func TestLoadFailureDegradesToEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	db := New(server.URL)
	if err := db.Load(context.Background()); err == nil {
		t.Fatal("Expected load error")
	}

	// Lookups stay usable.
	if db.IsMilitary("AE01CE") {
		t.Error("Expected empty database after failed load")
	}
	if db.Size() != 0 {
		t.Errorf("Expected size 0, got %d", db.Size())
	}
}

func TestLoadUsesCache(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, testDatabase)
	}))
	defer server.Close()

	db := New(server.URL)
	if err := db.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := db.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if requests != 1 {
		t.Errorf("Expected second load to hit the 24h cache, got %d requests", requests)
	}
}

func TestIsMilitaryBeforeLoad(t *testing.T) {
	db := New("http://unused")
	if db.IsMilitary("AE01CE") {
		t.Error("Expected false before any load")
	}
}
