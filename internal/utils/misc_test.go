package utils

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func TestSHA256ofFile(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "abc.txt")
	if err := os.WriteFile(fpath, []byte("Hello world!"), 0o600); err != nil {
		t.Fatal(err)
	}

	sum, err := SHA256ofFile(fpath)
	if err != nil {
		t.Fatalf("SHA256ofFile failed: %v", err)
	}
	if sum != "c0535e4be2b79ffd93291305436bf889314e4a3faec05ecffcbb7df31ad9e51a" {
		t.Errorf("SHA256ofFile = %s", sum)
	}

	if _, err := SHA256ofFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("SHA256ofFile should fail for a missing file")
	}
}

func TestForEachAsync(t *testing.T) {
	var wg sync.WaitGroup
	var total atomic.Int64

	ForEachAsync([]int64{1, 2, 3, 4}, &wg, func(v int64) {
		total.Add(v)
	})
	wg.Wait()

	if total.Load() != 10 {
		t.Errorf("total = %d; want 10", total.Load())
	}
}

func TestRandChoiceSingle(t *testing.T) {
	if got := RandChoice([]string{"only"}); got != "only" {
		t.Errorf("RandChoice = %q; want only", got)
	}
}
