package observer

import "testing"

func TestMarkSeenTxFirstThenDuplicate(t *testing.T) {
	hash := "abc123"
	if !MarkSeenTx(hash) {
		t.Fatal("first sighting should return true")
	}
	if MarkSeenTx(hash) {
		t.Fatal("second sighting of the same hash should return false")
	}
}

func TestMarkSeenBlockFirstThenDuplicate(t *testing.T) {
	hash := "def456"
	if !MarkSeenBlock(hash) {
		t.Fatal("first sighting should return true")
	}
	if MarkSeenBlock(hash) {
		t.Fatal("second sighting of the same hash should return false")
	}
}

func TestCleanupSeenMapsDoesNotPanic(t *testing.T) {
	MarkSeenTx("some-hash-for-cleanup-test")
	CleanupSeenMaps()
}
