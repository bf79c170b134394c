package state

import (
	"math/big"
	"testing"

	"dexcore/storage"
)

type storedRecord struct {
	Name   string
	Amount *big.Int
}

func TestKVReadWrite(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	if err := mgr.KVPut([]byte("pair/reserves"), &storedRecord{Name: "A", Amount: big.NewInt(42)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	var out storedRecord
	ok, err := mgr.KVGet([]byte("pair/reserves"), &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out.Name != "A" || out.Amount.Int64() != 42 {
		t.Fatalf("unexpected record %+v", out)
	}

	ok, err = mgr.KVGet([]byte("pair/missing"), &out)
	if err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}

	if err := mgr.KVDelete([]byte("pair/reserves")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	has, err := mgr.KVHas([]byte("pair/reserves"))
	if err != nil || has {
		t.Fatalf("expected key removed, has=%v err=%v", has, err)
	}
}

func TestKVRejectsEmptyKey(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	if err := mgr.KVPut(nil, 1); err == nil {
		t.Fatalf("expected empty key error")
	}
}
