package table

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meesho/BharatMLStack/shmstore/internal/hash"
	"github.com/Meesho/BharatMLStack/shmstore/internal/layout"
)

func newTable(t *testing.T, maxKeys uint64) *Table {
	t.Helper()
	mem := make([]byte, layout.SegmentSize(maxKeys))
	layout.HeaderOf(mem).Init(maxKeys)
	return New(mem)
}

// collidingKeys returns n distinct keys whose probe sequences all start at
// the same slot of a maxKeys-sized table.
func collidingKeys(t *testing.T, maxKeys uint64, n int) []string {
	t.Helper()
	target := uint64(hash.Sum32String("seed")) % maxKeys
	keys := make([]string, 0, n)
	for i := 0; len(keys) < n; i++ {
		k := fmt.Sprintf("ck%d", i)
		if uint64(hash.Sum32String(k))%maxKeys == target {
			keys = append(keys, k)
		}
		require.Less(t, i, 1_000_000, "could not find colliding keys")
	}
	return keys
}

func TestSetGetRoundtrip(t *testing.T) {
	tbl := newTable(t, 16)

	require.True(t, tbl.Set("alpha", []byte("one")))
	require.True(t, tbl.Set("beta", []byte("two")))

	v, ok := tbl.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, []byte("one"), v)

	v, ok = tbl.Get("beta")
	require.True(t, ok)
	assert.Equal(t, []byte("two"), v)

	_, ok = tbl.Get("gamma")
	assert.False(t, ok)

	assert.True(t, tbl.Has("alpha"))
	assert.False(t, tbl.Has("gamma"))
	assert.Equal(t, uint64(2), tbl.Size())
}

func TestEmptyKeyAndValue(t *testing.T) {
	tbl := newTable(t, 4)

	require.True(t, tbl.Set("", nil))
	v, ok := tbl.Get("")
	require.True(t, ok)
	assert.Empty(t, v)
	assert.Equal(t, uint64(1), tbl.Size())
}

func TestOversizeRejected(t *testing.T) {
	tbl := newTable(t, 8)
	require.True(t, tbl.Set("present", []byte("v")))

	longKey := string(make([]byte, layout.MaxKeyLen+1))
	longValue := make([]byte, layout.MaxValueLen+1)

	assert.False(t, tbl.Set(longKey, []byte("v")))
	assert.False(t, tbl.Set("k", longValue))
	_, ok := tbl.Get(longKey)
	assert.False(t, ok)
	assert.False(t, tbl.Has(longKey))
	assert.False(t, tbl.Delete(longKey))

	// A rejected operation leaves the table untouched.
	assert.Equal(t, uint64(1), tbl.Size())
	assert.Equal(t, []string{"present"}, tbl.Keys())
}

func TestBoundarySizesAccepted(t *testing.T) {
	tbl := newTable(t, 4)

	key := string(makeBytes(layout.MaxKeyLen))
	value := makeBytes(layout.MaxValueLen)

	require.True(t, tbl.Set(key, value))
	v, ok := tbl.Get(key)
	require.True(t, ok)
	assert.Equal(t, value, v)
}

func makeBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}

func TestUpdateKeepsSize(t *testing.T) {
	tbl := newTable(t, 8)

	require.True(t, tbl.Set("k", []byte("old")))
	require.True(t, tbl.Set("k", []byte("new")))

	v, ok := tbl.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), v)
	assert.Equal(t, uint64(1), tbl.Size())
	assert.Len(t, tbl.Keys(), 1)
}

// The capacity-5 scenario: fill, overflow, free one slot, retry.
func TestTableFullAndRecovery(t *testing.T) {
	tbl := newTable(t, 5)

	for i := 0; i < 5; i++ {
		require.True(t, tbl.Set(fmt.Sprintf("key%d", i), []byte(fmt.Sprintf("value%d", i))))
	}
	assert.Equal(t, uint64(5), tbl.Size())

	assert.False(t, tbl.Set("key5", []byte("value5")), "insert into a full table must fail")
	assert.Equal(t, uint64(5), tbl.Size())

	require.True(t, tbl.Delete("key0"))
	require.True(t, tbl.Set("key5", []byte("value5")))

	assert.Equal(t, uint64(5), tbl.Size())
	_, ok := tbl.Get("key0")
	assert.False(t, ok)
	v, ok := tbl.Get("key5")
	require.True(t, ok)
	assert.Equal(t, []byte("value5"), v)

	// Updating a key in a full table must still succeed.
	require.True(t, tbl.Set("key5", []byte("value5b")))
	assert.Equal(t, uint64(5), tbl.Size())
}

// Deleting a key in the middle of a probe chain must not strand the keys
// placed behind it.
func TestDeleteHoleInProbeChain(t *testing.T) {
	tbl := newTable(t, 16)
	keys := collidingKeys(t, 16, 3)
	a, b, c := keys[0], keys[1], keys[2]

	require.True(t, tbl.Set(a, []byte("va")))
	require.True(t, tbl.Set(b, []byte("vb")))
	require.True(t, tbl.Set(c, []byte("vc")))

	require.True(t, tbl.Delete(b))

	// c sits behind the hole b left; it must stay reachable.
	v, ok := tbl.Get(c)
	require.True(t, ok)
	assert.Equal(t, []byte("vc"), v)
	assert.True(t, tbl.Has(c))

	assert.False(t, tbl.Has(b))
	_, ok = tbl.Get(b)
	assert.False(t, ok)
	assert.Equal(t, uint64(2), tbl.Size())
}

// Re-setting a key that lives behind a hole must update it in place, not
// create a second live entry in the hole.
func TestNoDuplicateAfterDeleteThenSet(t *testing.T) {
	tbl := newTable(t, 16)
	keys := collidingKeys(t, 16, 3)
	a, b, c := keys[0], keys[1], keys[2]

	require.True(t, tbl.Set(a, []byte("va")))
	require.True(t, tbl.Set(b, []byte("vb")))
	require.True(t, tbl.Set(c, []byte("vc")))
	require.True(t, tbl.Delete(b))

	require.True(t, tbl.Set(c, []byte("vc2")))

	occurrences := 0
	for _, k := range tbl.Keys() {
		if k == c {
			occurrences++
		}
	}
	assert.Equal(t, 1, occurrences, "one key must never occupy two live slots")

	v, ok := tbl.Get(c)
	require.True(t, ok)
	assert.Equal(t, []byte("vc2"), v)
	assert.Equal(t, uint64(2), tbl.Size())

	// Deleting once must fully remove it.
	require.True(t, tbl.Delete(c))
	assert.False(t, tbl.Has(c))
	assert.Equal(t, uint64(1), tbl.Size())
}

// Tombstones left by deletes must be reusable by new keys.
func TestTombstoneReuse(t *testing.T) {
	tbl := newTable(t, 4)

	for i := 0; i < 4; i++ {
		require.True(t, tbl.Set(fmt.Sprintf("k%d", i), []byte("v")))
	}
	for i := 0; i < 4; i++ {
		require.True(t, tbl.Delete(fmt.Sprintf("k%d", i)))
	}
	assert.Equal(t, uint64(0), tbl.Size())

	// Every slot is now a tombstone; fresh inserts must still fit.
	for i := 0; i < 4; i++ {
		require.True(t, tbl.Set(fmt.Sprintf("n%d", i), []byte("v")), "insert %d must reuse a tombstone", i)
	}
	assert.Equal(t, uint64(4), tbl.Size())
}

func TestKeysAndEntries(t *testing.T) {
	tbl := newTable(t, 16)

	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		require.True(t, tbl.Set(k, []byte(v)))
	}

	keys := tbl.Keys()
	assert.Len(t, keys, 3)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, keys)

	got := map[string]string{}
	for _, e := range tbl.Entries() {
		got[e.Key] = string(e.Value)
	}
	assert.Equal(t, want, got)
}

func TestClear(t *testing.T) {
	tbl := newTable(t, 8)

	for i := 0; i < 6; i++ {
		require.True(t, tbl.Set(fmt.Sprintf("k%d", i), []byte("v")))
	}
	require.True(t, tbl.Delete("k3"))

	tbl.Clear()

	assert.Equal(t, uint64(0), tbl.Size())
	assert.Empty(t, tbl.Keys())
	for i := 0; i < 6; i++ {
		_, ok := tbl.Get(fmt.Sprintf("k%d", i))
		assert.False(t, ok)
	}

	// The table is fully usable again, including the slots that were
	// tombstones before the clear.
	for i := 0; i < 8; i++ {
		require.True(t, tbl.Set(fmt.Sprintf("r%d", i), []byte("v")))
	}
	assert.Equal(t, uint64(8), tbl.Size())
}

func TestLastWrite(t *testing.T) {
	tbl := newTable(t, 4)

	before := time.Now().Add(-time.Second)
	require.True(t, tbl.Set("k", []byte("v")))
	after := time.Now().Add(time.Second)

	ts, ok := tbl.LastWrite("k")
	require.True(t, ok)
	assert.True(t, ts.After(before) && ts.Before(after), "timestamp %v outside [%v, %v]", ts, before, after)

	_, ok = tbl.LastWrite("absent")
	assert.False(t, ok)
}

func TestConcurrentDistinctKeys(t *testing.T) {
	const workers = 8
	const perWorker = 64
	tbl := newTable(t, workers*perWorker)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				k := fmt.Sprintf("w%d-k%d", w, i)
				if !tbl.Set(k, []byte(k)) {
					t.Errorf("set %q failed", k)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, uint64(workers*perWorker), tbl.Size())
	assert.Len(t, tbl.Keys(), workers*perWorker)
	for w := 0; w < workers; w++ {
		for i := 0; i < perWorker; i++ {
			k := fmt.Sprintf("w%d-k%d", w, i)
			v, ok := tbl.Get(k)
			require.True(t, ok, "key %q lost", k)
			assert.Equal(t, []byte(k), v)
		}
	}
}

func TestConcurrentMixedOps(t *testing.T) {
	const workers = 8
	const iterations = 500
	tbl := newTable(t, 64)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			key := fmt.Sprintf("shared%d", w%4)
			for i := 0; i < iterations; i++ {
				switch i % 4 {
				case 0:
					tbl.Set(key, []byte(fmt.Sprintf("v%d", i)))
				case 1:
					tbl.Get(key)
				case 2:
					tbl.Has(key)
				case 3:
					tbl.Delete(key)
				}
			}
		}(w)
	}
	wg.Wait()

	// After the dust settles the advisory counter has to agree with a full
	// scan, since no operation is in flight anymore.
	assert.Equal(t, int(tbl.Size()), len(tbl.Keys()))
}

func TestSizeTracksCounter(t *testing.T) {
	tbl := newTable(t, 8)
	assert.Equal(t, uint64(0), tbl.Size())
	tbl.Set("a", []byte("1"))
	assert.Equal(t, uint64(1), tbl.Size())
	tbl.Set("a", []byte("2"))
	assert.Equal(t, uint64(1), tbl.Size())
	tbl.Delete("a")
	assert.Equal(t, uint64(0), tbl.Size())
	tbl.Delete("a")
	assert.Equal(t, uint64(0), tbl.Size())
}

func BenchmarkSet(b *testing.B) {
	mem := make([]byte, layout.SegmentSize(1<<16))
	layout.HeaderOf(mem).Init(1 << 16)
	tbl := New(mem)

	keys := make([]string, 1024)
	for i := range keys {
		keys[i] = fmt.Sprintf("bench-key-%d", i)
	}
	value := makeBytes(128)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tbl.Set(keys[i%len(keys)], value)
	}
}

func BenchmarkGet(b *testing.B) {
	mem := make([]byte, layout.SegmentSize(1<<16))
	layout.HeaderOf(mem).Init(1 << 16)
	tbl := New(mem)

	keys := make([]string, 1024)
	for i := range keys {
		keys[i] = fmt.Sprintf("bench-key-%d", i)
		tbl.Set(keys[i], makeBytes(128))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tbl.Get(keys[i%len(keys)])
	}
}
