// Command btreebench is the out-of-scope micro-benchmark harness spec §1
// mentions as an external collaborator: it compares this module's B-tree
// against SQLite (via mattn/go-sqlite3) and a plain Go map on insert and
// lookup workloads. Grounded on tur/tests/benchmark_test.go,
// adapted from *testing.B timings to a standalone CLI so the comparison can
// be run without `go test` and never links go-sqlite3 into the library
// itself.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/libbtreego/libbtree/pkg/btree"
	"github.com/libbtreego/libbtree/pkg/memstore"
)

func main() {
	n := flag.Int("n", 10000, "number of records")
	order := flag.Int("order", 64, "b-tree order")
	flag.Parse()

	keys := rand.New(rand.NewSource(1)).Perm(*n)

	fmt.Printf("btreebench: n=%d order=%d\n\n", *n, *order)

	runBtree(*order, keys)
	runMap(keys)
	if err := runSQLite(keys); err != nil {
		fmt.Fprintf(os.Stderr, "sqlite benchmark skipped: %v\n", err)
	}
}

func cmpInt(elem, key int, _ any) int { return elem - key }

func runBtree(order int, keys []int) {
	store := memstore.New[int](order, false)
	tree, err := btree.New[int](store, cmpInt, btree.MultiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "btree.New: %v\n", err)
		return
	}

	start := time.Now()
	for _, k := range keys {
		if err := tree.Insert(k); err != nil {
			fmt.Fprintf(os.Stderr, "insert %d: %v\n", k, err)
			return
		}
	}
	insertElapsed := time.Since(start)

	start = time.Now()
	for _, k := range keys {
		if _, err := tree.Get(k); err != nil {
			fmt.Fprintf(os.Stderr, "get %d: %v\n", k, err)
			return
		}
	}
	getElapsed := time.Since(start)

	fmt.Printf("btree:  insert=%v get=%v\n", insertElapsed, getElapsed)
}

func runMap(keys []int) {
	m := make(map[int]int, len(keys))

	start := time.Now()
	for _, k := range keys {
		m[k] = k
	}
	insertElapsed := time.Since(start)

	start = time.Now()
	for _, k := range keys {
		_ = m[k]
	}
	getElapsed := time.Since(start)

	fmt.Printf("map:    insert=%v get=%v\n", insertElapsed, getElapsed)
}

func runSQLite(keys []int) error {
	dir, err := os.MkdirTemp("", "btreebench-sqlite")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	db, err := sql.Open("sqlite3", filepath.Join(dir, "bench.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec("CREATE TABLE bench (id INTEGER PRIMARY KEY, value INTEGER)"); err != nil {
		return err
	}

	start := time.Now()
	for _, k := range keys {
		if _, err := db.Exec("INSERT INTO bench VALUES (?, ?)", k, k); err != nil {
			return err
		}
	}
	insertElapsed := time.Since(start)

	start = time.Now()
	for _, k := range keys {
		row := db.QueryRow("SELECT value FROM bench WHERE id = ?", k)
		var v int
		if err := row.Scan(&v); err != nil {
			return err
		}
	}
	getElapsed := time.Since(start)

	fmt.Printf("sqlite: insert=%v get=%v\n", insertElapsed, getElapsed)
	return nil
}
