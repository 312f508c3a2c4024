package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/Meesho/BharatMLStack/shmstore"
)

const usage = `usage: shmstorecli [-segment name] [-max-keys n] <command> [args]

commands:
  set <key> <value>   insert or update a key
  get <key>           print the value
  del <key>           delete a key
  has <key>           report presence
  keys                list all keys
  entries             list all key=value pairs
  clear               remove every entry
  size                print the occupancy count

The segment is opened with persist=true so it survives between
invocations; separate invocations (and any other process) see the same
data. Remove /dev/shm/shmstore_<name> to drop it.`

func main() {
	segmentName := flag.String("segment", "shmstorecli", "segment name")
	maxKeys := flag.Uint64("max-keys", 1024, "capacity if this invocation creates the segment")
	verbose := flag.Bool("v", false, "log segment lifecycle events")
	flag.Parse()

	if !*verbose {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	store, err := shmstore.Open(shmstore.Config{
		Name:    *segmentName,
		MaxKeys: *maxKeys,
		Persist: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open segment: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := run(store, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(store *shmstore.Store, args []string) error {
	cmd, args := args[0], args[1:]
	switch cmd {
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("usage: set <key> <value>")
		}
		if !store.Set(args[0], []byte(args[1])) {
			return fmt.Errorf("set failed: oversize input or table full (%d/%d)", store.Size(), store.MaxKeys())
		}
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <key>")
		}
		value, ok := store.Get(args[0])
		if !ok {
			return fmt.Errorf("key %q not found", args[0])
		}
		fmt.Println(string(value))
	case "del":
		if len(args) != 1 {
			return fmt.Errorf("usage: del <key>")
		}
		if !store.Delete(args[0]) {
			return fmt.Errorf("key %q not found", args[0])
		}
	case "has":
		if len(args) != 1 {
			return fmt.Errorf("usage: has <key>")
		}
		fmt.Println(store.Has(args[0]))
	case "keys":
		for _, k := range store.Keys() {
			fmt.Println(k)
		}
	case "entries":
		for _, e := range store.Entries() {
			fmt.Printf("%s=%s\n", e.Key, e.Value)
		}
	case "clear":
		store.Clear()
	case "size":
		fmt.Println(store.Size())
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	return nil
}
