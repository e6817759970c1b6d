// Command memtabledemo drives an in-process Memtable through
// put/delete/get/scan subcommands, without the (out-of-scope) WAL or
// on-disk table path behind it. Each invocation runs exactly one
// subcommand against a fresh, empty Memtable; nothing is kept between
// invocations.
package main

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"

	"memtable-core/memtable"
)

// session holds one demo process's memtable plus the monotonically
// increasing sequence counter every Add needs.
type session struct {
	mem *memtable.Memtable
	seq atomic.Uint64
}

func newSession() *session {
	m := memtable.New(nil)
	m.Ref()
	return &session{mem: m}
}

func (s *session) nextSeq() uint64 { return s.seq.Add(1) }

func main() {
	s := newSession()
	defer s.mem.Unref()

	root := &cobra.Command{
		Use:   "memtabledemo",
		Short: "Exercise the memtable write buffer interactively",
	}

	root.AddCommand(
		putCmd(s),
		deleteCmd(s),
		getCmd(s),
		scanCmd(s),
	)

	if err := root.Execute(); err != nil {
		log.Fatalf("memtabledemo: %v", err)
	}
}

func putCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "put KEY VALUE",
		Short: "Insert or overwrite a key",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			s.mem.Add(s.nextSeq(), memtable.TypeValue, []byte(args[0]), []byte(args[1]))
			fmt.Fprintf(os.Stdout, "put %q = %q\n", args[0], args[1])
		},
	}
}

func deleteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY",
		Short: "Mark a key deleted (tombstone)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s.mem.Add(s.nextSeq(), memtable.TypeDeletion, []byte(args[0]), nil)
			fmt.Fprintf(os.Stdout, "deleted %q\n", args[0])
		},
	}
}

func getCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Look up the newest visible value for a key",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			lk := memtable.NewLookupKey([]byte(args[0]), s.seq.Load())
			value, status, found := s.mem.Get(lk)
			switch {
			case !found:
				fmt.Fprintf(os.Stdout, "%q: not present\n", args[0])
			case status.IsNotFound():
				fmt.Fprintf(os.Stdout, "%q: deleted\n", args[0])
			default:
				fmt.Fprintf(os.Stdout, "%q = %q\n", args[0], value)
			}
		},
	}
}

func scanCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Print every live (non-tombstone) entry in key order",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			it := s.mem.NewIterator()
			lastKey := ""
			first := true
			for it.SeekToFirst(); it.Valid(); it.Next() {
				uk := string(it.UserKey())
				if !first && uk == lastKey {
					// A lower-sequence, older version of a key already
					// reported — skip it, same as a real merging view
					// would.
					continue
				}
				first = false
				lastKey = uk
				if it.Type() == memtable.TypeDeletion {
					continue
				}
				fmt.Fprintf(os.Stdout, "%s = %s\n", uk, it.Value())
			}
			fmt.Fprintf(os.Stdout, "approximate memory usage: %d bytes\n", s.mem.ApproximateMemoryUsage())
		},
	}
}
