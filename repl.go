package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/delgado-dev/chordvault/facade"
)

// runREPL reads commands from stdin and drives them through the façade,
// the interactive front end spec §4.6's commands are meant to sit behind.
// Mirrors GoVaultFS main.go's own driver loop in spirit (one long-running
// main goroutine dispatching onto the running FileServer), adapted from a
// hardcoded demo scenario to an open-ended command line.
func runREPL(f *facade.Facade, log *zap.SugaredLogger) {
	notify := func(id, message string) {
		fmt.Printf("[%s] %s\n", id, message)
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("chordvault ready. commands: BACKUP <file> <r> | RESTORE <file> | DELETE <file> | RECLAIM <bytes> | STATE | CHORD | LOOKUP <key> | EXIT")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToUpper(fields[0])
		args := fields[1:]

		switch cmd {
		case "BACKUP":
			if len(args) != 2 {
				fmt.Println("usage: BACKUP <file> <replicationDegree>")
				continue
			}
			r, err := strconv.Atoi(args[1])
			if err != nil {
				fmt.Println("replicationDegree must be an integer")
				continue
			}
			id := f.Backup(args[0], r, notify)
			fmt.Printf("submitted %s\n", id)

		case "RESTORE":
			if len(args) != 1 {
				fmt.Println("usage: RESTORE <file>")
				continue
			}
			id := f.Restore(args[0], notify)
			fmt.Printf("submitted %s\n", id)

		case "DELETE":
			if len(args) != 1 {
				fmt.Println("usage: DELETE <file>")
				continue
			}
			id := f.Delete(args[0], notify)
			fmt.Printf("submitted %s\n", id)

		case "RECLAIM":
			if len(args) != 1 {
				fmt.Println("usage: RECLAIM <bytes> (0 reclaims everything)")
				continue
			}
			n, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				fmt.Println("bytes must be an integer")
				continue
			}
			id := f.Reclaim(n, notify)
			fmt.Printf("submitted %s\n", id)

		case "STATE":
			out, err := f.State()
			if err != nil {
				fmt.Printf("STATE failed: %v\n", err)
				continue
			}
			fmt.Print(out)

		case "CHORD":
			fmt.Print(f.Chord())

		case "LOOKUP":
			if len(args) != 1 {
				fmt.Println("usage: LOOKUP <key>")
				continue
			}
			out, err := f.Lookup(args[0])
			if err != nil {
				fmt.Printf("LOOKUP failed: %v\n", err)
				continue
			}
			fmt.Println(out)

		case "EXIT", "QUIT":
			return

		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Warnw("stdin scanner stopped", "err", err)
	}
}
