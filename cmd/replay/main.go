package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dustin/go-humanize"

	"voxelnav.ai/internal/agent"
	persistlog "voxelnav.ai/internal/persistence/log"
	"voxelnav.ai/internal/sim/world"
)

func main() {
	var (
		tracesDir = flag.String("traces", "", "bot traces dir containing trace-*.jsonl.zst")
		eventsDir = flag.String("events", "", "world events dir containing events-*.jsonl.zst")
		fromTick  = flag.Uint64("from_tick", 0, "ignore entries before tick (optional)")
		toTick    = flag.Uint64("to_tick", 0, "ignore entries after tick (optional)")
	)
	flag.Parse()

	if *tracesDir == "" && *eventsDir == "" {
		fmt.Fprintln(os.Stderr, "missing -traces or -events")
		os.Exit(2)
	}
	window := tickWindow{from: *fromTick, to: *toTick}

	if *tracesDir != "" {
		s := newTraceSummary()
		if err := readAll(*tracesDir, "trace", func(line []byte) error {
			var e agent.TraceEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			if window.contains(e.Tick) {
				s.add(e)
			}
			return nil
		}); err != nil {
			fmt.Fprintln(os.Stderr, "traces:", err)
			os.Exit(1)
		}
		s.print(os.Stdout)
	}

	if *eventsDir != "" {
		s := newEventSummary()
		if err := readAll(*eventsDir, "events", func(line []byte) error {
			var e world.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			if window.contains(e.Tick) {
				s.add(e)
			}
			return nil
		}); err != nil {
			fmt.Fprintln(os.Stderr, "events:", err)
			os.Exit(1)
		}
		s.print(os.Stdout)
	}
}

func readAll(dir, prefix string, fn func([]byte) error) error {
	files, err := persistlog.ListFiles(dir, prefix)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no %s files found in %s", prefix, dir)
	}
	for _, path := range files {
		if err := persistlog.ReadJSONL(path, fn); err != nil {
			return err
		}
	}
	return nil
}

type tickWindow struct{ from, to uint64 }

func (w tickWindow) contains(tick uint64) bool {
	return tick >= w.from && (w.to == 0 || tick <= w.to)
}

type traceSummary struct {
	entries     int
	first, last uint64
	expansions  int
	events      map[string]int
	results     map[string]int
	goals       int
	lastGoal    [3]int
}

func newTraceSummary() *traceSummary {
	return &traceSummary{events: map[string]int{}, results: map[string]int{}}
}

func (s *traceSummary) add(e agent.TraceEntry) {
	if s.entries == 0 || e.Tick < s.first {
		s.first = e.Tick
	}
	if e.Tick > s.last {
		s.last = e.Tick
	}
	s.entries++
	s.expansions += e.Expansions
	for _, ev := range e.Events {
		s.events[ev]++
	}
	if e.Result == "SUCCESS" || e.Result == "FAILED" {
		key := e.Result
		if e.Reason != "" {
			key += "/" + e.Reason
		}
		s.results[key]++
	}
	if e.Goal != nil && (s.goals == 0 || *e.Goal != s.lastGoal) {
		s.goals++
		s.lastGoal = *e.Goal
	}
}

func (s *traceSummary) print(w io.Writer) {
	fmt.Fprintf(w, "traces: %s entries, ticks %d..%d, %s goals, %s expansions\n",
		humanize.Comma(int64(s.entries)), s.first, s.last, humanize.Comma(int64(s.goals)), humanize.Comma(int64(s.expansions)))
	printCounts(w, "event", s.events)
	printCounts(w, "result", s.results)
}

type eventSummary struct {
	ticks       int
	first, last uint64
	joins       int
	leaves      int
	chat        int
	names       map[string]int
	peakAgents  int
}

func newEventSummary() *eventSummary {
	return &eventSummary{names: map[string]int{}}
}

func (s *eventSummary) add(e world.TickLogEntry) {
	if s.ticks == 0 || e.Tick < s.first {
		s.first = e.Tick
	}
	if e.Tick > s.last {
		s.last = e.Tick
	}
	s.ticks++
	s.joins += len(e.Joins)
	s.leaves += len(e.Leaves)
	s.chat += len(e.Chat)
	for _, j := range e.Joins {
		s.names[j.Name]++
	}
	if len(e.Agents) > s.peakAgents {
		s.peakAgents = len(e.Agents)
	}
}

func (s *eventSummary) print(w io.Writer) {
	fmt.Fprintf(w, "events: %s ticks (%d..%d), %s joins, %s leaves, %s chat lines, peak %d agents\n",
		humanize.Comma(int64(s.ticks)), s.first, s.last,
		humanize.Comma(int64(s.joins)), humanize.Comma(int64(s.leaves)), humanize.Comma(int64(s.chat)), s.peakAgents)
	printCounts(w, "joined", s.names)
}

func printCounts(w io.Writer, label string, m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		fmt.Fprintf(w, "  %-8s %-24s %s\n", label, k, humanize.Comma(int64(m[k])))
	}
}
