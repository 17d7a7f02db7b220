package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/gurkebaui/sun/internal/config"
	"github.com/gurkebaui/sun/internal/logx"
	"github.com/gurkebaui/sun/internal/sim"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// #region main

func main() {
	scriptPath := flag.String("script", "", "path to simulation script JSON (script mode)")
	ticks := flag.Int("ticks", 0, "run N passive ticks (free-run mode)")
	pressure := flag.Float64("pressure", 0, "starting sleep pressure (free-run mode)")
	arousal := flag.Float64("arousal", 0, "starting arousal (free-run mode)")
	envFile := flag.String("env", ".env", "env file with tuning constants")
	all := flag.Bool("all", false, "print every tick, not only events")
	jsonOut := flag.Bool("json", false, "output records and summary as JSON")
	flag.Parse()

	if (*scriptPath == "" && *ticks == 0) || (*scriptPath != "" && *ticks != 0) {
		fmt.Fprintln(os.Stderr, "usage: simulate --script path/to/script.json")
		fmt.Fprintln(os.Stderr, "       simulate --ticks N [--pressure P] [--arousal X]")
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logx.Init(logx.Options{Environment: logx.ParseEnvironment(cfg.Env), Level: "warn"})

	var script *sim.Script
	if *scriptPath != "" {
		script, err = sim.LoadScript(*scriptPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load script: %v\n", err)
			os.Exit(2)
		}
	} else {
		script = &sim.Script{
			Description: fmt.Sprintf("free run of %d ticks", *ticks),
			Start:       sim.Start{Arousal: *arousal, SleepPressure: *pressure},
			Steps:       []sim.Step{{Label: "free", Ticks: *ticks}},
		}
	}

	opts := sim.DefaultOptions()
	opts.Agent = cfg.Agent
	opts.Regulator = cfg.Regulator
	opts.Vigilance = cfg.Vigilance

	records, sum, err := sim.Run(context.Background(), script, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulate: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		data, err := json.MarshalIndent(map[string]any{"records": records, "summary": sum}, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal json: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
	} else {
		if script.Description != "" {
			fmt.Printf("%s\n\n", script.Description)
		}
		printRecords(records, *all)
		printSummary(sum)
	}

	if problems := script.Expect.Check(sum); len(problems) > 0 {
		fmt.Printf("\nExpectations: %d diverge\n", len(problems))
		for _, p := range problems {
			fmt.Printf("  DIFF %s\n", p)
		}
		os.Exit(1)
	} else if script.Expect != nil {
		fmt.Println("\nExpectations: OK")
	}
}

// #endregion main

// #region output

func printRecords(records []sim.TickRecord, all bool) {
	fmt.Printf("%-12s| %6s| %8s| %8s| %8s| %-11s| %s\n", "Step", "Tick", "Arousal", "Valence", "Pressure", "Event", "Bonus")
	fmt.Printf("%-12s+%7s+%9s+%9s+%9s+%-12s+%s\n",
		"------------", "-------", "---------", "---------", "---------", "------------", "-------")
	for _, r := range records {
		if !all && r.Event == "" {
			continue
		}
		event := r.Event
		if event == "" && r.Sleeping {
			event = "zzz"
		}
		bonus := ""
		if r.Event == sim.EventWake || r.Event == sim.EventForceWake {
			bonus = fmt.Sprintf("%.2f", r.WakeBonus)
		}
		fmt.Printf("%-12s| %6d| %8.2f| %8.2f| %8.2f| %-11s| %s\n",
			truncate(r.Step, 12), r.Tick, r.Arousal, r.Valence, r.Pressure, event, bonus)
	}
}

func printSummary(s sim.Summary) {
	bonuses := make([]string, len(s.WakeBonuses))
	for i, b := range s.WakeBonuses {
		bonuses[i] = fmt.Sprintf("%.2f", b)
	}
	fmt.Printf("\nSummary: %d ticks, %d sleep episodes, %d natural wakes, %d forced wakes, %d alarms, %d errors\n",
		s.Ticks, s.SleepEpisodes, s.NaturalWakes, s.ForcedWakes, s.Alarms, s.Errors)
	fmt.Printf("         max pressure %.2f, %d memories, ends asleep: %v\n", s.MaxPressure, s.Memories, s.EndsAsleep)
	if len(bonuses) > 0 {
		fmt.Printf("         wake bonuses: %s\n", strings.Join(bonuses, ", "))
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// #endregion output
