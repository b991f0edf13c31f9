package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pterm/pterm"

	"minicar-nav/wall_nav"
)

func main() {
	var configPath string
	var showSteps bool
	var preset string
	flag.StringVar(&configPath, "config", "", "Path to JSON or YAML config (defaults when empty).")
	flag.StringVar(&preset, "preset", "default", "Controller tuning the config file starts from (default or cautious).")
	flag.BoolVar(&showSteps, "steps", false, "Print every replayed cycle.")
	flag.Parse()

	if flag.NArg() != 1 {
		pterm.Error.Println("usage: nav-replay [-config file] [-preset name] [-steps] <driving_log.csv>")
		os.Exit(2)
	}
	logPath := flag.Arg(0)

	cfg := wall_nav.DefaultAppConfig()
	controller, err := wall_nav.ControllerPreset(preset)
	if err != nil {
		pterm.Error.Printf("Bad preset: %v\n", err)
		os.Exit(2)
	}
	cfg.Controller = controller
	if configPath != "" {
		loaded, err := wall_nav.LoadConfigOnto(configPath, cfg)
		if err != nil {
			pterm.Error.Printf("Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	f, err := os.Open(logPath)
	if err != nil {
		pterm.Error.Printf("Failed to open log: %v\n", err)
		os.Exit(1)
	}
	rows, err := wall_nav.ReadDriveLog(f)
	f.Close()
	if err != nil {
		pterm.Error.Printf("Failed to read log: %v\n", err)
		os.Exit(1)
	}

	res, err := wall_nav.Replay(rows, cfg.Controller)
	if err != nil {
		pterm.Error.Printf("Replay failed: %v\n", err)
		os.Exit(1)
	}

	render(logPath, res, showSteps)
}

func render(path string, res wall_nav.ReplayResult, showSteps bool) {
	pterm.DefaultHeader.WithFullWidth().Println("Drive log replay")
	pterm.Info.Printf("%s: %d cycles over %.2fs\n", path, len(res.Steps), res.Duration.Seconds())
	if len(res.Steps) == 0 {
		pterm.Warning.Println("Log has no cycles.")
		return
	}

	pterm.DefaultSection.Println("Regimes")
	regimes := pterm.TableData{{"Regime", "Cycles", "Seconds", "Share"}}
	for _, s := range res.Summary {
		regimes = append(regimes, []string{
			s.Regime.String(),
			fmt.Sprintf("%d", s.Cycles),
			fmt.Sprintf("%.2f", s.Seconds),
			fmt.Sprintf("%.0f%%", 100*float64(s.Cycles)/float64(len(res.Steps))),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(regimes).Render()

	pterm.DefaultSection.Println("Transitions")
	if len(res.Transitions) == 0 {
		pterm.Info.Println("No regime changes.")
	} else {
		transitions := pterm.TableData{{"At (s)", "From", "To", "After (s)"}}
		for _, t := range res.Transitions {
			transitions = append(transitions, []string{
				fmt.Sprintf("%.2f", res.LogTime(t)),
				t.From.String(),
				t.To.String(),
				fmt.Sprintf("%.2f", t.After.Seconds()),
			})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(transitions).Render()
	}

	if showSteps {
		pterm.DefaultSection.Println("Cycles")
		steps := pterm.TableData{{"t", "Sensors", "Recorded", "Replayed", "Steering", "Throttle", "Flags"}}
		for _, s := range res.Steps {
			steps = append(steps, []string{
				fmt.Sprintf("%.2f", s.Row.T),
				s.Row.Snapshot.String(),
				s.Row.State,
				s.Command.Regime.String(),
				fmt.Sprintf("%+.3f", s.Command.Steering),
				fmt.Sprintf("%+.2f", s.Command.Throttle),
				s.Flags,
			})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(steps).Render()
	}

	pterm.Info.Printf("Largest steering step: %.3f\n", res.MaxSteerStep)
	if res.Disagreements > 0 {
		pterm.Warning.Printf("%d cycles differ from the recorded state.\n", res.Disagreements)
	} else {
		pterm.Success.Println("Replayed regimes match the recorded states.")
	}
}
