// Command solve runs a single optimization from the command line and writes
// the result files under -outdir.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"fleetopt/internal/buildinfo"
	"fleetopt/internal/solver"
	"fleetopt/internal/viz"
)

type params struct {
	n, k, cap int
	seed      int64
	tw        bool
	saTime    time.Duration
	lambdaTW  float64
	muFair    float64
	noLocal   bool
	outdir    string
	plot      bool
	tag       string
	stamp     bool
	outstem   string
	perRunEnv bool
}

func main() {
	_ = godotenv.Load()

	var p params
	flag.IntVar(&p.n, "n", 250, "number of customers")
	flag.IntVar(&p.k, "k", 20, "number of vehicles")
	flag.IntVar(&p.cap, "cap", 100, "vehicle capacity")
	flag.Int64Var(&p.seed, "seed", 42, "instance seed")
	flag.BoolVar(&p.tw, "tw", false, "enable time windows")
	flag.DurationVar(&p.saTime, "sa-time", 20*time.Second, "annealing time budget")
	flag.Float64Var(&p.lambdaTW, "lambda-tw", 0, "time window penalty weight")
	flag.Float64Var(&p.muFair, "mu-fair", 0, "fairness penalty weight")
	flag.BoolVar(&p.noLocal, "no-local", false, "skip local search after savings init")
	flag.StringVar(&p.outdir, "outdir", "results", "output directory")
	flag.BoolVar(&p.plot, "plot", false, "save a route plot SVG")
	flag.StringVar(&p.tag, "tag", "", "label appended to output filenames")
	flag.BoolVar(&p.stamp, "stamp", false, "append timestamp to output filenames")
	flag.StringVar(&p.outstem, "outstem", "", "override filename stem (takes precedence over -tag/-stamp)")
	flag.BoolVar(&p.perRunEnv, "per-run-env", false, "write env_{stem}.json instead of env.json")
	flag.Parse()

	if err := os.MkdirAll(p.outdir, 0o755); err != nil {
		log.Fatalf("mkdir %s: %v", p.outdir, err)
	}
	stem := p.outstem
	if stem == "" {
		stem = buildStem(p)
	}
	writeEnvLog(p, stem)

	start := time.Now()
	in, m, err := solver.Generate(solver.GenSpec{
		N: p.n, Seed: p.seed, Capacity: p.cap, Vehicles: p.k, TimeWindows: p.tw,
	})
	if err != nil {
		log.Fatalf("generate: %v", err)
	}
	in.LambdaTW = p.lambdaTW
	in.MuFair = p.muFair

	routes := solver.ClarkeWright(in, m)
	if !p.noLocal {
		routes, _ = solver.LocalSearch(routes, in, m)
	}
	var stats solver.Stats
	if p.saTime > 0 {
		routes, stats = solver.Anneal(routes, in, m, solver.Options{
			Budget: p.saTime,
			T0:     1.0,
			Alpha:  0.997,
			RNG:    rand.New(rand.NewSource(p.seed)),
		})
		if !p.noLocal {
			routes, _ = solver.LocalSearch(routes, in, m)
		}
	}
	eval := solver.Evaluate(routes, in, m)
	elapsed := time.Since(start)

	result := map[string]any{
		"n": p.n, "k": p.k, "cap": p.cap, "seed": p.seed,
		"tw": p.tw, "saTime": p.saTime.Seconds(),
		"lambdaTw": p.lambdaTW, "muFair": p.muFair,
		"noLocal": p.noLocal, "tag": p.tag, "stamp": p.stamp,
		"cost": eval.Total,
		"costBreakdown": map[string]float64{
			"distance": eval.Distance, "timeWindow": eval.TimeWindow, "fairness": eval.Fairness,
		},
		"unserved":   len(in.Customers) - routes.Customers(),
		"runtimeSec": elapsed.Seconds(),
		"routes":     routes,
		"saStats":    stats,
	}
	jsonPath := filepath.Join(p.outdir, fmt.Sprintf("run_%s.json", stem))
	if err := writeJSONFile(jsonPath, result); err != nil {
		log.Fatalf("write %s: %v", jsonPath, err)
	}
	fmt.Printf("[OK] cost=%.2f runtime=%.2fs -> %s\n", eval.Total, elapsed.Seconds(), jsonPath)

	if p.plot {
		svgPath := filepath.Join(p.outdir, fmt.Sprintf("routes_%s.svg", stem))
		if err := os.WriteFile(svgPath, viz.RenderSVG(in.AllNodes(), routesAsInts(routes)), 0o644); err != nil {
			log.Fatalf("write %s: %v", svgPath, err)
		}
		fmt.Printf("[OK] saved plot -> %s\n", svgPath)
	}
}

// buildStem encodes run settings into a filename stem.
func buildStem(p params) string {
	parts := []string{
		fmt.Sprintf("n%d", p.n),
		fmt.Sprintf("k%d", p.k),
		fmt.Sprintf("cap%d", p.cap),
		fmt.Sprintf("seed%d", p.seed),
		fmt.Sprintf("sa%d", int(p.saTime.Seconds())),
	}
	if p.tw {
		parts = append(parts, "tw")
	}
	if p.noLocal {
		parts = append(parts, "nolocal")
	}
	if p.tag != "" {
		parts = append(parts, p.tag)
	}
	if p.stamp {
		parts = append(parts, time.Now().Format("20060102-150405"))
	}
	return strings.Join(parts, "_")
}

func writeEnvLog(p params, stem string) {
	env := map[string]any{
		"go":      runtime.Version(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
		"version": buildinfo.Version,
		"seed":    p.seed,
	}
	name := "env.json"
	if p.perRunEnv {
		name = fmt.Sprintf("env_%s.json", stem)
	}
	if err := writeJSONFile(filepath.Join(p.outdir, name), env); err != nil {
		log.Printf("env log: %v", err)
	}
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func routesAsInts(s solver.Solution) [][]int {
	out := make([][]int, len(s))
	for i, r := range s {
		out[i] = r
	}
	return out
}
