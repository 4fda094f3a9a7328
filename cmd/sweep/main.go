// Command sweep benchmarks the solver across instance sizes and writes a CSV,
// or summarizes an existing sweep CSV into markdown tables.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"fleetopt/internal/solver"
)

func main() {
	var (
		sizes     = flag.String("sizes", "100,250,500,1000", "comma-separated instance sizes")
		trials    = flag.Int("trials", 3, "trials per size")
		k         = flag.Int("k", 20, "vehicles")
		capFlag   = flag.Int("cap", 100, "vehicle capacity")
		tw        = flag.Bool("tw", false, "enable time windows")
		saTime    = flag.Duration("sa-time", 10*time.Second, "annealing budget per trial")
		lambdaTW  = flag.Float64("lambda-tw", 0, "time window penalty weight")
		muFair    = flag.Float64("mu-fair", 0, "fairness penalty weight")
		noLocal   = flag.Bool("no-local", false, "skip local search")
		outdir    = flag.String("outdir", "results", "output directory")
		tag       = flag.String("tag", "", "label for this sweep")
		stamp     = flag.Bool("stamp", false, "append timestamp to sweep filename")
		seedBase  = flag.Int64("seed-base", 42, "seed for trial 1; trial t uses seed-base+t-1")
		summarize = flag.String("summarize", "", "summarize an existing sweep CSV into markdown and exit")
		summaryMD = flag.String("summary-out", "results/summary.md", "markdown output path for -summarize")
	)
	flag.Parse()

	if *summarize != "" {
		if err := writeSummary(*summarize, *summaryMD); err != nil {
			log.Fatalf("summarize: %v", err)
		}
		fmt.Printf("[OK] wrote %s\n", *summaryMD)
		return
	}

	if err := os.MkdirAll(*outdir, 0o755); err != nil {
		log.Fatalf("mkdir %s: %v", *outdir, err)
	}

	var rows [][]string
	header := []string{"N", "trial", "seed", "k", "cap", "tw", "no_local", "sa_time", "cost", "runtime_sec"}
	for _, ns := range strings.Split(*sizes, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(ns))
		if err != nil {
			log.Fatalf("bad size %q: %v", ns, err)
		}
		for t := 0; t < *trials; t++ {
			seed := *seedBase + int64(t)
			start := time.Now()
			cost := solveOnce(n, *k, *capFlag, seed, *tw, *saTime, *lambdaTW, *muFair, *noLocal)
			dt := time.Since(start)
			rows = append(rows, []string{
				strconv.Itoa(n), strconv.Itoa(t + 1), strconv.FormatInt(seed, 10),
				strconv.Itoa(*k), strconv.Itoa(*capFlag),
				boolInt(*tw), boolInt(*noLocal),
				fmt.Sprintf("%.1f", saTime.Seconds()),
				fmt.Sprintf("%.4f", cost),
				fmt.Sprintf("%.4f", dt.Seconds()),
			})
			fmt.Printf("[OK] N=%d trial=%d/%d cost=%.2f runtime=%.2fs\n", n, t+1, *trials, cost, dt.Seconds())
		}
	}

	base := "sweep"
	if *tag != "" {
		base += "_" + *tag
	}
	if *stamp {
		base += "_" + time.Now().Format("20060102-150405")
	}
	csvPath := filepath.Join(*outdir, base+".csv")
	f, err := os.Create(csvPath)
	if err != nil {
		log.Fatalf("create %s: %v", csvPath, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	_ = w.Write(header)
	_ = w.WriteAll(rows)
	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("write csv: %v", err)
	}
	fmt.Printf("[OK] wrote %s\n", csvPath)
}

func solveOnce(n, k, capacity int, seed int64, tw bool, saTime time.Duration, lambdaTW, muFair float64, noLocal bool) float64 {
	in, m, err := solver.Generate(solver.GenSpec{N: n, Seed: seed, Capacity: capacity, Vehicles: k, TimeWindows: tw})
	if err != nil {
		log.Fatalf("generate N=%d: %v", n, err)
	}
	in.LambdaTW = lambdaTW
	in.MuFair = muFair
	routes := solver.ClarkeWright(in, m)
	if !noLocal {
		routes, _ = solver.LocalSearch(routes, in, m)
	}
	if saTime > 0 {
		routes, _ = solver.Anneal(routes, in, m, solver.Options{
			Budget: saTime, T0: 1.0, Alpha: 0.997,
			RNG: rand.New(rand.NewSource(seed)),
		})
	}
	return solver.Cost(routes, in, m)
}

func boolInt(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// writeSummary aggregates a sweep CSV by N and emits cost and runtime tables.
func writeSummary(inPath, outPath string) error {
	f, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return err
	}
	if len(records) < 2 {
		return fmt.Errorf("no rows in %s", inPath)
	}
	col := map[string]int{}
	for i, name := range records[0] {
		col[strings.ToLower(name)] = i
	}
	iN, okN := col["n"]
	iCost, okC := col["cost"]
	iRT, okRT := col["runtime_sec"]
	if !okN || !okC {
		return fmt.Errorf("%s: need at least N and cost columns", inPath)
	}

	costs := map[int][]float64{}
	runtimes := map[int][]float64{}
	for _, rec := range records[1:] {
		n, err := strconv.Atoi(rec[iN])
		if err != nil {
			continue
		}
		if c, err := strconv.ParseFloat(rec[iCost], 64); err == nil {
			costs[n] = append(costs[n], c)
		}
		if okRT {
			if rt, err := strconv.ParseFloat(rec[iRT], 64); err == nil {
				runtimes[n] = append(runtimes[n], rt)
			}
		}
	}

	var ns []int
	for n := range costs {
		ns = append(ns, n)
	}
	sort.Ints(ns)

	var b strings.Builder
	b.WriteString("## Results Summary (auto-generated)\n\n")
	b.WriteString("### Cost\n")
	b.WriteString("| N (customers) | Trials | Mean Cost | Std Dev | Cost / Customer |\n")
	b.WriteString("|---:|---:|---:|---:|---:|\n")
	for _, n := range ns {
		mean, sd := meanStd(costs[n])
		fmt.Fprintf(&b, "| %d | %d | %.2f | %.2f | %.2f |\n", n, len(costs[n]), mean, sd, mean/math.Max(float64(n), 1))
	}
	b.WriteString("\n### Runtime\n")
	b.WriteString("| N (customers) | Trials | Mean Runtime (s) | Std Dev (s) |\n")
	b.WriteString("|---:|---:|---:|---:|\n")
	for _, n := range ns {
		mean, sd := meanStd(runtimes[n])
		fmt.Fprintf(&b, "| %d | %d | %.2f | %.2f |\n", n, len(runtimes[n]), mean, sd)
	}
	return os.WriteFile(outPath, []byte(b.String()), 0o644)
}

func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	varSum := 0.0
	for _, x := range xs {
		d := x - mean
		varSum += d * d
	}
	return mean, math.Sqrt(varSum / float64(len(xs)))
}
