//go:build ignore

// Package main generates synthetic WMStats dumps for benchmarking
// `wmviews map` and `wmviews watch`.
// Usage: go run scripts/generate-jobsummaries.go -files 50 -docs 2000 -output testdata/bench
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numFiles  = flag.Int("files", 50, "Number of dump files to generate")
	docsPer   = flag.Int("docs", 2000, "Documents per file")
	otherPct  = flag.Int("other", 10, "Percentage of non-jobsummary documents")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var (
	states   = []string{"success", "jobfailed", "submitfailed", "jobcooloff", "exhausted"}
	sites    = []string{"T1_US_FNAL", "T1_DE_KIT", "T2_CH_CERN", "T2_US_Nebraska", "T2_IT_Bari", "T3_US_Colorado"}
	steps    = []string{"cmsRun1", "cmsRun2", "stageOut1", "logArch1"}
	outputs  = []string{"output", "logArchive", "pileup"}
	errTypes = []string{"Fatal Exception", "CMSExeption", "StageOutFailure", "WMAgentTimeout", "ExitCode", "PerformanceKill"}
	exits    = []int{0, 0, 0, 50660, 50664, 8001, 8028, 60307, 71104, 99109}
	requests = []string{"pdmvserv_task_HIG-RunIISummer20UL18", "cmsunified_ACDC0_Run2018D", "amaltaro_SC_LumiMask_Rules", "sagarwal_ReReco_Run2022C"}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generating %d files of %d documents in %s...\n", *numFiles, *docsPer, *outputDir)

	total := 0
	for i := range *numFiles {
		path := filepath.Join(*outputDir, fmt.Sprintf("jobsummaries-%04d.ndjson", i))
		n, err := writeDump(rng, path, i)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating %s: %v\n", path, err)
			os.Exit(1)
		}
		total += n
	}

	fmt.Printf("Generated %d documents\n", total)
}

func writeDump(rng *rand.Rand, path string, file int) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range *docsPer {
		id := fmt.Sprintf("%04d-%06d", file, i)
		if err := enc.Encode(document(rng, id)); err != nil {
			return 0, err
		}
	}
	return *docsPer, w.Flush()
}

func document(rng *rand.Rand, id string) map[string]any {
	workflow := requests[rng.Intn(len(requests))]
	if rng.Intn(100) < *otherPct {
		return map[string]any{
			"_id":      "req-" + id,
			"type":     "reqmgr_request",
			"workflow": workflow,
		}
	}

	exit := exits[rng.Intn(len(exits))]
	state := "success"
	if exit != 0 {
		state = states[1+rng.Intn(len(states)-1)]
	}

	errs := map[string]any{}
	if exit != 0 {
		for range 1 + rng.Intn(3) {
			step := steps[rng.Intn(len(steps))]
			outs, ok := errs[step].(map[string]any)
			if !ok {
				outs = map[string]any{}
				errs[step] = outs
			}
			detail := map[string]any{"exitCode": exit, "details": "synthetic failure"}
			// Some records carry no type label
			if rng.Intn(5) > 0 {
				detail["type"] = errTypes[rng.Intn(len(errTypes))]
			}
			outs[outputs[rng.Intn(len(outputs))]] = detail
		}
	}

	return map[string]any{
		"_id":      "job-" + id,
		"id":       fmt.Sprintf("/%s/%s/%s", workflow, "Production", id),
		"type":     "jobsummary",
		"workflow": workflow,
		"task":     "/" + workflow + "/Production",
		"state":    state,
		"exitcode": exit,
		"site":     sites[rng.Intn(len(sites))],
		"errors":   errs,
	}
}
