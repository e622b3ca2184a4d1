// digitnet-infer: evaluates or queries a saved network
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"digitnet/dataset"
	"digitnet/nn"
	"digitnet/utils"
)

var (
	networkFile = flag.String("network", "", "Saved network file")
	testFile    = flag.String("test", "", "CSV file to report accuracy on")
	inputFile   = flag.String("input", "", "JSON array with one input vector to classify")
	topK        = flag.Int("topk", 3, "Top predictions to show")
	exportFile  = flag.String("export", "", "Write the weights as JSON to this file")
)

func main() {
	flag.Parse()

	if *networkFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -network is required")
		os.Exit(2)
	}
	net, err := nn.Load(*networkFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading network: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded network %s\n", utils.FormatArchitecture(net.Topology()))

	if *testFile != "" {
		if err := evaluate(net, *testFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *exportFile != "" {
		if err := utils.SaveWeights(*exportFile, net.ExportWeights()); err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting weights: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Weights exported to %s\n", *exportFile)
	}
	if *inputFile != "" {
		if err := classify(net, *inputFile, *topK); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

func evaluate(net *nn.Network, filename string) error {
	lines, err := dataset.GetLinesMNIST(filename, net.InputSize(), net.OutputSize())
	if err != nil {
		return fmt.Errorf("loading %s: %w", filename, err)
	}
	start := time.Now()
	accuracy, err := net.Evaluate(lines.EvaluationExamples())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	fmt.Printf("Accuracy %.2f%% on %d examples (%.1fµs per example)\n",
		accuracy, len(lines), utils.DurationUS(elapsed)/float64(len(lines)))
	return nil
}

type prediction struct {
	Class int
	Score float64
}

func classify(net *nn.Network, filename string, k int) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	var input []float64
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("parsing %s: %w", filename, err)
	}

	out, err := net.Feedforward(input)
	if err != nil {
		return err
	}
	predictions := topPredictions(out, k)
	fmt.Println("Predictions:")
	for i, p := range predictions {
		fmt.Printf("  %d. %d (%.4f)\n", i+1, p.Class, p.Score)
	}
	return nil
}

func topPredictions(out []float64, k int) []prediction {
	predictions := make([]prediction, len(out))
	for i, v := range out {
		predictions[i] = prediction{Class: i, Score: v}
	}
	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Score > predictions[j].Score
	})
	if k > 0 && k < len(predictions) {
		predictions = predictions[:k]
	}
	return predictions
}
