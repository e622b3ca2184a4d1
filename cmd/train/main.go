// digitnet-train: trains a sigmoid network on an MNIST-style CSV file
//
// Usage:
//
//	digitnet-train --train=data/mnist_train.csv --arch="784 30 10" --epochs=30 --lr=0.5 --output=net.dnn
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"digitnet/dataset"
	"digitnet/nn"
	"digitnet/utils"
)

var defaults = utils.DefaultConfig()

var (
	configFile     = flag.String("config", "", "YAML config file; flags override its values")
	trainFile      = flag.String("train", "", "Training CSV (label first, then pixels)")
	testFile       = flag.String("test", "", "Optional test CSV evaluated after training")
	arch           = flag.String("arch", utils.FormatArchitecture(defaults.Architecture), "Layer widths, input first, e.g. \"784 30 10\"")
	epochs         = flag.Int("epochs", defaults.Epochs, "Number of training epochs")
	batchSize      = flag.Int("batch", defaults.BatchSize, "Mini-batch size")
	learningRate   = flag.Float64("lr", defaults.LearningRate, "Learning rate")
	lambda         = flag.Float64("lambda", defaults.Lambda, "L2 regularisation coefficient")
	decayScale     = flag.String("decay", defaults.DecayScale, "Weight decay scale: training-set or batch")
	validationSize = flag.Int("validation", defaults.ValidationSize, "Examples held out of the training file for validation")
	concurrency    = flag.Int("concurrency", defaults.Concurrency, "Goroutines computing gradients within a batch")
	seed           = flag.Int64("seed", defaults.Seed, "Random seed")
	outputFile     = flag.String("output", "", "Where to save the trained network")
	resume         = flag.String("resume", "", "Continue training a saved network")
	overflow       = flag.String("overflow", defaults.OverflowPolicy, "Activation overflow policy: clamp or fail")
	gradCheck      = flag.Bool("gradcheck", false, "Check backpropagation against finite differences before training")
	verbose        = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	config, err := buildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildConfig() (utils.Config, error) {
	config := utils.DefaultConfig()
	if *configFile != "" {
		var err error
		config, err = utils.LoadConfig(*configFile)
		if err != nil {
			return config, err
		}
	}

	// Only flags given on the command line override the config file.
	var visitErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "arch":
			a, err := utils.ParseArchitecture(*arch)
			if err != nil {
				visitErr = fmt.Errorf("parsing architecture: %w", err)
				return
			}
			config.Architecture = a
		case "train":
			config.TrainFile = *trainFile
		case "test":
			config.TestFile = *testFile
		case "epochs":
			config.Epochs = *epochs
		case "batch":
			config.BatchSize = *batchSize
		case "lr":
			config.LearningRate = *learningRate
		case "lambda":
			config.Lambda = *lambda
		case "decay":
			config.DecayScale = *decayScale
		case "validation":
			config.ValidationSize = *validationSize
		case "concurrency":
			config.Concurrency = *concurrency
		case "seed":
			config.Seed = *seed
		case "output":
			config.Output = *outputFile
		case "resume":
			config.Resume = *resume
		case "overflow":
			config.OverflowPolicy = *overflow
		}
	})
	if visitErr != nil {
		return config, visitErr
	}

	return config, utils.ValidateConfig(&config)
}

func run(ctx context.Context, config utils.Config) error {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	stats := &utils.TimingStats{}
	totalStart := time.Now()

	net, err := buildNetwork(config, logger)
	if err != nil {
		return err
	}
	stats.ModelInitTime = time.Since(totalStart)
	topology := net.Topology()

	fmt.Println("digitnet trainer")
	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("  Topology:      %s\n", utils.FormatArchitecture(topology))
	fmt.Printf("  Epochs:        %d\n", config.Epochs)
	fmt.Printf("  Batch size:    %d\n", config.BatchSize)
	fmt.Printf("  Learning Rate: %.4f\n", config.LearningRate)
	fmt.Printf("  Lambda:        %.4f (%s)\n", config.Lambda, config.DecayScale)
	fmt.Printf("  Concurrency:   %d\n", config.Concurrency)
	fmt.Println()

	start := time.Now()
	lines, err := dataset.GetLinesMNIST(config.TrainFile, net.InputSize(), net.OutputSize())
	if err != nil {
		return fmt.Errorf("loading %s: %w", config.TrainFile, err)
	}
	training, validation, err := dataset.Split(lines, config.ValidationSize)
	if err != nil {
		return fmt.Errorf("splitting %s: %w", config.TrainFile, err)
	}
	stats.DataLoadingTime = time.Since(start)
	fmt.Printf("Loaded %d training and %d validation examples\n", len(training), len(validation))

	examples := training.TrainingExamples(net.OutputSize())
	if *gradCheck && len(examples) > 0 {
		diff, err := nn.CheckGradients(net, examples[0], 1e-4)
		if err != nil {
			return fmt.Errorf("gradient check: %w", err)
		}
		fmt.Printf("Gradient check passed (max difference %.3g)\n", diff)
	}

	trainer, err := nn.NewTrainer(nn.TrainConfig{
		Epochs:       config.Epochs,
		BatchSize:    config.BatchSize,
		LearningRate: config.LearningRate,
		Lambda:       config.Lambda,
		DecayScale:   nn.DecayScaleLookup[config.DecayScale],
		Concurrency:  config.Concurrency,
		Seed:         config.Seed,
	}, nn.WithTrainerLogger(logger), nn.WithTimingStats(stats))
	if err != nil {
		return err
	}

	fmt.Println("Started training...")
	reports, err := trainer.Train(ctx, net, examples, validation.EvaluationExamples())
	if errors.Is(err, context.Canceled) {
		fmt.Println("Training interrupted, saving the last completed batch")
	} else if err != nil {
		return err
	}

	if config.TestFile != "" {
		if err := test(net, config.TestFile); err != nil {
			return err
		}
	}

	if config.Output != "" {
		start := time.Now()
		if err := net.Save(config.Output); err != nil {
			return fmt.Errorf("saving network: %w", err)
		}
		stats.SaveTime = time.Since(start)
	}

	stats.TotalTime = time.Since(totalStart)
	batches := 0
	for _, r := range reports {
		batches += r.Batches
	}
	utils.PrintTimingStats(stats, batches)
	return nil
}

func buildNetwork(config utils.Config, logger *log.Logger) (*nn.Network, error) {
	opts := []nn.Option{
		nn.WithSeed(config.Seed),
		nn.WithLogger(logger),
		nn.WithOverflowPolicy(nn.OverflowPolicyLookup[config.OverflowPolicy]),
	}
	if config.Resume != "" {
		net, err := nn.Load(config.Resume, opts...)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Resuming %s\n", config.Resume)
		return net, nil
	}
	return nn.NewNetwork(config.Architecture, opts...)
}

func test(net *nn.Network, filename string) error {
	lines, err := dataset.GetLinesMNIST(filename, net.InputSize(), net.OutputSize())
	if err != nil {
		return fmt.Errorf("loading %s: %w", filename, err)
	}
	accuracy, err := net.Evaluate(lines.EvaluationExamples())
	if err != nil {
		return fmt.Errorf("testing network: %w", err)
	}
	fmt.Printf("Test accuracy %.2f%% on %d examples\n", accuracy, len(lines))
	return nil
}
