package nn

import (
	"context"
	"fmt"
	"log"
	"time"

	"digitnet/utils"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

// DecayScale selects the N in the weight decay term λ·W/N.
type DecayScale int

const (
	// DecayByTrainingSet divides λ by the size of the whole training set.
	DecayByTrainingSet DecayScale = iota
	// DecayByBatch divides λ by the size of the current mini-batch.
	DecayByBatch
)

// DecayScaleLookup maps configuration names to decay scales.
var DecayScaleLookup = map[string]DecayScale{
	"training-set": DecayByTrainingSet,
	"batch":        DecayByBatch,
}

// TrainConfig holds the hyperparameters of a training run.
type TrainConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	// Lambda is the L2 regularisation coefficient. It applies to weights only.
	Lambda      float64
	DecayScale  DecayScale
	Concurrency int
	Seed        int64
}

// Validate checks that cfg describes a runnable training loop.
func (cfg TrainConfig) Validate() error {
	if cfg.LearningRate <= 0 {
		return fmt.Errorf("%w: learning rate must be positive, got %g", ErrInvalidConfiguration, cfg.LearningRate)
	}
	if cfg.Epochs < 1 {
		return fmt.Errorf("%w: epochs must be positive, got %d", ErrInvalidConfiguration, cfg.Epochs)
	}
	if cfg.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfiguration, cfg.BatchSize)
	}
	if cfg.Lambda < 0 {
		return fmt.Errorf("%w: regularisation must not be negative, got %g", ErrInvalidConfiguration, cfg.Lambda)
	}
	if cfg.DecayScale != DecayByTrainingSet && cfg.DecayScale != DecayByBatch {
		return fmt.Errorf("%w: unknown decay scale %d", ErrInvalidConfiguration, cfg.DecayScale)
	}
	return nil
}

// EpochReport describes one finished epoch.
type EpochReport struct {
	Epoch    int
	Batches  int
	Duration time.Duration
	// Accuracy is only meaningful when Validated is true.
	Accuracy  float64
	Validated bool
}

func (r EpochReport) String() string {
	if r.Validated {
		return fmt.Sprintf("Epoch %d complete. Accuracy = %.2f%%", r.Epoch, r.Accuracy)
	}
	return fmt.Sprintf("Epoch %d complete.", r.Epoch)
}

// Trainer runs mini-batch stochastic gradient descent.
type Trainer struct {
	cfg     TrainConfig
	rnd     *rand.Rand
	logger  *log.Logger
	onEpoch func(EpochReport)
	stats   *utils.TimingStats
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithTrainerLogger sets where progress is logged.
func WithTrainerLogger(l *log.Logger) TrainerOption {
	return func(t *Trainer) { t.logger = l }
}

// WithEpochHook registers a function called after every epoch.
func WithEpochHook(fn func(EpochReport)) TrainerOption {
	return func(t *Trainer) { t.onEpoch = fn }
}

// WithTimingStats accumulates time spent per training phase into stats.
func WithTimingStats(stats *utils.TimingStats) TrainerOption {
	return func(t *Trainer) { t.stats = stats }
}

// NewTrainer validates cfg and returns a trainer for it.
func NewTrainer(cfg TrainConfig, opts ...TrainerOption) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	t := &Trainer{
		cfg:    cfg,
		rnd:    rand.New(rand.NewSource(uint64(cfg.Seed))),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Config returns the trainer's configuration.
func (t *Trainer) Config() TrainConfig { return t.cfg }

// Train runs the configured number of epochs over training, updating net in
// place once per mini-batch. If validation is not empty, accuracy on it is
// reported after every epoch. The training slice itself is not reordered.
func (t *Trainer) Train(ctx context.Context, net *Network, training []Example, validation []LabeledExample) ([]EpochReport, error) {
	if len(training) == 0 {
		return nil, fmt.Errorf("%w: empty training set", ErrInvalidConfiguration)
	}
	for i, ex := range training {
		if err := checkExample(net, ex); err != nil {
			return nil, fmt.Errorf("training example %d: %w", i, err)
		}
	}
	for i, ex := range validation {
		if len(ex.Input) != net.inputSize {
			return nil, fmt.Errorf("validation example %d: %w", i,
				&ShapeError{What: "inputs", Got: len(ex.Input), Want: net.inputSize})
		}
	}

	lines := make([]Example, len(training))
	copy(lines, training)

	var reports []EpochReport
	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		start := time.Now()
		t.shuffle(lines)
		batches := createBatches(lines, t.cfg.BatchSize)
		for _, batch := range batches {
			if err := ctx.Err(); err != nil {
				return reports, err
			}
			if err := t.trainBatch(ctx, net, batch, len(lines)); err != nil {
				return reports, err
			}
		}

		report := EpochReport{Epoch: epoch, Batches: len(batches), Duration: time.Since(start)}
		if len(validation) > 0 {
			evalStart := time.Now()
			accuracy, err := net.Evaluate(validation)
			if err != nil {
				return reports, fmt.Errorf("validating epoch %d: %w", epoch, err)
			}
			t.record(func(s *utils.TimingStats) { s.EvaluationTime += time.Since(evalStart) })
			report.Accuracy = accuracy
			report.Validated = true
		}
		reports = append(reports, report)
		t.logger.Println(report)
		if t.onEpoch != nil {
			t.onEpoch(report)
		}
	}
	t.logger.Println("Training complete")
	return reports, nil
}

func checkExample(net *Network, ex Example) error {
	if len(ex.Input) != net.inputSize {
		return &ShapeError{What: "inputs", Got: len(ex.Input), Want: net.inputSize}
	}
	if len(ex.Expected) != net.OutputSize() {
		return &ShapeError{What: "expected outputs", Got: len(ex.Expected), Want: net.OutputSize()}
	}
	return nil
}

func (t *Trainer) shuffle(lines []Example) {
	t.rnd.Shuffle(len(lines), func(i, j int) {
		lines[i], lines[j] = lines[j], lines[i]
	})
}

func (t *Trainer) record(fn func(*utils.TimingStats)) {
	if t.stats != nil {
		fn(t.stats)
	}
}

// createBatches splits lines into consecutive batches of batchSize; the last
// one is shorter when len(lines) is not a multiple of batchSize.
func createBatches(lines []Example, batchSize int) [][]Example {
	numBatches := (len(lines) + batchSize - 1) / batchSize
	batches := make([][]Example, numBatches)

	for i := 0; i < numBatches; i++ {
		startIdx := i * batchSize
		endIdx := startIdx + batchSize

		if endIdx > len(lines) {
			endIdx = len(lines)
		}

		batches[i] = lines[startIdx:endIdx]
	}

	return batches
}

// trainBatch computes the batch's mean gradients and then applies the update.
func (t *Trainer) trainBatch(ctx context.Context, net *Network, batch []Example, trainingSize int) error {
	start := time.Now()
	grad, err := t.batchGradients(ctx, net, batch)
	if err != nil {
		return err
	}
	t.record(func(s *utils.TimingStats) { s.BackwardPassTime += time.Since(start) })

	start = time.Now()
	n := trainingSize
	if t.cfg.DecayScale == DecayByBatch {
		n = len(batch)
	}
	decay := t.cfg.Lambda / float64(n)
	for i, l := range net.layers {
		l.applyUpdate(grad.Weights[i], grad.Biases[i], t.cfg.LearningRate, decay)
	}
	t.record(func(s *utils.TimingStats) { s.UpdateTime += time.Since(start) })
	return nil
}

// batchGradients returns the per-parameter mean of the gradients of every
// example in batch. Examples are split into contiguous chunks, one per
// worker; the partial sums are reduced in worker order.
func (t *Trainer) batchGradients(ctx context.Context, net *Network, batch []Example) (*Gradients, error) {
	workers := t.cfg.Concurrency
	if workers > len(batch) {
		workers = len(batch)
	}
	chunk := (len(batch) + workers - 1) / workers
	workers = (len(batch) + chunk - 1) / chunk
	partials := make([]*Gradients, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, (w+1)*chunk
		if hi > len(batch) {
			hi = len(batch)
		}
		w := w
		g.Go(func() error {
			sum := NewGradients(net)
			for _, ex := range batch[lo:hi] {
				if err := ctx.Err(); err != nil {
					return err
				}
				eg, err := net.Backprop(ex)
				if err != nil {
					return err
				}
				sum.Add(eg)
			}
			partials[w] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := partials[0]
	for _, p := range partials[1:] {
		total.Add(p)
	}
	total.Scale(1 / float64(len(batch)))
	return total, nil
}
