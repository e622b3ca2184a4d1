// Package dataset reads MNIST-style CSV files and turns them into the
// example types the nn package trains and evaluates on.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"digitnet/nn"
)

// Line is one labelled image: pixel densities scaled into [0, 1] and the digit.
type Line struct {
	Inputs []float64
	Label  int
}
type Lines []Line

// GetLinesMNIST reads filename. The first value of every record is the label,
// the remaining inputNum values are pixel densities in [0, 255].
func GetLinesMNIST(filename string, inputNum, outputNum int) (Lines, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return GetLines(bufio.NewReader(file), inputNum, outputNum)
}

// GetLines reads MNIST-style CSV records from reader.
func GetLines(reader io.Reader, inputNum, outputNum int) (Lines, error) {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var lines Lines
	var lineNum int
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		lineNum++
		if err != nil {
			return lines, fmt.Errorf("reading record %d: %w", lineNum, err)
		}
		if len(record) != inputNum+1 {
			return lines, errInvalidLine{
				lineNum:  lineNum,
				splits:   len(record),
				expected: inputNum + 1,
			}
		}

		label, err := strconv.Atoi(record[0])
		if err != nil {
			return lines, fmt.Errorf("parsing label at line %d: %w", lineNum, err)
		}
		if label < 0 || label >= outputNum {
			return lines, fmt.Errorf("label %d at line %d is outside [0, %d)", label, lineNum, outputNum)
		}

		inputs := make([]float64, inputNum)
		for i := range inputs {
			x, err := strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return lines, fmt.Errorf("parsing input at line %d: %w", lineNum, err)
			}
			inputs[i] = x / 255.0
		}

		lines = append(lines, Line{
			Inputs: inputs,
			Label:  label,
		})
	}

	return lines, nil
}

type errInvalidLine struct {
	lineNum  int
	splits   int
	expected int
}

func (e errInvalidLine) Error() string {
	return fmt.Sprintf("at line %d, expected %d values, got %d",
		e.lineNum, e.expected, e.splits)
}

// Vectorize returns a unit vector of length n with 1.0 at position digit.
// It panics if digit is outside [0, n); GetLines rejects such labels.
func Vectorize(digit, n int) []float64 {
	vector := make([]float64, n)
	vector[digit] = 1.0
	return vector
}

// ErrNoTrainingData is returned by Split when the validation set would take
// every line.
var ErrNoTrainingData = errors.New("no lines left for training")

// Split returns the first len(lines)-validationSize lines for training and
// the remainder for validation.
func Split(lines Lines, validationSize int) (training, validation Lines, err error) {
	if validationSize < 0 {
		validationSize = 0
	}
	if validationSize >= len(lines) {
		return nil, nil, fmt.Errorf("%w: validation size %d uses all %d lines", ErrNoTrainingData, validationSize, len(lines))
	}
	cut := len(lines) - validationSize
	return lines[:cut], lines[cut:], nil
}

// TrainingExamples pairs every input with its one-hot label.
func (lines Lines) TrainingExamples(outputNum int) []nn.Example {
	examples := make([]nn.Example, len(lines))
	for i, line := range lines {
		examples[i] = nn.Example{
			Input:    line.Inputs,
			Expected: Vectorize(line.Label, outputNum),
		}
	}
	return examples
}

// EvaluationExamples pairs every input with its raw class index.
func (lines Lines) EvaluationExamples() []nn.LabeledExample {
	examples := make([]nn.LabeledExample, len(lines))
	for i, line := range lines {
		examples[i] = nn.LabeledExample{
			Input: line.Inputs,
			Class: line.Label,
		}
	}
	return examples
}
