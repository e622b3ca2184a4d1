package utils

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// WeightsVersion is written into every exported weights file.
const WeightsVersion = "digitnet/1"

// WeightData represents serializable weight data for a matrix or vector,
// stored row-major
type WeightData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// ModelWeights represents all weights in a model
type ModelWeights struct {
	Version  string        `json:"version"`
	Topology []int         `json:"topology"`
	Layers   []LayerWeight `json:"layers"`
}

// LayerWeight contains weights and bias for a layer
type LayerWeight struct {
	Weight *WeightData `json:"weight"`
	Bias   *WeightData `json:"bias"`
}

// SaveWeights saves model weights to a JSON file
func SaveWeights(filepath string, weights *ModelWeights) error {
	data, err := json.MarshalIndent(weights, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}
	return os.WriteFile(filepath, data, 0644)
}

// LoadWeights loads model weights from a JSON file
func LoadWeights(filepath string) (*ModelWeights, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file: %w", err)
	}
	var weights ModelWeights
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	if weights.Version != WeightsVersion {
		return nil, fmt.Errorf("unsupported weights version %q", weights.Version)
	}
	return &weights, nil
}

// MatrixToWeightData converts a matrix to serializable weight data
func MatrixToWeightData(name string, m mat.Matrix) *WeightData {
	r, c := m.Dims()
	return &WeightData{
		Name:  name,
		Shape: []int{r, c},
		Data:  append([]float64{}, mat.DenseCopyOf(m).RawMatrix().Data...),
	}
}

// VectorToWeightData converts a vector to serializable weight data
func VectorToWeightData(name string, v mat.Vector) *WeightData {
	return &WeightData{
		Name:  name,
		Shape: []int{v.Len()},
		Data:  append([]float64{}, mat.VecDenseCopyOf(v).RawVector().Data...),
	}
}

// Dense converts 2-d weight data back to a matrix
func (wd *WeightData) Dense() (*mat.Dense, error) {
	if len(wd.Shape) != 2 || wd.Shape[0] < 1 || wd.Shape[1] < 1 || wd.Shape[0]*wd.Shape[1] != len(wd.Data) {
		return nil, fmt.Errorf("%s: shape %v does not describe a matrix of %d values", wd.Name, wd.Shape, len(wd.Data))
	}
	return mat.NewDense(wd.Shape[0], wd.Shape[1], append([]float64{}, wd.Data...)), nil
}

// VecDense converts 1-d weight data back to a vector
func (wd *WeightData) VecDense() (*mat.VecDense, error) {
	if len(wd.Shape) != 1 || wd.Shape[0] < 1 || wd.Shape[0] != len(wd.Data) {
		return nil, fmt.Errorf("%s: shape %v does not describe a vector of %d values", wd.Name, wd.Shape, len(wd.Data))
	}
	return mat.NewVecDense(wd.Shape[0], append([]float64{}, wd.Data...)), nil
}
