package nn

import (
	"fmt"

	"digitnet/utils"
)

// ExportWeights returns the parameters in the JSON-friendly form written by
// utils.SaveWeights.
func (net *Network) ExportWeights() *utils.ModelWeights {
	mw := &utils.ModelWeights{
		Version:  utils.WeightsVersion,
		Topology: net.Topology(),
		Layers:   make([]utils.LayerWeight, len(net.layers)),
	}
	for i, l := range net.layers {
		mw.Layers[i] = utils.LayerWeight{
			Weight: utils.MatrixToWeightData(fmt.Sprintf("layer%d.weight", i+1), l.w),
			Bias:   utils.VectorToWeightData(fmt.Sprintf("layer%d.bias", i+1), l.b),
		}
	}
	return mw
}

// FromWeights rebuilds a network from exported weights.
func FromWeights(mw *utils.ModelWeights, opts ...Option) (*Network, error) {
	layers := make([]*Layer, len(mw.Layers))
	for i, lw := range mw.Layers {
		if lw.Weight == nil || lw.Bias == nil {
			return nil, fmt.Errorf("%w: layer %d has no parameters", ErrCorruptData, i+1)
		}
		w, err := lw.Weight.Dense()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
		}
		b, err := lw.Bias.VecDense()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
		}
		if layers[i], err = LayerFromParams(w, b); err != nil {
			return nil, fmt.Errorf("%w: layer %d: %v", ErrCorruptData, i+1, err)
		}
	}
	net, err := FromLayers(layers, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	return net, nil
}
