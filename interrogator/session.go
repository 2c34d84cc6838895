package interrogator

import (
	"errors"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const defaultImageSize = 448

type layout int

const (
	layoutNCHW layout = iota
	layoutNHWC
)

// session lazily owns one ONNX Runtime session with fixed 1-batch tensors.
type session struct {
	path    string
	layout  layout
	outputs int

	mu     sync.Mutex
	adv    *ort.AdvancedSession
	input  *ort.Tensor[float32]
	output *ort.Tensor[float32]
	size   int
}

func newSession(path string, l layout, outputs int) *session {
	return &session{path: path, layout: l, outputs: outputs}
}

func (s *session) load() error {
	if s.adv != nil {
		return nil
	}
	inputs, outputs, err := ort.GetInputOutputInfo(s.path)
	if err != nil {
		return fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return errors.New("model has no inputs or outputs")
	}

	size := defaultImageSize
	dims := inputs[0].Dimensions
	if len(dims) == 4 {
		d := dims[2]
		if s.layout == layoutNHWC {
			d = dims[1]
		}
		if d > 0 {
			size = int(d)
		}
	}

	shape := ort.NewShape(1, 3, int64(size), int64(size))
	if s.layout == layoutNHWC {
		shape = ort.NewShape(1, int64(size), int64(size), 3)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()

	inputTensor, err := ort.NewTensor(shape, make([]float32, 3*size*size))
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(s.outputs)))
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("failed to create output tensor: %w", err)
	}

	adv, err := ort.NewAdvancedSession(
		s.path,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return fmt.Errorf("failed to create ONNX Runtime session: %w", err)
	}

	s.adv = adv
	s.input = inputTensor
	s.output = outputTensor
	s.size = size
	return nil
}

// run preprocesses img for the model and returns a copy of the raw output row.
func (s *session) run(img image.Image) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}

	var data []float32
	if s.layout == layoutNHWC {
		data = preprocessNHWCBGR(img, s.size)
	} else {
		data = preprocessNCHW(img, s.size)
	}
	copy(s.input.GetData(), data)
	if err := s.adv.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	raw := s.output.GetData()
	out := make([]float32, len(raw))
	copy(out, raw)
	return out, nil
}

func (s *session) unload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.adv == nil {
		return nil
	}
	err := errors.Join(s.adv.Destroy(), s.input.Destroy(), s.output.Destroy())
	s.adv, s.input, s.output = nil, nil, nil
	return err
}
