//go:build onnx
// +build onnx

package extractor

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/config"
	"github.com/trainguard/img-sentinel/internal/imaging"
)

// onnxExtractor runs a vision backbone through ONNX Runtime. The model
// loads once on first use; a load failure is sticky and every later
// Extract returns it.
type onnxExtractor struct {
	modelName string
	modelPath string
	inputSize int
	logger    *zap.Logger

	loadOnce   sync.Once
	loadErr    error
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string

	mu sync.Mutex
}

func newONNXExtractor(cfg *config.ExtractorConfig, logger *zap.Logger) (Extractor, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model_path is required for the onnx extractor")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not accessible: %w", err)
	}

	return &onnxExtractor{
		modelName: cfg.ModelName,
		modelPath: cfg.ModelPath,
		inputSize: cfg.InputSize,
		logger:    logger,
	}, nil
}

// load initializes the ONNX Runtime session. Called exactly once; the
// result is shared by all callers.
func (e *onnxExtractor) load() {
	if shlib := os.Getenv("ONNXRUNTIME_SHARED_LIB"); shlib != "" {
		ort.SetSharedLibraryPath(shlib)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		e.loadErr = fmt.Errorf("onnx runtime environment init failed: %w", err)
		return
	}

	inputsInfo, outputsInfo, err := ort.GetInputOutputInfo(e.modelPath)
	if err != nil {
		e.loadErr = fmt.Errorf("failed to inspect model IO: %w", err)
		return
	}
	if len(inputsInfo) == 0 || len(outputsInfo) == 0 {
		e.loadErr = fmt.Errorf("model declares no inputs or outputs")
		return
	}
	e.inputName = inputsInfo[0].Name
	e.outputName = outputsInfo[0].Name

	session, err := ort.NewDynamicAdvancedSession(e.modelPath,
		[]string{e.inputName}, []string{e.outputName}, nil)
	if err != nil {
		e.loadErr = fmt.Errorf("session creation failed: %w", err)
		return
	}
	e.session = session

	e.logger.Info("ONNX extractor model loaded",
		zap.String("model", e.modelName),
		zap.String("path", e.modelPath),
		zap.String("input", e.inputName),
		zap.String("output", e.outputName))
}

func (e *onnxExtractor) Extract(ctx context.Context, data []byte) ([]float32, error) {
	e.loadOnce.Do(e.load)
	if e.loadErr != nil {
		return nil, e.loadErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}

	resized := imaging.Resize(img, e.inputSize)
	tensorData := imaging.NormalizeNCHW(resized, e.inputSize, imaging.ImageNetMean, imaging.ImageNetStd)
	shape := ort.NewShape(1, 3, int64(e.inputSize), int64(e.inputSize))
	inputTensor, err := ort.NewTensor[float32](shape, tensorData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// One output; let ORT allocate it.
	outputs := make([]ort.Value, 1)

	// Session runs are serialized: in-flight inference is not
	// interruptible, a caller that gave up simply discards the result.
	e.mu.Lock()
	err = e.session.Run([]ort.Value{inputTensor}, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if outputs[0] == nil {
		return nil, fmt.Errorf("inference returned no output")
	}
	defer outputs[0].Destroy()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type (want float32 tensor)")
	}

	return pool(outTensor.GetData(), outTensor.GetShape()), nil
}

// pool reduces the model output to a single embedding vector. A 2D
// [batch, dims] output is returned as-is; a 3D [batch, tokens, dims]
// output is mean-pooled over the token axis.
func pool(data []float32, shape ort.Shape) []float32 {
	switch len(shape) {
	case 2:
		dims := int(shape[1])
		out := make([]float32, dims)
		copy(out, data[:dims])
		return out
	case 3:
		tokens := int(shape[1])
		dims := int(shape[2])
		out := make([]float32, dims)
		for t := 0; t < tokens; t++ {
			for d := 0; d < dims; d++ {
				out[d] += data[t*dims+d]
			}
		}
		for d := 0; d < dims; d++ {
			out[d] /= float32(tokens)
		}
		return out
	default:
		out := make([]float32, len(data))
		copy(out, data)
		return out
	}
}

func (e *onnxExtractor) ModelName() string {
	return e.modelName
}

func (e *onnxExtractor) Close() error {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	return nil
}
