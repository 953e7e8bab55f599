//go:build onnx
// +build onnx

package classifier

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/config"
	"github.com/trainguard/img-sentinel/internal/fusion"
	"github.com/trainguard/img-sentinel/internal/imaging"
)

// onnxClassifier runs the detection model through ONNX Runtime. The
// model loads once on first use; a load failure is sticky and every
// later Classify returns it.
type onnxClassifier struct {
	modelName string
	modelPath string
	inputSize int
	labels    []string
	logger    *zap.Logger

	loadOnce   sync.Once
	loadErr    error
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string

	mu sync.Mutex
}

func newONNXClassifier(cfg *config.ClassifierConfig, logger *zap.Logger) (Classifier, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model_path is required for the classifier")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not accessible: %w", err)
	}

	return &onnxClassifier{
		modelName: cfg.ModelName,
		modelPath: cfg.ModelPath,
		inputSize: cfg.InputSize,
		labels:    cfg.Labels,
		logger:    logger,
	}, nil
}

func (c *onnxClassifier) load() {
	if shlib := os.Getenv("ONNXRUNTIME_SHARED_LIB"); shlib != "" {
		ort.SetSharedLibraryPath(shlib)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		c.loadErr = fmt.Errorf("onnx runtime environment init failed: %w", err)
		return
	}

	inputsInfo, outputsInfo, err := ort.GetInputOutputInfo(c.modelPath)
	if err != nil {
		c.loadErr = fmt.Errorf("failed to inspect model IO: %w", err)
		return
	}
	if len(inputsInfo) == 0 || len(outputsInfo) == 0 {
		c.loadErr = fmt.Errorf("model declares no inputs or outputs")
		return
	}
	c.inputName = inputsInfo[0].Name
	c.outputName = outputsInfo[0].Name

	session, err := ort.NewDynamicAdvancedSession(c.modelPath,
		[]string{c.inputName}, []string{c.outputName}, nil)
	if err != nil {
		c.loadErr = fmt.Errorf("session creation failed: %w", err)
		return
	}
	c.session = session

	c.logger.Info("Detection model loaded",
		zap.String("model", c.modelName),
		zap.String("path", c.modelPath),
		zap.Strings("labels", c.labels))
}

func (c *onnxClassifier) Classify(ctx context.Context, data []byte) (*fusion.DetectionEvidence, error) {
	c.loadOnce.Do(c.load)
	if c.loadErr != nil {
		return nil, c.loadErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}

	resized := imaging.Resize(img, c.inputSize)
	tensorData := imaging.NormalizeNCHW(resized, c.inputSize, imaging.ImageNetMean, imaging.ImageNetStd)

	shape := ort.NewShape(1, 3, int64(c.inputSize), int64(c.inputSize))
	inputTensor, err := ort.NewTensor[float32](shape, tensorData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 1)

	c.mu.Lock()
	err = c.session.Run([]ort.Value{inputTensor}, outputs)
	c.mu.Unlock()
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

	logits := outTensor.GetData()
	if len(logits) < len(c.labels) {
		return nil, fmt.Errorf("model produced %d scores for %d labels", len(logits), len(c.labels))
	}

	return mapScores(c.modelName, c.labels, softmax(logits[:len(c.labels)])), nil
}

func (c *onnxClassifier) ModelName() string {
	return c.modelName
}

func (c *onnxClassifier) Close() error {
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	return nil
}
