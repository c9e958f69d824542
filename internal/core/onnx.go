//go:build !windows

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"pl-ner-backend/internal/core/types"
	"pl-ner-backend/internal/core/utils"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	maxSequenceLength = 512
	// words per inference window; HerBERT splits most Polish words into
	// two or three subword tokens
	onnxWindowWords = 128
)

var (
	initOnce sync.Once
	initErr  error
)

var ErrOnnxRuntimeNotInitialized = errors.New("onnxruntime environment is not initialized")

func InitOnnxRuntime(dylib string) error {
	initOnce.Do(func() {
		if dylib != "" {
			ort.SetSharedLibraryPath(dylib)
		}
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

func DestroyOnnxRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

type OnnxModel struct {
	session   *ort.DynamicAdvancedSession
	tokenizer *tokenizers.Tokenizer
	inputs    []string
	labels    []string
}

func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg struct {
		Id2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing model config: %w", err)
	}

	labels := make([]string, len(cfg.Id2Label))
	for i := range labels {
		label, ok := cfg.Id2Label[strconv.Itoa(i)]
		if !ok {
			return nil, fmt.Errorf("model config is missing label %d", i)
		}
		labels[i] = label
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("model config has no labels")
	}
	return labels, nil
}

func LoadOnnxModel(modelDir string) (Model, error) {
	if !ort.IsInitialized() {
		return nil, ErrOnnxRuntimeNotInitialized
	}

	onnxPath := filepath.Join(modelDir, "model.onnx")

	labels, err := loadLabels(filepath.Join(modelDir, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("label load: %w", err)
	}

	tk, err := tokenizers.FromFile(filepath.Join(modelDir, "tokenizer.json"))
	if err != nil {
		return nil, fmt.Errorf("tokenizer load: %w", err)
	}

	inputInfo, _, err := ort.GetInputOutputInfo(onnxPath)
	if err != nil {
		tk.Close()
		return nil, fmt.Errorf("error reading model inputs: %w", err)
	}
	inputs := make([]string, 0, len(inputInfo))
	for _, info := range inputInfo {
		inputs = append(inputs, info.Name)
	}

	session, err := ort.NewDynamicAdvancedSession(onnxPath, inputs, []string{"logits"}, nil)
	if err != nil {
		tk.Close()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &OnnxModel{
		session:   session,
		tokenizer: tk,
		inputs:    inputs,
		labels:    labels,
	}, nil
}

func (m *OnnxModel) Predict(text string) ([]types.Entity, error) {
	runes := []rune(text)
	runeOffsets := types.ByteToRuneOffsets(text)

	sentences, startOffsets := utils.SplitTextCustomLength(text, onnxWindowWords)

	var ents []types.Entity
	for i, sentence := range sentences {
		preds, err := m.classify(sentence)
		if err != nil {
			return nil, err
		}

		for _, group := range aggregateSimple(preds) {
			start := runeOffsets[startOffsets[i]+group.start]
			end := runeOffsets[startOffsets[i]+group.end]
			ents = append(ents, types.CreateEntityWithRune(group.label, runes, start, end, group.score))
		}
	}

	return ents, nil
}

func (m *OnnxModel) classify(sentence string) ([]tokenPrediction, error) {
	enc := m.tokenizer.EncodeWithOptions(sentence, true, tokenizers.WithReturnAllAttributes())

	L := min(len(enc.IDs), maxSequenceLength)
	features := map[string][]int64{
		"input_ids":      make([]int64, L),
		"attention_mask": make([]int64, L),
		"token_type_ids": make([]int64, L),
	}
	for i := 0; i < L; i++ {
		features["input_ids"][i] = int64(enc.IDs[i])
		features["attention_mask"][i] = 1
		if i < len(enc.TypeIDs) {
			features["token_type_ids"][i] = int64(enc.TypeIDs[i])
		}
	}

	inputs := make([]ort.Value, 0, len(m.inputs))
	defer func() {
		for _, t := range inputs {
			t.Destroy()
		}
	}()
	for _, name := range m.inputs {
		data, ok := features[name]
		if !ok {
			return nil, fmt.Errorf("unsupported model input '%s'", name)
		}
		t, err := ort.NewTensor(ort.NewShape(1, int64(L)), data)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, t)
	}

	N := len(m.labels)
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(L), int64(N)))
	if err != nil {
		return nil, err
	}
	defer out.Destroy()

	if err := m.session.Run(inputs, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("session run error: %w", err)
	}

	logits := out.GetData()
	preds := make([]tokenPrediction, 0, L)
	for t := 0; t < L; t++ {
		if t < len(enc.SpecialTokensMask) && enc.SpecialTokensMask[t] == 1 {
			continue
		}
		start, end := int(enc.Offsets[t][0]), int(enc.Offsets[t][1])
		if start == end {
			continue
		}

		label, score := argmaxSoftmax(logits[t*N : (t+1)*N])
		preds = append(preds, tokenPrediction{label: m.labels[label], score: score, start: start, end: end})
	}

	return preds, nil
}

func (m *OnnxModel) Release() {
	m.session.Destroy()
	m.tokenizer.Close()
}
