//go:build windows

package core

import (
	"errors"
	"pl-ner-backend/internal/core/types"
)

var ErrOnnxNotSupportedOnWindows = errors.New("ONNX models are not supported on Windows")

type OnnxModel struct{}

func InitOnnxRuntime(dylib string) error {
	return ErrOnnxNotSupportedOnWindows
}

func DestroyOnnxRuntime() error {
	return nil
}

func LoadOnnxModel(modelDir string) (Model, error) {
	return nil, ErrOnnxNotSupportedOnWindows
}

func (m *OnnxModel) Predict(text string) ([]types.Entity, error) {
	return nil, ErrOnnxNotSupportedOnWindows
}

func (m *OnnxModel) Release() {}
