package onnx

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

const libEnv = "ONNXRUNTIME_LIB"

// LibPath picks the onnxruntime shared library: the configured path wins,
// then $ONNXRUNTIME_LIB, then the usual install locations for this OS.
func LibPath(configured string) string {
	if configured != "" {
		return configured
	}
	if p := os.Getenv(libEnv); p != "" {
		return p
	}
	for _, p := range candidates(runtime.GOOS) {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func candidates(goos string) []string {
	switch goos {
	case "linux":
		return []string{
			filepath.Join("onnxlibs", "libonnxruntime.so"),
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
		}
	case "darwin":
		return []string{
			"/usr/local/lib/libonnxruntime.dylib",
			"/opt/homebrew/lib/libonnxruntime.dylib",
		}
	case "windows":
		return []string{"onnxruntime.dll"}
	default:
		return nil
	}
}

// Init loads the shared library and initializes the ONNX Runtime environment.
// The returned func tears it down.
func Init(configured string) (func(), error) {
	path := LibPath(configured)
	if path == "" {
		return nil, fmt.Errorf("onnxruntime library not found, set libonnx or %s", libEnv)
	}
	slog.Info("Using ONNX Runtime library", slog.String("path", path))

	ort.SetSharedLibraryPath(path)
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
	}
	return func() {
		if err := ort.DestroyEnvironment(); err != nil {
			slog.Error("Failed to destroy ONNX Runtime environment", slog.String("error", err.Error()))
		}
	}, nil
}
