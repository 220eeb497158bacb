package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SampleCorpus returns the built-in GPU operations knowledge base
func SampleCorpus() []Chunk {
	return []Chunk{
		{
			ID:     "1",
			Text:   "GPU temperature should not exceed 83C under sustained load. If it does, check fan speeds and thermal paste.",
			Source: "gpu_ops_manual.md",
		},
		{
			ID:     "2",
			Text:   "ECC errors on NVIDIA GPUs can indicate failing VRAM. Run nvidia-smi -q -d ECC to check error counts.",
			Source: "gpu_troubleshooting.md",
		},
		{
			ID:     "3",
			Text:   "CUDA Out of Memory errors can be resolved by reducing batch size, enabling gradient checkpointing, or using mixed precision training.",
			Source: "ml_ops_guide.md",
		},
		{
			ID:     "4",
			Text:   "NVLink errors between GPUs may indicate a hardware issue. Reseat the NVLink bridge and run nvidia-smi nvlink -s.",
			Source: "gpu_troubleshooting.md",
		},
		{
			ID:     "5",
			Text:   "Driver version mismatches between CUDA toolkit and GPU driver can cause runtime errors. Use nvidia-smi and nvcc --version to verify.",
			Source: "driver_guide.md",
		},
		{
			ID:     "6",
			Text:   "To monitor GPU utilization in real-time, use nvidia-smi dmon or gpustat for a cleaner output.",
			Source: "monitoring_guide.md",
		},
	}
}

// LoadCorpus reads chunks from a YAML or JSON file, chosen by extension
func LoadCorpus(path string) ([]Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	var chunks []Chunk
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &chunks)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &chunks)
	default:
		return nil, fmt.Errorf("unsupported corpus format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse corpus file: %w", err)
	}

	for i := range chunks {
		if chunks[i].Text == "" {
			return nil, fmt.Errorf("corpus chunk %d has no text", i)
		}
		if chunks[i].ID == "" {
			chunks[i].ID = fmt.Sprintf("%d", i+1)
		}
		chunks[i].Score = 0
	}
	return chunks, nil
}
