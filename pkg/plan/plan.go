package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan is a YAML manifest describing a batch of NEM12 files to convert in
// one invocation. Per-file settings override the plan-level ones.
type Plan struct {
	BatchSize int    `yaml:"batch_size"`
	OutputDir string `yaml:"output_dir"`
	Files     []File `yaml:"files"`
}

// File is one conversion job within a plan.
type File struct {
	Path      string `yaml:"path"`
	Output    string `yaml:"output"`
	BatchSize int    `yaml:"batch_size"`
}

func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	if len(p.Files) == 0 {
		return nil, fmt.Errorf("plan has no files")
	}
	for i, f := range p.Files {
		if f.Path == "" {
			return nil, fmt.Errorf("plan file %d has no path", i+1)
		}
	}
	return &p, nil
}

// EffectiveBatchSize resolves the batch size for one job: per-file value,
// then plan-level, then the given fallback.
func (p *Plan) EffectiveBatchSize(f File, fallback int) int {
	if f.BatchSize > 0 {
		return f.BatchSize
	}
	if p.BatchSize > 0 {
		return p.BatchSize
	}
	return fallback
}

func (p *Plan) Print() {
	for i, f := range p.Files {
		fmt.Printf("[%d] path=%s output=%s batch_size=%d\n", i+1, f.Path, f.Output, f.BatchSize)
	}
}
