// Package planfile reads and writes plan metadata stored as YAML
// frontmatter at the top of plan files.
package planfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/example/rig/internal/ports/secondary"
)

const delimiter = "---"

// ErrNoFrontmatter is returned for markdown files without a metadata block.
var ErrNoFrontmatter = errors.New("no frontmatter")

// frontmatter is the on-disk shape of plan metadata.
type frontmatter struct {
	ID           int    `yaml:"id,omitempty"`
	UUID         string `yaml:"uuid,omitempty"`
	Title        string `yaml:"title,omitempty"`
	Status       string `yaml:"status,omitempty"`
	Parent       int    `yaml:"parent,omitempty"`
	Dependencies []int  `yaml:"dependencies,omitempty"`
}

// Reader implements secondary.PlanFileReader.
type Reader struct{}

// NewReader creates a new plan file reader.
func NewReader() *Reader {
	return &Reader{}
}

// Read parses the plan file at path. Markdown files carry their metadata
// between --- lines at the top; .yml and .yaml files are metadata only.
func (r *Reader) Read(path string) (*secondary.PlanFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var raw []byte
	if isYAML(path) {
		raw = data
	} else {
		raw, _, err = split(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	var fm frontmatter
	if err := yaml.Unmarshal(raw, &fm); err != nil {
		return nil, fmt.Errorf("failed to parse plan metadata in %s: %w", path, err)
	}

	return &secondary.PlanFile{
		UUID:         fm.UUID,
		ID:           fm.ID,
		Title:        fm.Title,
		Status:       fm.Status,
		Parent:       fm.Parent,
		Dependencies: fm.Dependencies,
		Path:         path,
	}, nil
}

// Scan reads every plan file under dir, ordered by path. Markdown files
// without frontmatter are skipped; malformed metadata is an error.
func (r *Reader) Scan(dir string) ([]*secondary.PlanFile, error) {
	var plans []*secondary.PlanFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !isPlanFile(path) {
			return nil
		}

		plan, err := r.Read(path)
		if errors.Is(err, ErrNoFrontmatter) {
			return nil
		}
		if err != nil {
			return err
		}
		plans = append(plans, plan)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan plans in %s: %w", dir, err)
	}

	sort.Slice(plans, func(i, j int) bool { return plans[i].Path < plans[j].Path })
	return plans, nil
}

// Write stores plan metadata followed by body at path, replacing the file
// atomically.
func Write(path string, plan *secondary.PlanFile, body string) error {
	meta, err := yaml.Marshal(frontmatter{
		ID:           plan.ID,
		UUID:         plan.UUID,
		Title:        plan.Title,
		Status:       plan.Status,
		Parent:       plan.Parent,
		Dependencies: plan.Dependencies,
	})
	if err != nil {
		return fmt.Errorf("failed to encode plan metadata: %w", err)
	}

	var buf bytes.Buffer
	if isYAML(path) {
		buf.Write(meta)
	} else {
		buf.WriteString(delimiter + "\n")
		buf.Write(meta)
		buf.WriteString(delimiter + "\n")
		if body != "" {
			buf.WriteString("\n")
			buf.WriteString(body)
			if !strings.HasSuffix(body, "\n") {
				buf.WriteString("\n")
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create plan directory: %w", err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}
	return nil
}

// split separates the frontmatter block from the body.
func split(data []byte) (meta []byte, body []byte, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)

	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != delimiter {
		return nil, nil, ErrNoFrontmatter
	}
	offset := len(scanner.Bytes()) + 1

	var block bytes.Buffer
	for scanner.Scan() {
		line := scanner.Bytes()
		offset += len(line) + 1
		if strings.TrimSpace(string(line)) == delimiter {
			if offset > len(data) {
				offset = len(data)
			}
			return block.Bytes(), data[offset:], nil
		}
		block.Write(line)
		block.WriteByte('\n')
	}
	return nil, nil, fmt.Errorf("unterminated frontmatter")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}

func isPlanFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".yml" || ext == ".yaml"
}

// Ensure Reader implements the interface
var _ secondary.PlanFileReader = (*Reader)(nil)
