// Package skill provides the catalog of analytics skills.
//
// A skill bundles a named capability: the models it runs, the pipeline
// topology that drives them, the alert detector that judges its output, and
// the assembly function that folds raw model responses into one canonical
// DetectionResult. The catalog is built once at process start from static
// definitions and is read-only afterwards, so it is shared freely across
// concurrent invocations.
package skill

import (
	"sort"
	"sync"

	"github.com/visionedge/engine/internal/alert"
	"github.com/visionedge/engine/pkg/models"
)

// Assembler folds the ordered list of raw model responses into the skill's
// canonical result.
type Assembler func(responses []models.InferenceResponse) (models.DetectionResult, error)

// Skill is one named analytics capability. Immutable after construction.
type Skill struct {
	Name     string
	Models   []models.ModelDescriptor
	Topology models.Topology
	Detector alert.Detector
	Assemble Assembler
}

// Catalog maps skill names to their definitions.
type Catalog struct {
	mu     sync.RWMutex
	skills map[string]*Skill
}

// NewCatalog creates an empty catalog. Use NewBuiltinCatalog for the
// standard skill set.
func NewCatalog() *Catalog {
	return &Catalog{skills: make(map[string]*Skill)}
}

// Register adds a skill definition. Intended for startup wiring only; the
// skill set is static once the process is serving.
func (c *Catalog) Register(s *Skill) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skills[s.Name] = s
}

// Get returns the named skill, or ErrSkillNotFound.
func (c *Catalog) Get(name string) (*Skill, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.skills[name]
	if !ok {
		return nil, models.ErrSkillNotFound
	}
	return s, nil
}

// List returns all registered skill names, sorted.
func (c *Catalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.skills))
	for name := range c.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered skills.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.skills)
}
