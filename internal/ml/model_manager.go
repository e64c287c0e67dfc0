package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ModelVersion represents a saved classifier checkpoint
type ModelVersion struct {
	Version   string       `json:"version"`
	Path      string       `json:"path"`
	CreatedAt time.Time    `json:"created_at"`
	Metrics   ModelMetrics `json:"metrics"`
	IsActive  bool         `json:"is_active"`
}

// ModelMetrics records how the classifier performed when the checkpoint was taken
type ModelMetrics struct {
	TrainingSteps int     `json:"training_steps"`
	Samples       int     `json:"samples"`
	Accuracy      float64 `json:"accuracy"`
	BrierScore    float64 `json:"brier_score"`
	LogLoss       float64 `json:"log_loss"`
}

// ModelManager handles checkpoint versioning and rollback
type ModelManager struct {
	modelsDir    string
	versionsFile string
	versions     []ModelVersion
	currentModel *ModelVersion
	now          func() time.Time
	mu           sync.Mutex
}

// NewModelManager creates the models directory if needed and loads the version index.
func NewModelManager(modelsDir string) (*ModelManager, error) {
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create models dir: %w", err)
	}

	mm := &ModelManager{
		modelsDir:    modelsDir,
		versionsFile: filepath.Join(modelsDir, "model_versions.json"),
		versions:     make([]ModelVersion, 0),
		now:          time.Now,
	}

	if err := mm.loadVersions(); err != nil {
		log.Warn().Err(err).Msg("Failed to load model versions, starting fresh")
	}

	return mm, nil
}

// Save writes a checkpoint of c, records it and makes it the active version.
func (mm *ModelManager) Save(c *Classifier, metrics ModelMetrics) (ModelVersion, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	created := mm.now().UTC()
	version := created.Format("20060102-150405.000000000")
	path := filepath.Join(mm.modelsDir, "classifier-"+version+".json")

	if metrics.TrainingSteps == 0 {
		metrics.TrainingSteps = c.Steps()
	}
	if err := c.SaveFile(path); err != nil {
		return ModelVersion{}, fmt.Errorf("save checkpoint: %w", err)
	}

	mm.versions = append(mm.versions, ModelVersion{
		Version:   version,
		Path:      path,
		CreatedAt: created,
		Metrics:   metrics,
	})

	// Newest first
	sort.Slice(mm.versions, func(i, j int) bool {
		return mm.versions[i].CreatedAt.After(mm.versions[j].CreatedAt)
	})

	if err := mm.activate(version); err != nil {
		return ModelVersion{}, err
	}

	log.Info().Str("version", version).Int("steps", metrics.TrainingSteps).Msg("checkpoint saved")
	return *mm.currentModel, nil
}

// LoadActive restores the active checkpoint into c. It returns false when
// no version is active yet.
func (mm *ModelManager) LoadActive(c *Classifier) (bool, error) {
	mm.mu.Lock()
	current := mm.currentModel
	mm.mu.Unlock()

	if current == nil {
		return false, nil
	}
	if err := c.LoadFile(current.Path); err != nil {
		return false, err
	}
	log.Info().Str("version", current.Version).Msg("checkpoint restored")
	return true, nil
}

// ActivateVersion activates a specific model version
func (mm *ModelManager) ActivateVersion(version string) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.activate(version)
}

func (mm *ModelManager) activate(version string) error {
	found := false
	for i := range mm.versions {
		if mm.versions[i].Version == version {
			mm.versions[i].IsActive = true
			mm.currentModel = &mm.versions[i]
			found = true
		} else {
			mm.versions[i].IsActive = false
		}
	}

	if !found {
		return fmt.Errorf("version %s not found", version)
	}

	return mm.saveVersions()
}

// Rollback activates the version saved before the active one.
func (mm *ModelManager) Rollback() error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if len(mm.versions) < 2 {
		return fmt.Errorf("no previous version available for rollback")
	}

	currentIdx := -1
	for i, v := range mm.versions {
		if v.IsActive {
			currentIdx = i
			break
		}
	}

	if currentIdx == -1 {
		return fmt.Errorf("no active version found")
	}

	if currentIdx+1 < len(mm.versions) {
		return mm.activate(mm.versions[currentIdx+1].Version)
	}

	return fmt.Errorf("no previous version available")
}

// GetCurrentVersion returns the currently active version
func (mm *ModelManager) GetCurrentVersion() *ModelVersion {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.currentModel == nil {
		return nil
	}
	v := *mm.currentModel
	return &v
}

// ListVersions returns all versions, newest first
func (mm *ModelManager) ListVersions() []ModelVersion {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	out := make([]ModelVersion, len(mm.versions))
	copy(out, mm.versions)
	return out
}

func (mm *ModelManager) loadVersions() error {
	data, err := os.ReadFile(mm.versionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, &mm.versions); err != nil {
		return err
	}

	for i := range mm.versions {
		if mm.versions[i].IsActive {
			mm.currentModel = &mm.versions[i]
			break
		}
	}

	return nil
}

func (mm *ModelManager) saveVersions() error {
	data, err := json.MarshalIndent(mm.versions, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(mm.versionsFile, data, 0o600)
}
