package predict

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"houseprice/apperr"
	"houseprice/ml"
)

// CachedSource keeps decoded artifacts keyed by path until the file changes
// or Invalidate is called. Entries are immutable once cached, so concurrent
// predictions share them safely.
type CachedSource struct {
	preprocessorPath string
	modelPath        string

	preprocessors *lru.Cache[string, *ml.Preprocessor]
	models        *lru.Cache[string, *ml.ModelArtifact]
	log           *zap.Logger

	// mu orders cache fills against evictions. generation counts evictions;
	// a decode started before one is never cached.
	mu         sync.Mutex
	generation uint64
}

func NewCachedSource(preprocessorPath, modelPath string, size int, log *zap.Logger) (*CachedSource, error) {
	if log == nil {
		log = zap.NewNop()
	}
	preprocessors, err := lru.New[string, *ml.Preprocessor](size)
	if err != nil {
		return nil, err
	}
	models, err := lru.New[string, *ml.ModelArtifact](size)
	if err != nil {
		return nil, err
	}
	return &CachedSource{
		preprocessorPath: filepath.Clean(preprocessorPath),
		modelPath:        filepath.Clean(modelPath),
		preprocessors:    preprocessors,
		models:           models,
		log:              log,
	}, nil
}

func (s *CachedSource) Load(ctx context.Context) (*Artifacts, error) {
	const op = "predict.CachedSource.Load"

	if err := ctx.Err(); err != nil {
		return nil, apperr.E(apperr.Unknown, op, err)
	}

	pre, preErr := s.preprocessor()
	model, modelErr := s.model()
	if err := multierr.Combine(preErr, modelErr); err != nil {
		return nil, apperr.E(apperr.ArtifactLoad, op, err)
	}
	return pair(pre, model)
}

func (s *CachedSource) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *CachedSource) preprocessor() (*ml.Preprocessor, error) {
	if pre, ok := s.preprocessors.Get(s.preprocessorPath); ok {
		return pre, nil
	}
	gen := s.currentGeneration()
	pre, err := loadPreprocessor(s.preprocessorPath)
	if err != nil {
		return nil, err
	}
	s.storePreprocessor(gen, pre)
	return pre, nil
}

func (s *CachedSource) model() (*ml.ModelArtifact, error) {
	if model, ok := s.models.Get(s.modelPath); ok {
		return model, nil
	}
	gen := s.currentGeneration()
	model, err := loadModel(s.modelPath)
	if err != nil {
		return nil, err
	}
	s.storeModel(gen, model)
	return model, nil
}

// storePreprocessor caches pre unless an eviction happened since gen.
func (s *CachedSource) storePreprocessor(gen uint64, pre *ml.Preprocessor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.preprocessors.Add(s.preprocessorPath, pre)
	return true
}

func (s *CachedSource) storeModel(gen uint64, model *ml.ModelArtifact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.models.Add(s.modelPath, model)
	return true
}

// Invalidate drops every cached artifact.
func (s *CachedSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.preprocessors.Purge()
	s.models.Purge()
}

func (s *CachedSource) evict(path string) {
	path = filepath.Clean(path)

	s.mu.Lock()
	s.generation++
	removed := s.preprocessors.Remove(path)
	removed = s.models.Remove(path) || removed
	s.mu.Unlock()

	if removed {
		s.log.Info("artifact changed, cache entry evicted", zap.String("path", path))
	}
}

// Watch evicts cache entries whose artifact file is written, created, removed
// or renamed. It blocks until ctx is done. ready, when non-nil, is closed once
// the watcher is registered.
func (s *CachedSource) Watch(ctx context.Context, ready chan<- struct{}) error {
	const op = "predict.CachedSource.Watch"

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperr.E(apperr.Unknown, op, err)
	}
	defer watcher.Close()

	dirs := map[string]bool{
		filepath.Dir(s.preprocessorPath): true,
		filepath.Dir(s.modelPath):        true,
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return apperr.E(apperr.ArtifactLoad, op, err)
		}
	}
	if ready != nil {
		close(ready)
	}

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&relevant != 0 {
				s.evict(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("artifact watcher error", zap.Error(err))
		}
	}
}
