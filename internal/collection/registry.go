package collection

import (
	"fmt"
	"sync"

	"mediavault/internal/domain"
)

// Factory строит определение коллекции из аргументов задачи
type Factory func(args []string) (*Definition, error)

// Registry сопоставляет стабильный идентификатор коллекции с ее определением
type Registry struct {
	mu               sync.RWMutex
	factories        map[string]Factory
	defaultGenerator PathGenerator
}

func NewRegistry(defaultGenerator PathGenerator) *Registry {
	return &Registry{
		factories:        make(map[string]Factory),
		defaultGenerator: defaultGenerator,
	}
}

// Ref - идентификатор коллекции владельца
func Ref(entityType, collection string) string {
	return entityType + ":" + collection
}

// Register проверяет определение и регистрирует его под ref
func (r *Registry) Register(ref string, def *Definition) error {
	if err := r.prepare(ref, def); err != nil {
		return err
	}
	return r.RegisterFactory(ref, func([]string) (*Definition, error) { return def, nil })
}

// RegisterFactory регистрирует конструктор, вызываемый при каждом разрешении ref
func (r *Registry) RegisterFactory(ref string, f Factory) error {
	if ref == "" || f == nil {
		return &domain.InvalidArgumentError{Field: "collection ref", Value: ref, Reason: "ref and factory are required"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[ref]; exists {
		return &domain.InvalidArgumentError{Field: "collection ref", Value: ref, Reason: "already registered"}
	}
	r.factories[ref] = f
	return nil
}

// Resolve возвращает определение коллекции по ref
func (r *Registry) Resolve(ref string, args []string) (*Definition, error) {
	r.mu.RLock()
	f, ok := r.factories[ref]
	r.mu.RUnlock()
	if !ok {
		return nil, &domain.InvalidArgumentError{Field: "collection ref", Value: ref, Reason: "not registered"}
	}

	def, err := f(args)
	if err != nil {
		return nil, fmt.Errorf("failed to build collection %s: %w", ref, err)
	}
	if err := r.prepare(ref, def); err != nil {
		return nil, err
	}
	return def, nil
}

func (r *Registry) prepare(ref string, def *Definition) error {
	if def == nil {
		return &domain.InvalidArgumentError{Field: "collection", Value: ref, Reason: "definition is nil"}
	}
	if err := def.Err(); err != nil {
		return fmt.Errorf("collection %s: %w", ref, err)
	}
	if def.pathGenerator == nil {
		if r.defaultGenerator == nil {
			return &domain.InvalidArgumentError{Field: "path generator", Value: ref, Reason: "no default path generator"}
		}
		def.pathGenerator = r.defaultGenerator
	}
	return nil
}
