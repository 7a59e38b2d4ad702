package ops

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-ndbuffer/internal/buffer"
)

// Registry maps operation names to factories, one namespace per family.
// Names are case-sensitive and matched exactly.
type Registry struct {
	mu        sync.RWMutex
	factories map[Family]map[string]Factory
}

// NewRegistry creates a registry with every built-in reduction and transform.
func NewRegistry() *Registry {
	r := &Registry{
		factories: map[Family]map[string]Factory{
			Reduction: {},
			Transform: {},
			Loss:      {},
		},
	}

	r.registerReductions()
	r.registerTransforms()

	return r
}

// Register adds a factory under name. Registering a name twice in the same
// family is an error.
func (r *Registry) Register(family Family, name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("%w: register needs a name and a factory", buffer.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	names, ok := r.factories[family]
	if !ok {
		return fmt.Errorf("%w: unknown family %d", buffer.ErrInvalidArgument, family)
	}
	if _, dup := names[name]; dup {
		return fmt.Errorf("%w: %s %q already registered", buffer.ErrInvalidArgument, family, name)
	}
	names[name] = factory
	return nil
}

func (r *Registry) mustRegister(family Family, name string, factory Factory) {
	if err := r.Register(family, name, factory); err != nil {
		panic(err)
	}
}

// Resolve binds the operation registered under name to operands. The number
// of operands selects the arity:
//
//	(x)       Unary
//	(x, y)    UnaryWithOutput for transforms, Binary for reductions
//	(x, y, z) BinaryWithOutputAndLength, with N = len(x) for reductions
func (r *Registry) Resolve(family Family, name string, operands ...Array) (Operation, error) {
	op, err := r.resolve(family, name, operands)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		log.Debug().Err(err).Str("family", family.String()).Str("name", name).Msg("Operation resolution failed")
	}
	resolutionsTotal.WithLabelValues(family.String(), outcome).Inc()
	return op, err
}

func (r *Registry) resolve(family Family, name string, operands []Array) (Operation, error) {
	r.mu.RLock()
	factory, ok := r.factories[family][name]
	r.mu.RUnlock()

	if !ok {
		if family == Loss {
			return Operation{}, fmt.Errorf("%w: loss function %q", buffer.ErrNotImplemented, name)
		}
		return Operation{}, fmt.Errorf("%w: Illegal name %s", buffer.ErrInvalidArgument, name)
	}

	b, err := bindOperands(family, operands)
	if err != nil {
		return Operation{}, fmt.Errorf("resolve %s %q: %w", family, name, err)
	}

	op := factory(b)
	op.Name = name
	op.Family = family
	return op, nil
}

func bindOperands(family Family, operands []Array) (Binding, error) {
	if len(operands) == 0 || len(operands) > 3 {
		return Binding{}, fmt.Errorf("%w: expected 1 to 3 operands, got %d", buffer.ErrInvalidArgument, len(operands))
	}
	for i, a := range operands {
		if isNil(a) {
			return Binding{}, fmt.Errorf("%w: operand %d is nil", buffer.ErrInvalidArgument, i)
		}
	}

	b := Binding{X: operands[0]}
	switch len(operands) {
	case 1:
		b.Arity = Unary
	case 2:
		b.Y = operands[1]
		if family == Transform {
			b.Arity = UnaryWithOutput
		} else {
			b.Arity = Binary
		}
	case 3:
		b.Arity = BinaryWithOutputAndLength
		b.Y = operands[1]
		b.Z = operands[2]
		if family == Reduction {
			b.N = b.X.Length()
		}
	}
	return b, nil
}

// isNil also catches nil pointers wrapped in a non-nil interface.
func isNil(a Array) bool {
	if a == nil {
		return true
	}
	v := reflect.ValueOf(a)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// ResolveLoss resolves a loss function. No loss functions are built in.
func (r *Registry) ResolveLoss(name string, x, y Array) (Operation, error) {
	return r.Resolve(Loss, name, x, y)
}

// Names returns the registered names of a family in sorted order.
func (r *Registry) Names(family Family) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories[family]))
	for name := range r.factories[family] {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
