package jointnet

import "sort"

// Float is the element type losses and predictions are carried in.
type Float interface {
	~float32 | ~float64
}

// LossRecord maps loss nodes to the scalar they produced in one pass.
type LossRecord[T Float] map[ID]T

// Get returns the value for a loss node. A missing entry means the graph and its
// consumer disagree about the topology.
func (r LossRecord[T]) Get(id ID) (T, error) {
	v, ok := r[id]
	if !ok {
		return 0, topologyErr("loss record has no entry for %v", id)
	}
	return v, nil
}

// Named converts the record to engine keys.
func (r LossRecord[T]) Named() map[string]T {
	retVal := make(map[string]T, len(r))
	for id, v := range r {
		retVal[id.String()] = v
	}
	return retVal
}

// Keys returns the loss nodes in the record, ordered by step then role.
func (r LossRecord[T]) Keys() []ID {
	retVal := make([]ID, 0, len(r))
	for id := range r {
		retVal = append(retVal, id)
	}
	sort.Slice(retVal, func(i, j int) bool {
		if retVal[i].Step != retVal[j].Step {
			return retVal[i].Step < retVal[j].Step
		}
		return retVal[i].Role < retVal[j].Role
	})
	return retVal
}

// ParseLossRecord converts engine keys back to typed identifiers.
func ParseLossRecord[T Float](m map[string]T) (LossRecord[T], error) {
	retVal := make(LossRecord[T], len(m))
	for k, v := range m {
		id, err := ParseID(k)
		if err != nil {
			return nil, err
		}
		if id.Role.Kind() != Loss {
			return nil, topologyErr("%v is not a loss node", id)
		}
		retVal[id] = v
	}
	return retVal, nil
}
