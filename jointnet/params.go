package jointnet

import "fmt"

// ParamName names a shared weight.
type ParamName byte

const (
	WEmbed ParamName = iota
	WEvent2H
	WTime2H
	WH2H
	WHidden2
	WEventOut
	WTimeOut

	MAXPARAM
)

var paramNames = [...]string{
	WEmbed:    "w_embed",
	WEvent2H:  "w_event2h",
	WTime2H:   "w_time2h",
	WH2H:      "w_h2h",
	WHidden2:  "w_hidden2",
	WEventOut: "w_event_out",
	WTimeOut:  "w_time_out",
}

func (p ParamName) String() string {
	if p < MAXPARAM {
		return paramNames[p]
	}
	return fmt.Sprintf("ParamName(%d)", byte(p))
}

// Init is the initialization policy of a shared weight: zero centred, with the given scale.
// The distribution itself is up to the execution engine.
type Init struct {
	Scale float64
}

// Param is a shared weight. It is created once and referenced by pointer from every step.
type Param struct {
	Name       ParamName
	Rows, Cols int
	Init       Init
}

// Shape returns the (rows, cols) shape of the weight.
func (p *Param) Shape() (rows, cols int) { return p.Rows, p.Cols }

func (p *Param) String() string { return fmt.Sprintf("%v(%d×%d)", p.Name, p.Rows, p.Cols) }

// ParamStore owns the shared weights of a network. It is write-once, read-many.
type ParamStore struct {
	params map[ParamName]*Param
	order  []ParamName
}

// NewParamStore creates an empty store.
func NewParamStore() *ParamStore {
	return &ParamStore{params: make(map[ParamName]*Param)}
}

// CreateOrGet returns the weight with the given name, creating it if needed.
// Asking for an existing weight with a different shape is a topology error.
func (s *ParamStore) CreateOrGet(name ParamName, rows, cols int, init Init) (*Param, error) {
	if name >= MAXPARAM {
		return nil, topologyErr("unknown parameter %v", name)
	}
	if rows <= 0 || cols <= 0 {
		return nil, topologyErr("parameter %v has degenerate shape %d×%d", name, rows, cols)
	}
	if p, ok := s.params[name]; ok {
		if p.Rows != rows || p.Cols != cols {
			return nil, topologyErr("parameter %v already registered as %d×%d, asked for %d×%d", name, p.Rows, p.Cols, rows, cols)
		}
		return p, nil
	}
	p := &Param{Name: name, Rows: rows, Cols: cols, Init: init}
	s.params[name] = p
	s.order = append(s.order, name)
	return p, nil
}

// Get looks up a weight that was previously created.
func (s *ParamStore) Get(name ParamName) (*Param, error) {
	if p, ok := s.params[name]; ok {
		return p, nil
	}
	return nil, topologyErr("parameter %v was never created", name)
}

// Has reports whether the weight exists.
func (s *ParamStore) Has(name ParamName) bool {
	_, ok := s.params[name]
	return ok
}

// All returns the weights in creation order.
func (s *ParamStore) All() []*Param {
	retVal := make([]*Param, 0, len(s.order))
	for _, n := range s.order {
		retVal = append(retVal, s.params[n])
	}
	return retVal
}

// Len returns the number of weights.
func (s *ParamStore) Len() int { return len(s.order) }

// InitParams registers every weight the configuration needs.
func InitParams(s *ParamStore, conf Config) error {
	init := Init{Scale: conf.WScale}
	type shape struct {
		name       ParamName
		rows, cols int
	}
	shapes := []shape{
		{WEmbed, conf.NumEventTypes, conf.Embed},
		{WEvent2H, conf.Embed, conf.Hidden},
		{WTime2H, conf.TimeDim, conf.Hidden},
		{WH2H, conf.Hidden, conf.Hidden},
	}
	if conf.Hidden2 > 0 {
		shapes = append(shapes, shape{WHidden2, conf.Hidden, conf.Hidden2})
	}
	top := conf.TopHidden()
	shapes = append(shapes,
		shape{WEventOut, top, conf.NumEventTypes},
		shape{WTimeOut, top, 1},
	)
	for _, sp := range shapes {
		if _, err := s.CreateOrGet(sp.name, sp.rows, sp.cols, init); err != nil {
			return err
		}
	}
	return nil
}
