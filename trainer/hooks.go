package trainer

// Stats summarizes one iteration of a Phase over the training set
type Stats struct {
	Iteration int

	// mean loss over the examples, as weighted by the Phase
	Cost float64

	// mean unweighted loss of each criterion, if the Phase has more than one
	SubCosts []float64

	// only set by Phases with a supervised criterion
	ClassError    float64
	HasClassError bool

	LearningRate float64
}

// Hooks are called by the Trainer as it runs. Any of them may be nil.
type Hooks struct {
	BeforePhase     func(p Phase)
	AfterPhase      func(p Phase, last Stats)
	BeforeIteration func(p Phase, iter int)
	AfterIteration  func(p Phase, s Stats)
}

func (h Hooks) beforePhase(p Phase) {
	if h.BeforePhase != nil {
		h.BeforePhase(p)
	}
}

func (h Hooks) afterPhase(p Phase, last Stats) {
	if h.AfterPhase != nil {
		h.AfterPhase(p, last)
	}
}

func (h Hooks) beforeIteration(p Phase, iter int) {
	if h.BeforeIteration != nil {
		h.BeforeIteration(p, iter)
	}
}

func (h Hooks) afterIteration(p Phase, s Stats) {
	if h.AfterIteration != nil {
		h.AfterIteration(p, s)
	}
}
