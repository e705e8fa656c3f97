package models

type TurnKind string

const (
	TurnRedirect TurnKind = "redirect"
	TurnFollowup TurnKind = "followup"
	TurnAdvance  TurnKind = "advance"
	TurnComplete TurnKind = "complete"
	TurnError    TurnKind = "error"
)

// TurnOutcome is the closed set of ways a turn can end. Each variant carries only its own fields.
type TurnOutcome interface {
	Kind() TurnKind
	Result() TurnResult
	turnOutcome()
}

type RedirectTurn struct {
	Message string
}

type FollowupTurn struct {
	Message    string
	Hints      []string
	Completion int
}

type AdvanceTurn struct {
	Message           string
	NextQuestionIndex int
	Reasons           []string
	// Skipped is set when the current question was malformed and passed over.
	Skipped bool
}

type CompleteTurn struct {
	Message string
	Reasons []string
	// Advanced is false when the interview ends because no question exists at the index.
	Advanced bool
}

type ErrorTurn struct {
	Message string
}

func (RedirectTurn) Kind() TurnKind { return TurnRedirect }
func (FollowupTurn) Kind() TurnKind { return TurnFollowup }
func (AdvanceTurn) Kind() TurnKind  { return TurnAdvance }
func (CompleteTurn) Kind() TurnKind { return TurnComplete }
func (ErrorTurn) Kind() TurnKind    { return TurnError }

func (RedirectTurn) turnOutcome() {}
func (FollowupTurn) turnOutcome() {}
func (AdvanceTurn) turnOutcome()  {}
func (CompleteTurn) turnOutcome() {}
func (ErrorTurn) turnOutcome()    {}

// TurnResult is the flattened wire shape of a TurnOutcome.
type TurnResult struct {
	Type              TurnKind `json:"type"`
	Message           string   `json:"message"`
	ShouldAdvance     bool     `json:"shouldAdvance"`
	Hints             []string `json:"hints"`
	IsComplete        bool     `json:"isComplete,omitempty"`
	IsError           bool     `json:"isError,omitempty"`
	NextQuestionIndex *int     `json:"nextQuestionIndex,omitempty"`
	Reasons           []string `json:"reasons,omitempty"`
}

func (t RedirectTurn) Result() TurnResult {
	return TurnResult{Type: TurnRedirect, Message: t.Message, Hints: []string{}}
}

func (t FollowupTurn) Result() TurnResult {
	hints := t.Hints
	if hints == nil {
		hints = []string{}
	}
	return TurnResult{Type: TurnFollowup, Message: t.Message, Hints: hints}
}

func (t AdvanceTurn) Result() TurnResult {
	next := t.NextQuestionIndex
	return TurnResult{
		Type:              TurnAdvance,
		Message:           t.Message,
		ShouldAdvance:     true,
		Hints:             []string{},
		NextQuestionIndex: &next,
		Reasons:           t.Reasons,
	}
}

func (t CompleteTurn) Result() TurnResult {
	return TurnResult{
		Type:          TurnComplete,
		Message:       t.Message,
		ShouldAdvance: t.Advanced,
		Hints:         []string{},
		IsComplete:    true,
		Reasons:       t.Reasons,
	}
}

func (t ErrorTurn) Result() TurnResult {
	return TurnResult{Type: TurnError, Message: t.Message, Hints: []string{}, IsError: true}
}
