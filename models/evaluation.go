package models

// Evaluation is the model's per-turn judgement of an answer. It lives for one turn only.
type Evaluation struct {
	Completion   int      `json:"completion" jsonschema:"minimum=0,maximum=100,description=How thoroughly the answer covers the question from 0 to 100"`
	ReadyForNext bool     `json:"readyForNext" jsonschema:"description=Whether the candidate has covered enough to move to the next question"`
	Hints        []string `json:"hints" jsonschema:"description=Short hints about what the candidate has not yet covered"`
}

type RelevanceVerdict struct {
	IsRelevant        bool   `json:"isRelevant" jsonschema:"description=Whether the answer addresses system design and the current question"`
	Reason            string `json:"reason" jsonschema:"description=One sentence explaining the verdict"`
	SuggestedRedirect string `json:"suggestedRedirect" jsonschema:"description=A friendly message steering the candidate back when the answer is not relevant"`
}

type ValidationResult struct {
	IsValid         bool   `json:"isValid"`
	RedirectMessage string `json:"redirectMessage,omitempty"`
}
