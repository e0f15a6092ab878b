package model

// CompositionRequest is the ephemeral input to the test composer. Weights
// must sum to exactly 100.
type CompositionRequest struct {
	TotalQuestions int      `json:"total_questions" binding:"required,min=1,max=200"`
	EasyPct        int      `json:"easy_pct" binding:"min=0,max=100"`
	ModeratePct    int      `json:"moderate_pct" binding:"min=0,max=100"`
	ExpertPct      int      `json:"expert_pct" binding:"min=0,max=100"`
	Categories     []string `json:"categories" binding:"omitempty,dive,min=1,max=100"`
}

// Composition is the composer output: an ordered, shuffled snapshot list
// plus any per-tier shortfall (pool smaller than the requested count).
type Composition struct {
	Questions []QuestionSnapshot `json:"questions"`
	Shortfall map[Difficulty]int `json:"shortfall,omitempty"`
}
