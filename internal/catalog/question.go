package catalog

// Content is the learner-facing body of a question.
type Content struct {
	Text         string `json:"text" yaml:"text"`
	Image        string `json:"image,omitempty" yaml:"image,omitempty"`
	FormulaLatex string `json:"formula_latex,omitempty" yaml:"formula_latex,omitempty"`
}

// Hint is one scaffolding step attached to a question.
type Hint struct {
	Level int    `json:"level,omitempty" yaml:"level,omitempty"`
	Text  string `json:"text" yaml:"text"`
}

// Question is a validated question descriptor.
type Question struct {
	ID            string   `json:"question_id" yaml:"question_id"`
	Content       Content  `json:"content" yaml:"content"`
	Type          string   `json:"question_type,omitempty" yaml:"question_type,omitempty"`
	Options       []string `json:"options,omitempty" yaml:"options,omitempty"`
	KC            string   `json:"knowledge_component" yaml:"knowledge_component"`
	Difficulty    int      `json:"difficulty_level" yaml:"difficulty_level"`
	CorrectAnswer string   `json:"correct_answer" yaml:"correct_answer"`
	Hints         []Hint   `json:"hints,omitempty" yaml:"hints,omitempty"`
}

// Public returns a copy with the correct answer removed, suitable for serving
// to a learner before they answer.
func (q Question) Public() Question {
	q.CorrectAnswer = ""
	return q
}
