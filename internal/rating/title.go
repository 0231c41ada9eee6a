package rating

// Rung is one step of a title ladder: totals strictly below Below earn Label.
type Rung struct {
	Below int
	Label string
}

// Ladder maps a star total to a title. Rungs are checked in order; totals that
// clear every rung earn Top.
type Ladder struct {
	Rungs []Rung
	Top   string
}

// Titles holds the display strings for each rung of the default ladder.
// Deployments override these with localized labels.
type Titles struct {
	Novice          string `mapstructure:"novice"`
	Explorer        string `mapstructure:"explorer"`
	FutureArchitect string `mapstructure:"future_architect"`
	Master          string `mapstructure:"master"`
	GrandMaster     string `mapstructure:"grand_master"`
}

// DefaultTitles returns the placeholder English labels.
func DefaultTitles() Titles {
	return Titles{
		Novice:          "novice",
		Explorer:        "explorer",
		FutureArchitect: "future architect",
		Master:          "master",
		GrandMaster:     "grand master",
	}
}

// NewLadder builds the fixed 5/10/15/20 ladder with the given labels.
func NewLadder(t Titles) Ladder {
	return Ladder{
		Rungs: []Rung{
			{Below: 5, Label: t.Novice},
			{Below: 10, Label: t.Explorer},
			{Below: 15, Label: t.FutureArchitect},
			{Below: 20, Label: t.Master},
		},
		Top: t.GrandMaster,
	}
}

// DefaultLadder is NewLadder(DefaultTitles()).
func DefaultLadder() Ladder {
	return NewLadder(DefaultTitles())
}

// Title returns the label earned by a star total.
func (l Ladder) Title(total int) string {
	for _, r := range l.Rungs {
		if total < r.Below {
			return r.Label
		}
	}
	return l.Top
}
