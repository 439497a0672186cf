package rank

// Match is the winning service and its relevance. Service is empty when
// nothing scored.
type Match struct {
	Service string `json:"service"`
	Score   int    `json:"score"`
}

type Scorer interface {
	Categorize(name, description, industry string) Match
}
