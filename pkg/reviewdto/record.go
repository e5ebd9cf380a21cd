package reviewdto

type Move struct {
	UCI   string `json:"uci"`
	SAN   string `json:"san"`
	Color string `json:"color"`
}

// Evaluation is always from White's point of view.
type Evaluation struct {
	Kind  string   `json:"kind"` // "cp", "mate" or "none"
	Pawns *float64 `json:"pawns,omitempty"`
	Mate  *int     `json:"mate,omitempty"`
	Text  string   `json:"text"`
	Plot  *float64 `json:"plot,omitempty"`
}

type Record struct {
	Index        int        `json:"index"`
	FEN          string     `json:"fen"`
	Played       *Move      `json:"played,omitempty"`
	Eval         Evaluation `json:"eval"`
	BestMove     string     `json:"bestMove,omitempty"`
	Principal    []string   `json:"pv,omitempty"`
	PrincipalSAN []string   `json:"pvSan,omitempty"`
	Depth        int        `json:"depth"`
	Pass1Done    bool       `json:"pass1Done"`
	Pass2Done    bool       `json:"pass2Done"`
	Loss         *int       `json:"loss,omitempty"`
	Label        string     `json:"label,omitempty"`
}

// RecordEvent is published when a record changes.
type RecordEvent struct {
	ReviewID string `json:"reviewId"`
	Index    int    `json:"index"`
	Record   Record `json:"record"`
}
