package reviewdto

type LoadRequest struct {
	PGN string `json:"pgn,omitempty"`
	FEN string `json:"fen,omitempty"`
}

type PlayMoveRequest struct {
	FromPly int    `json:"fromPly"`
	Move    string `json:"move"`
}

type PlayMoveResponse struct {
	Index  int    `json:"index"`
	Record Record `json:"record"`
}

type AnalyzeResponse struct {
	Queued int `json:"queued"`
}

type Progress struct {
	Summary     string `json:"summary"`
	State       string `json:"state"`
	Unavailable bool   `json:"unavailable"`
	Plies       int    `json:"plies"`
	Pass1       int    `json:"pass1"`
	Pass2       int    `json:"pass2"`
	Queued      int    `json:"queued"`
	Current     *int   `json:"current,omitempty"`
}

type SideAccuracy struct {
	Average *float64 `json:"average,omitempty"`
	Moves   int      `json:"moves"`
}

type Accuracy struct {
	White SideAccuracy `json:"white"`
	Black SideAccuracy `json:"black"`
}
