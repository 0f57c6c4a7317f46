package dto

// 对局的只读视图，供 REST 接口查询
type GameStateResponse struct {
	FEN     string `json:"fen"`
	Turn    string `json:"turn"`
	Outcome string `json:"outcome"`
	// 对局未结束时为空
	Method string `json:"method,omitempty"`

	FirstSeatTaken  bool `json:"first_seat_taken"`
	SecondSeatTaken bool `json:"second_seat_taken"`
	Connections     int  `json:"connections"`
}
