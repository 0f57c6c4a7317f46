package engine

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// StandardFEN is the standard chess starting position.
const StandardFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type ChessEngine struct {
	game *chess.Game
}

// NewChessEngine starts a game from startFEN, or from the standard position
// when startFEN is empty.
func NewChessEngine(startFEN string) (*ChessEngine, error) {
	if startFEN == "" {
		return &ChessEngine{game: chess.NewGame()}, nil
	}

	opt, err := chess.FEN(startFEN)
	if err != nil {
		return nil, fmt.Errorf("invalid start position %q: %w", startFEN, err)
	}

	return &ChessEngine{game: chess.NewGame(opt)}, nil
}

func (e *ChessEngine) CurrentTurn() Side {
	if e.game.Position().Turn() == chess.White {
		return SideFirst
	}

	return SideSecond
}

func (e *ChessEngine) Snapshot() string {
	return e.game.FEN()
}

func (e *ChessEngine) Outcome() (string, string) {
	outcome := e.game.Outcome()
	if outcome == chess.NoOutcome {
		return string(outcome), ""
	}

	return string(outcome), e.game.Method().String()
}

func (e *ChessEngine) ApplyIfLegal(m Move) (snapshot string, err error) {
	defer func() {
		if r := recover(); r != nil {
			snapshot = ""
			err = fmt.Errorf("engine panic evaluating %s: %v", m, r)
		}
	}()

	from, err := normalizeSquare(m.From)
	if err != nil {
		return "", err
	}

	to, err := normalizeSquare(m.To)
	if err != nil {
		return "", err
	}

	promo, err := parsePromotion(m.Promotion)
	if err != nil {
		return "", err
	}

	if e.game.Outcome() != chess.NoOutcome {
		return "", fmt.Errorf("%w: game is over (%s)", ErrIllegalMove, e.game.Outcome())
	}

	legal := e.findLegal(from, to, promo)
	if legal == nil {
		return "", fmt.Errorf("%w: %s%s", ErrIllegalMove, from, to)
	}

	if err := e.game.Move(legal); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	return e.game.FEN(), nil
}

// findLegal matches on squares. The promotion piece only disambiguates when
// the legal move is itself a promotion.
func (e *ChessEngine) findLegal(from, to string, promo chess.PieceType) *chess.Move {
	for _, mv := range e.game.ValidMoves() {
		if mv.S1().String() != from || mv.S2().String() != to {
			continue
		}

		if mv.Promo() == chess.NoPieceType || mv.Promo() == promo {
			return mv
		}
	}

	return nil
}

func normalizeSquare(sq string) (string, error) {
	sq = strings.ToLower(strings.TrimSpace(sq))

	if len(sq) != 2 || sq[0] < 'a' || sq[0] > 'h' || sq[1] < '1' || sq[1] > '8' {
		return "", fmt.Errorf("malformed square %q", sq)
	}

	return sq, nil
}

func parsePromotion(hint string) (chess.PieceType, error) {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "", "q":
		return chess.Queen, nil
	case "r":
		return chess.Rook, nil
	case "b":
		return chess.Bishop, nil
	case "n":
		return chess.Knight, nil
	default:
		return chess.NoPieceType, fmt.Errorf("malformed promotion hint %q", hint)
	}
}
