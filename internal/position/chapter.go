package position

import "github.com/tessro/quire/internal/core"

// ChapterCrossing describes a move from one chapter into another. It is
// computed for observers and never stored by the engine.
type ChapterCrossing struct {
	From              core.Chapter
	FromIndex         int
	To                core.Chapter
	ToIndex           int
	FromPosition      float64
	TargetPosition    float64
	PositionInChapter float64
}

// Forward reports whether the crossing moves later in the book.
func (c *ChapterCrossing) Forward() bool {
	return c != nil && c.ToIndex > c.FromIndex
}

// ChapterAt returns the index of the chapter containing pos. Chapters are
// half-open on their successor: chapter i owns [start_i, start_i+1), so a
// position exactly on a boundary belongs to the later chapter. Positions
// before the first chapter map to 0 and positions after the last map to
// the last. Returns -1 only for an empty table.
func ChapterAt(chapters []core.Chapter, pos float64) int {
	if len(chapters) == 0 {
		return -1
	}

	// binary search for the last chapter whose start <= pos
	lo, hi := 0, len(chapters)-1
	idx := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if chapters[mid].Start <= pos {
			idx = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return idx
}

// Crossing returns the chapter crossing for a move from -> to, or nil if
// both positions are in the same chapter.
func Crossing(chapters []core.Chapter, from, to float64) *ChapterCrossing {
	fromIdx := ChapterAt(chapters, from)
	toIdx := ChapterAt(chapters, to)
	if fromIdx < 0 || toIdx < 0 || fromIdx == toIdx {
		return nil
	}

	inChapter := to - chapters[toIdx].Start
	if inChapter < 0 {
		inChapter = 0
	}
	return &ChapterCrossing{
		From:              chapters[fromIdx],
		FromIndex:         fromIdx,
		To:                chapters[toIdx],
		ToIndex:           toIdx,
		FromPosition:      from,
		TargetPosition:    to,
		PositionInChapter: inChapter,
	}
}
