package partition

// RotationPolicy decides after each flush whether the open file has used up
// its chunk budget.
//
// The default comparison fires only when the chunk count strictly exceeds
// MaxChunksPerFile, so a file receives up to MaxChunksPerFile+1 chunks. With
// Strict set the comparison is >= and a file holds at most MaxChunksPerFile
// chunks.
type RotationPolicy struct {
	MaxChunksPerFile int
	Strict           bool
}

// NewRotationPolicy derives the chunk budget as maxFileRows / maxChunkRows.
func NewRotationPolicy(maxChunkRows, maxFileRows int, strict bool) RotationPolicy {
	return RotationPolicy{
		MaxChunksPerFile: maxFileRows / maxChunkRows,
		Strict:           strict,
	}
}

// ShouldRotate is evaluated with the session's chunk count after increment.
func (p RotationPolicy) ShouldRotate(chunks int) bool {
	if p.Strict {
		return chunks >= p.MaxChunksPerFile
	}
	return chunks > p.MaxChunksPerFile
}

// MaxRowsPerFile returns the largest number of rows a file can receive
// before the policy fires.
func (p RotationPolicy) MaxRowsPerFile(maxChunkRows int) int {
	chunks := p.MaxChunksPerFile
	if !p.Strict {
		chunks++
	}
	if chunks < 1 {
		chunks = 1
	}
	return chunks * maxChunkRows
}
