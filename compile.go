package tabula

// compile turns raw trajectories into training examples. Each game is walked
// from its last ply backwards: padding plies (recorded after the game ended)
// are dropped, the true last ply contributes its reward as the value target,
// and every earlier ply gets the negation of the value after it: in a
// zero-sum game a position is worth exactly what the following position is
// worth to the opponent, with the sign flipped.
//
// A game whose window is all padding contributes nothing. A game that never
// terminated within its window contributes every ply, seeded by whatever the
// final ply's reward happened to be; that is an accepted approximation of an
// unfinished game, not an error.
func compile(trajectories []Trajectory) []Example {
	var buffer []Example
	for _, trajectory := range trajectories {
		var value float32
		live := false
		for i := len(trajectory) - 1; i >= 0; i-- {
			rec := trajectory[i]
			if rec.Terminated {
				continue
			}
			if !live {
				value = rec.Reward
				live = true
			} else {
				value = -value
			}
			buffer = append(buffer, Example{
				Board:  rec.Observation,
				Policy: rec.ActionWeights,
				Value:  value,
			})
		}
	}
	return buffer
}
