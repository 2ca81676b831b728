package game

// EligibleSubmissions returns, in insertion order, the submissions voterID
// may see: not their own and passing the half-filled check.
func EligibleSubmissions(subs []*Submission, required int, voterID string) []*Submission {
	out := make([]*Submission, 0, len(subs))
	for _, sub := range subs {
		if sub.PlayerID == voterID || !IsEligible(sub, required) {
			continue
		}
		out = append(out, sub)
	}
	return out
}

// NextVotable scans the voter's eligible list forward from cursor and
// returns the first submission they have not voted on, together with its
// index in the eligible list. When the feed is exhausted it returns
// (nil, len(eligible), false). The result never precedes cursor.
func NextVotable(subs []*Submission, required int, voterID string, cursor int) (*Submission, int, bool) {
	if cursor < 0 {
		cursor = 0
	}
	eligible := EligibleSubmissions(subs, required, voterID)
	for i := cursor; i < len(eligible); i++ {
		if !eligible[i].hasVoter(voterID) {
			return eligible[i], i, true
		}
	}
	if cursor > len(eligible) {
		return nil, cursor, false
	}
	return nil, len(eligible), false
}
