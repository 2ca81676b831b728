package game

// autoFillMissing adds a blank placeholder for every player who has not
// submitted and marks them submitted. Placeholders are never eligible, so
// they can not receive votes.
func autoFillMissing(sess *Session) []string {
	r := sess.Round
	if r == nil {
		return nil
	}
	filled := make([]string, 0)
	for _, p := range sess.Players {
		if p.HasSubmitted || r.submissionBy(p.ID) != nil {
			p.HasSubmitted = true
			continue
		}
		r.Submissions = append(r.Submissions, &Submission{
			PlayerID:   p.ID,
			Username:   p.Username,
			Captions:   make([]string, r.RequiredFieldCount),
			Votes:      []string{},
			AutoFilled: true,
		})
		p.HasSubmitted = true
		filled = append(filled, p.ID)
	}
	return filled
}
