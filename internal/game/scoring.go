package game

import (
	"sort"
	"strconv"
)

const (
	baseVotePoints = 100
	unanimousBonus = 200
	speedBonus     = 50
	comebackBonus  = 150
	streakBonus    = 100
)

var rankTitles = []string{
	"Meme Lord",
	"Dank Master",
	"Meme Apprentice",
	"Casual Memer",
	"Meme Enthusiast",
	"Needs More JPG",
	"Keep Practicing",
	"At Least You Tried",
}

type Bonus struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

type ScoreResult struct {
	Points  int     `json:"points"`
	Bonuses []Bonus `json:"bonuses"`
}

type Ranking struct {
	PlayerID  string `json:"id"`
	AccountID string `json:"accountId,omitempty"`
	Username  string `json:"username"`
	Score     int    `json:"score"`
	Rank      int    `json:"rank"`
	Title     string `json:"title"`
}

// Score computes the points a submission earns in one round.
func Score(sub *Submission, totalPlayers int, isFirstSubmission, wasLastPlace bool, winStreak int) ScoreResult {
	result := ScoreResult{Bonuses: []Bonus{}}
	votes := 0
	if sub != nil {
		votes = len(sub.Votes)
	}
	result.Points = votes * baseVotePoints

	if votes == totalPlayers-1 {
		result.add("Unanimous Victory", unanimousBonus)
	}
	if isFirstSubmission {
		result.add("Speed Demon", speedBonus)
	}
	if wasLastPlace {
		result.add("Comeback King", comebackBonus)
	}
	if winStreak > 1 {
		result.add("Hot Streak x"+strconv.Itoa(winStreak), streakBonus*winStreak)
	}
	return result
}

func (r *ScoreResult) add(name string, points int) {
	r.Points += points
	r.Bonuses = append(r.Bonuses, Bonus{Name: name, Points: points})
}

// wasLastPlace reports whether every other player scored strictly higher
// than playerID in scores. A lone player is never last.
func wasLastPlace(scores map[string]int, playerID string) bool {
	if len(scores) < 2 {
		return false
	}
	own := scores[playerID]
	for id, score := range scores {
		if id != playerID && score <= own {
			return false
		}
	}
	return true
}

// roundWinner returns the submission with the most votes; ties, including
// a round nobody voted in, go to the earliest submission.
func roundWinner(r *Round) *Submission {
	if r == nil {
		return nil
	}
	var best *Submission
	for _, sub := range r.Submissions {
		if best == nil || len(sub.Votes) > len(best.Votes) {
			best = sub
		}
	}
	return best
}

// FinalRankings orders players by descending score. Equal scores keep
// roster order and still receive distinct ranks.
func FinalRankings(players []*Player) []Ranking {
	rankings := make([]Ranking, 0, len(players))
	for _, p := range players {
		rankings = append(rankings, Ranking{
			PlayerID:  p.ID,
			AccountID: p.AccountID,
			Username:  p.Username,
			Score:     p.Score,
		})
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].Score > rankings[j].Score
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
		rankings[i].Title = rankTitle(i)
	}
	return rankings
}

func rankTitle(index int) string {
	if index >= len(rankTitles) {
		index = len(rankTitles) - 1
	}
	return rankTitles[index]
}
