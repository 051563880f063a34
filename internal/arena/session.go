package arena

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/campuslink/arena/internal/activity"
	"github.com/campuslink/arena/internal/models"
)

// liveSession is the single logical unit of mutable shared state for one
// session. Every mutating operation (join, ready, start, submit, deadline
// fire) serializes on mu, which is what makes the finalize-once guard and
// the "last submission vs. deadline" race trivial to reason about.
type liveSession struct {
	mu sync.Mutex

	session      models.ActivitySession
	judge        activity.Judge
	rules        activity.Rules
	participants []*models.Participant
	rounds       []*liveRound
	rng          *rand.Rand

	// Cumulative standings across rounds.
	scores  map[string]float64
	elapsed map[string]int64
	metrics map[string]models.Metrics
}

// liveRound is the authoritative state of one round. finalized is the
// finalize-once guard: it flips exactly once under the session mutex no
// matter whether the deadline timer or the last submission wins the race.
type liveRound struct {
	index       int
	payload     any
	startedAt   time.Time
	deadlineAt  time.Time
	expected    []string
	submissions map[string]*models.Submission
	finalized   bool
	stopTimer   chan struct{}
}

func (ls *liveSession) participant(userID string) *models.Participant {
	for _, p := range ls.participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// joinedIDs returns the ids of participants who completed join, in join
// order. Round scheduling and turn order key off this ordering.
func (ls *liveSession) joinedIDs() []string {
	out := make([]string, 0, len(ls.participants))
	for _, p := range ls.participants {
		if p.Joined() {
			out = append(out, p.UserID)
		}
	}
	return out
}

func (ls *liveSession) activeCount() int {
	n := 0
	for _, p := range ls.participants {
		if p.Joined() && p.ConnectionState == models.ConnectionConnected {
			n++
		}
	}
	return n
}

func (ls *liveSession) currentRound() *liveRound {
	if len(ls.rounds) == 0 {
		return nil
	}
	return ls.rounds[len(ls.rounds)-1]
}

func (ls *liveSession) summary() models.SessionSummary {
	ids := make([]string, 0, len(ls.participants))
	for _, p := range ls.participants {
		ids = append(ids, p.UserID)
	}
	return models.SessionSummary{
		ID:             ls.session.ID,
		ActivityKey:    ls.session.ActivityKey,
		CreatorUserID:  ls.session.CreatorUserID,
		Status:         ls.session.Status,
		CreatedAt:      ls.session.CreatedAt,
		ParticipantIDs: ids,
	}
}

// roundView marshals the canonical payload for client consumption. Payload
// types strip server-only fields (e.g. trivia answers) via their JSON tags.
func (r *liveRound) view() (*models.RoundView, error) {
	data, err := json.Marshal(r.payload)
	if err != nil {
		return nil, err
	}
	return &models.RoundView{
		Index:      r.index,
		Payload:    data,
		StartedAt:  r.startedAt,
		DeadlineAt: r.deadlineAt,
	}, nil
}
