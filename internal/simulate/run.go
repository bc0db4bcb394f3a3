package simulate

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lthummus/loginguard/internal/loginlimit"
	"github.com/lthummus/loginguard/internal/user"
)

type Result struct {
	Step     int
	Elapsed  time.Duration
	User     string
	Event    Event
	Failures int
	Blocked  bool
}

// Run plays s against a fresh tracker. Waits move a virtual clock, so a scenario spanning days finishes instantly.
// Every event (including each repetition) produces one Result.
func Run(s *Scenario) []Result {
	start := time.Now()
	var elapsed time.Duration

	tracker := loginlimit.NewAttemptTracker(loginlimit.Settings{
		Limit:  s.Limit,
		Window: s.Window,
		Now: func() time.Time {
			return start.Add(elapsed)
		},
	})
	service := loginlimit.NewLoginService(tracker)

	log.Debug().Int("limit", tracker.Limit()).Dur("window", tracker.Window()).Int("steps", len(s.Steps)).Msg("running scenario")

	var results []Result
	for i, curr := range s.Steps {
		if curr.Event == EventWait {
			elapsed += curr.Duration
			results = append(results, Result{
				Step:    i + 1,
				Elapsed: elapsed,
				Event:   EventWait,
			})
			continue
		}

		for range max(1, curr.Repeat) {
			switch curr.Event {
			case EventFailure:
				service.RegisterAuthenticationFailure(loginlimit.NewAuthenticationEvent(curr.User))
			case EventSuccess:
				service.RegisterAuthenticationSuccess(loginlimit.NewAuthenticationEvent(curr.User))
			}

			results = append(results, Result{
				Step:     i + 1,
				Elapsed:  elapsed,
				User:     curr.User,
				Event:    curr.Event,
				Failures: tracker.Failures(curr.User),
				Blocked:  service.IsBlocked(&user.User{Username: curr.User}),
			})
		}
	}

	return results
}
