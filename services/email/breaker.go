package email

import (
	"log"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSender stops calling a failing mail server for a while so queued
// notifications back off instead of hammering it.
type BreakerSender struct {
	next EmailSender
	cb   *gobreaker.CircuitBreaker[struct{}]
}

type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func NewBreakerSender(next EmailSender, st BreakerSettings) *BreakerSender {
	if st.Name == "" {
		st.Name = "smtp"
	}
	if st.ConsecutiveFailures == 0 {
		st.ConsecutiveFailures = 5
	}
	if st.OpenTimeout <= 0 {
		st.OpenTimeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: 1,
		Timeout:     st.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= st.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("Circuit breaker %s changed from %s to %s", name, from, to)
		},
	})
	return &BreakerSender{next: next, cb: cb}
}

func (b *BreakerSender) SendEmail(to, subject, body string) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.SendEmail(to, subject, body)
	})
	return err
}

func (b *BreakerSender) State() gobreaker.State {
	return b.cb.State()
}
