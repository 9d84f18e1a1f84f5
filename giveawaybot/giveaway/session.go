package giveaway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/giveaway-bot/giveawaybot/utils"
	"github.com/disgoorg/snowflake/v2"
)

// WizardStep enumerates the create-wizard's states. The wizard is plain UI
// state per operator and never touches the lifecycle engine until Confirm.
type WizardStep int

const (
	StepPrize WizardStep = iota
	StepWinnerCount
	StepDuration
	StepConfirm
)

// WizardSession is the in-progress create flow of one operator.
type WizardSession struct {
	OperatorID snowflake.ID
	ChannelID  snowflake.ID
	GuildID    snowflake.ID
	Step       WizardStep

	Prize       string
	Sponsor     string
	WinnerCount int
	Duration    time.Duration

	StartedAt time.Time
}

// Prompt returns the question for the current step.
func (s *WizardSession) Prompt() string {
	switch s.Step {
	case StepPrize:
		return "What is the prize? (reply in this channel, or `cancel` to abort)"
	case StepWinnerCount:
		return "How many winners?"
	case StepDuration:
		return "How long should it run? (e.g. `90m`, `24h`)"
	case StepConfirm:
		return fmt.Sprintf("Open a giveaway for **%s** with **%d** winner(s), closing in **%s**? (`yes` to confirm, `cancel` to abort)",
			s.Prize, s.WinnerCount, utils.FormatDuration(s.Duration))
	default:
		return ""
	}
}

// Apply feeds one operator reply into the wizard. It returns the next prompt,
// whether the wizard finished with a confirmed giveaway, and a validation
// error for input that does not advance the step.
func (s *WizardSession) Apply(content string) (prompt string, complete bool, err error) {
	content = strings.TrimSpace(content)
	if strings.EqualFold(content, "cancel") {
		return "", false, ErrWizardAborted
	}

	switch s.Step {
	case StepPrize:
		if content == "" {
			return "", false, fmt.Errorf("the prize cannot be empty")
		}
		s.Prize = content
		s.Step = StepWinnerCount

	case StepWinnerCount:
		count, err := strconv.Atoi(content)
		if err != nil || count < 1 {
			return "", false, fmt.Errorf("winner count must be a number of at least 1")
		}
		s.WinnerCount = count
		s.Step = StepDuration

	case StepDuration:
		duration, err := time.ParseDuration(content)
		if err != nil || duration < time.Minute {
			return "", false, fmt.Errorf("duration must be at least `1m`, e.g. `90m` or `24h`")
		}
		s.Duration = duration
		s.Step = StepConfirm

	case StepConfirm:
		if !strings.EqualFold(content, "yes") && !strings.EqualFold(content, "ok") {
			return "", false, fmt.Errorf("reply `yes` to confirm or `cancel` to abort")
		}
		return "", true, nil
	}

	return s.Prompt(), false, nil
}

// ErrWizardAborted signals the operator canceled the wizard.
var ErrWizardAborted = fmt.Errorf("wizard aborted")

// Sessions keeps at most one wizard session per operator, with expiry.
type Sessions struct {
	sessions sync.Map // operator id -> *WizardSession
	timeout  time.Duration
}

func NewSessions(timeout time.Duration) *Sessions {
	return &Sessions{timeout: timeout}
}

// Begin starts a fresh wizard for the operator, replacing any existing one.
func (s *Sessions) Begin(operatorID snowflake.ID, guildID snowflake.ID, channelID snowflake.ID) *WizardSession {
	session := &WizardSession{
		OperatorID: operatorID,
		GuildID:    guildID,
		ChannelID:  channelID,
		Step:       StepPrize,
		StartedAt:  time.Now(),
	}
	s.sessions.Store(operatorID, session)
	return session
}

// Get returns the operator's live session, dropping it when expired.
func (s *Sessions) Get(operatorID snowflake.ID) (*WizardSession, bool) {
	value, ok := s.sessions.Load(operatorID)
	if !ok {
		return nil, false
	}
	session := value.(*WizardSession)
	if time.Since(session.StartedAt) > s.timeout {
		s.sessions.Delete(operatorID)
		return nil, false
	}
	return session, true
}

func (s *Sessions) End(operatorID snowflake.ID) {
	s.sessions.Delete(operatorID)
}

// StartCleanupRoutine sweeps expired sessions until ctx is done.
func (s *Sessions) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				now := time.Now()
				s.sessions.Range(func(key, value interface{}) bool {
					if now.Sub(value.(*WizardSession).StartedAt) > s.timeout {
						s.sessions.Delete(key)
					}
					return true
				})
			case <-ctx.Done():
				return
			}
		}
	}()
}
