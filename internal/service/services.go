package service

import (
	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/jovywahba/jovnumbergames/internal/config"
	"github.com/jovywahba/jovnumbergames/internal/game"
	"github.com/jovywahba/jovnumbergames/internal/repository"
)

type Services struct {
	Auth      *AuthService
	Rooms     *RoomService
	Finalizer *Finalizer
	Profiles  *ProfileService
	Watchdog  *ExpiryWatchdog
	Rules     game.Rules
}

func NewServices(repos *repository.Repositories, cfg *config.Config, scheduler gocron.Scheduler, clock clockwork.Clock) *Services {
	rules := RulesFromConfig(cfg)
	retrier := NewRetrier(RetryPolicy{
		Attempts: cfg.RetryAttempts,
		Base:     cfg.RetryBase,
		Jitter:   cfg.RetryJitter,
	})
	finalizer := NewFinalizer(repos.Store, retrier, rules.HistoryCap)
	rooms := NewRoomService(repos.Store, game.NewMachine(rules), retrier, finalizer)

	return &Services{
		Auth:      NewAuthService(repos.User, repos.Session, cfg),
		Rooms:     rooms,
		Finalizer: finalizer,
		Profiles:  NewProfileService(repos.Store, retrier),
		Watchdog:  NewExpiryWatchdog(scheduler, rooms, clock),
		Rules:     rules,
	}
}

// RulesFromConfig maps configuration onto the game rules new rooms use.
func RulesFromConfig(cfg *config.Config) game.Rules {
	rules := game.DefaultRules()
	if cfg.CodeLen > 0 {
		rules.CodeLen = cfg.CodeLen
	}
	if cfg.TurnTimeSec > 0 {
		rules.TurnTimeSec = cfg.TurnTimeSec
	}
	if cfg.RoomTTL > 0 {
		rules.RoomTTL = cfg.RoomTTL
	}
	if cfg.HistoryCap > 0 {
		rules.HistoryCap = cfg.HistoryCap
	}
	if cfg.CountdownFrom > 0 {
		rules.CountdownFrom = cfg.CountdownFrom
	}
	if cfg.DriverLease > 0 {
		rules.DriverLease = cfg.DriverLease
	}
	return rules
}
