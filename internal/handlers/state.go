package handlers

import (
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
)

// requestState is where a link request is in its lifecycle.
type requestState int

const (
	stateIdle requestState = iota
	stateClassifying
	stateDownloading
	statePackaging
	stateReplying
)

func (s requestState) String() string {
	switch s {
	case stateClassifying:
		return "classifying"
	case stateDownloading:
		return "downloading"
	case statePackaging:
		return "packaging"
	case stateReplying:
		return "replying"
	default:
		return "idle"
	}
}

// stateLog logs every transition of one request.
type stateLog struct {
	log     *logutils.Logger
	current requestState
}

func newStateLog(log *logutils.Logger) *stateLog {
	return &stateLog{log: log, current: stateIdle}
}

func (s *stateLog) set(next requestState) {
	s.log.WithFields(map[string]any{
		"from": s.current.String(),
		"to":   next.String(),
	}).Info("Request state changed")
	s.current = next
}
