package server

import (
	"errors"

	"github.com/brensch/snekgym/convert"
	"github.com/brensch/snekgym/env"
	"github.com/brensch/snekgym/game"
	"github.com/brensch/snekgym/rules"
)

// Ops understood by a session.
const (
	OpReset   = "reset"
	OpStep    = "step"
	OpMask    = "mask"
	OpState   = "state"
	OpObserve = "observe"
)

// Error codes sent back to the client.
const (
	CodeInvalidAction = "invalid_action"
	CodeEpisodeDone   = "episode_done"
	CodeBadRequest    = "bad_request"
	CodeNoEpisode     = "no_episode"
)

// Request is one client frame.
type Request struct {
	Op     string `json:"op"`
	Seed   *int64 `json:"seed,omitempty"`
	Action *int   `json:"action,omitempty"`
}

// Response is one server frame. Only the fields for the request's op are set.
// Image observations carry pixels as an array of numbers in HWC order.
type Response struct {
	Observation *convert.Observation      `json:"observation,omitempty"`
	Done        *bool                     `json:"done,omitempty"`
	Info        *env.Info                 `json:"info,omitempty"`
	Mask        *[game.NumDirections]bool `json:"mask,omitempty"`
	State       *game.EpisodeState        `json:"state,omitempty"`
	Error       string                    `json:"error,omitempty"`
	Code        string                    `json:"code,omitempty"`
}

func errorResponse(code string, err error) Response {
	return Response{Error: err.Error(), Code: code}
}

// codeFor maps engine errors onto protocol codes.
func codeFor(err error) string {
	switch {
	case errors.Is(err, rules.ErrInvalidAction):
		return CodeInvalidAction
	case errors.Is(err, rules.ErrEpisodeDone):
		return CodeEpisodeDone
	case errors.Is(err, env.ErrNotReset):
		return CodeNoEpisode
	default:
		return CodeBadRequest
	}
}
