package api

import (
	"context"
	"net/http"

	"github.com/reelgate/reelgate/internal/domain/gate"
	"github.com/reelgate/reelgate/internal/domain/verification"
)

// Verification endpoint paths.
const (
	PathCheckRequired = "/verification/check-required"
	PathChallenge     = "/verification/challenge"
	PathSolve         = "/verification/solve"
)

// VerificationAPI is the client for the /verification endpoints.
type VerificationAPI struct {
	transport gate.Transport
}

// NewVerificationAPI creates a client sending through transport. The
// verification routes must be exempt from the verification gate in the
// chain behind it.
func NewVerificationAPI(transport gate.Transport) *VerificationAPI {
	return &VerificationAPI{transport: transport}
}

// CheckRequired asks whether the server currently requires verification.
// It has no side effects on the server.
func (v *VerificationAPI) CheckRequired(ctx context.Context) (bool, error) {
	var out struct {
		Required bool `json:"required"`
	}
	err := doJSON(ctx, v.transport, &gate.Call{Method: http.MethodGet, Path: PathCheckRequired}, nil, &out)
	return out.Required, err
}

// FetchChallenge creates a fresh challenge on the server.
func (v *VerificationAPI) FetchChallenge(ctx context.Context) (verification.ServerChallenge, error) {
	var out verification.ServerChallenge
	err := doJSON(ctx, v.transport, &gate.Call{Method: http.MethodGet, Path: PathChallenge}, nil, &out)
	return out, err
}

// Solve submits answer for challengeID.
func (v *VerificationAPI) Solve(ctx context.Context, challengeID, answer string) (verification.SolveResult, error) {
	in := struct {
		ChallengeID string `json:"challengeId"`
		Answer      string `json:"answer"`
	}{challengeID, answer}

	var out verification.SolveResult
	err := doJSON(ctx, v.transport, &gate.Call{Method: http.MethodPost, Path: PathSolve}, in, &out)
	return out, err
}

var _ verification.ChallengeAPI = (*VerificationAPI)(nil)
