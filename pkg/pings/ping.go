package pings

import (
	"context"
	"slices"

	"github.com/cuemby/glean/pkg/types"
	"github.com/google/uuid"
)

// Names and reasons of the pings every client carries
const (
	DeletionRequestPingName = types.DeletionRequestPingName
	EventsPingName          = "events"

	ReasonAtInit           = "at_init"
	ReasonSetUploadEnabled = "set_upload_enabled"
	ReasonStartup          = "startup"
	ReasonMaxCapacity      = "max_capacity"
	ReasonInactive         = "inactive"
)

// PingType describes a ping that can be submitted
type PingType struct {
	Name            string
	IncludeClientID bool
	SendIfEmpty     bool
	ReasonCodes     []string

	maker *Maker
}

// NewPingType creates a ping type and registers it with maker
func NewPingType(maker *Maker, name string, includeClientID, sendIfEmpty bool, reasonCodes ...string) *PingType {
	p := &PingType{
		Name:            name,
		IncludeClientID: includeClientID,
		SendIfEmpty:     sendIfEmpty,
		ReasonCodes:     reasonCodes,
		maker:           maker,
	}
	maker.Register(p)
	return p
}

// Submit collects and stores the ping on the dispatcher
func (p *PingType) Submit(reason string) {
	p.maker.ctx.Dispatcher.Launch(func(ctx context.Context) error {
		return p.SubmitUndispatched(ctx, reason)
	})
}

// SubmitUndispatched collects and stores the ping from inside an already
// dispatched task. Reasons this ping does not declare are dropped.
func (p *PingType) SubmitUndispatched(ctx context.Context, reason string) error {
	logger := p.maker.logger.With().Str("ping", p.Name).Logger()

	if !p.maker.ctx.Initialized() {
		logger.Info().Msg("Glean must be initialized before submitting pings")
		return nil
	}
	if !p.maker.ctx.UploadEnabled() && p.Name != DeletionRequestPingName {
		logger.Info().Msg("Glean disabled: not submitting pings")
		return nil
	}

	if reason != "" && !slices.Contains(p.ReasonCodes, reason) {
		logger.Error().Str("reason", reason).Msg("Invalid reason code, submitting without a reason")
		reason = ""
	}

	return p.maker.CollectAndStorePing(ctx, uuid.NewString(), p, reason)
}

// CorePings are the pings the client itself submits
type CorePings struct {
	DeletionRequest *PingType
	Events          *PingType
}

// NewCorePings registers the built-in pings with maker
func NewCorePings(maker *Maker) *CorePings {
	return &CorePings{
		DeletionRequest: NewPingType(maker, DeletionRequestPingName, true, true,
			ReasonAtInit, ReasonSetUploadEnabled),
		Events: NewPingType(maker, EventsPingName, true, false,
			ReasonStartup, ReasonMaxCapacity, ReasonInactive),
	}
}
