package booking

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/tannerlabs/corral"
)

// Normal input variants.

type requestKind int

const (
	requestSlotKind requestKind = iota
	requestAutoKind
)

// Request is the Normal input type (corral's N type parameter): either a
// request for one specific slot or a request to auto-pick the first slot
// matching a set of preferred days and time ranges.
type Request struct {
	kind    requestKind
	UserID  uint64
	Name    string
	Email   string
	AptType AptType

	// requestSlotKind
	Day  Day
	Time Time

	// requestAutoKind
	Days       []Day
	TimeRanges []TimeRange
}

func RequestSlot(userID uint64, name, email string, day Day, t Time, apt AptType) Request {
	return Request{kind: requestSlotKind, UserID: userID, Name: name, Email: email, AptType: apt, Day: day, Time: t}
}

func RequestAuto(userID uint64, name, email string, days []Day, ranges []TimeRange, apt AptType) Request {
	return Request{kind: requestAutoKind, UserID: userID, Name: name, Email: email, AptType: apt, Days: days, TimeRanges: ranges}
}

// Tracked action variants: payment preauthorization requests (corral's TP).

type paymentReqKind int

const (
	paymentPreauthKind paymentReqKind = iota
	paymentReleaseKind
	paymentCheckStatusKind
)

// PaymentReq is issued to the payment executor as a tracked action.
type PaymentReq struct {
	kind        paymentReqKind
	UserID      uint64
	AmountCents int
	ReqID       ReqID
}

func (p PaymentReq) IsPreauth() bool     { return p.kind == paymentPreauthKind }
func (p PaymentReq) IsRelease() bool     { return p.kind == paymentReleaseKind }
func (p PaymentReq) IsCheckStatus() bool { return p.kind == paymentCheckStatusKind }

// PaymentResult is the tracked action's completion value (corral's TR).

type paymentResultKind int

const (
	paymentSuccessKind paymentResultKind = iota
	paymentFailedKind
	paymentReleasedKind
	paymentPendingKind
)

type PaymentResult struct {
	kind        paymentResultKind
	AmountCents int
	Reason      string
}

func PaymentSuccess(amountCents int) PaymentResult { return PaymentResult{kind: paymentSuccessKind, AmountCents: amountCents} }
func PaymentFailed(reason string) PaymentResult    { return PaymentResult{kind: paymentFailedKind, Reason: reason} }
func PaymentReleased() PaymentResult               { return PaymentResult{kind: paymentReleasedKind} }
func PaymentPending() PaymentResult                { return PaymentResult{kind: paymentPendingKind} }

func (r PaymentResult) IsSuccess() bool  { return r.kind == paymentSuccessKind }
func (r PaymentResult) IsFailed() bool   { return r.kind == paymentFailedKind }
func (r PaymentResult) IsReleased() bool { return r.kind == paymentReleasedKind }

// Untracked action variants (corral's UP): fire-and-forget notifications
// and audit log entries that need no completion correlation.

type untrackedKind int

const (
	notifyKind untrackedKind = iota
	logKind
)

type Notification struct {
	kind   untrackedKind
	UserID uint64
	Msg    string
	Event  string
}

func Notify(userID uint64, msg string) Notification {
	return Notification{kind: notifyKind, UserID: userID, Msg: msg}
}

func LogEvent(event string) Notification {
	return Notification{kind: logKind, Event: event}
}

// Domain errors. Transition returns these wrapped in corral.DomainError,
// since they represent a rejected request, not a persistence or
// infrastructure failure, so the caller's Submit sees a stable, inspectable
// cause.
var (
	ErrSlotNotAvailable = errors.New("booking: requested slot is not available")
	ErrNoSlotFound      = errors.New("booking: no slot matches the given preferences")
	ErrInvalidRequest   = errors.New("booking: request refers to an unknown pending id")
)

// Machine implements corral.Machine for the clinic scheduling domain.
type Machine struct{}

var _ corral.Machine[System, Request, PaymentReq, Notification, PaymentResult] = Machine{}

func (Machine) Transition(ctx context.Context, state *System, in corral.Input[Request, PaymentResult], actions *corral.Actions[PaymentReq, Notification]) error {
	if state.Pending == nil {
		state.Pending = map[ReqID]PendingReq{}
	}

	if req, ok := in.Normal(); ok {
		switch req.kind {
		case requestSlotKind:
			return handleSlotRequest(state, actions, req)
		case requestAutoKind:
			return handleAutoRequest(state, actions, req)
		}
		return nil
	}

	id, result, ok := in.Completed()
	if !ok {
		return nil
	}
	if result.IsSuccess() {
		return handlePreauthSuccess(state, actions, id, result.AmountCents)
	}
	if result.IsFailed() {
		return handlePreauthFailed(state, actions, id, result.Reason)
	}
	if result.IsReleased() {
		return handlePreauthReleased(state, id)
	}
	// Pending completions carry no state transition of their own.
	return nil
}

func handleSlotRequest(state *System, actions *corral.Actions[PaymentReq, Notification], req Request) error {
	slot := Slot{Day: req.Day, Time: req.Time}
	if !state.IsAvailable(slot, req.AptType.DurMins()) {
		return corral.NewDomainError(ErrSlotNotAvailable)
	}
	return reservePending(state, actions, req, &slot)
}

func handleAutoRequest(state *System, actions *corral.Actions[PaymentReq, Notification], req Request) error {
	slot, ok := state.FindSlot(req.Days, req.TimeRanges, req.AptType.DurMins())
	if !ok {
		return corral.NewDomainError(ErrNoSlotFound)
	}
	return reservePending(state, actions, req, &slot)
}

func reservePending(state *System, actions *corral.Actions[PaymentReq, Notification], req Request, slot *Slot) error {
	id := state.NextID
	state.NextID++
	state.Pending[id] = PendingReq{
		UserID: req.UserID,
		// NFC-normalize contact strings so two requests differing only in
		// Unicode representation (e.g. a combining accent vs. a precomposed
		// character) compare and hash identically once stored.
		Name:    norm.NFC.String(req.Name),
		Email:   norm.NFC.String(req.Email),
		Slot:    slot,
		AptType: req.AptType,
		Status:  AwaitingPreauth,
	}
	return actions.Add(corral.Tracked[PaymentReq, Notification](corral.ActionID(id), PaymentReq{
		kind:        paymentPreauthKind,
		UserID:      req.UserID,
		AmountCents: req.AptType.PriceCents(),
		ReqID:       id,
	}))
}

func handlePreauthSuccess(state *System, actions *corral.Actions[PaymentReq, Notification], id corral.ActionID, amountCents int) error {
	reqID := ReqID(id)
	pending, ok := state.Pending[reqID]
	if !ok {
		return &corral.UnknownTrackedActionError{ID: id}
	}
	if pending.Status != AwaitingPreauth {
		return &corral.UnknownTrackedActionError{ID: id}
	}
	if pending.Slot == nil {
		return corral.NewDomainError(ErrInvalidRequest)
	}
	slot := *pending.Slot

	if !state.IsAvailable(slot, pending.AptType.DurMins()) {
		pending.Status = SlotTaken
		state.Pending[reqID] = pending
		if err := actions.Add(corral.Tracked[PaymentReq, Notification](id, PaymentReq{kind: paymentReleaseKind, ReqID: reqID})); err != nil {
			return err
		}
		return actions.Add(corral.Untracked[PaymentReq, Notification](Notify(pending.UserID, "your slot was taken before payment completed; refund in progress")))
	}

	pending.Status = SlotConfirmed
	state.Pending[reqID] = pending
	state.Bookings[slot] = ConfirmedBooking{
		UserID:     pending.UserID,
		Name:       pending.Name,
		Email:      pending.Email,
		AptType:    pending.AptType,
		AmountPaid: amountCents,
	}
	return actions.Add(corral.Untracked[PaymentReq, Notification](Notify(pending.UserID, "booking confirmed for "+slot.String())))
}

func handlePreauthFailed(state *System, actions *corral.Actions[PaymentReq, Notification], id corral.ActionID, reason string) error {
	reqID := ReqID(id)
	pending, ok := state.Pending[reqID]
	if !ok || pending.Status != AwaitingPreauth {
		return &corral.UnknownTrackedActionError{ID: id}
	}
	pending.Status = NoSlot
	state.Pending[reqID] = pending
	return actions.Add(corral.Untracked[PaymentReq, Notification](Notify(pending.UserID, "payment failed: "+reason)))
}

// handlePreauthReleased records that a previously queued refund for a
// slot that was taken out from under a confirmed preauth has completed.
// It is the state transition the PaymentReleased completion produces, so
// Restore can re-emit the release deterministically instead of tracking an
// action whose result would otherwise have no visible effect.
func handlePreauthReleased(state *System, id corral.ActionID) error {
	reqID := ReqID(id)
	pending, ok := state.Pending[reqID]
	if !ok || pending.Status != SlotTaken {
		return &corral.UnknownTrackedActionError{ID: id}
	}
	pending.Status = Released
	state.Pending[reqID] = pending
	return nil
}

// Restore re-issues one tracked action per request still awaiting a
// result: a CheckStatus query for AwaitingPreauth records (rather than
// re-submitting the original Preauth, since the payment processor may
// already hold a result for the original request id, and blindly
// re-preauthorizing risks double-charging the customer), and a Release
// retry for SlotTaken records whose refund hasn't yet been confirmed.
func (Machine) Restore(ctx context.Context, state *System, actions *corral.Actions[PaymentReq, Notification]) error {
	actions.Clear()

	// state.Pending is a map; range order over it is randomized per process,
	// so two Restore calls on the same state could otherwise emit these
	// actions in different orders. Sort the ids first for a stable order.
	ids := make([]ReqID, 0, len(state.Pending))
	for id := range state.Pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		pending := state.Pending[id]

		var req PaymentReq
		switch pending.Status {
		case AwaitingPreauth:
			req = PaymentReq{kind: paymentCheckStatusKind, ReqID: id}
		case SlotTaken:
			req = PaymentReq{kind: paymentReleaseKind, ReqID: id}
		default:
			continue
		}

		if err := actions.Add(corral.Tracked[PaymentReq, Notification](corral.ActionID(id), req)); err != nil {
			return err
		}
	}
	return nil
}
