// Package kiosk is the turn-taking orchestrator: it owns the
// conversation session, the cart, the payment lifecycle, and the
// robot, and serializes every state transition through a single event
// loop so speech, timers, web handlers, and the status poller never
// race each other.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robotwaiter/kiosk/pkg/agent"
	"github.com/robotwaiter/kiosk/pkg/hub"
	"github.com/robotwaiter/kiosk/pkg/order"
	"github.com/robotwaiter/kiosk/pkg/payment"
	"github.com/robotwaiter/kiosk/pkg/robotapi"
	"github.com/robotwaiter/kiosk/pkg/speech"
	"github.com/robotwaiter/kiosk/pkg/tts"
)

// Spoken service messages. The silence prompt stays in Hindi because
// that is the default service voice; the rest are spoken in whatever
// voice the conversation last used.
const (
	silencePrompt           = "मुझे आपकी आवाज़ नहीं आ रही है, कृपया दुबारा बोलें।"
	goodbyeMessage          = "Session ended. Goodbye!"
	paymentTimeoutMessage   = "Payment timeout. Returning to dock."
	paymentReceivedMessage  = "Payment received. Returning to dock."
	paymentCancelledMessage = "Payment cancelled. Returning to dock."
	orderErrorMessage       = "Sorry, there was an issue processing the order or payment. Please try again."
)

// TurnState is the orchestrator's position in the turn cycle.
type TurnState int

const (
	StateIdle TurnState = iota
	StateListening
	StateProcessing
	StateSpeaking
	StateAwaitingPayment
	StateError
)

func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateAwaitingPayment:
		return "awaiting_payment"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

var (
	// ErrSessionActive is returned when a session start races an
	// already-live session.
	ErrSessionActive = errors.New("kiosk: session already active")
	// ErrNoPayment is returned for payment postbacks with no open
	// checkout.
	ErrNoPayment = errors.New("kiosk: no open checkout")
	// ErrRobotUnreachable wraps address-confirmation failures where the
	// robot did not answer at all.
	ErrRobotUnreachable = errors.New("kiosk: robot unreachable")
	// ErrClosed is returned when the orchestrator loop has stopped.
	ErrClosed = errors.New("kiosk: orchestrator stopped")
)

// Robot is the slice of the robot control client the orchestrator
// uses. *robotapi.Client satisfies it.
type Robot interface {
	Probe(ctx context.Context, addr string) (*robotapi.Status, error)
	SetAddress(addr string)
	ClearAddress()
	Address() string
	HasAddress() bool
	Status(ctx context.Context) (*robotapi.Status, error)
	STTStart(ctx context.Context) error
	STTStop(ctx context.Context) error
	Poses(ctx context.Context) ([]robotapi.Pose, error)
	Tables(ctx context.Context) ([]robotapi.Table, error)
	NavigateToTable(ctx context.Context, tableName string) error
	NavigateToPose(ctx context.Context, x, y, yaw float64) error
	Dock(ctx context.Context, status *robotapi.Status) error
}

var _ Robot = (*robotapi.Client)(nil)

// OrderBackend is the slice of the order backend client the
// orchestrator uses. *order.Client satisfies it.
type OrderBackend interface {
	SaveOrder(ctx context.Context, d agent.Directives, m agent.OrderMap) error
	StartPayment(ctx context.Context, d agent.Directives, m agent.OrderMap) (*order.PaymentSession, error)
	PaymentSuccess(ctx context.Context, resp order.GatewayResponse, billHTML string) error
}

var _ OrderBackend = (*order.Client)(nil)

// Notifier publishes UI events. *hub.Hub satisfies it.
type Notifier interface {
	BroadcastEvent(ev hub.Event)
}

var _ Notifier = (*hub.Hub)(nil)

// Config carries the orchestrator's timers, voices, and feature flags.
type Config struct {
	Language string // recognition language, e.g. "hi-IN"
	Voice    string // synthesis voice used until the agent picks one

	SilenceWindow     time.Duration
	SilenceRetryLimit int
	PaymentTimeout    time.Duration
	EmojiDisplay      time.Duration
	BillDisplay       time.Duration
	AddressCheck      time.Duration
	StatusPoll        time.Duration
	LegacyStatusGate  bool

	RestaurantName string
	// PaymentKey is the gateway key id used when the backend's checkout
	// answer does not carry one.
	PaymentKey string

	ShowPartialTranscript bool
	ShowFinalTranscript   bool
	ShowRobotStatus       bool
	ShowEmojiPopup        bool

	Logger *slog.Logger
}

func (c *Config) fillDefaults() {
	if c.Language == "" {
		c.Language = "hi-IN"
	}
	if c.Voice == "" {
		c.Voice = agent.DefaultVoice
	}
	if c.SilenceWindow <= 0 {
		c.SilenceWindow = 6 * time.Second
	}
	if c.SilenceRetryLimit <= 0 {
		c.SilenceRetryLimit = 3
	}
	if c.PaymentTimeout <= 0 {
		c.PaymentTimeout = payment.DefaultTimeout
	}
	if c.EmojiDisplay <= 0 {
		c.EmojiDisplay = 3 * time.Second
	}
	if c.BillDisplay <= 0 {
		c.BillDisplay = 15 * time.Second
	}
	if c.AddressCheck <= 0 {
		c.AddressCheck = 8 * time.Second
	}
	if c.StatusPoll <= 0 {
		c.StatusPoll = 3 * time.Second
	}
	if c.RestaurantName == "" {
		c.RestaurantName = payment.DefaultRestaurantName
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Speech   *speech.Channel
	Voice    *tts.Sequencer
	Agent    agent.Conversation
	Orders   OrderBackend
	Payments *payment.Manager
	Robot    Robot
	Notifier Notifier
	Matcher  order.Matcher // optional menu normalization
}

// Orchestrator runs the turn cycle. All mutable state below the
// commands channel is owned by the Run loop.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger

	speech   *speech.Channel
	voice    *tts.Sequencer
	agent    agent.Conversation
	orders   OrderBackend
	payments *payment.Manager
	robot    Robot
	notify   Notifier
	matcher  order.Matcher

	cart *order.Cart

	commands chan func()
	ctx      context.Context
	done     chan struct{}

	state        TurnState
	sessionID    string
	currentVoice string
	silenceCount int
	silenceTimer *time.Timer
	billHTML     string
	lastGateway  *order.GatewayResponse

	poller     *StatusPoller
	pollerStop context.CancelFunc
}

// New creates an orchestrator. Run must be called before any other
// method.
func New(cfg Config, deps Deps) *Orchestrator {
	cfg.fillDefaults()
	return &Orchestrator{
		cfg:          cfg,
		logger:       cfg.Logger.With("component", "orchestrator"),
		speech:       deps.Speech,
		voice:        deps.Voice,
		agent:        deps.Agent,
		orders:       deps.Orders,
		payments:     deps.Payments,
		robot:        deps.Robot,
		notify:       deps.Notifier,
		matcher:      deps.Matcher,
		cart:         order.NewCart(),
		commands:     make(chan func(), 32),
		done:         make(chan struct{}),
		state:        StateIdle,
		currentVoice: cfg.Voice,
	}
}

// Run drives the event loop until ctx is cancelled. It blocks; call
// in a goroutine.
func (o *Orchestrator) Run(ctx context.Context) {
	o.ctx = ctx
	defer close(o.done)
	defer o.teardown()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-o.commands:
			cmd()
		case ev, ok := <-o.speech.Events():
			if !ok {
				return
			}
			o.handleSpeechEvent(ev)
		}
	}
}

// post queues fn onto the loop. Returns ErrClosed once the loop is
// gone.
func (o *Orchestrator) post(fn func()) error {
	select {
	case o.commands <- fn:
		return nil
	case <-o.done:
		return ErrClosed
	}
}

// call runs fn on the loop and waits for its result.
func (o *Orchestrator) call(fn func() error) error {
	errc := make(chan error, 1)
	if err := o.post(func() { errc <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	case <-o.done:
		return ErrClosed
	}
}

func (o *Orchestrator) teardown() {
	o.stopPoller()
	if o.state != StateIdle {
		o.endSession("shutdown")
	}
}

func (o *Orchestrator) setState(next TurnState) {
	if o.state == next {
		return
	}
	metricStateTransitions.WithLabelValues(o.state.String(), next.String()).Inc()
	o.logger.Debug("state transition", "from", o.state.String(), "to", next.String())
	o.state = next
	o.notify.BroadcastEvent(hub.StateEvent(next.String()))
}

// StartConversation begins a session: fresh cart, new agent session,
// greeting, then listening. Fails if a session is already live.
func (o *Orchestrator) StartConversation() error {
	return o.call(o.startConversation)
}

func (o *Orchestrator) startConversation() error {
	if o.state != StateIdle && o.state != StateError {
		return ErrSessionActive
	}
	o.cart.Clear()
	o.broadcastCart()
	o.silenceCount = 0
	o.currentVoice = o.cfg.Voice
	o.setState(StateProcessing)

	res, err := o.agent.StartSession(o.ctx)
	if err != nil {
		o.handleFailure(fmt.Errorf("start session: %w", err))
		return err
	}
	o.sessionID = res.SessionID
	o.logger.Info("session started", "session", o.sessionID)
	o.processReply(res)
	return nil
}

// EndConversation ends the live session, if any.
func (o *Orchestrator) EndConversation(reason string) {
	o.post(func() {
		if o.state == StateIdle {
			return
		}
		o.endSession(reason)
	})
}

func (o *Orchestrator) handleSpeechEvent(ev speech.Event) {
	switch ev.Type {
	case speech.EventPartial:
		o.armSilenceTimer()
		if o.cfg.ShowPartialTranscript {
			o.notify.BroadcastEvent(hub.TranscriptEvent(ev.Text, false))
		}
	case speech.EventFinal:
		if o.state != StateListening {
			// One final per turn; late results are dropped.
			o.logger.Debug("dropping final outside listening", "text", ev.Text, "state", o.state.String())
			return
		}
		if o.cfg.ShowFinalTranscript {
			o.notify.BroadcastEvent(hub.TranscriptEvent(ev.Text, true))
		}
		o.handleUtterance(ev.Text)
	case speech.EventStatus:
		o.logger.Debug("recognition status", "detail", ev.Detail)
	case speech.EventError:
		if o.state == StateIdle {
			return
		}
		o.handleFailure(fmt.Errorf("recognition: %w", ev.Err))
	}
}

func (o *Orchestrator) handleUtterance(text string) {
	o.stopSilenceTimer()
	o.silenceCount = 0
	o.setState(StateProcessing)
	o.speech.Mute()
	started := time.Now()

	res, err := o.agent.SendUtterance(o.ctx, o.sessionID, text)
	if err != nil {
		o.handleFailure(fmt.Errorf("send utterance: %w", err))
		return
	}
	o.processReply(res)
	metricTurns.Inc()
	metricTurnLatency.Observe(float64(time.Since(started).Milliseconds()))
}

// processReply runs the per-reply side effects in their fixed order:
// directives, emoji cue, spoken reply, then order / disconnect / cart
// / menu, then back to listening.
func (o *Orchestrator) processReply(res *agent.Result) {
	d := res.Directives
	if res.SessionID != "" {
		o.sessionID = res.SessionID
	}
	if d.Language != "" {
		o.currentVoice = d.Language
	}

	if o.cfg.ShowEmojiPopup {
		if emojis := ExtractEmojis(res.Reply); emojis != "" {
			o.notify.BroadcastEvent(hub.EmojiEvent(emojis, int(o.cfg.EmojiDisplay.Milliseconds())))
		}
	}

	if res.Reply != "" {
		o.notify.BroadcastEvent(hub.ReplyEvent(res.Reply))
		o.setState(StateSpeaking)
		if err := o.speak(res.Reply); err != nil {
			o.logger.Warn("reply playback failed", "error", err)
		}
	}

	if d.IsOrder && len(d.Order) > 0 {
		o.placeOrder(d)
		return
	}

	if d.Disconnect {
		o.endSession("guest finished")
		return
	}

	if len(d.Order) > 0 {
		o.updateCart(d.Order)
	}
	if d.ShowMenu {
		o.notify.BroadcastEvent(hub.MenuEvent(true))
	}
	o.resumeListening()
}

// speak synthesizes and plays text in the conversation's current
// voice. Blocking here is what guarantees reply audio and the next
// listening window never overlap. The microphone stays muted after
// playback; resumeListening lifts the mute, so the recognizer only
// comes back through the channel's settle delay and never transcribes
// the speaker tail.
func (o *Orchestrator) speak(text string) error {
	text = StripEmojis(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	o.speech.Mute()
	return <-o.voice.Enqueue(tts.Request{
		Text:     text,
		Language: o.cfg.Language,
		Voice:    o.currentVoice,
	})
}

func (o *Orchestrator) updateCart(m agent.OrderMap) {
	lines := order.Normalize(o.ctx, o.matcher, order.ParseOrderMap(m))
	o.cart.Replace(lines)
	o.broadcastCart()
}

func (o *Orchestrator) broadcastCart() {
	o.notify.BroadcastEvent(hub.CartEvent(o.cart.Lines(), o.cart.Total()))
}

// placeOrder persists the confirmed order and opens the checkout.
func (o *Orchestrator) placeOrder(d agent.Directives) {
	// The reply left the microphone muted; clear the listen intent too
	// so nothing reopens it while the backend calls are in flight.
	o.speech.RequestStop(true)
	if err := o.robot.STTStop(o.ctx); err != nil {
		o.logger.Warn("robot stt stop failed", "error", err)
	}
	o.updateCart(d.Order)

	if err := o.orders.SaveOrder(o.ctx, d, d.Order); err != nil {
		o.orderFailed(fmt.Errorf("save order: %w", err))
		return
	}
	sess, err := o.orders.StartPayment(o.ctx, d, d.Order)
	if err != nil {
		o.orderFailed(fmt.Errorf("start payment: %w", err))
		return
	}

	if sess.Key == "" {
		sess.Key = o.cfg.PaymentKey
	}
	data := payment.Data{
		Key:         sess.Key,
		Amount:      sess.Amount,
		Currency:    sess.Currency,
		OrderID:     sess.OrderID,
		TableNumber: sess.TableNumber,
		PaymentTime: sess.PaymentTime,
		SubTotal:    sess.SubTotal,
		GSTTotal:    sess.GSTTotal,
		GSTNumber:   sess.GSTNumber,
		RobotCharge: sess.RobotCharge,
		TotalAmount: sess.TotalAmount,
		ReceiptHTML: sess.OrderRowsRaw,
		UPIString:   sess.UPIString,
	}
	if err := o.payments.Open(data, o.deliverOutcome); err != nil {
		o.orderFailed(fmt.Errorf("open checkout: %w", err))
		return
	}
	o.payments.ArmTimeout(o.cfg.PaymentTimeout)
	o.setState(StateAwaitingPayment)
	o.notify.BroadcastEvent(hub.PaymentOpenEvent(map[string]any{
		"key":          data.Key,
		"amount":       data.Amount,
		"currency":     data.Currency,
		"order_id":     data.OrderID,
		"table_number": data.TableNumber,
		"upi_string":   data.UPIString,
	}))
	o.logger.Info("checkout opened", "order", data.OrderID, "amount", data.Amount)
}

func (o *Orchestrator) orderFailed(err error) {
	metricOrderFailures.Inc()
	o.logger.Error("order failed", "error", err)
	if isNetworkError(err) {
		o.handleFailure(err)
		return
	}
	if serr := o.speak(orderErrorMessage); serr != nil {
		o.logger.Warn("error prompt playback failed", "error", serr)
	}
	o.resumeListening()
}

// deliverOutcome is invoked by the payment manager, either from its
// timeout timer goroutine or synchronously from a resolve already
// running on the loop; hop back onto the loop. The send must not
// block the caller: a resolve on the loop itself posting into a full
// queue would stall the loop for good.
func (o *Orchestrator) deliverOutcome(out payment.Outcome) {
	fn := func() { o.handleOutcome(out) }
	select {
	case o.commands <- fn:
	default:
		go func() {
			if err := o.post(fn); err != nil {
				o.logger.Debug("outcome dropped after shutdown", "outcome", out.Kind.String())
			}
		}()
	}
}

func (o *Orchestrator) handleOutcome(out payment.Outcome) {
	metricPaymentOutcomes.WithLabelValues(out.Kind.String()).Inc()
	o.logger.Info("checkout resolved", "outcome", out.Kind.String(), "order", out.Data.OrderID, "detail", out.Detail)

	switch out.Kind {
	case payment.Success:
		html, err := payment.RenderBill(o.cfg.RestaurantName, out.Data, o.cart.Lines())
		if err != nil {
			o.logger.Warn("bill render failed", "error", err)
			html = out.Data.ReceiptHTML
		}
		o.billHTML = html
		if o.lastGateway != nil {
			if err := o.orders.PaymentSuccess(o.ctx, *o.lastGateway, html); err != nil {
				o.logger.Error("payment confirmation failed", "error", err)
			}
		}
		o.notify.BroadcastEvent(hub.PaymentOutcomeEvent("success", ""))
		o.notify.BroadcastEvent(hub.BillEvent(html, int(o.cfg.BillDisplay.Milliseconds())))
		time.AfterFunc(o.cfg.BillDisplay, func() {
			o.post(func() {
				o.billHTML = ""
				o.notify.BroadcastEvent(hub.BillEvent("", 0))
			})
		})
		o.speakAndLog(paymentReceivedMessage)

	case payment.Timeout:
		o.notify.BroadcastEvent(hub.PaymentOutcomeEvent("timeout", out.Detail))
		o.speakAndLog(paymentTimeoutMessage)

	case payment.Cancelled:
		o.notify.BroadcastEvent(hub.PaymentOutcomeEvent("cancelled", out.Detail))
		o.speakAndLog(paymentCancelledMessage)

	case payment.Failed:
		o.notify.BroadcastEvent(hub.PaymentOutcomeEvent("failed", out.Detail))
		o.speakAndLog(orderErrorMessage)
	}

	o.lastGateway = nil
	o.dockRobot()
	o.endSession("checkout " + out.Kind.String())
}

func (o *Orchestrator) speakAndLog(text string) {
	if err := o.speak(text); err != nil {
		o.logger.Warn("announcement playback failed", "error", err)
	}
}

func (o *Orchestrator) dockRobot() {
	status, err := o.robot.Status(o.ctx)
	if err != nil {
		o.logger.Warn("status before dock failed", "error", err)
		status = nil
	}
	if err := o.robot.Dock(o.ctx, status); err != nil {
		o.logger.Error("dock failed", "error", err)
	}
}

// HandlePaymentEvent maps checkout-surface postbacks onto the payment
// manager. Recognized events: payment_done, payment_error,
// payment_closed.
func (o *Orchestrator) HandlePaymentEvent(event string, gw order.GatewayResponse, detail string) error {
	return o.call(func() error {
		if !o.payments.IsOpen() {
			return ErrNoPayment
		}
		switch event {
		case "payment_done":
			o.lastGateway = &gw
			o.payments.ResolveSuccess(gw.PaymentID)
		case "payment_error":
			o.payments.ResolveError(detail)
		case "payment_closed":
			o.payments.ResolveCancelled()
		default:
			return fmt.Errorf("kiosk: unknown payment event %q", event)
		}
		return nil
	})
}

// resumeListening reopens the guest microphone for the next turn. The
// listen intent is recorded while the channel is still muted, then the
// mute is lifted, so recognition restarts through the channel's settle
// delay rather than immediately.
func (o *Orchestrator) resumeListening() {
	if !o.discardStaleSpeech() {
		return
	}
	o.setState(StateListening)
	o.speech.RequestListen(o.cfg.Language)
	o.speech.Unmute()
	if err := o.robot.STTStart(o.ctx); err != nil {
		o.logger.Warn("robot stt start failed", "error", err)
	}
	o.armSilenceTimer()
}

// discardStaleSpeech drains speech events that queued up while the
// turn was in flight. Those transcripts belong to the previous
// listening window; one final per turn. A queued recognition error
// still ends the session. Reports whether the session survived.
func (o *Orchestrator) discardStaleSpeech() bool {
	for {
		select {
		case ev, ok := <-o.speech.Events():
			if !ok {
				return false
			}
			switch ev.Type {
			case speech.EventError:
				o.handleFailure(fmt.Errorf("recognition: %w", ev.Err))
				return false
			case speech.EventFinal:
				o.logger.Debug("dropping final from previous turn", "text", ev.Text)
			}
		default:
			return true
		}
	}
}

func (o *Orchestrator) armSilenceTimer() {
	o.stopSilenceTimer()
	o.silenceTimer = time.AfterFunc(o.cfg.SilenceWindow, func() {
		o.post(o.handleSilence)
	})
}

func (o *Orchestrator) stopSilenceTimer() {
	if o.silenceTimer != nil {
		o.silenceTimer.Stop()
		o.silenceTimer = nil
	}
}

func (o *Orchestrator) handleSilence() {
	if o.state != StateListening {
		return
	}
	o.silenceCount++
	metricSilenceRetries.Inc()
	o.logger.Info("silence window elapsed", "count", o.silenceCount)

	if o.silenceCount >= o.cfg.SilenceRetryLimit {
		o.speakAndLog(goodbyeMessage)
		o.endSession("no response")
		return
	}
	o.speakAndLog(silencePrompt)
	o.resumeListening()
}

// handleFailure is the cycle-error path: stop everything, and if the
// failure looks like a dead link to the robot or backend, invalidate
// the stored address so the screen prompts for it again.
func (o *Orchestrator) handleFailure(err error) {
	o.logger.Error("turn cycle failed", "error", err)
	o.setState(StateError)
	if serr := o.robot.STTStop(o.ctx); serr != nil {
		o.logger.Debug("robot stt stop failed", "error", serr)
	}
	if isNetworkError(err) {
		o.stopPoller()
		o.robot.ClearAddress()
		o.notify.BroadcastEvent(hub.AddressRequiredEvent(err.Error()))
	}
	o.endSession("error")
}

func (o *Orchestrator) endSession(reason string) {
	o.stopSilenceTimer()
	o.speech.RequestStop(true)
	o.payments.Close()
	if err := o.robot.STTStop(o.ctx); err != nil {
		o.logger.Debug("robot stt stop failed", "error", err)
	}
	if o.sessionID != "" {
		metricSessions.WithLabelValues(reason).Inc()
		o.logger.Info("session ended", "session", o.sessionID, "reason", reason)
	}
	o.sessionID = ""
	o.silenceCount = 0
	o.setState(StateIdle)
	o.notify.BroadcastEvent(hub.SessionEndedEvent(reason))
}

// isNetworkError reports whether err reads like a connectivity
// failure rather than a service-level rejection.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"network", "timeout", "connection refused", "no such host", "connection reset"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
