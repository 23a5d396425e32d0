package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arkade-os/txeditor/internal/core/domain"
	"github.com/arkade-os/txeditor/internal/core/ports"
	"github.com/arkade-os/txeditor/pkg/errors"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	defaultTickInterval = 500 * time.Millisecond
	notEnoughFundsText  = "Not enough funds"
	publishTimeout      = 5 * time.Second
)

type Option func(*Editor)

// WithTicker drives Tick periodically once the editor is open.
func WithTicker(ticker ports.Ticker, interval time.Duration) Option {
	return func(e *Editor) {
		e.ticker = ticker
		if interval > 0 {
			e.tickInterval = interval
		}
	}
}

func WithNotifier(notifier ports.Notifier) Option {
	return func(e *Editor) {
		e.notifier = notifier
	}
}

func WithAmountUnit(unit btcutil.AmountUnit) Option {
	return func(e *Editor) {
		e.unit = unit
	}
}

func WithRelayFee(feePerKb btcutil.Amount) Option {
	return func(e *Editor) {
		e.relayFeePerKb = feePerKb
	}
}

// WithPreview allows the user to accept the tx for preview instead of sending it.
func WithPreview(allow bool) Option {
	return func(e *Editor) {
		e.allowPreview = allow
	}
}

// Editor reconciles the fee, the feerate and the fee target of a tx being confirmed with
// the fee of the tx actually built. All methods are safe for concurrent use and are
// serialized as if run by a single actor.
type Editor struct {
	id          string
	builder     ports.TxBuilder
	selector    ports.FeeTargetSelector
	prefsRepo   domain.PreferencesRepository
	notifier    ports.Notifier
	ticker      ports.Ticker
	outputValue domain.OutputValue

	tickInterval  time.Duration
	relayFeePerKb btcutil.Amount
	unit          btcutil.AmountUnit
	allowPreview  bool

	lock       *sync.Mutex
	state      domain.DialogState
	fields     *domain.FeeFields
	prefs      domain.Preferences
	quote      domain.FeeQuote
	view       View
	lockTime   *uint32
	isPreview  bool
	opened     bool
	closed     bool
	cancelled  bool
	cancelTick func()
	doneCh     chan struct{}
}

func NewEditor(
	builder ports.TxBuilder,
	selector ports.FeeTargetSelector,
	prefsRepo domain.PreferencesRepository,
	outputValue domain.OutputValue,
	opts ...Option,
) (*Editor, error) {
	if builder == nil {
		return nil, fmt.Errorf("missing tx builder")
	}
	if selector == nil {
		return nil, fmt.Errorf("missing fee target selector")
	}
	if prefsRepo == nil {
		return nil, fmt.Errorf("missing preferences repository")
	}

	e := &Editor{
		id:            uuid.New().String(),
		builder:       builder,
		selector:      selector,
		prefsRepo:     prefsRepo,
		outputValue:   outputValue,
		tickInterval:  defaultTickInterval,
		relayFeePerKb: txrules.DefaultRelayFeePerKb,
		unit:          btcutil.AmountSatoshi,
		allowPreview:  true,
		lock:          &sync.Mutex{},
		fields:        domain.NewFeeFields(nil),
		prefs:         *domain.NewPreferences(),
		doneCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Editor) Id() string {
	return e.id
}

func (e *Editor) log() *log.Entry {
	return log.WithField("session", e.id)
}

// Open loads the preferences, builds the first tx synchronously and starts the periodic
// updates if a ticker is configured.
func (e *Editor) Open(ctx context.Context) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.opened {
		return fmt.Errorf("editor already open")
	}
	e.opened = true

	prefs, err := e.prefsRepo.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	if prefs != nil {
		e.prefs = *prefs
	}
	e.fields.SetHidden(!e.prefs.ShowTxFeeDetails)

	if feeratePerKb, err := e.selector.FeeratePerKb(ctx); err != nil {
		e.log().WithError(err).Debug("no initial feerate")
	} else if feeratePerKb > 0 {
		rate := domain.Quantize(decimal.NewFromInt(feeratePerKb).Div(decimal.NewFromInt(1000)))
		e.fields.Feerate = &rate
	}

	e.log().Debugf("opening editor for amount %s", e.outputValue)

	if err := e.updateTx(ctx, false); err != nil {
		return err
	}
	e.update(ctx)

	if e.ticker != nil {
		cancel, err := e.ticker.Every(e.tickInterval, func() {
			if err := e.Tick(context.Background()); err != nil {
				e.log().WithError(err).Warn("failed to update tx")
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule updates: %w", err)
		}
		e.cancelTick = cancel
	}
	return nil
}

// ResolveFeeEstimator returns the estimator matching the current fee inputs:
// a frozen fee, a frozen feerate, or nil to let the builder estimate.
func (e *Editor) ResolveFeeEstimator() domain.FeeEstimator {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.fields.Estimator()
}

// Recompute reconciles the fee inputs with the current tx and returns the resulting quote.
// It panics if the current tx has no fee.
func (e *Editor) Recompute() domain.FeeQuote {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.recompute()
}

func (e *Editor) recompute() domain.FeeQuote {
	tx := e.state.Tx

	if e.state.NotEnoughFunds || e.state.NoDynFeeEstimates {
		var size int64
		if e.state.NoDynFeeEstimates && tx != nil {
			size = tx.EstimatedSize()
		}
		if !e.fields.FeeFrozen() {
			e.fields.Fee = nil
		}
		if !e.fields.FeerateFrozen() {
			e.fields.Feerate = nil
		}
		e.quote = domain.Unavailable(size)
		return e.quote
	}

	if tx == nil {
		e.quote = domain.Unavailable(0)
		return e.quote
	}

	fee, ok := tx.Fee()
	if !ok {
		panic("built tx has no fee")
	}

	e.quote = domain.Reconcile(e.fields, tx.EstimatedSize(), int64(fee))
	return e.quote
}

// OnFeeTargetChanged persists the chosen target and hands the feerate over to it.
func (e *Editor) OnFeeTargetChanged(
	ctx context.Context, dynamic bool, pos int, feeratePerKb *int64,
) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if err := e.setFeeConfig(ctx, dynamic, pos, feeratePerKb); err != nil {
		return err
	}

	e.fields.ActivateTarget(feeratePerKb)
	e.triggerUpdate(ctx)
	return nil
}

// SelectFeeTarget moves the fee target selector to the given position.
func (e *Editor) SelectFeeTarget(ctx context.Context, pos int) error {
	target, err := e.selector.Select(ctx, pos)
	if err != nil {
		return err
	}
	return e.OnFeeTargetChanged(ctx, target.Dynamic, target.Pos, target.FeeratePerKb)
}

func (e *Editor) setFeeConfig(
	ctx context.Context, dynamic bool, pos int, feeratePerKb *int64,
) error {
	key, value := domain.PrefFeePerKb, ""
	switch {
	case dynamic && e.prefs.MempoolFees:
		key, value = domain.PrefDepthLevel, fmt.Sprint(pos)
	case dynamic:
		key, value = domain.PrefFeeLevel, fmt.Sprint(pos)
	case feeratePerKb != nil && *feeratePerKb > 0:
		value = fmt.Sprint(*feeratePerKb)
	default:
		// unknown static rate, keep the persisted one
		return nil
	}
	return e.setPreference(ctx, key, value)
}

// EditFee records a fee typed by the user. Committing an empty value goes back to auto.
func (e *Editor) EditFee(ctx context.Context, fee *int64, commit bool) error {
	if fee != nil && *fee < 0 {
		return errors.INVALID_FEE_INPUT.New("fee must not be negative").
			WithMetadata(errors.InvalidFeeInputMetadata{Field: "fee", Value: fmt.Sprint(*fee)})
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	e.fields.EditFee(fee, commit)
	e.triggerUpdate(ctx)
	return nil
}

// EditFeerate records a sat/vB feerate typed by the user.
func (e *Editor) EditFeerate(ctx context.Context, feerate *decimal.Decimal, commit bool) error {
	if feerate != nil && feerate.IsNegative() {
		return errors.INVALID_FEE_INPUT.New("feerate must not be negative").
			WithMetadata(errors.InvalidFeeInputMetadata{
				Field: "feerate", Value: feerate.String(),
			})
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	e.fields.EditFeerate(feerate, commit)
	e.triggerUpdate(ctx)
	return nil
}

// UpdateTx rebuilds the tx with the current fee inputs. Insufficient funds and missing fee
// estimates are recorded in the state and never returned. Address corruption is shown to
// the user and returned as is, like any other failure of the primary attempt.
func (e *Editor) UpdateTx(ctx context.Context, fallbackToZeroFee bool) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.updateTx(ctx, fallbackToZeroFee)
}

func (e *Editor) updateTx(ctx context.Context, fallbackToZeroFee bool) error {
	res := e.builder.MakeTx(ctx, e.fields.Estimator())

	switch res.Outcome {
	case ports.BuildSuccess:
		if res.Tx == nil {
			return errors.INTERNAL_ERROR.New("builder returned no tx")
		}
		e.state.Tx = res.Tx
		e.state.NotEnoughFunds = false
		e.state.NoDynFeeEstimates = false

	case ports.BuildInsufficientFunds:
		e.errorLog(res.Err).Debug("not enough funds")
		e.state.NotEnoughFunds = true
		e.state.Tx = nil
		if !fallbackToZeroFee {
			return nil
		}
		retry := e.builder.MakeTx(ctx, domain.FixedFee(0))
		if !retry.Ok() {
			e.log().Debugf("zero fee fallback failed: %s", retry.Message())
			return nil
		}
		e.state.Tx = retry.Tx

	case ports.BuildNoFeeEstimate:
		e.errorLog(res.Err).Debug("no dynamic fee estimates")
		e.state.NoDynFeeEstimates = true
		e.state.Tx = nil
		retry := e.builder.MakeTx(ctx, domain.FixedFee(0))
		if retry.Outcome == ports.BuildInsufficientFunds {
			e.state.NotEnoughFunds = true
			return nil
		}
		if !retry.Ok() {
			e.log().Debugf("zero fee fallback failed: %s", retry.Message())
			return nil
		}
		e.state.Tx = retry.Tx

	case ports.BuildAddressCorruption:
		e.state.Tx = nil
		e.showError(ctx, res.Err)
		return res.Err

	default:
		return res.Err
	}

	e.state.Tx.SetRBF(true)
	return nil
}

// HaveEnoughFundsAssumingZeroFees tells whether the tx could be built at all.
func (e *Editor) HaveEnoughFundsAssumingZeroFees(ctx context.Context) (bool, error) {
	res := e.builder.MakeTx(ctx, domain.FixedFee(0))
	switch res.Outcome {
	case ports.BuildSuccess:
		return true, nil
	case ports.BuildInsufficientFunds:
		return false, nil
	default:
		return false, res.Err
	}
}

// MarkDirty requests a rebuild on the next tick.
func (e *Editor) MarkDirty() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.state.NeedsUpdate = true
}

// Tick rebuilds the tx and refreshes the view if an update was requested since the
// previous tick.
func (e *Editor) Tick(ctx context.Context) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.closed || !e.state.NeedsUpdate {
		return nil
	}
	defer func() { e.state.NeedsUpdate = false }()

	err := e.updateTx(ctx, false)
	e.update(ctx)
	return err
}

// triggerUpdate drops the current tx so that sending is disabled until the next tick
// rebuilds it.
func (e *Editor) triggerUpdate(ctx context.Context) {
	e.state.Tx = nil
	e.update(ctx)
	e.state.NeedsUpdate = true
}

// Update refreshes the view from the current state and publishes it.
func (e *Editor) Update(ctx context.Context) View {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.update(ctx)
	return e.view
}

func (e *Editor) update(ctx context.Context) {
	tx := e.state.Tx

	e.view.SessionId = e.id
	e.view.AmountLabel = e.amountLabel()
	e.view.FeeTarget = e.selector.Target()
	e.view.ShowIO = e.prefs.ShowTxIO
	e.view.ShowFeeDetails = e.prefs.ShowTxFeeDetails
	e.view.ShowLockTime = e.prefs.ShowTxLockTime
	e.view.ShowPreviewButton = e.prefs.ShowTxPreviewButton && e.allowPreview

	defer func() {
		e.view.Mode = e.fields.Mode().String()
		e.view.Quote = e.quote
		e.view.RoundingText = ""
		if e.quote.ShowRounding {
			e.view.RoundingText = e.quote.RoundingText()
		}
		e.publish(ctx, ports.ViewUpdated, e.view)
	}()

	if e.state.NotEnoughFunds {
		e.recompute()
		e.toggleSendButton(false, notEnoughFundsText)
		return
	}
	if tx == nil {
		e.toggleSendButton(false, "")
		e.quote.ShowRounding = false
		return
	}

	e.recompute()
	if e.lockTime == nil {
		lockTime := tx.LockTime()
		e.lockTime = &lockTime
	}
	e.view.LockTime = e.lockTime

	fee, ok := tx.Fee()
	if !ok {
		panic("built tx has no fee")
	}
	e.view.FeeLabel = fee.Format(e.unit)

	amount := e.outputValue.Amount
	if e.outputValue.Max {
		amount = tx.OutputValue()
	}
	warning := domain.CheckFeeWarning(amount, tx.EstimatedSize(), fee, e.relayFeePerKb)
	if warning != nil {
		e.toggleSendButton(warning.AllowSend, warning.Message)
		return
	}
	e.toggleSendButton(true, "")
}

func (e *Editor) amountLabel() string {
	if !e.outputValue.Max {
		return e.outputValue.Amount.Format(e.unit)
	}
	if e.state.Tx == nil {
		return "max"
	}
	return e.state.Tx.OutputValue().Format(e.unit)
}

func (e *Editor) toggleSendButton(enable bool, message string) {
	e.view.Message = message
	e.view.SendEnabled = enable
	e.view.PreviewEnabled = enable
}

// SetLockTime overrides the lock time defaulted from the built tx.
func (e *Editor) SetLockTime(lockTime *uint32) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.lockTime = lockTime
	e.view.LockTime = lockTime
}

func (e *Editor) ToggleIO(ctx context.Context) (bool, error) {
	return e.toggle(ctx, domain.PrefShowTxIO)
}

// ToggleFeeDetails shows or hides the fee inputs. Hidden inputs stop being frozen.
func (e *Editor) ToggleFeeDetails(ctx context.Context) (bool, error) {
	return e.toggle(ctx, domain.PrefShowTxFeeDetails)
}

func (e *Editor) ToggleLockTime(ctx context.Context) (bool, error) {
	return e.toggle(ctx, domain.PrefShowTxLockTime)
}

func (e *Editor) TogglePreviewButton(ctx context.Context) (bool, error) {
	return e.toggle(ctx, domain.PrefShowTxPreviewButton)
}

func (e *Editor) toggle(ctx context.Context, key string) (bool, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	prefs := e.prefs
	value, err := prefs.Toggle(key)
	if err != nil {
		return false, err
	}
	if err := e.savePreferences(ctx, prefs); err != nil {
		return false, err
	}

	if key == domain.PrefShowTxFeeDetails {
		e.fields.SetHidden(!value)
		e.state.NeedsUpdate = true
	}
	e.update(ctx)

	if key == domain.PrefShowTxPreviewButton {
		return value && e.allowPreview, nil
	}
	return value, nil
}

func (e *Editor) setPreference(ctx context.Context, key, value string) error {
	prefs := e.prefs
	if err := prefs.Set(key, value); err != nil {
		return err
	}
	return e.savePreferences(ctx, prefs)
}

func (e *Editor) savePreferences(ctx context.Context, prefs domain.Preferences) error {
	prefs.UpdatedAt = time.Now()
	if err := e.prefsRepo.Upsert(ctx, prefs); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	e.prefs = prefs
	return nil
}

// Accept closes the session handing back the current tx.
func (e *Editor) Accept() error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if !e.view.SendEnabled || e.state.Tx == nil {
		return fmt.Errorf("tx can't be sent: %s", e.view.Message)
	}
	e.close(false)
	return nil
}

// Preview closes the session handing back the current tx for inspection instead of sending.
func (e *Editor) Preview() error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if !e.allowPreview {
		return fmt.Errorf("preview not allowed")
	}
	if !e.view.PreviewEnabled || e.state.Tx == nil {
		return fmt.Errorf("tx can't be previewed: %s", e.view.Message)
	}
	e.isPreview = true
	e.close(false)
	return nil
}

func (e *Editor) Cancel() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.close(true)
}

func (e *Editor) close(cancelled bool) {
	if e.closed {
		return
	}
	e.closed = true
	e.cancelled = cancelled
	e.stopUpdates()
	close(e.doneCh)
}

func (e *Editor) stopUpdates() {
	if e.cancelTick != nil {
		e.cancelTick()
		e.cancelTick = nil
	}
}

// Run waits for the session to be accepted or cancelled and returns the accepted tx,
// nil if cancelled.
func (e *Editor) Run(ctx context.Context) (domain.Tx, error) {
	select {
	case <-e.doneCh:
	case <-ctx.Done():
		e.Cancel()
		return nil, ctx.Err()
	}
	return e.Result(), nil
}

// Result returns the accepted tx once the session is closed.
func (e *Editor) Result() domain.Tx {
	e.lock.Lock()
	defer e.lock.Unlock()

	if !e.closed || e.cancelled {
		return nil
	}
	return e.state.Tx
}

func (e *Editor) IsPreview() bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.isPreview
}

func (e *Editor) Mode() domain.FeeInputMode {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.fields.Mode()
}

func (e *Editor) TargetActive() bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.fields.TargetActive()
}

// FeeInputs returns the values currently held by the fee and feerate inputs.
func (e *Editor) FeeInputs() (*int64, *decimal.Decimal) {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.fields.Fee, e.fields.Feerate
}

func (e *Editor) State() domain.DialogState {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.state
}

func (e *Editor) Quote() domain.FeeQuote {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.quote
}

func (e *Editor) View() View {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.view
}

func (e *Editor) showError(ctx context.Context, err error) {
	msg := UserErrorMessage{
		SessionId: e.id,
		Code:      errors.INTERNAL_ERROR.Name,
		Status:    errors.INTERNAL_ERROR.GrpcCode.String(),
		Message:   err.Error(),
	}
	if typed, ok := errors.FromError(err); ok {
		msg.Code = typed.CodeName()
		msg.Status = typed.GrpcCode().String()
		msg.Metadata = typed.Metadata()
	}

	e.errorLog(err).Error(msg.Message)
	e.publish(ctx, ports.UserError, msg)
}

// errorLog returns the session logger carrying the code and metadata of a typed error.
func (e *Editor) errorLog(err error) *log.Entry {
	if typed, ok := errors.FromError(err); ok {
		return typed.Log().WithField("session", e.id)
	}
	return e.log().WithError(err)
}

func (e *Editor) publish(ctx context.Context, topic ports.Topic, message any) {
	if e.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := e.notifier.Publish(ctx, topic, message); err != nil {
		e.log().WithError(err).WithField("topic", topic).Warn("failed to publish")
	}
}
