package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/datatypes"

	"jemuran-service/internal/cache"
	"jemuran-service/internal/classifier"
	"jemuran-service/internal/control"
	"jemuran-service/internal/metrics"
	"jemuran-service/internal/store"
)

var ErrInvalidInput = errors.New("invalid input")

// Classifier is the prediction contract the engine consumes. The real
// implementation is *classifier.Predictor; tests substitute fakes to assert
// call counts.
type Classifier interface {
	Predict(temperature, humidity float64, rainValue, ldrValue int) classifier.Result
	Degraded() bool
	Reload() error
}

// Reading is one device submission. ReportedSystem carries the firmware's own
// on/off side channel; it is stored alongside the record but the resolver
// output is the only authoritative status.
type Reading struct {
	Temperature    float64
	Humidity       float64
	RainValue      int
	LdrValue       int
	ReportedSystem *int
	Waktu          time.Time
}

func (r Reading) validate() error {
	if math.IsNaN(r.Temperature) || math.IsInf(r.Temperature, 0) {
		return ErrInvalidInput
	}
	if math.IsNaN(r.Humidity) || math.IsInf(r.Humidity, 0) {
		return ErrInvalidInput
	}
	return nil
}

// Engine runs the decision cycle: classify, resolve against the subject's
// control state, persist reading and effective status together.
type Engine struct {
	repo        *store.Repo
	predictor   Classifier
	statusCache *cache.StatusCache
	hub         *EventHub

	cron          *cron.Cron
	retentionDays int
}

func New(repo *store.Repo, predictor Classifier, statusCache *cache.StatusCache, hub *EventHub) *Engine {
	if hub == nil {
		hub = NewEventHub()
	}
	return &Engine{repo: repo, predictor: predictor, statusCache: statusCache, hub: hub}
}

func (e *Engine) Hub() *EventHub { return e.hub }

// SubmitReading executes one decision cycle for a device submission and
// returns the persisted history record. OFF mode never touches the
// classifier; AUTO under a degraded classifier records the fail-safe
// sheltered status while keeping the sentinel probabilities for
// observability.
func (e *Engine) SubmitReading(ctx context.Context, userID uuid.UUID, in Reading) (*store.JemuranRecord, error) {
	started := time.Now()
	if err := in.validate(); err != nil {
		return nil, err
	}

	cs, err := e.repo.LoadControlState(ctx, userID)
	if err != nil {
		return nil, err
	}
	st := control.State{Mode: control.Mode(cs.Mode), ManualCommand: control.Command(cs.ManualCommand)}

	var pred classifier.Result
	if st.Mode != control.ModeOff {
		pred = e.predictor.Predict(in.Temperature, in.Humidity, in.RainValue, in.LdrValue)
		metrics.PredictionsTotal.WithLabelValues(pred.Label).Inc()
		setDegradedGauge(pred.Degraded)
	}

	decision := control.Resolve(st, pred.Label, pred.Degraded)

	var probs datatypes.JSON
	if pred.Probabilities != nil {
		if b, err := json.Marshal(pred.Probabilities); err == nil {
			probs = datatypes.JSON(b)
		}
	}

	waktu := in.Waktu
	if waktu.IsZero() {
		waktu = time.Now().UTC()
	}
	rec := &store.JemuranRecord{
		UserID:         userID,
		Waktu:          waktu,
		Temperature:    in.Temperature,
		Humidity:       in.Humidity,
		RainValue:      in.RainValue,
		LdrValue:       in.LdrValue,
		StatusJemuran:  decision.Status,
		StatusSystem:   decision.SystemStatus(),
		ReportedSystem: in.ReportedSystem,
		Probabilities:  probs,
		Degraded:       pred.Degraded,
	}

	if in.ReportedSystem != nil {
		reported := control.SystemOff
		if *in.ReportedSystem == 1 {
			reported = control.SystemOn
		}
		if reported != rec.StatusSystem {
			slog.Debug("device-reported system status disagrees with resolver",
				"user_id", userID, "reported", reported, "resolved", rec.StatusSystem)
		}
	}

	err = e.repo.Transaction(ctx, func(tx *store.Repo) error {
		return tx.AppendHistory(ctx, rec)
	})
	if err != nil {
		metrics.SubmitFailures.Inc()
		return nil, err
	}

	metrics.ReadingsReceived.Inc()
	metrics.DecisionsTotal.WithLabelValues(decision.Status, cs.Mode).Inc()
	metrics.DecisionDuration.Observe(time.Since(started).Seconds())

	if err := e.statusCache.Invalidate(ctx, userID.String()); err != nil {
		slog.Warn("status cache invalidate failed", "user_id", userID, "error", err)
	}
	e.hub.Publish(userID, RecordEvent{Record: *rec})

	return rec, nil
}

// SetMode validates and persists a new mode. Setting the current mode again
// is a successful no-op; the stored manual command is never cleared.
func (e *Engine) SetMode(ctx context.Context, userID uuid.UUID, mode string) (*store.ControlState, error) {
	m, err := control.ParseMode(mode)
	if err != nil {
		return nil, ErrInvalidInput
	}
	cs, err := e.repo.SetMode(ctx, userID, m)
	if err != nil {
		return nil, err
	}
	if err := e.statusCache.Invalidate(ctx, userID.String()); err != nil {
		slog.Warn("status cache invalidate failed", "user_id", userID, "error", err)
	}
	slog.Info("mode changed", "user_id", userID, "mode", m)
	return cs, nil
}

// SetManualCommand validates and persists an operator OPEN/CLOSE intent.
func (e *Engine) SetManualCommand(ctx context.Context, userID uuid.UUID, command string) (*store.ControlState, error) {
	c, err := control.ParseCommand(command)
	if err != nil {
		return nil, ErrInvalidInput
	}
	cs, err := e.repo.SetManualCommand(ctx, userID, c)
	if err != nil {
		return nil, err
	}
	if err := e.statusCache.Invalidate(ctx, userID.String()); err != nil {
		slog.Warn("status cache invalidate failed", "user_id", userID, "error", err)
	}
	slog.Info("manual command issued", "user_id", userID, "command", c)
	return cs, nil
}

// QueryStatus derives the projected status for a user. The projection itself
// is pure; this wrapper only fetches its two inputs and fills the cache for
// the device polling loop.
func (e *Engine) QueryStatus(ctx context.Context, userID uuid.UUID) (control.Projection, error) {
	if b, err := e.statusCache.Get(ctx, userID.String()); err == nil && b != nil {
		var p control.Projection
		if json.Unmarshal(b, &p) == nil {
			return p, nil
		}
	}

	cs, err := e.repo.LoadControlState(ctx, userID)
	if err != nil {
		return control.Projection{}, err
	}
	latest, err := e.repo.LatestHistory(ctx, userID)
	if err != nil {
		return control.Projection{}, err
	}
	latestStatus := ""
	if latest != nil {
		latestStatus = latest.StatusJemuran
	}
	st := control.State{Mode: control.Mode(cs.Mode), ManualCommand: control.Command(cs.ManualCommand)}
	p := control.Project(st, latestStatus)

	if b, err := json.Marshal(p); err == nil {
		if err := e.statusCache.Set(ctx, userID.String(), b); err != nil {
			slog.Debug("status cache set failed", "user_id", userID, "error", err)
		}
	}
	return p, nil
}

func (e *Engine) QueryHistory(ctx context.Context, userID uuid.UUID, limit int) ([]store.JemuranRecord, error) {
	return e.repo.HistoryWindow(ctx, userID, limit)
}

func (e *Engine) ControlState(ctx context.Context, userID uuid.UUID) (*store.ControlState, error) {
	return e.repo.LoadControlState(ctx, userID)
}

// ReloadModel is the explicit recovery action for a degraded classifier.
func (e *Engine) ReloadModel() error {
	err := e.predictor.Reload()
	setDegradedGauge(e.predictor.Degraded())
	return err
}

// StartRetention schedules history pruning. A non-positive retention disables
// it entirely.
func (e *Engine) StartRetention(cronSpec string, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	e.retentionDays = retentionDays
	c := cron.New()
	_, err := c.AddFunc(cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		cutoff := time.Now().UTC().AddDate(0, 0, -e.retentionDays)
		n, err := e.repo.PruneHistoryBefore(ctx, cutoff)
		if err != nil {
			slog.Error("history prune failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("history pruned", "rows", n, "cutoff", cutoff)
		}
	})
	if err != nil {
		return err
	}
	e.cron = c
	c.Start()
	return nil
}

func (e *Engine) Stop() {
	if e.cron != nil {
		e.cron.Stop()
	}
}

func setDegradedGauge(degraded bool) {
	if degraded {
		metrics.ModelDegraded.Set(1)
	} else {
		metrics.ModelDegraded.Set(0)
	}
}
