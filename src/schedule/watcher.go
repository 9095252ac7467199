package schedule

import (
	"errors"
	"fmt"

	"price-oracle/src/logger"
	"price-oracle/src/models"

	"github.com/robfig/cron/v3"
)

// -----------------------------------------------------------------------------
// Watcher reloads a schedule file on a cron spec. A failed reload keeps the
// previous schedule.
// -----------------------------------------------------------------------------

type Watcher struct {
	Path     string
	Schedule *ProducerSchedule
	Logger   *logger.Logger
	cron     *cron.Cron
}

// -----------------------------------------------------------------------------

func NewWatcher(path string, ps *ProducerSchedule, log *logger.Logger) *Watcher {
	return &Watcher{
		Path:     path,
		Schedule: ps,
		Logger:   log,
	}
}

// -----------------------------------------------------------------------------

// Reload reads the file once and swaps the schedule in.
func (w *Watcher) Reload() error {
	s, err := LoadScheduleFile(w.Path)
	if err != nil {
		return err
	}
	w.Schedule.Replace(s)
	w.Logger.Debug("Producer schedule reloaded: %d active, %d standby", len(s.Active), len(s.Standby))
	return nil
}

// -----------------------------------------------------------------------------

// Start registers the reload job and starts the cron runner.
func (w *Watcher) Start(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := w.Reload(); err != nil {
			w.Logger.Warning("Producer schedule reload failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid reload spec '%s': %w", spec, err)
	}

	w.cron = c
	c.Start()
	w.Logger.Info("Watching producer schedule %s (%s)", w.Path, spec)
	return nil
}

// -----------------------------------------------------------------------------

// Stop halts the cron runner and waits for a running reload to finish.
func (w *Watcher) Stop() {
	if w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
	w.cron = nil
}

// -----------------------------------------------------------------------------
// Control exposes the schedule to operators. Without a watcher the schedule
// came from the config file and cannot be reloaded.
// -----------------------------------------------------------------------------

var ErrStaticSchedule = errors.New("producer schedule is static and cannot be reloaded")

type Control struct {
	Schedule *ProducerSchedule
	Watcher  *Watcher
}

func NewControl(ps *ProducerSchedule, w *Watcher) *Control {
	return &Control{Schedule: ps, Watcher: w}
}

func (c *Control) Snapshot() models.MProducerSchedule {
	return c.Schedule.Snapshot()
}

func (c *Control) Reload() error {
	if c.Watcher == nil {
		return ErrStaticSchedule
	}
	return c.Watcher.Reload()
}
